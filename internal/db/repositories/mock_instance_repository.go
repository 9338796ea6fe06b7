package repositories

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felipe/zapgate/internal/db/models"
)

// MockInstanceRepository implementa InstanceRepository em memória para testes
type MockInstanceRepository struct {
	instances map[string]*models.Instance
	mutex     sync.RWMutex
}

// NewMockInstanceRepository cria um novo repositório mock
func NewMockInstanceRepository() *MockInstanceRepository {
	return &MockInstanceRepository{
		instances: make(map[string]*models.Instance),
	}
}

// Create cria uma nova instância
func (r *MockInstanceRepository) Create(instance *models.Instance) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.instances[instance.Phone]; exists {
		return fmt.Errorf("instance %s: %w", instance.Phone, ErrDuplicate)
	}

	if instance.ID == "" {
		instance.ID = uuid.NewString()
	}
	now := time.Now()
	instance.CreatedAt = now
	instance.UpdatedAt = now
	if instance.PluginOverrides == nil {
		instance.PluginOverrides = make(models.PluginOverrides)
	}

	clone := *instance
	r.instances[instance.Phone] = &clone
	return nil
}

// GetByID obtém uma instância por ID
func (r *MockInstanceRepository) GetByID(id string) (*models.Instance, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, instance := range r.instances {
		if instance.ID == id {
			clone := *instance
			return &clone, nil
		}
	}

	return nil, ErrNotFound
}

// GetByPhone obtém uma instância por telefone
func (r *MockInstanceRepository) GetByPhone(phone string) (*models.Instance, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if instance, exists := r.instances[phone]; exists {
		clone := *instance
		return &clone, nil
	}

	return nil, ErrNotFound
}

// GetByAPIKey obtém uma instância pela API key
func (r *MockInstanceRepository) GetByAPIKey(apiKey string) (*models.Instance, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, instance := range r.instances {
		if instance.APIKey == apiKey {
			clone := *instance
			return &clone, nil
		}
	}

	return nil, ErrNotFound
}

// GetAll obtém todas as instâncias
func (r *MockInstanceRepository) GetAll(filter *models.InstanceFilter) (*models.InstanceListResponse, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var instances []models.Instance
	for _, instance := range r.instances {
		if filter != nil && filter.Status != nil && instance.Status != *filter.Status {
			continue
		}
		instances = append(instances, *instance)
	}

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].CreatedAt.Before(instances[j].CreatedAt)
	})

	return &models.InstanceListResponse{
		Instances: instances,
		Total:     len(instances),
		Page:      1,
		PerPage:   len(instances),
	}, nil
}

// Update atualiza uma instância
func (r *MockInstanceRepository) Update(instance *models.Instance) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.instances[instance.Phone]; !exists {
		return ErrNotFound
	}

	instance.UpdatedAt = time.Now()
	clone := *instance
	r.instances[instance.Phone] = &clone
	return nil
}

// UpdateStatus atualiza o status de uma instância
func (r *MockInstanceRepository) UpdateStatus(phone string, status models.InstanceStatus) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	instance, exists := r.instances[phone]
	if !exists {
		return ErrNotFound
	}

	instance.UpdateStatus(status)
	return nil
}

// UpdateQRCode atualiza o QR code de uma instância
func (r *MockInstanceRepository) UpdateQRCode(phone string, qrCode *string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	instance, exists := r.instances[phone]
	if !exists {
		return ErrNotFound
	}

	instance.QRCode = qrCode
	instance.UpdatedAt = time.Now()
	return nil
}

// UpdatePluginOverrides atualiza o mapa de plugins de uma instância
func (r *MockInstanceRepository) UpdatePluginOverrides(phone string, overrides models.PluginOverrides) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	instance, exists := r.instances[phone]
	if !exists {
		return ErrNotFound
	}

	instance.PluginOverrides = overrides
	instance.UpdatedAt = time.Now()
	return nil
}

// IncrementCounter incrementa um contador de estatística
func (r *MockInstanceRepository) IncrementCounter(phone string, column string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	instance, exists := r.instances[phone]
	if !exists {
		return ErrNotFound
	}

	switch column {
	case "messages_received":
		instance.MessagesReceived++
	case "messages_sent":
		instance.MessagesSent++
	case "reconnections":
		instance.Reconnections++
	default:
		return fmt.Errorf("invalid counter column: %s", column)
	}

	return nil
}

// Delete remove uma instância por ID
func (r *MockInstanceRepository) Delete(id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for phone, instance := range r.instances {
		if instance.ID == id {
			delete(r.instances, phone)
			return nil
		}
	}

	return ErrNotFound
}

// DeleteByPhone remove uma instância por telefone
func (r *MockInstanceRepository) DeleteByPhone(phone string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.instances[phone]; !exists {
		return ErrNotFound
	}

	delete(r.instances, phone)
	return nil
}

// Exists verifica se uma instância existe
func (r *MockInstanceRepository) Exists(phone string) (bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, exists := r.instances[phone]
	return exists, nil
}

// Count retorna o número de instâncias
func (r *MockInstanceRepository) Count() (int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.instances), nil
}

// GetStartable retorna as instâncias que devem ser religadas no boot
func (r *MockInstanceRepository) GetStartable() ([]*models.Instance, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var instances []*models.Instance
	for _, instance := range r.instances {
		if instance.Status == models.InstanceStatusActive || instance.Status == models.InstanceStatusConnecting {
			clone := *instance
			instances = append(instances, &clone)
		}
	}

	return instances, nil
}

// DeleteOlderThan remove instâncias criadas antes do corte
func (r *MockInstanceRepository) DeleteOlderThan(cutoff time.Time) ([]string, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var phones []string
	for phone, instance := range r.instances {
		if instance.CreatedAt.Before(cutoff) && !liveInstanceStatus(instance.Status) {
			phones = append(phones, phone)
			delete(r.instances, phone)
		}
	}

	return phones, nil
}

// liveInstanceStatus indica sessão viva; instâncias nesses status ficam
// fora da varredura de retenção
func liveInstanceStatus(status models.InstanceStatus) bool {
	switch status {
	case models.InstanceStatusConnecting, models.InstanceStatusQRReady,
		models.InstanceStatusActive, models.InstanceStatusReconnecting:
		return true
	}
	return false
}
