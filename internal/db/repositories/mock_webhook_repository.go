package repositories

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felipe/zapgate/internal/db/models"
)

// MockWebhookRepository implementa WebhookRepository em memória para testes
type MockWebhookRepository struct {
	mu       sync.RWMutex
	webhooks map[string]*models.Webhook
}

// NewMockWebhookRepository cria um novo repositório mock
func NewMockWebhookRepository() *MockWebhookRepository {
	return &MockWebhookRepository{
		webhooks: make(map[string]*models.Webhook),
	}
}

// Create cria um novo webhook
func (r *MockWebhookRepository) Create(webhook *models.Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if webhook.ID == "" {
		webhook.ID = uuid.NewString()
	}
	webhook.CreatedAt = time.Now()

	clone := *webhook
	r.webhooks[webhook.ID] = &clone
	return nil
}

// GetByID obtém um webhook por ID
func (r *MockWebhookRepository) GetByID(id string) (*models.Webhook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if webhook, exists := r.webhooks[id]; exists {
		clone := *webhook
		return &clone, nil
	}
	return nil, ErrNotFound
}

// GetByInstance obtém os webhooks de uma instância
func (r *MockWebhookRepository) GetByInstance(instanceID string) ([]models.Webhook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var webhooks []models.Webhook
	for _, webhook := range r.webhooks {
		if webhook.InstanceID == instanceID {
			webhooks = append(webhooks, *webhook)
		}
	}
	return webhooks, nil
}

// GetEnabledByInstanceAndEvent obtém as inscrições habilitadas para o evento
func (r *MockWebhookRepository) GetEnabledByInstanceAndEvent(instanceID, event string) ([]models.Webhook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var webhooks []models.Webhook
	for _, webhook := range r.webhooks {
		if webhook.InstanceID == instanceID && webhook.Event == event && webhook.Enabled {
			webhooks = append(webhooks, *webhook)
		}
	}
	return webhooks, nil
}

// Update atualiza um webhook
func (r *MockWebhookRepository) Update(webhook *models.Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.webhooks[webhook.ID]; !exists {
		return ErrNotFound
	}
	clone := *webhook
	r.webhooks[webhook.ID] = &clone
	return nil
}

// Delete remove um webhook
func (r *MockWebhookRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.webhooks[id]; !exists {
		return ErrNotFound
	}
	delete(r.webhooks, id)
	return nil
}

// DeleteByInstance remove os webhooks de uma instância
func (r *MockWebhookRepository) DeleteByInstance(instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, webhook := range r.webhooks {
		if webhook.InstanceID == instanceID {
			delete(r.webhooks, id)
		}
	}
	return nil
}

// DeleteOlderThan remove webhooks criados antes do corte
func (r *MockWebhookRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, webhook := range r.webhooks {
		if webhook.CreatedAt.Before(cutoff) {
			delete(r.webhooks, id)
			removed++
		}
	}
	return removed, nil
}

// MockWebhookHistoryRepository implementa WebhookHistoryRepository em memória
type MockWebhookHistoryRepository struct {
	mu      sync.RWMutex
	records map[string]*models.WebhookHistory
}

// NewMockWebhookHistoryRepository cria um novo repositório mock
func NewMockWebhookHistoryRepository() *MockWebhookHistoryRepository {
	return &MockWebhookHistoryRepository{
		records: make(map[string]*models.WebhookHistory),
	}
}

// Create registra o início de uma tentativa
func (r *MockWebhookHistoryRepository) Create(history *models.WebhookHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	if history.Status == "" {
		history.Status = models.WebhookHistoryStatusPending
	}
	if history.TriggeredAt.IsZero() {
		history.TriggeredAt = time.Now()
	}

	clone := *history
	r.records[history.ID] = &clone
	return nil
}

// Complete grava o desfecho de uma tentativa
func (r *MockWebhookHistoryRepository) Complete(history *models.WebhookHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[history.ID]; !exists {
		return ErrNotFound
	}
	if history.CompletedAt == nil {
		now := time.Now()
		history.CompletedAt = &now
	}

	clone := *history
	r.records[history.ID] = &clone
	return nil
}

// GetByID obtém um registro por ID
func (r *MockWebhookHistoryRepository) GetByID(id string) (*models.WebhookHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if record, exists := r.records[id]; exists {
		clone := *record
		return &clone, nil
	}
	return nil, ErrNotFound
}

// GetAll obtém os registros que casam com o filtro
func (r *MockWebhookHistoryRepository) GetAll(filter *models.WebhookHistoryFilter) ([]models.WebhookHistory, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []models.WebhookHistory
	for _, record := range r.records {
		if filter != nil {
			if filter.InstanceID != nil && record.InstanceID != *filter.InstanceID {
				continue
			}
			if filter.WebhookID != nil && record.WebhookID != *filter.WebhookID {
				continue
			}
			if filter.Event != nil && record.Event != *filter.Event {
				continue
			}
			if filter.Status != nil && record.Status != *filter.Status {
				continue
			}
		}
		records = append(records, *record)
	}
	return records, len(records), nil
}

// GetStatistics retorna agregados simples sobre os registros
func (r *MockWebhookHistoryRepository) GetStatistics(instanceID *string) (*models.WebhookHistoryStatistics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &models.WebhookHistoryStatistics{
		ByStatus: make(map[string]int64),
		ByEvent:  make(map[string]int64),
	}
	for _, record := range r.records {
		if instanceID != nil && record.InstanceID != *instanceID {
			continue
		}
		stats.Total++
		stats.ByStatus[string(record.Status)]++
		stats.ByEvent[record.Event]++
		if record.Status == models.WebhookHistoryStatusSuccess {
			stats.SuccessCount++
		} else if record.Status != models.WebhookHistoryStatusPending {
			stats.FailureCount++
		}
	}
	return stats, nil
}

// DeleteBefore remove registros disparados antes do corte
func (r *MockWebhookHistoryRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, record := range r.records {
		if record.TriggeredAt.Before(cutoff) {
			delete(r.records, id)
			removed++
		}
	}
	return removed, nil
}
