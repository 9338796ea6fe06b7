package repositories

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felipe/zapgate/internal/db/models"
)

// MockMessageRepository implementa MessageRepository em memória para testes
type MockMessageRepository struct {
	mu       sync.RWMutex
	messages map[string]*models.Message
}

// NewMockMessageRepository cria um novo repositório mock
func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{
		messages: make(map[string]*models.Message),
	}
}

// Create cria uma nova mensagem
func (r *MockMessageRepository) Create(message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	clone := *message
	r.messages[message.ID] = &clone
	return nil
}

// GetByID obtém uma mensagem por ID
func (r *MockMessageRepository) GetByID(id string) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if message, exists := r.messages[id]; exists {
		clone := *message
		return &clone, nil
	}
	return nil, ErrNotFound
}

// GetByInstance obtém as mensagens de uma instância
func (r *MockMessageRepository) GetByInstance(instanceID string, filter *models.MessageFilter) ([]models.Message, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var messages []models.Message
	for _, message := range r.messages {
		if message.InstanceID != instanceID {
			continue
		}
		if filter != nil {
			if filter.Direction != nil && message.Direction != string(*filter.Direction) {
				continue
			}
			if filter.Type != nil && message.Type != string(*filter.Type) {
				continue
			}
		}
		messages = append(messages, *message)
	}
	return messages, len(messages), nil
}

// GetConversation obtém as mensagens trocadas com um contato
func (r *MockMessageRepository) GetConversation(instanceID, contact string, limit int) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var messages []models.Message
	for _, message := range r.messages {
		if message.InstanceID != instanceID {
			continue
		}
		if message.Sender == contact || message.Recipient == contact {
			messages = append(messages, *message)
		}
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

// UpdateStatus atualiza o status de uma mensagem
func (r *MockMessageRepository) UpdateStatus(id string, status models.MessageStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, exists := r.messages[id]
	if !exists {
		return ErrNotFound
	}
	message.Status = string(status)
	return nil
}

// Delete remove uma mensagem
func (r *MockMessageRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.messages[id]; !exists {
		return ErrNotFound
	}
	delete(r.messages, id)
	return nil
}

// DeleteByInstance remove as mensagens de uma instância
func (r *MockMessageRepository) DeleteByInstance(instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, message := range r.messages {
		if message.InstanceID == instanceID {
			delete(r.messages, id)
		}
	}
	return nil
}

// DeleteOlderThan remove mensagens criadas antes do corte
func (r *MockMessageRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, message := range r.messages {
		if message.CreatedAt.Before(cutoff) {
			delete(r.messages, id)
			removed++
		}
	}
	return removed, nil
}

// GetStatistics retorna agregados simples das mensagens da instância
func (r *MockMessageRepository) GetStatistics(instanceID string) (*models.MessageStatistics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &models.MessageStatistics{
		MessagesByType:   make(map[string]int64),
		MessagesByStatus: make(map[string]int64),
	}
	for _, message := range r.messages {
		if message.InstanceID != instanceID {
			continue
		}
		stats.TotalMessages++
		stats.MessagesByType[message.Type]++
		stats.MessagesByStatus[message.Status]++
		if message.Direction == string(models.MessageDirectionIncoming) {
			stats.IncomingMessages++
		} else {
			stats.OutgoingMessages++
		}
		if message.Status == string(models.MessageStatusFailed) {
			stats.FailedMessages++
		}
	}
	return stats, nil
}

// MockInstanceLogRepository implementa InstanceLogRepository em memória
type MockInstanceLogRepository struct {
	mu      sync.RWMutex
	entries []models.InstanceLog
}

// NewMockInstanceLogRepository cria um novo repositório mock
func NewMockInstanceLogRepository() *MockInstanceLogRepository {
	return &MockInstanceLogRepository{}
}

// Append adiciona uma entrada de log
func (r *MockInstanceLogRepository) Append(entry *models.InstanceLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

// GetByInstance obtém as entradas de uma instância
func (r *MockInstanceLogRepository) GetByInstance(instanceID string, limit, offset int) ([]models.InstanceLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []models.InstanceLog
	for _, entry := range r.entries {
		if entry.InstanceID == instanceID {
			entries = append(entries, entry)
		}
	}
	if offset > 0 {
		if offset >= len(entries) {
			return nil, nil
		}
		entries = entries[offset:]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// DeleteByInstance remove as entradas de uma instância
func (r *MockInstanceLogRepository) DeleteByInstance(instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []models.InstanceLog
	for _, entry := range r.entries {
		if entry.InstanceID != instanceID {
			kept = append(kept, entry)
		}
	}
	r.entries = kept
	return nil
}

// DeleteBefore remove entradas criadas antes do corte
func (r *MockInstanceLogRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []models.InstanceLog
	var removed int64
	for _, entry := range r.entries {
		if entry.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	r.entries = kept
	return removed, nil
}
