package instance

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/felipe/zapgate/internal/db/models"
	"github.com/felipe/zapgate/internal/db/repositories"
	"github.com/felipe/zapgate/internal/logger"
	"github.com/felipe/zapgate/internal/transport"
)

// Manager registra e supervisiona as instâncias do gateway. O lock do
// registro nunca é mantido durante chamadas de store, transporte ou webhook.
type Manager struct {
	mu        sync.RWMutex
	instances map[string]*Instance

	deps     Deps
	webhooks repositories.WebhookRepository
	logger   logger.Logger

	initialized bool
}

// NewManager cria o gerenciador de instâncias
func NewManager(deps Deps, webhooks repositories.WebhookRepository) *Manager {
	return &Manager{
		instances: make(map[string]*Instance),
		deps:      deps,
		webhooks:  webhooks,
		logger:    logger.Get(),
	}
}

// Initialize carrega todas as instâncias persistidas e religa as que
// estavam ativas ou conectando. Idempotente; falha de uma instância é
// logada e não derruba o boot.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.initialized = true
	m.mu.Unlock()

	listing, err := m.deps.Instances.GetAll(nil)
	if err != nil {
		return fmt.Errorf("failed to load instances: %w", err)
	}

	for idx := range listing.Instances {
		record := listing.Instances[idx]

		m.mu.Lock()
		if _, exists := m.instances[record.Phone]; exists {
			m.mu.Unlock()
			continue
		}
		inst := NewInstance(&record, m.deps)
		m.instances[record.Phone] = inst
		m.mu.Unlock()

		if record.Status == models.InstanceStatusActive || record.Status == models.InstanceStatusConnecting {
			if err := inst.Start(); err != nil {
				m.logger.Error().Err(err).Str("phone", record.Phone).Msg("Failed to restart instance on boot")
			}
		}
	}

	m.logger.Info().Int("instances", len(listing.Instances)).Msg("Instance manager initialized")
	return nil
}

// Create registra uma nova instância e inicia a conexão
func (m *Manager) Create(phone, name string, alias *string) (*Instance, error) {
	normalized := transport.NormalizePhone(phone)
	if normalized == "" {
		return nil, fmt.Errorf("%w: phone is required", ErrBadInput)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrBadInput)
	}

	m.mu.RLock()
	_, inMemory := m.instances[normalized]
	m.mu.RUnlock()
	if inMemory {
		return nil, fmt.Errorf("%w: %s", ErrInstanceAlreadyExists, normalized)
	}

	record := &models.Instance{
		Phone:           normalized,
		Name:            name,
		Alias:           alias,
		APIKey:          uuid.NewString(),
		Status:          models.InstanceStatusPending,
		PluginOverrides: make(models.PluginOverrides),
	}
	if err := m.deps.Instances.Create(record); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrInstanceAlreadyExists, normalized)
		}
		return nil, fmt.Errorf("failed to persist instance: %w", err)
	}

	if err := ensureCredentialsDir(m.deps.Config, normalized); err != nil {
		m.logger.Warn().Err(err).Str("phone", normalized).Msg("Failed to prepare credentials dir")
	}

	inst := NewInstance(record, m.deps)

	m.mu.Lock()
	if _, exists := m.instances[normalized]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInstanceAlreadyExists, normalized)
	}
	m.instances[normalized] = inst
	m.mu.Unlock()

	if err := inst.Start(); err != nil {
		m.logger.Error().Err(err).Str("phone", normalized).Msg("Failed to start new instance")
	}

	return inst, nil
}

// Get retorna a instância supervisionada em memória
func (m *Manager) Get(phone string) (*Instance, error) {
	normalized := transport.NormalizePhone(phone)

	m.mu.RLock()
	inst, exists := m.instances[normalized]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, normalized)
	}
	return inst, nil
}

// GetView retorna a visão da instância; quando ela não está em memória a
// visão degradada vem do store (desconectada)
func (m *Manager) GetView(phone string) (*Snapshot, error) {
	normalized := transport.NormalizePhone(phone)

	m.mu.RLock()
	inst, exists := m.instances[normalized]
	m.mu.RUnlock()

	if exists {
		snapshot := inst.Snapshot()
		return &snapshot, nil
	}

	record, err := m.deps.Instances.GetByPhone(normalized)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, normalized)
		}
		return nil, fmt.Errorf("failed to load instance: %w", err)
	}

	return &Snapshot{
		ID:        record.ID,
		Phone:     record.Phone,
		Name:      record.Name,
		Alias:     record.Alias,
		JID:       record.JID,
		Status:    models.InstanceStatusInactive,
		Connected: false,
	}, nil
}

// List retorna a visão de todas as instâncias em memória
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	instances := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		instances = append(instances, inst)
	}
	m.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(instances))
	for _, inst := range instances {
		snapshots = append(snapshots, inst.Snapshot())
	}
	return snapshots
}

// Update altera nome e alias da instância
func (m *Manager) Update(phone string, name, alias *string) (*Snapshot, error) {
	inst, err := m.Get(phone)
	if err != nil {
		return nil, err
	}

	if name != nil {
		if *name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrBadInput)
		}
		inst.record.Name = *name
	}
	if alias != nil {
		inst.record.Alias = alias
	}

	if err := m.deps.Instances.Update(inst.record); err != nil {
		return nil, fmt.Errorf("failed to update instance: %w", err)
	}

	snapshot := inst.Snapshot()
	return &snapshot, nil
}

// SetPluginOverrides persiste e aplica overrides parciais de plugins
func (m *Manager) SetPluginOverrides(phone string, overrides map[string]bool) error {
	inst, err := m.Get(phone)
	if err != nil {
		return err
	}

	inst.chain.SetOverrides(overrides)
	merged := inst.chain.Overrides()

	inst.record.PluginOverrides = merged
	if err := m.deps.Instances.UpdatePluginOverrides(inst.record.Phone, merged); err != nil {
		return fmt.Errorf("failed to persist plugin overrides: %w", err)
	}
	return nil
}

// SyncPluginOverrides recarrega os overrides persistidos para a cadeia
func (m *Manager) SyncPluginOverrides(phone string) error {
	inst, err := m.Get(phone)
	if err != nil {
		return err
	}

	record, err := m.deps.Instances.GetByPhone(inst.record.Phone)
	if err != nil {
		return fmt.Errorf("failed to load instance: %w", err)
	}

	inst.record.PluginOverrides = record.PluginOverrides
	inst.chain.SyncFromStore(record.PluginOverrides)
	return nil
}

// Delete desliga e remove a instância. Com keepRecord o registro fica no
// store com status inactive; sem, as linhas relacionadas caem em cascata.
func (m *Manager) Delete(phone string, keepRecord bool) error {
	normalized := transport.NormalizePhone(phone)

	m.mu.Lock()
	inst, exists := m.instances[normalized]
	delete(m.instances, normalized)
	m.mu.Unlock()

	if exists {
		inst.Teardown(true)
	} else {
		if _, err := m.deps.Instances.GetByPhone(normalized); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrInstanceNotFound, normalized)
			}
			return fmt.Errorf("failed to load instance: %w", err)
		}
		removeCredentials(m.deps.Config, normalized, m.logger)
	}

	if keepRecord {
		if err := m.deps.Instances.UpdateStatus(normalized, models.InstanceStatusInactive); err != nil {
			return fmt.Errorf("failed to mark instance inactive: %w", err)
		}
		if err := m.deps.Instances.UpdateQRCode(normalized, nil); err != nil {
			m.logger.Warn().Err(err).Str("phone", normalized).Msg("Failed to clear QR code on delete")
		}
		return nil
	}

	record, err := m.deps.Instances.GetByPhone(normalized)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load instance: %w", err)
	}

	if err := m.deps.Messages.DeleteByInstance(record.ID); err != nil {
		m.logger.Warn().Err(err).Str("phone", normalized).Msg("Failed to cascade messages")
	}
	if err := m.webhooks.DeleteByInstance(record.ID); err != nil {
		m.logger.Warn().Err(err).Str("phone", normalized).Msg("Failed to cascade webhooks")
	}
	if err := m.deps.Logs.DeleteByInstance(record.ID); err != nil {
		m.logger.Warn().Err(err).Str("phone", normalized).Msg("Failed to cascade instance logs")
	}
	if err := m.deps.Instances.DeleteByPhone(normalized); err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}

	return nil
}

// Restart reinicia a conexão da instância preservando credenciais
func (m *Manager) Restart(phone string) error {
	inst, err := m.Get(phone)
	if err != nil {
		return err
	}
	return inst.Restart()
}

// SendText envia texto por uma instância
func (m *Manager) SendText(ctx context.Context, phone, to, text string) (string, error) {
	inst, err := m.Get(phone)
	if err != nil {
		return "", err
	}
	return inst.SendText(ctx, to, text)
}

// SendGroupText envia texto de grupo por uma instância
func (m *Manager) SendGroupText(ctx context.Context, phone, groupID, text string) (string, error) {
	inst, err := m.Get(phone)
	if err != nil {
		return "", err
	}
	return inst.SendGroupText(ctx, groupID, text)
}

// SendMedia envia mídia por uma instância
func (m *Manager) SendMedia(ctx context.Context, phone, to string, media transport.Media) (string, error) {
	inst, err := m.Get(phone)
	if err != nil {
		return "", err
	}
	return inst.SendMedia(ctx, to, media)
}

// ManagerStatus agrega o estado do gerenciador
type ManagerStatus struct {
	Initialized bool       `json:"initialized"`
	Total       int        `json:"total"`
	Connected   int        `json:"connected"`
	Instances   []Snapshot `json:"instances"`
}

// Status retorna o estado agregado do gerenciador
func (m *Manager) Status() ManagerStatus {
	m.mu.RLock()
	initialized := m.initialized
	m.mu.RUnlock()

	snapshots := m.List()
	connected := 0
	for _, s := range snapshots {
		if s.Connected {
			connected++
		}
	}

	return ManagerStatus{
		Initialized: initialized,
		Total:       len(snapshots),
		Connected:   connected,
		Instances:   snapshots,
	}
}

// Shutdown fecha todas as instâncias sem logout; credenciais permanecem
func (m *Manager) Shutdown() {
	m.mu.Lock()
	instances := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		instances = append(instances, inst)
	}
	m.instances = make(map[string]*Instance)
	m.initialized = false
	m.mu.Unlock()

	for _, inst := range instances {
		inst.Close()
	}

	m.logger.Info().Int("instances", len(instances)).Msg("Instance manager shut down")
}
