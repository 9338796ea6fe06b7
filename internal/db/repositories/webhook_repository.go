package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/felipe/zapgate/internal/db/models"
	"github.com/felipe/zapgate/internal/logger"
)

// WebhookRepository interface define as operações do repositório de webhooks
type WebhookRepository interface {
	Create(webhook *models.Webhook) error
	GetByID(id string) (*models.Webhook, error)
	GetByInstance(instanceID string) ([]models.Webhook, error)
	GetEnabledByInstanceAndEvent(instanceID, event string) ([]models.Webhook, error)
	Update(webhook *models.Webhook) error
	Delete(id string) error
	DeleteByInstance(instanceID string) error
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// webhookRepository implementa WebhookRepository
type webhookRepository struct {
	db     *sqlx.DB
	logger logger.Logger
}

// NewWebhookRepository cria uma nova instância do repositório de webhooks
func NewWebhookRepository(db *sqlx.DB) WebhookRepository {
	return &webhookRepository{
		db:     db,
		logger: logger.Get(),
	}
}

const webhookColumns = `id, instance_id, webhook_type, event, url, enabled, created_at`

// Create cria um novo webhook no banco de dados
func (r *webhookRepository) Create(webhook *models.Webhook) error {
	if err := webhook.Validate(); err != nil {
		return fmt.Errorf("invalid webhook data: %w", err)
	}

	if webhook.ID == "" {
		webhook.ID = uuid.NewString()
	}
	if webhook.Type == "" {
		webhook.Type = "http"
	}
	webhook.CreatedAt = time.Now()

	query := `
		INSERT INTO webhooks (id, instance_id, webhook_type, event, url, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(query,
		webhook.ID, webhook.InstanceID, webhook.Type, webhook.Event,
		webhook.URL, webhook.Enabled, webhook.CreatedAt,
	)

	if err != nil {
		r.logger.Error().Err(err).Str("instance_id", webhook.InstanceID).Str("event", webhook.Event).Msg("Failed to create webhook")
		return fmt.Errorf("failed to create webhook: %w", err)
	}

	r.logger.Info().Str("instance_id", webhook.InstanceID).Str("event", webhook.Event).Msg("Webhook created successfully")
	return nil
}

// GetByID busca um webhook pelo ID
func (r *webhookRepository) GetByID(id string) (*models.Webhook, error) {
	query := fmt.Sprintf("SELECT %s FROM webhooks WHERE id = $1", webhookColumns)

	webhook := &models.Webhook{}
	err := r.db.Get(webhook, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error().Err(err).Str("id", id).Msg("Failed to get webhook by ID")
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}

	return webhook, nil
}

// GetByInstance busca todos os webhooks de uma instância
func (r *webhookRepository) GetByInstance(instanceID string) ([]models.Webhook, error) {
	query := fmt.Sprintf("SELECT %s FROM webhooks WHERE instance_id = $1 ORDER BY created_at ASC", webhookColumns)

	var webhooks []models.Webhook
	if err := r.db.Select(&webhooks, query, instanceID); err != nil {
		r.logger.Error().Err(err).Str("instance_id", instanceID).Msg("Failed to query webhooks")
		return nil, fmt.Errorf("failed to query webhooks: %w", err)
	}

	return webhooks, nil
}

// GetEnabledByInstanceAndEvent busca os webhooks habilitados para um evento
func (r *webhookRepository) GetEnabledByInstanceAndEvent(instanceID, event string) ([]models.Webhook, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM webhooks
		WHERE instance_id = $1 AND event = $2 AND enabled = TRUE
		ORDER BY created_at ASC
	`, webhookColumns)

	var webhooks []models.Webhook
	if err := r.db.Select(&webhooks, query, instanceID, event); err != nil {
		r.logger.Error().Err(err).Str("instance_id", instanceID).Str("event", event).Msg("Failed to query enabled webhooks")
		return nil, fmt.Errorf("failed to query enabled webhooks: %w", err)
	}

	return webhooks, nil
}

// Update atualiza um webhook existente
func (r *webhookRepository) Update(webhook *models.Webhook) error {
	if err := webhook.Validate(); err != nil {
		return fmt.Errorf("invalid webhook data: %w", err)
	}

	query := `
		UPDATE webhooks SET webhook_type = $2, event = $3, url = $4, enabled = $5
		WHERE id = $1
	`

	result, err := r.db.Exec(query, webhook.ID, webhook.Type, webhook.Event, webhook.URL, webhook.Enabled)
	if err != nil {
		r.logger.Error().Err(err).Str("id", webhook.ID).Msg("Failed to update webhook")
		return fmt.Errorf("failed to update webhook: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete remove um webhook pelo ID
func (r *webhookRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM webhooks WHERE id = $1", id)
	if err != nil {
		r.logger.Error().Err(err).Str("id", id).Msg("Failed to delete webhook")
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteByInstance remove todos os webhooks de uma instância
func (r *webhookRepository) DeleteByInstance(instanceID string) error {
	if _, err := r.db.Exec("DELETE FROM webhooks WHERE instance_id = $1", instanceID); err != nil {
		r.logger.Error().Err(err).Str("instance_id", instanceID).Msg("Failed to delete instance webhooks")
		return fmt.Errorf("failed to delete instance webhooks: %w", err)
	}
	return nil
}

// DeleteOlderThan remove webhooks criados antes do corte
func (r *webhookRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM webhooks WHERE created_at < $1", cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to delete expired webhooks")
		return 0, fmt.Errorf("failed to delete expired webhooks: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
