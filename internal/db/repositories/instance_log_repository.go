package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/felipe/zapgate/internal/db/models"
	"github.com/felipe/zapgate/internal/logger"
)

// InstanceLogRepository interface define as operações do log por instância
type InstanceLogRepository interface {
	Append(entry *models.InstanceLog) error
	GetByInstance(instanceID string, limit, offset int) ([]models.InstanceLog, error)
	DeleteByInstance(instanceID string) error
	DeleteBefore(cutoff time.Time) (int64, error)
}

// instanceLogRepository implementa InstanceLogRepository
type instanceLogRepository struct {
	db     *sqlx.DB
	logger logger.Logger
}

// NewInstanceLogRepository cria uma nova instância do repositório de logs
func NewInstanceLogRepository(db *sqlx.DB) InstanceLogRepository {
	return &instanceLogRepository{
		db:     db,
		logger: logger.Get(),
	}
}

// Append grava uma entrada de log (append-only)
func (r *instanceLogRepository) Append(entry *models.InstanceLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Level == "" {
		entry.Level = models.LogLevelInfo
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO instance_logs (id, instance_id, level, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.db.Exec(query, entry.ID, entry.InstanceID, entry.Level, entry.Message, entry.CreatedAt); err != nil {
		r.logger.Error().Err(err).Str("instance_id", entry.InstanceID).Msg("Failed to append instance log")
		return fmt.Errorf("failed to append instance log: %w", err)
	}

	return nil
}

// GetByInstance busca entradas de log de uma instância
func (r *instanceLogRepository) GetByInstance(instanceID string, limit, offset int) ([]models.InstanceLog, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, instance_id, level, message, created_at
		FROM instance_logs
		WHERE instance_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	var entries []models.InstanceLog
	if err := r.db.Select(&entries, query, instanceID, limit, offset); err != nil {
		r.logger.Error().Err(err).Str("instance_id", instanceID).Msg("Failed to query instance logs")
		return nil, fmt.Errorf("failed to query instance logs: %w", err)
	}

	return entries, nil
}

// DeleteByInstance remove todas as entradas de uma instância
func (r *instanceLogRepository) DeleteByInstance(instanceID string) error {
	if _, err := r.db.Exec("DELETE FROM instance_logs WHERE instance_id = $1", instanceID); err != nil {
		r.logger.Error().Err(err).Str("instance_id", instanceID).Msg("Failed to delete instance logs")
		return fmt.Errorf("failed to delete instance logs: %w", err)
	}
	return nil
}

// DeleteBefore remove entradas criadas antes do corte (retenção)
func (r *instanceLogRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM instance_logs WHERE created_at < $1", cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to delete expired instance logs")
		return 0, fmt.Errorf("failed to delete expired instance logs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
