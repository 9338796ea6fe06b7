package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/felipe/zapgate/internal/db/models"
	"github.com/felipe/zapgate/internal/logger"
)

// WebhookHistoryRepository interface define as operações do histórico de entregas
type WebhookHistoryRepository interface {
	Create(history *models.WebhookHistory) error
	Complete(history *models.WebhookHistory) error
	GetByID(id string) (*models.WebhookHistory, error)
	GetAll(filter *models.WebhookHistoryFilter) ([]models.WebhookHistory, int, error)
	GetStatistics(instanceID *string) (*models.WebhookHistoryStatistics, error)
	DeleteBefore(cutoff time.Time) (int64, error)
}

// webhookHistoryRepository implementa WebhookHistoryRepository
type webhookHistoryRepository struct {
	db     *sqlx.DB
	logger logger.Logger
}

// NewWebhookHistoryRepository cria uma nova instância do repositório de histórico
func NewWebhookHistoryRepository(db *sqlx.DB) WebhookHistoryRepository {
	return &webhookHistoryRepository{
		db:     db,
		logger: logger.Get(),
	}
}

const historyColumns = `id, instance_id, webhook_id, event, payload, status, http_status,
	response_time_ms, response, error_message, retry_count, triggered_at, completed_at`

// Create registra o início de uma tentativa de entrega
func (r *webhookHistoryRepository) Create(history *models.WebhookHistory) error {
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	if history.Status == "" {
		history.Status = models.WebhookHistoryStatusPending
	}
	if history.TriggeredAt.IsZero() {
		history.TriggeredAt = time.Now()
	}
	if history.Payload == nil {
		history.Payload = make(models.JSONB)
	}

	query := `
		INSERT INTO webhook_history (
			id, instance_id, webhook_id, event, payload, status, http_status,
			response_time_ms, response, error_message, retry_count, triggered_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Exec(query,
		history.ID, history.InstanceID, history.WebhookID, history.Event, history.Payload,
		history.Status, history.HTTPStatus, history.ResponseTimeMs, history.Response,
		history.ErrorMessage, history.RetryCount, history.TriggeredAt, history.CompletedAt,
	)

	if err != nil {
		r.logger.Error().Err(err).Str("instance_id", history.InstanceID).Str("event", history.Event).Msg("Failed to create webhook history")
		return fmt.Errorf("failed to create webhook history: %w", err)
	}

	return nil
}

// Complete grava o desfecho de uma tentativa de entrega
func (r *webhookHistoryRepository) Complete(history *models.WebhookHistory) error {
	if history.CompletedAt == nil {
		now := time.Now()
		history.CompletedAt = &now
	}

	query := `
		UPDATE webhook_history SET
			status = $2, http_status = $3, response_time_ms = $4,
			response = $5, error_message = $6, completed_at = $7
		WHERE id = $1
	`

	result, err := r.db.Exec(query,
		history.ID, history.Status, history.HTTPStatus, history.ResponseTimeMs,
		history.Response, history.ErrorMessage, history.CompletedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("id", history.ID).Msg("Failed to complete webhook history")
		return fmt.Errorf("failed to complete webhook history: %w", err)
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

// GetByID busca um registro de histórico pelo ID
func (r *webhookHistoryRepository) GetByID(id string) (*models.WebhookHistory, error) {
	query := fmt.Sprintf("SELECT %s FROM webhook_history WHERE id = $1", historyColumns)

	history := &models.WebhookHistory{}
	err := r.db.Get(history, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error().Err(err).Str("id", id).Msg("Failed to get webhook history by ID")
		return nil, fmt.Errorf("failed to get webhook history: %w", err)
	}

	return history, nil
}

// GetAll busca registros de histórico com filtros e paginação
func (r *webhookHistoryRepository) GetAll(filter *models.WebhookHistoryFilter) ([]models.WebhookHistory, int, error) {
	if filter == nil {
		filter = &models.WebhookHistoryFilter{}
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.InstanceID != nil {
		conditions = append(conditions, fmt.Sprintf("instance_id = $%d", argIndex))
		args = append(args, *filter.InstanceID)
		argIndex++
	}

	if filter.WebhookID != nil {
		conditions = append(conditions, fmt.Sprintf("webhook_id = $%d", argIndex))
		args = append(args, *filter.WebhookID)
		argIndex++
	}

	if filter.Event != nil {
		conditions = append(conditions, fmt.Sprintf("event = $%d", argIndex))
		args = append(args, *filter.Event)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("triggered_at >= $%d", argIndex))
		args = append(args, *filter.DateFrom)
		argIndex++
	}

	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("triggered_at <= $%d", argIndex))
		args = append(args, *filter.DateTo)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM webhook_history %s", whereClause)
	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		r.logger.Error().Err(err).Msg("Failed to count webhook history")
		return nil, 0, fmt.Errorf("failed to count webhook history: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM webhook_history %s
		ORDER BY triggered_at DESC
		LIMIT $%d OFFSET $%d
	`, historyColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	var records []models.WebhookHistory
	if err := r.db.Select(&records, query, args...); err != nil {
		r.logger.Error().Err(err).Msg("Failed to query webhook history")
		return nil, 0, fmt.Errorf("failed to query webhook history: %w", err)
	}

	return records, total, nil
}

// GetStatistics retorna agregados do histórico (global ou por instância)
func (r *webhookHistoryRepository) GetStatistics(instanceID *string) (*models.WebhookHistoryStatistics, error) {
	stats := &models.WebhookHistoryStatistics{
		ByStatus: make(map[string]int64),
		ByEvent:  make(map[string]int64),
	}

	whereClause := ""
	var args []interface{}
	if instanceID != nil {
		whereClause = "WHERE instance_id = $1"
		args = append(args, *instanceID)
	}

	query := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status IN ('failed', 'timeout') THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(response_time_ms), 0)
		FROM webhook_history %s
	`, whereClause)

	err := r.db.QueryRow(query, args...).Scan(
		&stats.Total, &stats.SuccessCount, &stats.FailureCount, &stats.AvgResponseTimeMs,
	)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to get webhook history statistics")
		return nil, fmt.Errorf("failed to get webhook history statistics: %w", err)
	}

	byStatus, err := r.groupCount("status", whereClause, args)
	if err != nil {
		return nil, err
	}
	stats.ByStatus = byStatus

	byEvent, err := r.groupCount("event", whereClause, args)
	if err != nil {
		return nil, err
	}
	stats.ByEvent = byEvent

	return stats, nil
}

func (r *webhookHistoryRepository) groupCount(column, whereClause string, args []interface{}) (map[string]int64, error) {
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM webhook_history %s GROUP BY %s", column, whereClause, column)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("column", column).Msg("Failed to group webhook history")
		return nil, fmt.Errorf("failed to group webhook history: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan group count: %w", err)
		}
		counts[key] = count
	}

	return counts, rows.Err()
}

// DeleteBefore remove registros disparados antes do corte (retenção)
func (r *webhookHistoryRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM webhook_history WHERE triggered_at < $1", cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to delete expired webhook history")
		return 0, fmt.Errorf("failed to delete expired webhook history: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
