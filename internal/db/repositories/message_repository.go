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

// MessageRepository interface define as operações do repositório de mensagens
type MessageRepository interface {
	Create(message *models.Message) error
	GetByID(id string) (*models.Message, error)
	GetByInstance(instanceID string, filter *models.MessageFilter) ([]models.Message, int, error)
	GetConversation(instanceID, contact string, limit int) ([]models.Message, error)
	UpdateStatus(id string, status models.MessageStatus) error
	Delete(id string) error
	DeleteByInstance(instanceID string) error
	DeleteOlderThan(cutoff time.Time) (int64, error)
	GetStatistics(instanceID string) (*models.MessageStatistics, error)
}

// messageRepository implementa MessageRepository
type messageRepository struct {
	db     *sqlx.DB
	logger logger.Logger
}

// NewMessageRepository cria uma nova instância do repositório de mensagens
func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepository{
		db:     db,
		logger: logger.Get(),
	}
}

const messageColumns = `id, instance_id, direction, sender, recipient, msg_type, content, status, sent_at, created_at`

// Create cria uma nova mensagem no banco de dados
func (r *messageRepository) Create(message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	if message.Content == nil {
		message.Content = make(models.JSONB)
	}

	query := `
		INSERT INTO messages (
			id, instance_id, direction, sender, recipient, msg_type, content, status, sent_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(query,
		message.ID, message.InstanceID, message.Direction, message.Sender, message.Recipient,
		message.Type, message.Content, message.Status, message.SentAt, message.CreatedAt,
	)

	if err != nil {
		r.logger.Error().Err(err).Str("instance_id", message.InstanceID).Msg("Failed to create message")
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// GetByID busca uma mensagem pelo ID
func (r *messageRepository) GetByID(id string) (*models.Message, error) {
	query := fmt.Sprintf("SELECT %s FROM messages WHERE id = $1", messageColumns)

	message := &models.Message{}
	err := r.db.Get(message, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error().Err(err).Str("id", id).Msg("Failed to get message by ID")
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return message, nil
}

// GetByInstance busca mensagens de uma instância com filtros e paginação
func (r *messageRepository) GetByInstance(instanceID string, filter *models.MessageFilter) ([]models.Message, int, error) {
	if filter == nil {
		filter = &models.MessageFilter{}
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	conditions := []string{"instance_id = $1"}
	args := []interface{}{instanceID}
	argIndex := 2

	if filter.Direction != nil {
		conditions = append(conditions, fmt.Sprintf("direction = $%d", argIndex))
		args = append(args, *filter.Direction)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("msg_type = $%d", argIndex))
		args = append(args, *filter.Type)
		argIndex++
	}

	if filter.Sender != nil {
		conditions = append(conditions, fmt.Sprintf("sender = $%d", argIndex))
		args = append(args, *filter.Sender)
		argIndex++
	}

	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *filter.DateFrom)
		argIndex++
	}

	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIndex))
		args = append(args, *filter.DateTo)
		argIndex++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM messages %s", whereClause)
	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		r.logger.Error().Err(err).Msg("Failed to count messages")
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM messages %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, messageColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	var messages []models.Message
	if err := r.db.Select(&messages, query, args...); err != nil {
		r.logger.Error().Err(err).Msg("Failed to query messages")
		return nil, 0, fmt.Errorf("failed to query messages: %w", err)
	}

	return messages, total, nil
}

// GetConversation busca a conversa entre a instância e um contato,
// ordenada ascendente por criação
func (r *messageRepository) GetConversation(instanceID, contact string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE instance_id = $1 AND (sender = $2 OR recipient = $3)
		ORDER BY created_at ASC
		LIMIT $4
	`, messageColumns)

	var messages []models.Message
	if err := r.db.Select(&messages, query, instanceID, contact, contact, limit); err != nil {
		r.logger.Error().Err(err).Str("instance_id", instanceID).Str("contact", contact).Msg("Failed to query conversation")
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}

	return messages, nil
}

// UpdateStatus atualiza apenas o status de uma mensagem
func (r *messageRepository) UpdateStatus(id string, status models.MessageStatus) error {
	query := "UPDATE messages SET status = $2 WHERE id = $1"

	result, err := r.db.Exec(query, id, status)
	if err != nil {
		r.logger.Error().Err(err).Str("id", id).Str("status", string(status)).Msg("Failed to update message status")
		return fmt.Errorf("failed to update message status: %w", err)
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

// Delete remove uma mensagem pelo ID
func (r *messageRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM messages WHERE id = $1", id)
	if err != nil {
		r.logger.Error().Err(err).Str("id", id).Msg("Failed to delete message")
		return fmt.Errorf("failed to delete message: %w", err)
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

// DeleteByInstance remove todas as mensagens de uma instância
func (r *messageRepository) DeleteByInstance(instanceID string) error {
	if _, err := r.db.Exec("DELETE FROM messages WHERE instance_id = $1", instanceID); err != nil {
		r.logger.Error().Err(err).Str("instance_id", instanceID).Msg("Failed to delete instance messages")
		return fmt.Errorf("failed to delete instance messages: %w", err)
	}
	return nil
}

// DeleteOlderThan remove mensagens criadas antes do corte
func (r *messageRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM messages WHERE created_at < $1", cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to delete expired messages")
		return 0, fmt.Errorf("failed to delete expired messages: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// GetStatistics retorna estatísticas agregadas de mensagens da instância
func (r *messageRepository) GetStatistics(instanceID string) (*models.MessageStatistics, error) {
	stats := &models.MessageStatistics{
		MessagesByType:   make(map[string]int64),
		MessagesByStatus: make(map[string]int64),
	}

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN direction = 'incoming' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN direction = 'outgoing' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			MAX(created_at)
		FROM messages WHERE instance_id = $1
	`

	var lastMessage sql.NullTime
	err := r.db.QueryRow(query, instanceID).Scan(
		&stats.TotalMessages, &stats.IncomingMessages, &stats.OutgoingMessages,
		&stats.FailedMessages, &lastMessage,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("instance_id", instanceID).Msg("Failed to get message statistics")
		return nil, fmt.Errorf("failed to get message statistics: %w", err)
	}

	if lastMessage.Valid {
		stats.LastMessageTime = &lastMessage.Time
	}

	byType, err := r.groupCount(instanceID, "msg_type")
	if err != nil {
		return nil, err
	}
	stats.MessagesByType = byType

	byStatus, err := r.groupCount(instanceID, "status")
	if err != nil {
		return nil, err
	}
	stats.MessagesByStatus = byStatus

	return stats, nil
}

func (r *messageRepository) groupCount(instanceID, column string) (map[string]int64, error) {
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM messages WHERE instance_id = $1 GROUP BY %s", column, column)

	rows, err := r.db.Query(query, instanceID)
	if err != nil {
		r.logger.Error().Err(err).Str("column", column).Msg("Failed to group messages")
		return nil, fmt.Errorf("failed to group messages: %w", err)
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
