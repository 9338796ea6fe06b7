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

// InstanceRepository interface define as operações do repositório de instâncias
type InstanceRepository interface {
	Create(instance *models.Instance) error
	GetByID(id string) (*models.Instance, error)
	GetByPhone(phone string) (*models.Instance, error)
	GetByAPIKey(apiKey string) (*models.Instance, error)
	GetAll(filter *models.InstanceFilter) (*models.InstanceListResponse, error)
	Update(instance *models.Instance) error
	UpdateStatus(phone string, status models.InstanceStatus) error
	UpdateQRCode(phone string, qrCode *string) error
	UpdatePluginOverrides(phone string, overrides models.PluginOverrides) error
	IncrementCounter(phone string, column string) error
	Delete(id string) error
	DeleteByPhone(phone string) error
	Exists(phone string) (bool, error)
	Count() (int, error)
	GetStartable() ([]*models.Instance, error)
	DeleteOlderThan(cutoff time.Time) ([]string, error)
}

// instanceRepository implementa InstanceRepository
type instanceRepository struct {
	db     *sqlx.DB
	logger logger.Logger
}

// NewInstanceRepository cria uma nova instância do repositório de instâncias
func NewInstanceRepository(db *sqlx.DB) InstanceRepository {
	return &instanceRepository{
		db:     db,
		logger: logger.Get(),
	}
}

const instanceColumns = `id, phone, name, alias, api_key, jid, status, plugin_overrides,
	qr_code, created_at, updated_at, last_connected_at,
	messages_received, messages_sent, reconnections`

// Create cria uma nova instância no banco de dados
func (r *instanceRepository) Create(instance *models.Instance) error {
	if err := instance.Validate(); err != nil {
		return fmt.Errorf("invalid instance data: %w", err)
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

	query := `
		INSERT INTO instances (
			id, phone, name, alias, api_key, jid, status, plugin_overrides,
			qr_code, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(query,
		instance.ID, instance.Phone, instance.Name, instance.Alias, instance.APIKey,
		instance.JID, instance.Status, instance.PluginOverrides,
		instance.QRCode, instance.CreatedAt, instance.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
			return fmt.Errorf("instance %s: %w", instance.Phone, ErrDuplicate)
		}
		r.logger.Error().Err(err).Str("phone", instance.Phone).Msg("Failed to create instance")
		return fmt.Errorf("failed to create instance: %w", err)
	}

	r.logger.Info().Str("phone", instance.Phone).Msg("Instance created successfully")
	return nil
}

// GetByID busca uma instância pelo ID
func (r *instanceRepository) GetByID(id string) (*models.Instance, error) {
	query := fmt.Sprintf("SELECT %s FROM instances WHERE id = $1", instanceColumns)

	instance := &models.Instance{}
	err := r.db.Get(instance, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error().Err(err).Str("id", id).Msg("Failed to get instance by ID")
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return instance, nil
}

// GetByPhone busca uma instância pelo telefone
func (r *instanceRepository) GetByPhone(phone string) (*models.Instance, error) {
	query := fmt.Sprintf("SELECT %s FROM instances WHERE phone = $1", instanceColumns)

	instance := &models.Instance{}
	err := r.db.Get(instance, query, phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error().Err(err).Str("phone", phone).Msg("Failed to get instance by phone")
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return instance, nil
}

// GetByAPIKey busca uma instância pela API key
func (r *instanceRepository) GetByAPIKey(apiKey string) (*models.Instance, error) {
	query := fmt.Sprintf("SELECT %s FROM instances WHERE api_key = $1", instanceColumns)

	instance := &models.Instance{}
	err := r.db.Get(instance, query, apiKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error().Err(err).Msg("Failed to get instance by API key")
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return instance, nil
}

// GetAll busca todas as instâncias com filtros e paginação
func (r *instanceRepository) GetAll(filter *models.InstanceFilter) (*models.InstanceListResponse, error) {
	if filter == nil {
		filter = &models.InstanceFilter{}
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "created_at"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "DESC"
	}

	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Name != nil {
		conditions = append(conditions, fmt.Sprintf("name LIKE $%d", argIndex))
		args = append(args, "%"+*filter.Name+"%")
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM instances %s", whereClause)
	var total int
	err := r.db.QueryRow(countQuery, args...).Scan(&total)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to count instances")
		return nil, fmt.Errorf("failed to count instances: %w", err)
	}

	offset := (filter.Page - 1) * filter.PerPage
	query := fmt.Sprintf(`
		SELECT %s FROM instances %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, instanceColumns, whereClause, filter.OrderBy, filter.OrderDir, argIndex, argIndex+1)

	args = append(args, filter.PerPage, offset)

	var instances []models.Instance
	if err := r.db.Select(&instances, query, args...); err != nil {
		r.logger.Error().Err(err).Msg("Failed to query instances")
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}

	totalPages := (total + filter.PerPage - 1) / filter.PerPage

	return &models.InstanceListResponse{
		Instances:  instances,
		Total:      total,
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		TotalPages: totalPages,
	}, nil
}

// Update atualiza uma instância existente
func (r *instanceRepository) Update(instance *models.Instance) error {
	if err := instance.Validate(); err != nil {
		return fmt.Errorf("invalid instance data: %w", err)
	}

	instance.UpdatedAt = time.Now()

	query := `
		UPDATE instances SET
			name = $2, alias = $3, jid = $4, status = $5, plugin_overrides = $6,
			qr_code = $7, updated_at = $8, last_connected_at = $9
		WHERE id = $1
	`

	result, err := r.db.Exec(query,
		instance.ID, instance.Name, instance.Alias, instance.JID, instance.Status,
		instance.PluginOverrides, instance.QRCode, instance.UpdatedAt, instance.LastConnectedAt,
	)

	if err != nil {
		r.logger.Error().Err(err).Str("phone", instance.Phone).Msg("Failed to update instance")
		return fmt.Errorf("failed to update instance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	r.logger.Info().Str("phone", instance.Phone).Msg("Instance updated successfully")
	return nil
}

// UpdateStatus atualiza apenas o status de uma instância
func (r *instanceRepository) UpdateStatus(phone string, status models.InstanceStatus) error {
	now := time.Now()
	var lastConnectedAt *time.Time

	if status == models.InstanceStatusActive {
		lastConnectedAt = &now
	}

	query := `
		UPDATE instances SET
			status = $2, updated_at = $3, last_connected_at = COALESCE($4, last_connected_at)
		WHERE phone = $1
	`

	result, err := r.db.Exec(query, phone, status, now, lastConnectedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("phone", phone).Str("status", string(status)).Msg("Failed to update instance status")
		return fmt.Errorf("failed to update instance status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	r.logger.Debug().Str("phone", phone).Str("status", string(status)).Msg("Instance status updated")
	return nil
}

// UpdateQRCode atualiza o QR code corrente da instância (nil limpa)
func (r *instanceRepository) UpdateQRCode(phone string, qrCode *string) error {
	query := "UPDATE instances SET qr_code = $2, updated_at = $3 WHERE phone = $1"

	result, err := r.db.Exec(query, phone, qrCode, time.Now())
	if err != nil {
		r.logger.Error().Err(err).Str("phone", phone).Msg("Failed to update QR code")
		return fmt.Errorf("failed to update QR code: %w", err)
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

// UpdatePluginOverrides substitui o mapa de plugins persistido
func (r *instanceRepository) UpdatePluginOverrides(phone string, overrides models.PluginOverrides) error {
	query := "UPDATE instances SET plugin_overrides = $2, updated_at = $3 WHERE phone = $1"

	result, err := r.db.Exec(query, phone, overrides, time.Now())
	if err != nil {
		r.logger.Error().Err(err).Str("phone", phone).Msg("Failed to update plugin overrides")
		return fmt.Errorf("failed to update plugin overrides: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	r.logger.Info().Str("phone", phone).Msg("Plugin overrides updated")
	return nil
}

// IncrementCounter incrementa uma coluna de estatística da instância
func (r *instanceRepository) IncrementCounter(phone string, column string) error {
	switch column {
	case "messages_received", "messages_sent", "reconnections":
	default:
		return fmt.Errorf("invalid counter column: %s", column)
	}

	query := fmt.Sprintf("UPDATE instances SET %s = %s + 1, updated_at = $2 WHERE phone = $1", column, column)

	if _, err := r.db.Exec(query, phone, time.Now()); err != nil {
		r.logger.Error().Err(err).Str("phone", phone).Str("counter", column).Msg("Failed to increment counter")
		return fmt.Errorf("failed to increment counter: %w", err)
	}

	return nil
}

// Delete remove uma instância pelo ID (cascata via FK)
func (r *instanceRepository) Delete(id string) error {
	query := "DELETE FROM instances WHERE id = $1"

	result, err := r.db.Exec(query, id)
	if err != nil {
		r.logger.Error().Err(err).Str("id", id).Msg("Failed to delete instance")
		return fmt.Errorf("failed to delete instance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	r.logger.Info().Str("id", id).Msg("Instance deleted successfully")
	return nil
}

// DeleteByPhone remove uma instância pelo telefone
func (r *instanceRepository) DeleteByPhone(phone string) error {
	query := "DELETE FROM instances WHERE phone = $1"

	result, err := r.db.Exec(query, phone)
	if err != nil {
		r.logger.Error().Err(err).Str("phone", phone).Msg("Failed to delete instance")
		return fmt.Errorf("failed to delete instance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	r.logger.Info().Str("phone", phone).Msg("Instance deleted successfully")
	return nil
}

// Exists verifica se uma instância existe
func (r *instanceRepository) Exists(phone string) (bool, error) {
	query := "SELECT EXISTS(SELECT 1 FROM instances WHERE phone = $1)"

	var exists bool
	err := r.db.QueryRow(query, phone).Scan(&exists)
	if err != nil {
		r.logger.Error().Err(err).Str("phone", phone).Msg("Failed to check if instance exists")
		return false, fmt.Errorf("failed to check if instance exists: %w", err)
	}

	return exists, nil
}

// Count retorna o número total de instâncias
func (r *instanceRepository) Count() (int, error) {
	query := "SELECT COUNT(*) FROM instances"

	var count int
	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to count instances")
		return 0, fmt.Errorf("failed to count instances: %w", err)
	}

	return count, nil
}

// GetStartable retorna as instâncias que devem ser religadas no boot
func (r *instanceRepository) GetStartable() ([]*models.Instance, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM instances
		WHERE status IN ('active', 'connecting')
		ORDER BY last_connected_at DESC
	`, instanceColumns)

	var instances []*models.Instance
	if err := r.db.Select(&instances, query); err != nil {
		r.logger.Error().Err(err).Msg("Failed to get startable instances")
		return nil, fmt.Errorf("failed to get startable instances: %w", err)
	}

	r.logger.Info().Int("count", len(instances)).Msg("Retrieved startable instances")
	return instances, nil
}

// DeleteOlderThan remove instâncias criadas antes do corte e retorna os
// telefones removidos (para limpeza dos diretórios de credenciais).
// Instâncias com sessão viva nunca são expurgadas, por mais antigas que
// sejam: só status terminais entram na varredura.
func (r *instanceRepository) DeleteOlderThan(cutoff time.Time) ([]string, error) {
	var phones []string
	query := `
		SELECT phone FROM instances
		WHERE created_at < $1
		  AND status NOT IN ('connecting', 'qr_ready', 'active', 'reconnecting')
	`
	if err := r.db.Select(&phones, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list expired instances: %w", err)
	}

	if len(phones) == 0 {
		return nil, nil
	}

	del := `
		DELETE FROM instances
		WHERE created_at < $1
		  AND status NOT IN ('connecting', 'qr_ready', 'active', 'reconnecting')
	`
	if _, err := r.db.Exec(del, cutoff); err != nil {
		r.logger.Error().Err(err).Msg("Failed to delete expired instances")
		return nil, fmt.Errorf("failed to delete expired instances: %w", err)
	}

	r.logger.Info().Int("count", len(phones)).Msg("Expired instances deleted")
	return phones, nil
}
