package migrations

import (
	"database/sql"
	"fmt"

	"github.com/felipe/zapgate/internal/logger"
)

// Migration representa uma migração do banco de dados
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// Migrator gerencia as migrações do banco de dados
type Migrator struct {
	db     *sql.DB
	logger logger.Logger
}

// NewMigrator cria um novo migrator
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger.Get(),
	}
}

// GetMigrations retorna todas as migrações disponíveis.
// O DDL é mantido portável entre postgres e sqlite: ids TEXT, timestamps
// preenchidos pela aplicação, colunas JSON como TEXT. As tabelas do
// whatsmeow são criadas pelo próprio sqlstore.Upgrade.
func (m *Migrator) GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create instances table",
			Up: `
				CREATE TABLE IF NOT EXISTS instances (
					id TEXT PRIMARY KEY,
					phone VARCHAR(32) UNIQUE NOT NULL,
					name VARCHAR(255) NOT NULL,
					alias VARCHAR(255),
					api_key VARCHAR(255) UNIQUE NOT NULL,
					jid VARCHAR(255),
					status VARCHAR(50) DEFAULT 'pending',
					plugin_overrides TEXT DEFAULT '{}',
					qr_code TEXT,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL,
					last_connected_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_instances_phone ON instances(phone);
				CREATE INDEX IF NOT EXISTS idx_instances_api_key ON instances(api_key);
				CREATE INDEX IF NOT EXISTS idx_instances_status ON instances(status);
				CREATE INDEX IF NOT EXISTS idx_instances_created_at ON instances(created_at);
			`,
			Down: `
				DROP TABLE IF EXISTS instances;
			`,
		},
		{
			Version:     2,
			Description: "Create messages table",
			Up: `
				CREATE TABLE IF NOT EXISTS messages (
					id TEXT PRIMARY KEY,
					instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
					direction VARCHAR(16) NOT NULL,
					sender VARCHAR(255) NOT NULL,
					recipient VARCHAR(255) NOT NULL,
					msg_type VARCHAR(32) NOT NULL DEFAULT 'text',
					content TEXT DEFAULT '{}',
					status VARCHAR(32) NOT NULL DEFAULT 'pending',
					sent_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_messages_instance_id ON messages(instance_id);
				CREATE INDEX IF NOT EXISTS idx_messages_instance_created ON messages(instance_id, created_at);
				CREATE INDEX IF NOT EXISTS idx_messages_direction ON messages(direction);
				CREATE INDEX IF NOT EXISTS idx_messages_status ON messages(status);
			`,
			Down: `
				DROP TABLE IF EXISTS messages;
			`,
		},
		{
			Version:     3,
			Description: "Create webhooks and webhook_history tables",
			Up: `
				CREATE TABLE IF NOT EXISTS webhooks (
					id TEXT PRIMARY KEY,
					instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
					webhook_type VARCHAR(64) NOT NULL DEFAULT 'http',
					event VARCHAR(64) NOT NULL,
					url VARCHAR(500) NOT NULL,
					enabled BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_webhooks_instance_id ON webhooks(instance_id);
				CREATE INDEX IF NOT EXISTS idx_webhooks_instance_event ON webhooks(instance_id, event, enabled);

				CREATE TABLE IF NOT EXISTS webhook_history (
					id TEXT PRIMARY KEY,
					instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
					webhook_id TEXT NOT NULL REFERENCES webhooks(id) ON DELETE CASCADE,
					event VARCHAR(64) NOT NULL,
					payload TEXT DEFAULT '{}',
					status VARCHAR(32) NOT NULL DEFAULT 'pending',
					http_status INTEGER,
					response_time_ms INTEGER,
					response TEXT,
					error_message TEXT,
					retry_count INTEGER NOT NULL DEFAULT 0,
					triggered_at TIMESTAMP NOT NULL,
					completed_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_webhook_history_instance_id ON webhook_history(instance_id);
				CREATE INDEX IF NOT EXISTS idx_webhook_history_status ON webhook_history(status);
				CREATE INDEX IF NOT EXISTS idx_webhook_history_event ON webhook_history(event);
				CREATE INDEX IF NOT EXISTS idx_webhook_history_triggered_at ON webhook_history(triggered_at);
			`,
			Down: `
				DROP TABLE IF EXISTS webhook_history;
				DROP TABLE IF EXISTS webhooks;
			`,
		},
		{
			Version:     4,
			Description: "Create instance_logs table",
			Up: `
				CREATE TABLE IF NOT EXISTS instance_logs (
					id TEXT PRIMARY KEY,
					instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
					level VARCHAR(16) NOT NULL DEFAULT 'info',
					message TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_instance_logs_instance_id ON instance_logs(instance_id);
				CREATE INDEX IF NOT EXISTS idx_instance_logs_created_at ON instance_logs(created_at);
			`,
			Down: `
				DROP TABLE IF EXISTS instance_logs;
			`,
		},
		{
			Version:     5,
			Description: "Add instance statistics columns",
			Up: `
				ALTER TABLE instances ADD COLUMN messages_received INTEGER DEFAULT 0;
				ALTER TABLE instances ADD COLUMN messages_sent INTEGER DEFAULT 0;
				ALTER TABLE instances ADD COLUMN reconnections INTEGER DEFAULT 0;
			`,
			Down: `
				ALTER TABLE instances DROP COLUMN messages_received;
				ALTER TABLE instances DROP COLUMN messages_sent;
				ALTER TABLE instances DROP COLUMN reconnections;
			`,
		},
	}
}

// Run executa todas as migrações pendentes
func (m *Migrator) Run() error {
	m.logger.Info().Msg("Starting database migrations")

	// Criar tabela de migrações se não existir
	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations := m.GetMigrations()
	appliedVersions, err := m.getAppliedVersions()
	if err != nil {
		return fmt.Errorf("failed to get applied versions: %w", err)
	}

	for _, migration := range migrations {
		if m.isApplied(migration.Version, appliedVersions) {
			m.logger.Debug().Int("version", migration.Version).Msg("Migration already applied")
			continue
		}

		m.logger.Info().Int("version", migration.Version).Str("description", migration.Description).Msg("Applying migration")

		if err := m.applyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}

		m.logger.Info().Int("version", migration.Version).Msg("Migration applied successfully")
	}

	m.logger.Info().Msg("All migrations completed successfully")
	return nil
}

// createMigrationsTable cria a tabela de controle de migrações
func (m *Migrator) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP
		);
	`
	_, err := m.db.Exec(query)
	return err
}

// getAppliedVersions retorna as versões já aplicadas
func (m *Migrator) getAppliedVersions() (map[int]bool, error) {
	query := "SELECT version FROM schema_migrations"
	rows, err := m.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// isApplied verifica se uma migração já foi aplicada
func (m *Migrator) isApplied(version int, applied map[int]bool) bool {
	return applied[version]
}

// applyMigration aplica uma migração específica
func (m *Migrator) applyMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Executar a migração
	if _, err := tx.Exec(migration.Up); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	// Registrar a migração como aplicada
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, CURRENT_TIMESTAMP)",
		migration.Version, migration.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// Rollback desfaz uma migração específica
func (m *Migrator) Rollback(version int) error {
	migrations := m.GetMigrations()
	var targetMigration *Migration

	for _, migration := range migrations {
		if migration.Version == version {
			targetMigration = &migration
			break
		}
	}

	if targetMigration == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	m.logger.Info().Int("version", version).Str("description", targetMigration.Description).Msg("Rolling back migration")

	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Executar rollback
	if _, err := tx.Exec(targetMigration.Down); err != nil {
		return fmt.Errorf("failed to execute rollback SQL: %w", err)
	}

	// Remover registro da migração
	if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = $1", version); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	m.logger.Info().Int("version", version).Msg("Migration rolled back successfully")
	return nil
}

// Status retorna o status das migrações
func (m *Migrator) Status() ([]MigrationStatus, error) {
	migrations := m.GetMigrations()
	appliedVersions, err := m.getAppliedVersions()
	if err != nil {
		return nil, err
	}

	status := make([]MigrationStatus, len(migrations))
	for i, migration := range migrations {
		status[i] = MigrationStatus{
			Version:     migration.Version,
			Description: migration.Description,
			Applied:     m.isApplied(migration.Version, appliedVersions),
		}
	}

	return status, nil
}

// MigrationStatus representa o status de uma migração
type MigrationStatus struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
	Applied     bool   `json:"applied"`
}
