package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.mau.fi/whatsmeow/store/sqlstore"
	_ "modernc.org/sqlite"

	"github.com/felipe/zapgate/internal/config"
	"github.com/felipe/zapgate/internal/db/migrations"
	"github.com/felipe/zapgate/internal/logger"
)

// DB representa a conexão com o banco de dados
type DB struct {
	*sql.DB
	config *config.DatabaseConfig
	logger logger.Logger
}

// Connect cria uma nova conexão com o banco usando a configuração completa
func Connect(cfg *config.Config) (*DB, error) {
	return New(&cfg.Database)
}

// Migrate executa as migrações do banco de dados (alias para compatibilidade)
func Migrate(db *DB) error {
	return db.Migrate()
}

// New cria uma nova conexão com o banco de dados. Suporta postgres (lib/pq)
// e sqlite (modernc) conforme o driver configurado.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	log := logger.Get()

	log.Info().Str("driver", cfg.Driver).Str("host", cfg.Host).Str("database", cfg.Name).Msg("Connecting to database")

	db, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configurar pool de conexões
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Testar conexão
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Database connection established successfully")

	return &DB{
		DB:     db,
		config: cfg,
		logger: log,
	}, nil
}

// Close fecha a conexão com o banco de dados
func (db *DB) Close() error {
	db.logger.Info().Msg("Closing database connection")
	return db.DB.Close()
}

// GetSQLStore retorna um store compatível com whatsmeow
func (db *DB) GetSQLStore() *sqlstore.Container {
	whatsmeowLogger := logger.GetWhatsAppLogger("sqlstore")

	dialect := "postgres"
	if db.config.Driver == "sqlite" {
		dialect = "sqlite3"
	}

	container := sqlstore.NewWithDB(db.DB, dialect, whatsmeowLogger)

	// Executar upgrade das tabelas do whatsmeow
	if err := container.Upgrade(context.Background()); err != nil {
		db.logger.Error().Err(err).Msg("Failed to upgrade whatsmeow store")
		return nil
	}

	db.logger.Info().Msg("WhatsApp SQL store container created and upgraded")
	return container
}

// Migrate executa as migrações do banco de dados
func (db *DB) Migrate() error {
	migrator := migrations.NewMigrator(db.DB)
	return migrator.Run()
}

// Health verifica a saúde da conexão com o banco
func (db *DB) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return db.PingContext(ctx)
}

// GetStats retorna estatísticas da conexão
func (db *DB) GetStats() sql.DBStats {
	return db.Stats()
}

// Transaction executa uma função dentro de uma transação
func (db *DB) Transaction(fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(tx)
	return err
}

// CreateIndexes cria índices adicionais de performance (apenas postgres;
// índices básicos são criados pelas migrações)
func (db *DB) CreateIndexes() error {
	if db.config.Driver != "postgres" {
		return nil
	}

	db.logger.Info().Msg("Creating optimized indexes")

	indexes := []string{
		"CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_instances_status_created ON instances(status, created_at)",
		"CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_instances_jid_status ON instances(jid, status) WHERE jid IS NOT NULL",
		"CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_messages_instance_sender ON messages(instance_id, sender)",
		"CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_webhook_history_instance_triggered ON webhook_history(instance_id, triggered_at)",
	}

	for _, query := range indexes {
		if _, err := db.Exec(query); err != nil {
			db.logger.Warn().Err(err).Str("query", query).Msg("Failed to create index")
			// Não retornar erro, apenas log warning
		}
	}

	db.logger.Info().Msg("Optimized indexes created")
	return nil
}
