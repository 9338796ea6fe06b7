// @title ZapGate WhatsApp Gateway API
// @version 1.0
// @description Gateway multi-instância para WhatsApp usando whatsmeow

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

	_ "github.com/felipe/zapgate/docs"
	"github.com/felipe/zapgate/internal/api"
	"github.com/felipe/zapgate/internal/config"
	"github.com/felipe/zapgate/internal/db"
	"github.com/felipe/zapgate/internal/db/repositories"
	"github.com/felipe/zapgate/internal/logger"
	"github.com/felipe/zapgate/internal/plugin"
	"github.com/felipe/zapgate/internal/service/instance"
	"github.com/felipe/zapgate/internal/service/media"
	"github.com/felipe/zapgate/internal/service/retention"
	"github.com/felipe/zapgate/internal/service/webhook"
	"github.com/felipe/zapgate/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	dbConn, err := db.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	if err := dbConn.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	if err := dbConn.CreateIndexes(); err != nil {
		log.Warn().Err(err).Msg("Failed to create indexes")
	}

	sqlStore := dbConn.GetSQLStore()
	if sqlStore == nil {
		log.Fatal().Msg("Failed to initialize WhatsApp SQL store")
	}

	sqlxDB := sqlx.NewDb(dbConn.DB, cfg.Database.Driver)
	instanceRepo := repositories.NewInstanceRepository(sqlxDB)
	messageRepo := repositories.NewMessageRepository(sqlxDB)
	webhookRepo := repositories.NewWebhookRepository(sqlxDB)
	historyRepo := repositories.NewWebhookHistoryRepository(sqlxDB)
	logRepo := repositories.NewInstanceLogRepository(sqlxDB)

	registry := plugin.NewRegistry(plugin.DefaultFactories()...)
	classifier := transport.NewClassifier(cfg.WhatsApp.TransientStreamCodes)

	dispatcher := webhook.NewDispatcher(webhookRepo, historyRepo, cfg)
	dispatcher.Start()

	mediaService := media.NewService(cfg)

	manager := instance.NewManager(instance.Deps{
		Config:     cfg,
		Factory:    instance.NewWhatsmeowFactory(sqlStore, classifier),
		Classifier: classifier,
		Registry:   registry,
		Dispatcher: dispatcher,
		Instances:  instanceRepo,
		Messages:   messageRepo,
		Logs:       logRepo,
	}, webhookRepo)

	if err := manager.Initialize(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize instance manager")
	}

	if cfg.Server.Mode == config.ModeSingle || cfg.Server.Mode == config.ModeBoth {
		ensureSingleInstance(manager, cfg)
	}

	retentionService := retention.NewService(
		cfg,
		instanceRepo,
		messageRepo,
		webhookRepo,
		historyRepo,
		logRepo,
		func(phone string) {
			if err := os.RemoveAll(cfg.Auth.AuthRoot + "/" + phone); err != nil {
				log.Warn().Err(err).Str("instance", phone).Msg("Failed to remove credentials")
			}
		},
	)
	retentionService.Start()

	server := api.NewServer(cfg, api.Deps{
		Manager:    manager,
		Media:      mediaService,
		Dispatcher: dispatcher,
		Retention:  retentionService,
		Database:   dbConn,
		Instances:  instanceRepo,
		Messages:   messageRepo,
		Webhooks:   webhookRepo,
		History:    historyRepo,
		Logs:       logRepo,
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop HTTP server")
	}
	retentionService.Stop()
	manager.Shutdown()
	dispatcher.Stop()

	log.Info().Msg("Shutdown complete")
}

// ensureSingleInstance garante que a instância do modo single exista e
// esteja supervisionada
func ensureSingleInstance(manager *instance.Manager, cfg *config.Config) {
	log := logger.Get()
	phone := cfg.Server.SinglePhone

	_, err := manager.Create(phone, "single", nil)
	if err != nil {
		if errors.Is(err, instance.ErrInstanceAlreadyExists) {
			log.Info().Str("instance", phone).Msg("Single mode instance already registered")
			return
		}
		log.Fatal().Err(err).Str("instance", phone).Msg("Failed to create single mode instance")
	}

	log.Info().Str("instance", phone).Msg("Single mode instance created")
}
