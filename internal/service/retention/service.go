package retention

import (
	"context"
	"sync"
	"time"

	"github.com/felipe/zapgate/internal/config"
	"github.com/felipe/zapgate/internal/db/repositories"
	"github.com/felipe/zapgate/internal/logger"
)

// CredentialRemover apaga o blob de credenciais das instâncias varridas
type CredentialRemover func(phone string)

// Service executa a varredura periódica de retenção: apaga histórico de
// webhooks, logs, mensagens, inscrições e instâncias mais antigos que o
// corte configurado
type Service struct {
	cfg       *config.Config
	instances repositories.InstanceRepository
	messages  repositories.MessageRepository
	webhooks  repositories.WebhookRepository
	history   repositories.WebhookHistoryRepository
	logs      repositories.InstanceLogRepository
	remove    CredentialRemover
	logger    logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Result resume o que uma varredura removeu
type Result struct {
	HistoryDeleted  int64    `json:"history_deleted"`
	LogsDeleted     int64    `json:"logs_deleted"`
	MessagesDeleted int64    `json:"messages_deleted"`
	WebhooksDeleted int64    `json:"webhooks_deleted"`
	InstancesPurged []string `json:"instances_purged"`
	Cutoff          string   `json:"cutoff"`
}

// NewService cria o serviço de retenção
func NewService(
	cfg *config.Config,
	instances repositories.InstanceRepository,
	messages repositories.MessageRepository,
	webhooks repositories.WebhookRepository,
	history repositories.WebhookHistoryRepository,
	logs repositories.InstanceLogRepository,
	remove CredentialRemover,
) *Service {
	return &Service{
		cfg:       cfg,
		instances: instances,
		messages:  messages,
		webhooks:  webhooks,
		history:   history,
		logs:      logs,
		remove:    remove,
		logger:    logger.Get(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start agenda varreduras periódicas; sem retenção habilitada não faz nada
func (s *Service) Start() {
	if !s.cfg.Retention.Enabled {
		s.logger.Info().Msg("Retention sweep disabled")
		close(s.done)
		return
	}

	s.logger.Info().
		Dur("max_age", s.cfg.Retention.MaxAge).
		Dur("interval", s.cfg.Retention.SweepInterval).
		Msg("Starting retention sweeper")

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.Retention.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep(context.Background())
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop encerra o sweeper
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// Sweep remove tudo estritamente mais antigo que o corte; falha em uma
// tabela não impede as demais
func (s *Service) Sweep(ctx context.Context) Result {
	cutoff := time.Now().Add(-s.cfg.Retention.MaxAge)
	result := Result{Cutoff: cutoff.UTC().Format(time.RFC3339)}

	if n, err := s.history.DeleteBefore(cutoff); err != nil {
		s.logger.Error().Err(err).Msg("Retention: failed to delete webhook history")
	} else {
		result.HistoryDeleted = n
	}

	if n, err := s.logs.DeleteBefore(cutoff); err != nil {
		s.logger.Error().Err(err).Msg("Retention: failed to delete instance logs")
	} else {
		result.LogsDeleted = n
	}

	if n, err := s.messages.DeleteOlderThan(cutoff); err != nil {
		s.logger.Error().Err(err).Msg("Retention: failed to delete messages")
	} else {
		result.MessagesDeleted = n
	}

	if n, err := s.webhooks.DeleteOlderThan(cutoff); err != nil {
		s.logger.Error().Err(err).Msg("Retention: failed to delete webhooks")
	} else {
		result.WebhooksDeleted = n
	}

	phones, err := s.instances.DeleteOlderThan(cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("Retention: failed to delete instances")
	} else {
		result.InstancesPurged = phones
		if s.remove != nil {
			for _, phone := range phones {
				s.remove(phone)
			}
		}
	}

	s.logger.Info().
		Int64("history", result.HistoryDeleted).
		Int64("logs", result.LogsDeleted).
		Int64("messages", result.MessagesDeleted).
		Int64("webhooks", result.WebhooksDeleted).
		Int("instances", len(result.InstancesPurged)).
		Str("cutoff", result.Cutoff).
		Msg("Retention sweep finished")

	return result
}
