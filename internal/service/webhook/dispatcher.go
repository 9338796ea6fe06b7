package webhook

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/felipe/zapgate/internal/config"
	"github.com/felipe/zapgate/internal/db/models"
	"github.com/felipe/zapgate/internal/db/repositories"
	"github.com/felipe/zapgate/internal/logger"
)

// Payload é o corpo enviado a cada inscrição
type Payload struct {
	Event      string      `json:"event"`
	Data       interface{} `json:"data"`
	Timestamp  string      `json:"timestamp"`
	InstanceID string      `json:"instanceId"`
}

// Job é uma tentativa de entrega para uma inscrição específica
type Job struct {
	Webhook models.Webhook
	Payload Payload
}

// Dispatcher entrega eventos às inscrições de webhook com um pool de
// workers. Cada tentativa gera exatamente um registro de histórico; não há
// retry.
type Dispatcher struct {
	client   *resty.Client
	webhooks repositories.WebhookRepository
	history  repositories.WebhookHistoryRepository
	config   *config.Config
	logger   logger.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	queue    chan Job
	workers  int
	wg       sync.WaitGroup
}

// NewDispatcher cria o dispatcher com cliente HTTP de timeout total fixo
func NewDispatcher(webhooks repositories.WebhookRepository, history repositories.WebhookHistoryRepository, cfg *config.Config) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	client := resty.New().
		SetTimeout(cfg.Webhook.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", cfg.Webhook.UserAgent).
		SetRetryCount(0)

	return &Dispatcher{
		client:   client,
		webhooks: webhooks,
		history:  history,
		config:   cfg,
		logger:   logger.Get(),
		ctx:      ctx,
		cancel:   cancel,
		queue:    make(chan Job, cfg.Webhook.QueueSize),
		workers:  cfg.Webhook.Workers,
	}
}

// Start inicia os workers
func (d *Dispatcher) Start() {
	d.logger.Info().Int("workers", d.workers).Msg("Starting webhook dispatcher")

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop cancela os workers e espera a fila drenar
func (d *Dispatcher) Stop() {
	d.logger.Info().Msg("Stopping webhook dispatcher")

	d.cancel()
	close(d.queue)
	d.wg.Wait()
}

// Dispatch busca as inscrições habilitadas da instância para o evento e
// enfileira uma tentativa por inscrição. As tentativas disparam em
// paralelo, sem ordem garantida.
func (d *Dispatcher) Dispatch(instanceID, event string, data interface{}) {
	subscriptions, err := d.webhooks.GetEnabledByInstanceAndEvent(instanceID, event)
	if err != nil {
		d.logger.Error().Err(err).Str("instance_id", instanceID).Str("event", event).Msg("Failed to load webhook subscriptions")
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	payload := Payload{
		Event:      event,
		Data:       data,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		InstanceID: instanceID,
	}

	for _, subscription := range subscriptions {
		job := Job{Webhook: subscription, Payload: payload}
		select {
		case d.queue <- job:
		default:
			d.logger.Warn().
				Str("instance_id", instanceID).
				Str("webhook_id", subscription.ID).
				Str("event", event).
				Msg("Webhook queue full, dropping delivery")
			d.recordDropped(job)
		}
	}
}

// recordDropped grava o registro de histórico de uma tentativa descartada
// por fila cheia; toda tentativa, entregue ou não, vira uma linha
func (d *Dispatcher) recordDropped(job Job) {
	now := time.Now()
	history := &models.WebhookHistory{
		InstanceID:  job.Webhook.InstanceID,
		WebhookID:   job.Webhook.ID,
		Event:       job.Payload.Event,
		Status:      models.WebhookHistoryStatusFailed,
		CompletedAt: &now,
	}
	history.SetPayload(job.Payload)
	history.SetError("delivery dropped: webhook queue full")

	if err := d.history.Create(history); err != nil {
		d.logger.Error().Err(err).Str("webhook_id", job.Webhook.ID).Msg("Failed to record dropped delivery")
	}
}

// QueueDepth retorna o tamanho atual da fila
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	d.logger.Debug().Int("worker_id", id).Msg("Webhook worker started")

	for {
		select {
		case job, ok := <-d.queue:
			if !ok {
				d.logger.Debug().Int("worker_id", id).Msg("Webhook worker stopped")
				return
			}
			d.deliver(job)

		case <-d.ctx.Done():
			d.logger.Debug().Int("worker_id", id).Msg("Webhook worker stopped by context")
			return
		}
	}
}

// deliver executa uma tentativa: abre o registro de histórico, faz o POST
// e grava o desfecho. Falha ao gravar o histórico é apenas logada, nunca
// mascara o resultado da entrega.
func (d *Dispatcher) deliver(job Job) {
	history := &models.WebhookHistory{
		InstanceID: job.Webhook.InstanceID,
		WebhookID:  job.Webhook.ID,
		Event:      job.Payload.Event,
	}
	history.SetPayload(job.Payload)

	if err := d.history.Create(history); err != nil {
		d.logger.Error().Err(err).Str("webhook_id", job.Webhook.ID).Msg("Failed to open webhook history record")
	}

	start := time.Now()
	resp, err := d.client.R().
		SetContext(d.ctx).
		SetBody(job.Payload).
		Post(job.Webhook.URL)
	elapsed := time.Since(start).Milliseconds()

	history.ResponseTimeMs = &elapsed

	switch {
	case err != nil && isTimeout(err):
		history.Status = models.WebhookHistoryStatusTimeout
		history.SetError(fmt.Sprintf("delivery timed out after %s", d.config.Webhook.Timeout))

	case err != nil:
		history.Status = models.WebhookHistoryStatusFailed
		history.SetError(err.Error())

	case resp.StatusCode() >= 200 && resp.StatusCode() < 300:
		status := resp.StatusCode()
		history.Status = models.WebhookHistoryStatusSuccess
		history.HTTPStatus = &status
		history.SetResponse(string(resp.Body()))

	default:
		status := resp.StatusCode()
		history.Status = models.WebhookHistoryStatusFailed
		history.HTTPStatus = &status
		history.SetResponse(string(resp.Body()))
		history.SetError(fmt.Sprintf("webhook returned status %d", status))
	}

	if err := d.history.Complete(history); err != nil {
		d.logger.Error().Err(err).Str("webhook_id", job.Webhook.ID).Msg("Failed to record webhook outcome")
	}

	event := d.logger.Info()
	if history.Status != models.WebhookHistoryStatusSuccess {
		event = d.logger.Warn()
	}
	event.
		Str("instance_id", job.Webhook.InstanceID).
		Str("webhook_id", job.Webhook.ID).
		Str("event", job.Payload.Event).
		Str("url", job.Webhook.URL).
		Str("status", string(history.Status)).
		Int64("duration_ms", elapsed).
		Msg("Webhook delivery attempted")
}

// isTimeout distingue estouro de prazo de outras falhas de transporte
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
