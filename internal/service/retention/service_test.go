package retention

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipe/zapgate/internal/config"
	"github.com/felipe/zapgate/internal/db/models"
	"github.com/felipe/zapgate/internal/db/repositories"
)

type retentionEnv struct {
	cfg       *config.Config
	instances *repositories.MockInstanceRepository
	messages  *repositories.MockMessageRepository
	webhooks  *repositories.MockWebhookRepository
	history   *repositories.MockWebhookHistoryRepository
	logs      *repositories.MockInstanceLogRepository

	mu      sync.Mutex
	removed []string
}

func newRetentionEnv() *retentionEnv {
	cfg := &config.Config{}
	cfg.Retention.Enabled = true
	cfg.Retention.MaxAge = time.Hour
	cfg.Retention.SweepInterval = time.Minute

	return &retentionEnv{
		cfg:       cfg,
		instances: repositories.NewMockInstanceRepository(),
		messages:  repositories.NewMockMessageRepository(),
		webhooks:  repositories.NewMockWebhookRepository(),
		history:   repositories.NewMockWebhookHistoryRepository(),
		logs:      repositories.NewMockInstanceLogRepository(),
	}
}

func (e *retentionEnv) remover(phone string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = append(e.removed, phone)
}

func (e *retentionEnv) service() *Service {
	return NewService(e.cfg, e.instances, e.messages, e.webhooks, e.history, e.logs, e.remover)
}

// seedInstance cria uma instância com o CreatedAt desejado
func (e *retentionEnv) seedInstance(t *testing.T, phone string, createdAt time.Time) {
	t.Helper()

	record := &models.Instance{
		Phone:  phone,
		Name:   phone,
		APIKey: phone,
		Status: models.InstanceStatusInactive,
	}
	require.NoError(t, e.instances.Create(record))

	record.CreatedAt = createdAt
	require.NoError(t, e.instances.Update(record))
}

func (e *retentionEnv) seedWebhook(t *testing.T, instanceID string, createdAt time.Time) string {
	t.Helper()

	hook := &models.Webhook{
		InstanceID: instanceID,
		Event:      models.EventMessageReceived,
		URL:        "http://example.test/hook",
		Enabled:    true,
	}
	require.NoError(t, e.webhooks.Create(hook))

	hook.CreatedAt = createdAt
	require.NoError(t, e.webhooks.Update(hook))
	return hook.ID
}

func TestSweepRemovesOnlyStale(t *testing.T) {
	env := newRetentionEnv()

	old := time.Now().Add(-2 * time.Hour)
	fresh := time.Now().Add(-time.Minute)

	env.seedInstance(t, "5511000000001", old)
	env.seedInstance(t, "5511000000002", fresh)

	require.NoError(t, env.messages.Create(&models.Message{InstanceID: "i1", CreatedAt: old}))
	require.NoError(t, env.messages.Create(&models.Message{InstanceID: "i1", CreatedAt: fresh}))

	env.seedWebhook(t, "i1", old)
	freshHook := env.seedWebhook(t, "i1", fresh)

	require.NoError(t, env.history.Create(&models.WebhookHistory{InstanceID: "i1", Event: "e", TriggeredAt: old}))
	require.NoError(t, env.history.Create(&models.WebhookHistory{InstanceID: "i1", Event: "e", TriggeredAt: fresh}))

	require.NoError(t, env.logs.Append(&models.InstanceLog{InstanceID: "i1", Level: "info", Message: "old", CreatedAt: old}))
	require.NoError(t, env.logs.Append(&models.InstanceLog{InstanceID: "i1", Level: "info", Message: "fresh", CreatedAt: fresh}))

	result := env.service().Sweep(context.Background())

	assert.Equal(t, int64(1), result.MessagesDeleted)
	assert.Equal(t, int64(1), result.WebhooksDeleted)
	assert.Equal(t, int64(1), result.HistoryDeleted)
	assert.Equal(t, int64(1), result.LogsDeleted)
	assert.Equal(t, []string{"5511000000001"}, result.InstancesPurged)
	assert.Equal(t, []string{"5511000000001"}, env.removed)

	// tudo mais novo que o corte permanece intocado
	_, err := env.instances.GetByPhone("5511000000002")
	assert.NoError(t, err)

	messages, _, err := env.messages.GetByInstance("i1", nil)
	require.NoError(t, err)
	assert.Len(t, messages, 1)

	_, err = env.webhooks.GetByID(freshHook)
	assert.NoError(t, err)

	entries, err := env.logs.GetByInstance("i1", 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].Message)
}

func TestSweepSparesLiveInstances(t *testing.T) {
	env := newRetentionEnv()

	old := time.Now().Add(-2 * time.Hour)
	env.seedInstance(t, "5511000000001", old)

	// instância antiga mas com sessão viva fica fora do expurgo
	live := &models.Instance{
		Phone:  "5511000000002",
		Name:   "live",
		APIKey: "live",
		Status: models.InstanceStatusActive,
	}
	require.NoError(t, env.instances.Create(live))
	live.CreatedAt = old
	require.NoError(t, env.instances.Update(live))

	result := env.service().Sweep(context.Background())

	assert.Equal(t, []string{"5511000000001"}, result.InstancesPurged)
	assert.Equal(t, []string{"5511000000001"}, env.removed)

	_, err := env.instances.GetByPhone("5511000000002")
	assert.NoError(t, err)
}

func TestSweepWithNothingStale(t *testing.T) {
	env := newRetentionEnv()

	env.seedInstance(t, "5511000000001", time.Now())
	require.NoError(t, env.messages.Create(&models.Message{InstanceID: "i1"}))

	result := env.service().Sweep(context.Background())

	assert.Zero(t, result.MessagesDeleted)
	assert.Empty(t, result.InstancesPurged)
	assert.Empty(t, env.removed)
}

func TestStartDisabledIsNoop(t *testing.T) {
	env := newRetentionEnv()
	env.cfg.Retention.Enabled = false

	s := env.service()
	s.Start()
	s.Stop()
}

func TestPeriodicSweep(t *testing.T) {
	env := newRetentionEnv()
	env.cfg.Retention.SweepInterval = 10 * time.Millisecond

	env.seedInstance(t, "5511000000001", time.Now().Add(-2*time.Hour))

	s := env.service()
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := env.instances.GetByPhone("5511000000001"); err != nil {
			env.mu.Lock()
			removed := append([]string(nil), env.removed...)
			env.mu.Unlock()
			assert.Equal(t, []string{"5511000000001"}, removed)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("retention sweeper never purged the stale instance")
}
