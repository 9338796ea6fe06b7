package webhook

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipe/zapgate/internal/config"
	"github.com/felipe/zapgate/internal/db/models"
	"github.com/felipe/zapgate/internal/db/repositories"
)

func testConfig() *config.Config {
	return &config.Config{
		Webhook: config.WebhookConfig{
			Timeout:   500 * time.Millisecond,
			Workers:   2,
			QueueSize: 100,
			UserAgent: "ZapGate/1.0",
		},
	}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *repositories.MockWebhookRepository, *repositories.MockWebhookHistoryRepository) {
	t.Helper()

	webhooks := repositories.NewMockWebhookRepository()
	history := repositories.NewMockWebhookHistoryRepository()
	d := NewDispatcher(webhooks, history, testConfig())
	d.Start()
	t.Cleanup(d.Stop)

	return d, webhooks, history
}

func subscribe(t *testing.T, webhooks *repositories.MockWebhookRepository, instanceID, event, url string) *models.Webhook {
	t.Helper()

	webhook := &models.Webhook{
		InstanceID: instanceID,
		Event:      event,
		URL:        url,
		Enabled:    true,
	}
	require.NoError(t, webhooks.Create(webhook))
	return webhook
}

func waitForHistory(t *testing.T, history *repositories.MockWebhookHistoryRepository, want int) []models.WebhookHistory {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		records, _, err := history.GetAll(nil)
		require.NoError(t, err)

		completed := 0
		for _, record := range records {
			if record.CompletedAt != nil {
				completed++
			}
		}
		if completed >= want {
			return records
		}

		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d completed deliveries, got %d", want, completed)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestDispatcherSuccess(t *testing.T) {
	var received atomic.Int64
	var lastUserAgent atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		lastUserAgent.Store(r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	d, webhooks, history := newTestDispatcher(t)
	subscribe(t, webhooks, "inst-1", models.EventMessageReceived, server.URL)

	d.Dispatch("inst-1", models.EventMessageReceived, map[string]interface{}{"text": "hello"})

	records := waitForHistory(t, history, 1)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, models.WebhookHistoryStatusSuccess, record.Status)
	require.NotNil(t, record.HTTPStatus)
	assert.Equal(t, http.StatusOK, *record.HTTPStatus)
	assert.Equal(t, 0, record.RetryCount)
	require.NotNil(t, record.CompletedAt)
	assert.False(t, record.CompletedAt.Before(record.TriggeredAt))
	require.NotNil(t, record.Response)
	assert.Contains(t, *record.Response, "ok")

	assert.Equal(t, int64(1), received.Load())
	assert.Equal(t, "ZapGate/1.0", lastUserAgent.Load())
}

func TestDispatcherPayloadShape(t *testing.T) {
	bodyChan := make(chan []byte, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		bodyChan <- buf
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d, webhooks, history := newTestDispatcher(t)
	subscribe(t, webhooks, "inst-1", models.EventConnectionUpdate, server.URL)

	d.Dispatch("inst-1", models.EventConnectionUpdate, map[string]interface{}{"status": "active"})
	waitForHistory(t, history, 1)

	body := string(<-bodyChan)
	assert.Contains(t, body, `"event":"connection.update"`)
	assert.Contains(t, body, `"instanceId":"inst-1"`)
	assert.Contains(t, body, `"timestamp"`)
	assert.Contains(t, body, `"status":"active"`)
}

func TestDispatcherNon2xxIsFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	d, webhooks, history := newTestDispatcher(t)
	subscribe(t, webhooks, "inst-1", models.EventMessageReceived, server.URL)

	d.Dispatch("inst-1", models.EventMessageReceived, nil)

	records := waitForHistory(t, history, 1)
	record := records[0]

	assert.Equal(t, models.WebhookHistoryStatusFailed, record.Status)
	require.NotNil(t, record.HTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, *record.HTTPStatus)
	require.NotNil(t, record.ErrorMessage)
	assert.Contains(t, *record.ErrorMessage, "500")
}

func TestDispatcherTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	d, webhooks, history := newTestDispatcher(t)
	subscribe(t, webhooks, "inst-1", models.EventMessageReceived, server.URL)

	d.Dispatch("inst-1", models.EventMessageReceived, nil)

	records := waitForHistory(t, history, 1)
	record := records[0]

	assert.Equal(t, models.WebhookHistoryStatusTimeout, record.Status)
	assert.Nil(t, record.HTTPStatus)
	require.NotNil(t, record.ErrorMessage)
	assert.Contains(t, *record.ErrorMessage, "timed out")
}

func TestDispatcherUnreachableIsFailed(t *testing.T) {
	d, webhooks, history := newTestDispatcher(t)
	// porta reservada sem listener
	subscribe(t, webhooks, "inst-1", models.EventMessageReceived, "http://127.0.0.1:1/hook")

	d.Dispatch("inst-1", models.EventMessageReceived, nil)

	records := waitForHistory(t, history, 1)
	record := records[0]

	assert.Equal(t, models.WebhookHistoryStatusFailed, record.Status)
	assert.Nil(t, record.HTTPStatus)
	require.NotNil(t, record.ErrorMessage)
}

func TestDispatcherFansOutPerSubscription(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d, webhooks, history := newTestDispatcher(t)
	subscribe(t, webhooks, "inst-1", models.EventMessageReceived, server.URL)
	subscribe(t, webhooks, "inst-1", models.EventMessageReceived, server.URL+"/second")

	d.Dispatch("inst-1", models.EventMessageReceived, nil)

	records := waitForHistory(t, history, 2)
	assert.Len(t, records, 2)
	assert.Equal(t, int64(2), hits.Load())
}

func TestDispatcherRecordsDroppedDeliveries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Webhook.QueueSize = 1

	webhooks := repositories.NewMockWebhookRepository()
	history := repositories.NewMockWebhookHistoryRepository()
	d := NewDispatcher(webhooks, history, cfg)

	subscribe(t, webhooks, "inst-1", models.EventMessageReceived, server.URL)
	subscribe(t, webhooks, "inst-1", models.EventMessageReceived, server.URL+"/second")
	subscribe(t, webhooks, "inst-1", models.EventMessageReceived, server.URL+"/third")

	// workers ainda parados: só uma tentativa cabe na fila, as outras duas
	// são descartadas e precisam virar linhas de histórico mesmo assim
	d.Dispatch("inst-1", models.EventMessageReceived, nil)

	records, _, err := history.GetAll(nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, record := range records {
		assert.Equal(t, models.WebhookHistoryStatusFailed, record.Status)
		require.NotNil(t, record.ErrorMessage)
		assert.Contains(t, *record.ErrorMessage, "queue full")
		assert.NotNil(t, record.CompletedAt)
	}

	// a tentativa enfileirada ainda é entregue quando os workers sobem
	d.Start()
	t.Cleanup(d.Stop)

	records = waitForHistory(t, history, 3)
	assert.Len(t, records, 3)
}

func TestDispatcherSkipsDisabledAndOtherEvents(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d, webhooks, history := newTestDispatcher(t)

	disabled := &models.Webhook{
		InstanceID: "inst-1",
		Event:      models.EventMessageReceived,
		URL:        server.URL,
		Enabled:    false,
	}
	require.NoError(t, webhooks.Create(disabled))
	subscribe(t, webhooks, "inst-1", models.EventMessageSent, server.URL)

	d.Dispatch("inst-1", models.EventMessageReceived, nil)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int64(0), hits.Load())

	records, _, err := history.GetAll(nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}
