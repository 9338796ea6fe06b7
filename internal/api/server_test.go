package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipe/zapgate/internal/config"
	"github.com/felipe/zapgate/internal/db/repositories"
	"github.com/felipe/zapgate/internal/plugin"
	"github.com/felipe/zapgate/internal/service/instance"
	"github.com/felipe/zapgate/internal/service/media"
	"github.com/felipe/zapgate/internal/service/retention"
	"github.com/felipe/zapgate/internal/service/webhook"
	"github.com/felipe/zapgate/internal/transport"
)

const adminKey = "admin-secret-key"

// stubTransport simula o upstream: conecta sempre e, opcionalmente, abre a
// sessão logo em seguida
type stubTransport struct {
	events        chan transport.Event
	openOnConnect bool
}

func newStubTransport(openOnConnect bool) *stubTransport {
	return &stubTransport{
		events:        make(chan transport.Event, 16),
		openOnConnect: openOnConnect,
	}
}

func (s *stubTransport) Connect(ctx context.Context) error {
	if s.openOnConnect {
		s.events <- transport.ConnectionEvent{State: transport.StateOpen}
	}
	return nil
}

func (s *stubTransport) Events() <-chan transport.Event { return s.events }

func (s *stubTransport) SendText(ctx context.Context, jid, text string) (string, error) {
	return "upstream-msg-1", nil
}

func (s *stubTransport) SendMedia(ctx context.Context, jid string, m transport.Media) (string, error) {
	return "upstream-media-1", nil
}

func (s *stubTransport) QueryGroupMetadata(ctx context.Context, jid string) (*transport.GroupMetadata, error) {
	return &transport.GroupMetadata{JID: jid, Name: "group"}, nil
}

func (s *stubTransport) UserID() string { return "" }

func (s *stubTransport) Logout(ctx context.Context) error { return nil }

func (s *stubTransport) Close() {}

type healthStub struct {
	err error
}

func (h *healthStub) Health() error { return h.err }

type apiEnv struct {
	cfg       *config.Config
	server    *Server
	manager   *instance.Manager
	health    *healthStub
	instances *repositories.MockInstanceRepository
	messages  *repositories.MockMessageRepository
	webhooks  *repositories.MockWebhookRepository
	history   *repositories.MockWebhookHistoryRepository
	logs      *repositories.MockInstanceLogRepository
}

func newAPIEnv(t *testing.T, mode string, openOnConnect bool) *apiEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Mode = mode
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 5 * time.Second
	cfg.Server.IdleTimeout = 5 * time.Second
	cfg.Auth.AdminAPIKey = adminKey
	cfg.Auth.AuthRoot = t.TempDir()
	cfg.WhatsApp.Timeout = 5 * time.Second
	cfg.WhatsApp.MaxReconnectAttempts = 5
	cfg.WhatsApp.ReconnectDelay = 10 * time.Millisecond
	cfg.WhatsApp.RestartQuiescence = 10 * time.Millisecond
	cfg.WhatsApp.GroupQueryTimeout = time.Second
	cfg.WhatsApp.TransientStreamCodes = []string{"515"}
	cfg.Webhook.Timeout = time.Second
	cfg.Webhook.Workers = 1
	cfg.Webhook.QueueSize = 16
	cfg.Webhook.UserAgent = "ZapGate/1.0"
	cfg.Retention.Enabled = false
	cfg.Retention.MaxAge = time.Hour
	cfg.Retention.SweepInterval = time.Hour

	env := &apiEnv{
		cfg:       cfg,
		health:    &healthStub{},
		instances: repositories.NewMockInstanceRepository(),
		messages:  repositories.NewMockMessageRepository(),
		webhooks:  repositories.NewMockWebhookRepository(),
		history:   repositories.NewMockWebhookHistoryRepository(),
		logs:      repositories.NewMockInstanceLogRepository(),
	}

	dispatcher := webhook.NewDispatcher(env.webhooks, env.history, cfg)
	dispatcher.Start()
	t.Cleanup(dispatcher.Stop)

	env.manager = instance.NewManager(instance.Deps{
		Config: cfg,
		Factory: func(phone string, jid *string) (transport.Transport, error) {
			return newStubTransport(openOnConnect), nil
		},
		Classifier: transport.NewClassifier(cfg.WhatsApp.TransientStreamCodes),
		Registry:   plugin.NewRegistry(plugin.DefaultFactories()...),
		Dispatcher: dispatcher,
		Instances:  env.instances,
		Messages:   env.messages,
		Logs:       env.logs,
	}, env.webhooks)
	t.Cleanup(env.manager.Shutdown)

	retentionService := retention.NewService(
		cfg, env.instances, env.messages, env.webhooks, env.history, env.logs, nil,
	)

	env.server = NewServer(cfg, Deps{
		Manager:    env.manager,
		Media:      media.NewService(cfg),
		Dispatcher: dispatcher,
		Retention:  retentionService,
		Database:   env.health,
		Instances:  env.instances,
		Messages:   env.messages,
		Webhooks:   env.webhooks,
		History:    env.history,
		Logs:       env.logs,
	})

	return env
}

func (e *apiEnv) request(t *testing.T, method, path, apiKey string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := e.server.App().Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	return body
}

// createInstance cria uma instância via API e retorna a chave gerada
func (e *apiEnv) createInstance(t *testing.T, phone string) string {
	t.Helper()

	resp := e.request(t, http.MethodPost, "/instances", adminKey, map[string]interface{}{
		"phone": phone,
		"name":  "test-" + phone,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	apiKey, _ := data["api_key"].(string)
	require.NotEmpty(t, apiKey)
	return apiKey
}

func (e *apiEnv) waitForConnected(t *testing.T, phone string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		view, err := e.manager.GetView(phone)
		if err == nil && view.Connected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("instance %s never connected", phone)
}

func TestHealthEndpoint(t *testing.T) {
	env := newAPIEnv(t, config.ModeMulti, false)

	resp := env.request(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])

	env.health.err = fmt.Errorf("connection refused")
	resp = env.request(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	env := newAPIEnv(t, config.ModeMulti, false)

	resp := env.request(t, http.MethodGet, "/instances", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/instances", "not-the-admin-key", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/instances/5511999887766", "bogus-key", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInstanceLifecycle(t *testing.T) {
	env := newAPIEnv(t, config.ModeMulti, false)

	apiKey := env.createInstance(t, "5511999887766")

	// chave da própria instância acessa o escopo dela
	resp := env.request(t, http.MethodGet, "/instances/5511999887766", apiKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.True(t, body["success"].(bool))

	// duplicata rejeitada
	resp = env.request(t, http.MethodPost, "/instances", adminKey, map[string]interface{}{
		"phone": "55 11 99988-7766",
		"name":  "dup",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// chave de outra instância não cruza o escopo
	otherKey := env.createInstance(t, "5511888777666")
	resp = env.request(t, http.MethodGet, "/instances/5511999887766", otherKey, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// listagem administrativa
	resp = env.request(t, http.MethodGet, "/instances", adminKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Len(t, body["data"].([]interface{}), 2)

	// remoção sem keepRecord apaga o registro
	resp = env.request(t, http.MethodDelete, "/instances/5511999887766", adminKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/instances/5511999887766", adminKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInstanceValidation(t *testing.T) {
	env := newAPIEnv(t, config.ModeMulti, false)

	resp := env.request(t, http.MethodPost, "/instances", adminKey, map[string]interface{}{
		"phone": "not-a-phone",
		"name":  "bad",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/instances", adminKey, map[string]interface{}{
		"phone": "5511999887766",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// um corpo completo anterior não pode satisfazer o required de uma
	// requisição seguinte incompleta
	resp = env.request(t, http.MethodPost, "/instances", adminKey, map[string]interface{}{
		"phone": "5511222333444",
		"name":  "complete",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/instances", adminKey, map[string]interface{}{
		"phone": "5511555666777",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendTextConnected(t *testing.T) {
	env := newAPIEnv(t, config.ModeMulti, true)

	apiKey := env.createInstance(t, "5511999887766")
	env.waitForConnected(t, "5511999887766")

	resp := env.request(t, http.MethodPost, "/instances/5511999887766/send/text", apiKey, map[string]interface{}{
		"to":      "5511888777666",
		"message": "hello",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.NotEmpty(t, data["message_id"])

	// payload incompleto cai na validação
	resp = env.request(t, http.MethodPost, "/instances/5511999887766/send/text", apiKey, map[string]interface{}{
		"to": "5511888777666",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendTextNotConnected(t *testing.T) {
	env := newAPIEnv(t, config.ModeMulti, false)

	apiKey := env.createInstance(t, "5511999887766")

	resp := env.request(t, http.MethodPost, "/instances/5511999887766/send/text", apiKey, map[string]interface{}{
		"to":      "5511888777666",
		"message": "hello",
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPluginRoutes(t *testing.T) {
	env := newAPIEnv(t, config.ModeMulti, false)

	apiKey := env.createInstance(t, "5511999887766")

	resp := env.request(t, http.MethodPut, "/instances/5511999887766/plugins/welcome/enable", apiKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodPut, "/instances/5511999887766/plugins/nonexistent/enable", apiKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/instances/5511999887766/plugins", apiKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)

	var welcomeEnabled bool
	for _, entry := range body["data"].([]interface{}) {
		status := entry.(map[string]interface{})
		if status["name"] == "welcome" {
			welcomeEnabled, _ = status["enabled"].(bool)
		}
	}
	assert.True(t, welcomeEnabled)

	// override persistido
	record, err := env.instances.GetByPhone("5511999887766")
	require.NoError(t, err)
	assert.True(t, record.PluginOverrides["welcome"])
}

func TestWebhookCRUD(t *testing.T) {
	env := newAPIEnv(t, config.ModeMulti, false)

	apiKey := env.createInstance(t, "5511999887766")
	base := "/instances/5511999887766/webhooks"

	// evento desconhecido rejeitado
	resp := env.request(t, http.MethodPost, base, apiKey, map[string]interface{}{
		"event": "message.exploded",
		"url":   "http://example.test/hook",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.request(t, http.MethodPost, base, apiKey, map[string]interface{}{
		"event": "message.received",
		"url":   "http://example.test/hook",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	hookID := body["data"].(map[string]interface{})["id"].(string)

	resp = env.request(t, http.MethodGet, base, apiKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Len(t, body["data"].([]interface{}), 1)

	resp = env.request(t, http.MethodPut, base+"/"+hookID, apiKey, map[string]interface{}{
		"enabled": false,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet, base+"/history", apiKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodDelete, base+"/"+hookID, apiKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet, base, apiKey, nil)
	body = decodeBody(t, resp)
	assert.Empty(t, body["data"])
}

func TestGlobalWebhookSurface(t *testing.T) {
	env := newAPIEnv(t, config.ModeMulti, false)

	resp := env.request(t, http.MethodGet, "/webhooks/history", adminKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/webhooks/stats", adminKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// superfície global exige a chave admin
	resp = env.request(t, http.MethodGet, "/webhooks/history", "other", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRetentionCleanupEndpoint(t *testing.T) {
	env := newAPIEnv(t, config.ModeMulti, false)

	resp := env.request(t, http.MethodPost, "/admin/retention/cleanup", adminKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.NotEmpty(t, data["cutoff"])
}

func TestSingleModeHidesManagement(t *testing.T) {
	env := newAPIEnv(t, config.ModeSingle, false)

	resp := env.request(t, http.MethodGet, "/instances", adminKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// a superfície por instância continua exposta
	resp = env.request(t, http.MethodGet, "/instances/5511999887766/ping", adminKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode) // instância inexistente, rota presente
}
