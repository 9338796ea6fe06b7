package instance

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipe/zapgate/internal/config"
	"github.com/felipe/zapgate/internal/db/models"
	"github.com/felipe/zapgate/internal/db/repositories"
	"github.com/felipe/zapgate/internal/plugin"
	"github.com/felipe/zapgate/internal/transport"
)

// fakeTransport implementa transport.Transport com eventos injetados
type fakeTransport struct {
	mu          sync.Mutex
	events      chan transport.Event
	userID      string
	connectErr  error
	closed      bool
	emitOnClose bool
	sent        []fakeSend
	groupMeta   *transport.GroupMetadata
	groupErr    error
	groupCalls  int
}

type fakeSend struct {
	jid  string
	text string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events: make(chan transport.Event, 32),
		userID: "5511999887766@s.whatsapp.net",
	}
}

func (f *fakeTransport) Connect(ctx context.Context) error { return f.connectErr }

func (f *fakeTransport) Events() <-chan transport.Event { return f.events }

func (f *fakeTransport) SendText(ctx context.Context, jid, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, fakeSend{jid: jid, text: text})
	return "upstream-msg-1", nil
}

func (f *fakeTransport) SendMedia(ctx context.Context, jid string, media transport.Media) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, fakeSend{jid: jid, text: media.Caption})
	return "upstream-media-1", nil
}

func (f *fakeTransport) QueryGroupMetadata(ctx context.Context, jid string) (*transport.GroupMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupCalls++
	if f.groupErr != nil {
		return nil, f.groupErr
	}
	return f.groupMeta, nil
}

func (f *fakeTransport) UserID() string { return f.userID }

func (f *fakeTransport) Logout(ctx context.Context) error { return nil }

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	if f.emitOnClose {
		f.events <- transport.ConnectionEvent{State: transport.StateClose}
	}
}

func (f *fakeTransport) emit(evt transport.Event) {
	f.events <- evt
}

// recordingDispatcher captura emissões de eventos
type recordingDispatcher struct {
	mu     sync.Mutex
	events []dispatched
}

type dispatched struct {
	instanceID string
	event      string
	data       map[string]interface{}
}

func (d *recordingDispatcher) Dispatch(instanceID, event string, data interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	payload, _ := data.(map[string]interface{})
	d.events = append(d.events, dispatched{instanceID: instanceID, event: event, data: payload})
}

func (d *recordingDispatcher) byEvent(event string) []dispatched {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []dispatched
	for _, e := range d.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (d *recordingDispatcher) subStatuses() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, e := range d.events {
		if e.event == models.EventConnectionUpdate {
			if status, ok := e.data["status"].(string); ok {
				out = append(out, status)
			}
		}
	}
	return out
}

type testEnv struct {
	cfg        *config.Config
	instances  *repositories.MockInstanceRepository
	messages   *repositories.MockMessageRepository
	logs       *repositories.MockInstanceLogRepository
	webhooks   *repositories.MockWebhookRepository
	dispatcher *recordingDispatcher
	registry   *plugin.Registry
	transports []*fakeTransport
	mu         sync.Mutex
	nextSetup  func(*fakeTransport)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Auth: config.AuthConfig{AuthRoot: t.TempDir()},
		WhatsApp: config.WhatsAppConfig{
			Timeout:              time.Second,
			MaxReconnectAttempts: 5,
			ReconnectDelay:       20 * time.Millisecond,
			RestartQuiescence:    20 * time.Millisecond,
			QRCodeTimeout:        time.Second,
			GroupQueryTimeout:    time.Second,
			TransientStreamCodes: []string{"515"},
		},
	}

	return &testEnv{
		cfg:        cfg,
		instances:  repositories.NewMockInstanceRepository(),
		messages:   repositories.NewMockMessageRepository(),
		logs:       repositories.NewMockInstanceLogRepository(),
		webhooks:   repositories.NewMockWebhookRepository(),
		dispatcher: &recordingDispatcher{},
		registry:   plugin.NewRegistry(plugin.DefaultFactories()...),
	}
}

func (env *testEnv) factory(phone string, jid *string) (transport.Transport, error) {
	env.mu.Lock()
	defer env.mu.Unlock()

	ft := newFakeTransport()
	if env.nextSetup != nil {
		env.nextSetup(ft)
	}
	env.transports = append(env.transports, ft)
	return ft, nil
}

func (env *testEnv) deps() Deps {
	return Deps{
		Config:     env.cfg,
		Factory:    env.factory,
		Classifier: transport.NewClassifier(env.cfg.WhatsApp.TransientStreamCodes),
		Registry:   env.registry,
		Dispatcher: env.dispatcher,
		Instances:  env.instances,
		Messages:   env.messages,
		Logs:       env.logs,
	}
}

func (env *testEnv) currentTransport(t *testing.T) *fakeTransport {
	t.Helper()
	env.mu.Lock()
	defer env.mu.Unlock()
	require.NotEmpty(t, env.transports)
	return env.transports[len(env.transports)-1]
}

func (env *testEnv) transportCount() int {
	env.mu.Lock()
	defer env.mu.Unlock()
	return len(env.transports)
}

func newTestInstance(t *testing.T, env *testEnv) *Instance {
	t.Helper()

	record := &models.Instance{
		Phone:           "5511999887766",
		Name:            "test",
		APIKey:          "key",
		Status:          models.InstanceStatusPending,
		PluginOverrides: make(models.PluginOverrides),
	}
	require.NoError(t, env.instances.Create(record))

	inst := NewInstance(record, env.deps())
	t.Cleanup(inst.Close)
	return inst
}

func waitFor(t *testing.T, condition func() bool, msg string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if condition() {
			return
		}
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func connect(t *testing.T, env *testEnv, inst *Instance) *fakeTransport {
	t.Helper()
	require.NoError(t, inst.Start())
	ft := env.currentTransport(t)
	ft.emit(transport.ConnectionEvent{State: transport.StateOpen})
	waitFor(t, func() bool { return inst.Snapshot().Status == models.InstanceStatusActive }, "instance never became active")
	return ft
}

func TestQRThenOpenFlow(t *testing.T) {
	env := newTestEnv(t)
	inst := newTestInstance(t, env)

	require.NoError(t, inst.Start())
	assert.Equal(t, models.InstanceStatusConnecting, inst.Snapshot().Status)

	ft := env.currentTransport(t)
	ft.emit(transport.QREvent{Code: "qr-payload"})

	waitFor(t, func() bool { return inst.Snapshot().Status == models.InstanceStatusQRReady }, "instance never reached qr_ready")

	snapshot := inst.Snapshot()
	require.NotNil(t, snapshot.QRCode)
	assert.Contains(t, *snapshot.QRCode, "data:image/png;base64,")

	ft.emit(transport.ConnectionEvent{State: transport.StateOpen})

	waitFor(t, func() bool { return inst.Snapshot().Status == models.InstanceStatusActive }, "instance never became active")

	snapshot = inst.Snapshot()
	assert.True(t, snapshot.Connected)
	assert.Nil(t, snapshot.QRCode)
	assert.Equal(t, 0, snapshot.ReconnectAttempts)

	statuses := env.dispatcher.subStatuses()
	assert.Contains(t, statuses, "qr_ready")
	assert.Contains(t, statuses, "connected")
}

func TestBoundedReconnection(t *testing.T) {
	env := newTestEnv(t)
	inst := newTestInstance(t, env)

	credsDir := credentialsDir(env.cfg, inst.Phone())
	require.NoError(t, os.MkdirAll(credsDir, 0o700))

	require.NoError(t, inst.Start())

	// cada transporte fecha sem logout logo depois do start
	for cycle := 0; cycle < 6; cycle++ {
		count := env.transportCount()
		env.currentTransport(t).emit(transport.ConnectionEvent{State: transport.StateClose})
		if cycle < 5 {
			waitFor(t, func() bool { return env.transportCount() > count }, "reconnect attempt never started")
		}
	}

	waitFor(t, func() bool { return inst.Snapshot().Status == models.InstanceStatusLoggedOut }, "instance never reached logged_out")

	// não deve haver sexta tentativa
	assert.Equal(t, 6, env.transportCount())

	// registro persiste como inactive e credenciais saem do disco
	record, err := env.instances.GetByPhone(inst.Phone())
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusInactive, record.Status)

	_, statErr := os.Stat(credsDir)
	assert.True(t, os.IsNotExist(statErr))

	statuses := env.dispatcher.subStatuses()
	assert.Contains(t, statuses, "reconnecting")
	assert.Contains(t, statuses, "logged_out")
}

func TestLogoutCloseGoesStraightToLoggedOut(t *testing.T) {
	env := newTestEnv(t)
	inst := newTestInstance(t, env)

	connect(t, env, inst).emit(transport.ConnectionEvent{State: transport.StateClose, IsLogout: true})

	waitFor(t, func() bool { return inst.Snapshot().Status == models.InstanceStatusLoggedOut }, "instance never reached logged_out")
	assert.Equal(t, 1, env.transportCount())
}

func TestManualRestartPreservesCredentials(t *testing.T) {
	env := newTestEnv(t)
	inst := newTestInstance(t, env)

	credsDir := credentialsDir(env.cfg, inst.Phone())
	require.NoError(t, os.MkdirAll(credsDir, 0o700))

	ft := connect(t, env, inst)
	ft.emitOnClose = true

	done := make(chan error, 1)
	go func() { done <- inst.Restart() }()

	require.NoError(t, <-done)

	env.currentTransport(t).emit(transport.ConnectionEvent{State: transport.StateOpen})
	waitFor(t, func() bool { return inst.Snapshot().Status == models.InstanceStatusActive }, "instance never became active after restart")

	// nunca passa por logged_out e as credenciais permanecem
	assert.NotContains(t, env.dispatcher.subStatuses(), "logged_out")
	_, statErr := os.Stat(credsDir)
	assert.NoError(t, statErr)
}

func TestManualRestartUpdateAlwaysObservable(t *testing.T) {
	env := newTestEnv(t)
	inst := newTestInstance(t, env)

	// o transporte padrão engole eventos depois do Close; a transição de
	// restart manual precisa chegar aos webhooks mesmo assim
	connect(t, env, inst)

	require.NoError(t, inst.Restart())

	env.currentTransport(t).emit(transport.ConnectionEvent{State: transport.StateOpen})
	waitFor(t, func() bool { return inst.Snapshot().Status == models.InstanceStatusActive }, "instance never became active after restart")

	assert.Contains(t, env.dispatcher.subStatuses(), "manual_restart")
}

func TestTransientCodeIgnoresManualRestartFlag(t *testing.T) {
	env := newTestEnv(t)
	inst := newTestInstance(t, env)

	connect(t, env, inst)

	inst.mu.Lock()
	inst.manualRestart = true
	inst.mu.Unlock()

	count := env.transportCount()
	env.currentTransport(t).emit(transport.ConnectionEvent{State: transport.StateClose, Code: "515"})

	// código transiente força reconexão mesmo com flag de restart manual
	waitFor(t, func() bool { return env.transportCount() > count }, "transient close never triggered reconnect")
	assert.Contains(t, env.dispatcher.subStatuses(), "reconnecting")
	assert.NotContains(t, env.dispatcher.subStatuses(), "manual_restart")
}

func TestInboundPipeline(t *testing.T) {
	env := newTestEnv(t)
	inst := newTestInstance(t, env)

	ft := connect(t, env, inst)

	ft.emit(transport.MessageEvent{
		ID:        "abc123",
		Sender:    "5511888777666@s.whatsapp.net",
		Chat:      "5511888777666@s.whatsapp.net",
		PushName:  "Alice",
		Text:      "hello",
		Type:      "text",
		Timestamp: time.Now(),
		Raw:       map[string]interface{}{"conversation": "hello"},
	})

	waitFor(t, func() bool {
		return len(env.dispatcher.byEvent(models.EventMessageReceived)) > 0
	}, "message.received never dispatched")

	messages, _, err := env.messages.GetByInstance(inst.ID(), nil)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, string(models.MessageDirectionIncoming), messages[0].Direction)
	assert.Equal(t, string(models.MessageStatusReceived), messages[0].Status)
	assert.Equal(t, "abc123", messages[0].Content["upstream_id"])
}

func TestInboundSkipsSelfOriginated(t *testing.T) {
	env := newTestEnv(t)
	inst := newTestInstance(t, env)

	ft := connect(t, env, inst)
	ft.emit(transport.MessageEvent{ID: "self1", FromSelf: true, Text: "me"})

	time.Sleep(100 * time.Millisecond)

	messages, _, err := env.messages.GetByInstance(inst.ID(), nil)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Empty(t, env.dispatcher.byEvent(models.EventMessageReceived))
}

func TestSendTextSuccess(t *testing.T) {
	env := newTestEnv(t)
	inst := newTestInstance(t, env)

	ft := connect(t, env, inst)

	id, err := inst.SendText(context.Background(), "+55 11 88877-7666", "hi there")
	require.NoError(t, err)
	assert.Equal(t, "upstream-msg-1", id)

	require.Len(t, ft.sent, 1)
	assert.Equal(t, "5511888777666@s.whatsapp.net", ft.sent[0].jid)

	messages, _, err := env.messages.GetByInstance(inst.ID(), nil)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, string(models.MessageDirectionOutgoing), messages[0].Direction)
	assert.Equal(t, string(models.MessageStatusSent), messages[0].Status)

	assert.Len(t, env.dispatcher.byEvent(models.EventMessageSent), 1)
}

func TestSendRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	inst := newTestInstance(t, env)

	connect(t, env, inst)

	_, err := inst.SendText(context.Background(), "", "hi")
	assert.ErrorIs(t, err, ErrBadInput)

	_, err = inst.SendText(context.Background(), "5511888777666", "")
	assert.ErrorIs(t, err, ErrBadInput)

	messages, _, repoErr := env.messages.GetByInstance(inst.ID(), nil)
	require.NoError(t, repoErr)
	assert.Empty(t, messages)
}

func TestSendRefusedWhenNotActive(t *testing.T) {
	env := newTestEnv(t)
	inst := newTestInstance(t, env)

	require.NoError(t, inst.Start())

	_, err := inst.SendText(context.Background(), "5511888777666", "hi")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestGroupMetadataMemoized(t *testing.T) {
	env := newTestEnv(t)
	inst := newTestInstance(t, env)

	ft := connect(t, env, inst)
	ft.groupMeta = &transport.GroupMetadata{JID: "123456@g.us", Name: "Friends"}

	first, err := inst.GroupMetadata(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, "Friends", first.Name)

	second, err := inst.GroupMetadata(context.Background(), "123456@g.us")
	require.NoError(t, err)
	assert.Equal(t, "Friends", second.Name)

	assert.Equal(t, 1, ft.groupCalls)
}

func TestGroupMetadataFailureNotCached(t *testing.T) {
	env := newTestEnv(t)
	inst := newTestInstance(t, env)

	ft := connect(t, env, inst)
	ft.groupErr = assert.AnError

	_, err := inst.GroupMetadata(context.Background(), "123456")
	require.Error(t, err)

	ft.mu.Lock()
	ft.groupErr = nil
	ft.groupMeta = &transport.GroupMetadata{JID: "123456@g.us", Name: "Friends"}
	ft.mu.Unlock()

	meta, err := inst.GroupMetadata(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, "Friends", meta.Name)
	assert.Equal(t, 2, ft.groupCalls)
}
