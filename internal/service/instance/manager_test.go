package instance

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipe/zapgate/internal/db/models"
	"github.com/felipe/zapgate/internal/plugin"
	"github.com/felipe/zapgate/internal/transport"
)

func newTestManager(t *testing.T, env *testEnv) *Manager {
	t.Helper()
	m := NewManager(env.deps(), env.webhooks)
	t.Cleanup(m.Shutdown)
	return m
}

func TestManagerCreate(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env)

	inst, err := m.Create("+55 (11) 99988-7766", "primary", nil)
	require.NoError(t, err)
	assert.Equal(t, "5511999887766", inst.Phone())

	record, err := env.instances.GetByPhone("5511999887766")
	require.NoError(t, err)
	assert.NotEmpty(t, record.APIKey)

	// diretório de credenciais preparado
	info, statErr := os.Stat(credentialsDir(env.cfg, "5511999887766"))
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}

func TestManagerCreateDuplicate(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env)

	_, err := m.Create("5511999887766", "first", nil)
	require.NoError(t, err)

	_, err = m.Create("55 11 99988 7766", "second", nil)
	assert.ErrorIs(t, err, ErrInstanceAlreadyExists)
}

func TestManagerCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env)

	_, err := m.Create("", "name", nil)
	assert.ErrorIs(t, err, ErrBadInput)

	_, err = m.Create("5511999887766", "", nil)
	assert.ErrorIs(t, err, ErrBadInput)
}

func TestManagerGetNotFound(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env)

	_, err := m.Get("5511999887766")
	assert.ErrorIs(t, err, ErrInstanceNotFound)

	_, err = m.GetView("5511999887766")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestManagerGetViewDegraded(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env)

	// registro existe no store mas não está supervisionado em memória
	record := &models.Instance{
		Phone:  "5511999887766",
		Name:   "orphan",
		APIKey: "key",
		Status: models.InstanceStatusActive,
	}
	require.NoError(t, env.instances.Create(record))

	view, err := m.GetView("5511999887766")
	require.NoError(t, err)
	assert.False(t, view.Connected)
	assert.Equal(t, models.InstanceStatusInactive, view.Status)
}

func TestManagerInitializeRestoresStartable(t *testing.T) {
	env := newTestEnv(t)

	for _, seed := range []struct {
		phone  string
		status models.InstanceStatus
	}{
		{"5511000000001", models.InstanceStatusActive},
		{"5511000000002", models.InstanceStatusConnecting},
		{"5511000000003", models.InstanceStatusInactive},
	} {
		require.NoError(t, env.instances.Create(&models.Instance{
			Phone:  seed.phone,
			Name:   seed.phone,
			APIKey: seed.phone,
			Status: seed.status,
		}))
	}

	m := newTestManager(t, env)
	require.NoError(t, m.Initialize())

	// as três entram no registro, só as startáveis abrem transporte
	assert.Len(t, m.List(), 3)
	assert.Equal(t, 2, env.transportCount())

	// idempotente
	require.NoError(t, m.Initialize())
	assert.Equal(t, 2, env.transportCount())
}

func TestManagerDeleteKeepRecord(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env)

	inst, err := m.Create("5511999887766", "primary", nil)
	require.NoError(t, err)

	require.NoError(t, m.Delete(inst.Phone(), true))

	_, err = m.Get(inst.Phone())
	assert.ErrorIs(t, err, ErrInstanceNotFound)

	record, err := env.instances.GetByPhone(inst.Phone())
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusInactive, record.Status)

	_, statErr := os.Stat(credentialsDir(env.cfg, inst.Phone()))
	assert.True(t, os.IsNotExist(statErr))
}

func TestManagerDeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env)

	inst, err := m.Create("5511999887766", "primary", nil)
	require.NoError(t, err)

	connect(t, env, inst)
	_, err = inst.SendText(context.Background(), "5511888777666", "hi")
	require.NoError(t, err)

	require.NoError(t, env.webhooks.Create(&models.Webhook{
		InstanceID: inst.ID(),
		Event:      models.EventMessageReceived,
		URL:        "http://example.test/hook",
		Enabled:    true,
	}))

	require.NoError(t, m.Delete(inst.Phone(), false))

	_, err = env.instances.GetByPhone(inst.Phone())
	assert.Error(t, err)

	messages, _, err := env.messages.GetByInstance(inst.ID(), nil)
	require.NoError(t, err)
	assert.Empty(t, messages)

	hooks, err := env.webhooks.GetByInstance(inst.ID())
	require.NoError(t, err)
	assert.Empty(t, hooks)
}

func TestManagerDeleteUnknown(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env)

	err := m.Delete("5511999887766", false)
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestManagerSendMapsNotFound(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env)

	_, err := m.SendText(context.Background(), "5511999887766", "5511888777666", "hi")
	assert.ErrorIs(t, err, ErrInstanceNotFound)

	_, err = m.SendMedia(context.Background(), "5511999887766", "5511888777666", transport.Media{Type: "image", Data: []byte{1}})
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestManagerPluginOverrides(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env)

	inst, err := m.Create("5511999887766", "primary", nil)
	require.NoError(t, err)

	require.NoError(t, m.SetPluginOverrides(inst.Phone(), map[string]bool{plugin.WelcomePluginName: true}))

	record, err := env.instances.GetByPhone(inst.Phone())
	require.NoError(t, err)
	assert.True(t, record.PluginOverrides[plugin.WelcomePluginName])

	assert.True(t, inst.Chain().Enabled(plugin.WelcomePluginName))
}

func TestManagerStatus(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env)

	require.NoError(t, m.Initialize())

	inst, err := m.Create("5511999887766", "primary", nil)
	require.NoError(t, err)
	connect(t, env, inst)

	status := m.Status()
	assert.True(t, status.Initialized)
	assert.Equal(t, 1, status.Total)
	assert.Equal(t, 1, status.Connected)
}
