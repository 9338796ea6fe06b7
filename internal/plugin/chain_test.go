package plugin

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlugin struct {
	name    string
	calls   int64
	failErr error
	doPanic bool
}

func (p *stubPlugin) Name() string         { return p.name }
func (p *stubPlugin) Description() string  { return "stub" }
func (p *stubPlugin) DefaultEnabled() bool { return false }

func (p *stubPlugin) Handle(ctx context.Context, event *Event) error {
	atomic.AddInt64(&p.calls, 1)
	if p.doPanic {
		panic("stub panic")
	}
	return p.failErr
}

func (p *stubPlugin) callCount() int64 {
	return atomic.LoadInt64(&p.calls)
}

func newStubRegistry(plugins ...Plugin) *Registry {
	factories := make([]Factory, 0, len(plugins))
	for _, p := range plugins {
		p := p
		factories = append(factories, func() (Plugin, error) { return p, nil })
	}
	return NewRegistry(factories...)
}

func TestChainDefaultsDisabled(t *testing.T) {
	stub := &stubPlugin{name: "echo"}
	chain := NewChain("5511999887766", newStubRegistry(stub), nil)

	assert.False(t, chain.Enabled("echo"))

	chain.Dispatch(context.Background(), &Event{Phone: "5511999887766", Kind: KindMessage})

	assert.Equal(t, int64(0), stub.callCount())
}

func TestChainEnableDisable(t *testing.T) {
	stub := &stubPlugin{name: "echo"}
	chain := NewChain("5511999887766", newStubRegistry(stub), nil)

	require.True(t, chain.Enable("echo"))
	assert.True(t, chain.Enabled("echo"))

	chain.Dispatch(context.Background(), &Event{Kind: KindMessage})
	assert.Equal(t, int64(1), stub.callCount())

	require.True(t, chain.Disable("echo"))
	chain.Dispatch(context.Background(), &Event{Kind: KindMessage})
	assert.Equal(t, int64(1), stub.callCount())
}

func TestChainRejectsUnknownPlugin(t *testing.T) {
	chain := NewChain("5511999887766", newStubRegistry(), nil)

	assert.False(t, chain.Enable("missing"))
	assert.False(t, chain.Disable("missing"))
}

func TestChainSetOverridesIgnoresUnknown(t *testing.T) {
	stub := &stubPlugin{name: "echo"}
	chain := NewChain("5511999887766", newStubRegistry(stub), nil)

	chain.SetOverrides(map[string]bool{"echo": true, "missing": true})

	overrides := chain.Overrides()
	assert.Equal(t, map[string]bool{"echo": true}, overrides)
}

func TestChainSyncFromStoreReplaces(t *testing.T) {
	stub := &stubPlugin{name: "echo"}
	chain := NewChain("5511999887766", newStubRegistry(stub), map[string]bool{"echo": true, "stale": true})

	chain.SyncFromStore(map[string]bool{"echo": false})

	assert.Equal(t, map[string]bool{"echo": false}, chain.Overrides())
}

func TestChainContainsFailures(t *testing.T) {
	failing := &stubPlugin{name: "failing", failErr: errors.New("boom")}
	panicking := &stubPlugin{name: "panicking", doPanic: true}
	healthy := &stubPlugin{name: "healthy"}

	chain := NewChain("5511999887766", newStubRegistry(failing, panicking, healthy), map[string]bool{
		"failing":   true,
		"panicking": true,
		"healthy":   true,
	})

	// não deve panicar nem deixar de chamar o plugin saudável
	chain.Dispatch(context.Background(), &Event{Kind: KindMessage})

	assert.Equal(t, int64(1), failing.callCount())
	assert.Equal(t, int64(1), panicking.callCount())
	assert.Equal(t, int64(1), healthy.callCount())
}

func TestChainStatus(t *testing.T) {
	a := &stubPlugin{name: "alpha"}
	b := &stubPlugin{name: "beta"}
	chain := NewChain("5511999887766", newStubRegistry(a, b), map[string]bool{"beta": true})

	statuses := chain.Status()

	require.Len(t, statuses, 2)
	assert.Equal(t, "alpha", statuses[0].Name)
	assert.False(t, statuses[0].Enabled)
	assert.Equal(t, "beta", statuses[1].Name)
	assert.True(t, statuses[1].Enabled)
}

func TestRegistryReload(t *testing.T) {
	built := 0
	registry := NewRegistry(func() (Plugin, error) {
		built++
		return &stubPlugin{name: "echo"}, nil
	})

	require.Equal(t, 1, built)

	registry.Reload()
	assert.Equal(t, 2, built)

	_, ok := registry.Get("echo")
	assert.True(t, ok)
}

func TestRegistrySkipsFailingFactory(t *testing.T) {
	registry := NewRegistry(
		func() (Plugin, error) { return nil, errors.New("broken") },
		func() (Plugin, error) { return &stubPlugin{name: "echo"}, nil },
	)

	assert.Equal(t, []string{"echo"}, registry.Names())
}
