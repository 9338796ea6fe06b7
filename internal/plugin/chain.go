package plugin

import (
	"context"
	"sync"

	"github.com/felipe/zapgate/internal/logger"
)

// Chain é a cadeia de plugins de uma instância. Os overrides persistidos
// decidem quais handlers rodam; um plugin sem override fica desabilitado.
type Chain struct {
	mu        sync.RWMutex
	phone     string
	registry  *Registry
	overrides map[string]bool
	logger    *logger.ComponentLogger
}

// NewChain cria a cadeia de uma instância com overrides iniciais
func NewChain(phone string, registry *Registry, overrides map[string]bool) *Chain {
	c := &Chain{
		phone:     phone,
		registry:  registry,
		overrides: make(map[string]bool),
		logger:    logger.ForComponent("plugin_chain").WithInstance(phone),
	}
	for name, enabled := range overrides {
		c.overrides[name] = enabled
	}
	return c
}

// Enabled verifica se um plugin está habilitado para esta instância
func (c *Chain) Enabled(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	enabled, ok := c.overrides[name]
	return ok && enabled
}

// Enable habilita um plugin registrado; nome desconhecido é rejeitado
func (c *Chain) Enable(name string) bool {
	if _, ok := c.registry.Get(name); !ok {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.overrides[name] = true
	c.logger.Info().Str("plugin", name).Msg("Plugin enabled")
	return true
}

// Disable desabilita um plugin registrado; nome desconhecido é rejeitado
func (c *Chain) Disable(name string) bool {
	if _, ok := c.registry.Get(name); !ok {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.overrides[name] = false
	c.logger.Info().Str("plugin", name).Msg("Plugin disabled")
	return true
}

// SetOverrides aplica um mapa parcial de overrides; entradas com nomes não
// registrados são ignoradas e logadas
func (c *Chain) SetOverrides(overrides map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, enabled := range overrides {
		if _, ok := c.registry.Get(name); !ok {
			c.logger.Warn().Str("plugin", name).Msg("Ignoring override for unknown plugin")
			continue
		}
		c.overrides[name] = enabled
	}
}

// SyncFromStore substitui os overrides pelos persistidos, logando o diff
func (c *Chain) SyncFromStore(stored map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, enabled := range stored {
		if current, ok := c.overrides[name]; !ok || current != enabled {
			c.logger.Info().Str("plugin", name).Bool("enabled", enabled).Msg("Plugin override changed")
		}
	}
	for name := range c.overrides {
		if _, ok := stored[name]; !ok {
			c.logger.Info().Str("plugin", name).Msg("Plugin override removed")
		}
	}

	c.overrides = make(map[string]bool)
	for name, enabled := range stored {
		c.overrides[name] = enabled
	}
}

// Overrides retorna uma cópia do mapa de overrides
func (c *Chain) Overrides() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]bool, len(c.overrides))
	for name, enabled := range c.overrides {
		out[name] = enabled
	}
	return out
}

// PluginStatus descreve um plugin e seu estado nesta instância
type PluginStatus struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// Status lista todos os plugins registrados com o estado efetivo
func (c *Chain) Status() []PluginStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var statuses []PluginStatus
	for _, p := range c.registry.All() {
		enabled, ok := c.overrides[p.Name()]
		statuses = append(statuses, PluginStatus{
			Name:        p.Name(),
			Description: p.Description(),
			Enabled:     ok && enabled,
		})
	}
	return statuses
}

// Dispatch entrega o evento a todos os plugins habilitados em paralelo.
// Falhas e pânicos de um handler são logados e nunca propagam; a entrega
// só retorna depois que todos terminam.
func (c *Chain) Dispatch(ctx context.Context, event *Event) {
	c.mu.RLock()
	var enabled []Plugin
	for _, p := range c.registry.All() {
		if on, ok := c.overrides[p.Name()]; ok && on {
			enabled = append(enabled, p)
		}
	}
	c.mu.RUnlock()

	if len(enabled) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, p := range enabled {
		wg.Add(1)
		go func(p Plugin) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error().Interface("panic", r).Str("plugin", p.Name()).Msg("Plugin panicked")
				}
			}()

			if err := p.Handle(ctx, event); err != nil {
				c.logger.Error().Err(err).Str("plugin", p.Name()).Msg("Plugin failed")
			}
		}(p)
	}
	wg.Wait()
}
