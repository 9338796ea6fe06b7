package plugin

import (
	"sort"
	"sync"

	"github.com/felipe/zapgate/internal/logger"
)

// Factory constrói um plugin; falhas são logadas e o plugin é pulado
type Factory func() (Plugin, error)

// Registry mantém o conjunto fixo de plugins construídos no boot
type Registry struct {
	mu        sync.RWMutex
	plugins   map[string]Plugin
	factories []Factory
	logger    *logger.ComponentLogger
}

// NewRegistry cria um registro e instancia os plugins das fábricas
func NewRegistry(factories ...Factory) *Registry {
	r := &Registry{
		plugins:   make(map[string]Plugin),
		factories: factories,
		logger:    logger.ForComponent("plugin_registry"),
	}
	r.build()
	return r
}

// DefaultFactories retorna as fábricas dos plugins embutidos
func DefaultFactories() []Factory {
	return []Factory{
		func() (Plugin, error) { return NewWelcomePlugin(), nil },
	}
}

func (r *Registry) build() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins = make(map[string]Plugin)
	for _, factory := range r.factories {
		p, err := factory()
		if err != nil {
			r.logger.Error().Err(err).Msg("Failed to build plugin, skipping")
			continue
		}
		if _, exists := r.plugins[p.Name()]; exists {
			r.logger.Warn().Str("plugin", p.Name()).Msg("Duplicate plugin name, keeping first")
			continue
		}
		r.plugins[p.Name()] = p
	}
}

// Reload descarta os plugins atuais e reconstrói a partir das fábricas
func (r *Registry) Reload() {
	r.logger.Info().Msg("Reloading plugin registry")
	r.build()
}

// Get retorna um plugin pelo nome
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[name]
	return p, ok
}

// Names retorna os nomes registrados em ordem estável
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All retorna os plugins registrados
func (r *Registry) All() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugins := make([]Plugin, 0, len(r.plugins))
	for _, name := range r.namesLocked() {
		plugins = append(plugins, r.plugins[name])
	}
	return plugins
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
