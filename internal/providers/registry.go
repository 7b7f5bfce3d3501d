package providers

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory crea una instancia de provider.
type Factory func(cfg ProviderConfig) (Provider, error)

// Registry mantiene factories por nombre y una instancia por provider.
// Las credenciales del tenant viajan en cada llamada, así que la instancia
// no depende del app.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	configs   map[string]ProviderConfig
	cache     map[string]Provider // key: nombre del provider
}

// NewRegistry crea un registry vacío.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		configs:   make(map[string]ProviderConfig),
		cache:     make(map[string]Provider),
	}
}

// Register habilita un provider con su configuración (llamar al arrancar).
func (r *Registry) Register(name string, factory Factory, cfg ProviderConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name = strings.ToLower(strings.TrimSpace(name))
	r.factories[name] = factory
	r.configs[name] = cfg
	delete(r.cache, name)
}

// Get devuelve el provider registrado. ok=false si no existe.
func (r *Registry) Get(name string) (Provider, bool, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	if p, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return p, true, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// double-check con write lock
	if p, ok := r.cache[name]; ok {
		return p, true, nil
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, false, nil
	}
	p, err := factory(r.configs[name])
	if err != nil {
		return nil, true, fmt.Errorf("create provider %s: %w", name, err)
	}
	r.cache[name] = p
	return p, true, nil
}

// Names lista los providers registrados, ordenados.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
