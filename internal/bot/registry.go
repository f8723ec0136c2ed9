package bot

import (
	"slices"
	"sync"
)

// Registry collects the modules that make up a running bot.
type Registry struct {
	mu      sync.RWMutex
	modules []Module
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a module. Safe for concurrent use.
func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules = append(r.modules, m)
}

// Modules returns the registered modules in registration order. The result
// is a copy; mutating it does not affect the registry.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.modules)
}

// globalRegistry backs package-level registration, letting modules attach
// themselves from init functions via blank imports in main.
var globalRegistry = NewRegistry()

// Register adds a module to the process-wide registry.
func Register(m Module) {
	globalRegistry.Register(m)
}

// Modules lists every module in the process-wide registry.
func Modules() []Module {
	return globalRegistry.Modules()
}

// ResetGlobalRegistry swaps in an empty process-wide registry so tests can
// isolate registration state.
func ResetGlobalRegistry() {
	globalRegistry = NewRegistry()
}
