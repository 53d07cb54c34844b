package tracker

import (
	"fmt"
	"sort"
	"sync"

	"taskdeck/internal/config"
)

// Factory builds a tracker from the resolved configuration.
type Factory func(cfg *config.Config) (Tracker, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a backend factory under its lowercase name. Called from
// backend init() functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New builds the tracker selected by the configuration.
func New(cfg *config.Config) (Tracker, error) {
	registryMu.RLock()
	factory := registry[string(cfg.Backend)]
	registryMu.RUnlock()

	if factory == nil {
		return nil, fmt.Errorf("unknown tracker backend %q (available: %v)", cfg.Backend, registered())
	}
	return factory(cfg)
}

func registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
