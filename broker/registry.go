package broker

import (
	"fmt"
	"sort"
	"sync"

	"github.com/miladsoleymani/eventgate/core"
)

// Factory creates a Producer from the given Config.
type Factory func(cfg Config) (core.Producer, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a named producer factory. Plugins call this from init().
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// Create instantiates a producer by name using the registered factory.
func Create(name string, cfg Config) (core.Producer, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("eventgate: unknown broker %q (registered: %v)", name, Names())
	}
	return f(cfg)
}

// Names lists the registered broker names.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
