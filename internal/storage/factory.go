package storage

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor builds a Provider for one mode. Implementations are wired in
// by the application at startup via Register, which keeps this package free
// of dependencies on the concrete backends.
type Constructor func() (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[Mode]Constructor)
)

// Register associates a constructor with a mode. Registering the same mode
// twice replaces the previous constructor.
func Register(mode Mode, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[mode] = c
}

// RegisteredModes returns the modes with a registered constructor, sorted.
func RegisteredModes() []Mode {
	registryMu.RLock()
	defer registryMu.RUnlock()
	modes := make([]Mode, 0, len(registry))
	for m := range registry {
		modes = append(modes, m)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return modes
}

// New creates a provider for the given mode. An unknown mode falls back to
// the local backend rather than failing, so a corrupt mode preference never
// locks the user out of their data.
func New(mode Mode) (Provider, error) {
	registryMu.RLock()
	c, ok := registry[mode]
	if !ok {
		c = registry[ModeLocal]
	}
	registryMu.RUnlock()

	if c == nil {
		return nil, fmt.Errorf("no registered constructor for storage mode %q (available: %v)", mode, RegisteredModes())
	}
	return c()
}
