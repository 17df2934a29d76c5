package ipc

import (
	"fmt"
	"slices"
	"sync"
)

// Targets maps call names to ReturnCalls. The loopback server resolves
// incoming requests against it.
type Targets struct {
	entries map[string]*ReturnCall
	mu      sync.RWMutex
}

func NewTargets() *Targets {
	return &Targets{entries: make(map[string]*ReturnCall)}
}

// Register adds rc under its name.
// Returns ErrAlreadyExists if the name is taken; use Replace to overwrite.
func (t *Targets) Register(rc *ReturnCall) error {
	if rc.name == "" {
		return ErrEmptyName
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[rc.name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, rc.name)
	}
	t.entries[rc.name] = rc
	return nil
}

// Replace overwrites an existing registration.
func (t *Targets) Replace(rc *ReturnCall) error {
	if rc.name == "" {
		return ErrEmptyName
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[rc.name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, rc.name)
	}
	t.entries[rc.name] = rc
	return nil
}

func (t *Targets) Unregister(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, name)
}

func (t *Targets) Get(name string) (*ReturnCall, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rc, ok := t.entries[name]
	return rc, ok
}

// Names returns the registered names in sorted order.
func (t *Targets) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
