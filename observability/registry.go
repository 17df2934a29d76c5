package observability

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Names of the observers available without registration.
const (
	ObserverNoOp = "noop"
	ObserverSlog = "slog"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Observer{
		ObserverNoOp: NoOpObserver{},
		ObserverSlog: NewSlogObserver(slog.Default()),
	}
)

// GetObserver returns the observer registered under name. Configuration
// selects observers by these names.
func GetObserver(name string) (Observer, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	obs, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown observer: %s", name)
	}
	return obs, nil
}

// RegisterObserver adds observer under name, replacing any previous one.
func RegisterObserver(name string, observer Observer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = observer
}

// ObserverNames lists the registered names in sorted order.
func ObserverNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
