package observability

import "context"

// MultiObserver forwards each event to every member in order. Nested
// MultiObservers are flattened on construction.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver combines observers, dropping nil and NoOpObserver
// members.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	m := &MultiObserver{}
	for _, obs := range observers {
		switch o := obs.(type) {
		case nil, NoOpObserver:
		case *MultiObserver:
			m.observers = append(m.observers, o.observers...)
		default:
			m.observers = append(m.observers, o)
		}
	}
	return m
}

// Len reports the number of members.
func (m *MultiObserver) Len() int {
	return len(m.observers)
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}
