package observability

import "context"

// NoOpObserver drops every event. It is registered as "noop" for
// deployments that only want plain log output.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(context.Context, Event) {}
