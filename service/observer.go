package service

import "github.com/tailored-agentic-units/relay/observability"

// Service event types.
const (
	EventStart    observability.EventType = "service.start"
	EventShutdown observability.EventType = "service.shutdown"
)
