package session

import "github.com/tailored-agentic-units/relay/observability"

// Session event types.
const (
	EventPrefetchStart    observability.EventType = "session.prefetch.start"
	EventPrefetchComplete observability.EventType = "session.prefetch.complete"
	EventLoginStart       observability.EventType = "session.login.start"
	EventLoginComplete    observability.EventType = "session.login.complete"
	EventLoginFailed      observability.EventType = "session.login.failed"
	EventLogoutStart      observability.EventType = "session.logout.start"
	EventLogoutComplete   observability.EventType = "session.logout.complete"
	EventNotLoggedIn      observability.EventType = "session.verify.failed"
	EventProfileActivated observability.EventType = "session.profile.activated"
)
