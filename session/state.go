package session

// State is the authentication state of the session.
type State int32

const (
	LoggedOut State = iota
	LoggingIn
	LoggedIn
	LoggingOut
)

func (s State) String() string {
	switch s {
	case LoggingIn:
		return "logging_in"
	case LoggedIn:
		return "logged_in"
	case LoggingOut:
		return "logging_out"
	default:
		return "logged_out"
	}
}

// Transient reports whether a login or logout is in progress.
func (s State) Transient() bool {
	return s == LoggingIn || s == LoggingOut
}
