package apierr

// Constructor builds a registered error from an envelope message.
type Constructor func(message string) *Error

func registered(kind Kind) Constructor {
	return func(message string) *Error {
		return &Error{Kind: kind, Message: message, registered: true}
	}
}

// registry is fixed at compile time. Kinds not listed here are rebuilt as
// unregistered errors carrying the literal kind string.
var registry = map[Kind]Constructor{
	BackendNotReady:                     registered(BackendNotReady),
	NotConnected:                        registered(NotConnected),
	NotLoggedInError:                    registered(NotLoggedInError),
	MissingCredentialsError:             registered(MissingCredentialsError),
	LoginFailedError:                    registered(LoginFailedError),
	LoginValidateError:                  registered(LoginValidateError),
	LoginValidateErrorIncorrectPassword: registered(LoginValidateErrorIncorrectPassword),
	InvalidMembershipStatusError:        registered(InvalidMembershipStatusError),
	InvalidMembershipStatusAnonymous:    registered(InvalidMembershipStatusAnonymous),
	CacheMiss:                           registered(CacheMiss),
	WebsiteParsingError:                 registered(WebsiteParsingError),
	SlotNotFound:                        registered(SlotNotFound),
	MissingArgument:                     registered(MissingArgument),
}

// Lookup returns the constructor for a registered kind.
func Lookup(kind Kind) (Constructor, bool) {
	ctor, ok := registry[kind]
	return ctor, ok
}

// FromEnvelope rebuilds the error described by an {error, message} envelope.
// An unknown kind yields an unregistered error whose Kind is the literal
// string received.
func FromEnvelope(kind, message string) error {
	if ctor, ok := Lookup(Kind(kind)); ok {
		return ctor(message)
	}
	return &Error{Kind: Kind(kind), Message: message}
}

// IsExpected reports whether failures of kind are routine outcomes that must
// not be logged as errors.
func IsExpected(kind Kind) bool {
	return kind == CacheMiss
}
