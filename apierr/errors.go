// Package apierr defines the error kinds that cross the IPC boundary.
//
// A callee failure is reduced to a {kind, message} envelope before it is
// transmitted; the caller re-expands the envelope through the static registry
// in this package so that errors.Is and errors.As keep working on both sides.
package apierr

import (
	"errors"
	"fmt"
)

// Kind names an error class on the wire.
type Kind string

const (
	BackendNotReady                     Kind = "BackendNotReady"
	NotConnected                        Kind = "NotConnected"
	NotLoggedInError                    Kind = "NotLoggedInError"
	MissingCredentialsError             Kind = "MissingCredentialsError"
	LoginFailedError                    Kind = "LoginFailedError"
	LoginValidateError                  Kind = "LoginValidateError"
	LoginValidateErrorIncorrectPassword Kind = "LoginValidateErrorIncorrectPassword"
	InvalidMembershipStatusError        Kind = "InvalidMembershipStatusError"
	InvalidMembershipStatusAnonymous    Kind = "InvalidMembershipStatusAnonymous"
	CacheMiss                           Kind = "CacheMiss"
	WebsiteParsingError                 Kind = "WebsiteParsingError"
	SlotNotFound                        Kind = "SlotNotFound"
	MissingArgument                     Kind = "MissingArgument"

	// Generic is the kind reported for failures that carry no kind of their own.
	Generic Kind = "Exception"
)

// Error is a failure tagged with a wire kind.
type Error struct {
	Kind    Kind
	Message string

	registered bool
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so the package sentinels can be
// used with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Registered reports whether the kind was resolved through the registry.
// Errors rebuilt from an unknown wire kind are not registered.
func (e *Error) Registered() bool {
	return e.registered
}

// Sentinels for errors.Is matching.
var (
	ErrBackendNotReady                  = &Error{Kind: BackendNotReady, registered: true}
	ErrNotConnected                     = &Error{Kind: NotConnected, registered: true}
	ErrNotLoggedIn                      = &Error{Kind: NotLoggedInError, registered: true}
	ErrMissingCredentials               = &Error{Kind: MissingCredentialsError, registered: true}
	ErrLoginFailed                      = &Error{Kind: LoginFailedError, registered: true}
	ErrLoginValidate                    = &Error{Kind: LoginValidateError, registered: true}
	ErrLoginValidateIncorrectPassword   = &Error{Kind: LoginValidateErrorIncorrectPassword, registered: true}
	ErrInvalidMembershipStatus          = &Error{Kind: InvalidMembershipStatusError, registered: true}
	ErrInvalidMembershipStatusAnonymous = &Error{Kind: InvalidMembershipStatusAnonymous, registered: true}
	ErrCacheMiss                        = &Error{Kind: CacheMiss, registered: true}
	ErrWebsiteParsing                   = &Error{Kind: WebsiteParsingError, registered: true}
	ErrSlotNotFound                     = &Error{Kind: SlotNotFound, registered: true}
	ErrMissingArgument                  = &Error{Kind: MissingArgument, registered: true}
)

// New returns an error of the given kind. Kinds outside the registry produce
// an unregistered error that still carries the kind name.
func New(kind Kind, message string) *Error {
	if ctor, ok := Lookup(kind); ok {
		return ctor(message)
	}
	return &Error{Kind: kind, Message: message}
}

// Newf formats a message and returns an error of the given kind.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// KindOf returns the wire kind of err, or Generic when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Generic
}

// MessageOf returns the message that travels with err in an envelope.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
