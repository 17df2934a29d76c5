package session

import "errors"

var (
	// ErrMissingDependency is returned by New when a required collaborator
	// is nil.
	ErrMissingDependency = errors.New("missing session dependency")

	// ErrUnknownEndpoint is returned for endpoint names absent from Config.
	ErrUnknownEndpoint = errors.New("unknown endpoint")

	// ErrRequest wraps network-level failures talking to the website.
	ErrRequest = errors.New("website request failed")

	// ErrStatus is returned when the website answers with a non-2xx status.
	ErrStatus = errors.New("unexpected website status")

	ErrInvalidProfile = errors.New("invalid profile")
)
