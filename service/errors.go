package service

import "errors"

var (
	// ErrStarted is returned by Start on a service that is already running.
	ErrStarted = errors.New("service already started")
	// ErrClosed is returned by Start after Shutdown.
	ErrClosed = errors.New("service shut down")
)
