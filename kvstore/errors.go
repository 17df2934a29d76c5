package kvstore

import "errors"

// Sentinel errors for database operations.
var (
	ErrUnknownTable = errors.New("unknown table")
	ErrMigrate      = errors.New("schema migration failed")
	ErrDecode       = errors.New("stored value has unexpected type")
)
