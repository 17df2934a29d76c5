package memory

import "errors"

// Errors of the cookie and cache stores. Store errors wrap them with the
// offending key.
var (
	// ErrKeyNotFound is a miss: the cache service answers it with a
	// CacheMiss envelope and the frontend fetches from the website.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidKey rejects empty keys and keys that would leave the store
	// directory once mapped to a file name.
	ErrInvalidKey = errors.New("invalid key")

	ErrLoadFailed = errors.New("load failed")
	ErrSaveFailed = errors.New("save failed")

	// ErrFlushFailed reports pending cache writes that did not reach the
	// store. They stay pending for the next Flush.
	ErrFlushFailed = errors.New("cache flush failed")

	// ErrClearFailed reports a cache wipe that left entries in the store.
	ErrClearFailed = errors.New("cache clear failed")
)

// IsMiss reports whether err means the key is simply not stored.
func IsMiss(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}
