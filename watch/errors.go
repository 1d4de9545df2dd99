package watch

import "errors"

var (
	// ErrNotInitialized indicates a notification to a registry that was never
	// created or has been closed.
	ErrNotInitialized = errors.New("watch: not initialized")

	// ErrAlreadyInitialized indicates Init on a default instance that is live.
	ErrAlreadyInitialized = errors.New("watch: already initialized")

	// ErrPoolExhausted indicates that the record pool was full and the event
	// was not tracked.
	ErrPoolExhausted = errors.New("watch: memory pool exhausted")

	// ErrUntrackedFree indicates a free of a pointer with no live record.
	ErrUntrackedFree = errors.New("watch: pointer not in hash")
)
