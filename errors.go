package commandbroker

import "errors"

// Operational errors. Business outcomes (timeout, validation failure) are
// never represented this way — they are encoded in the returned Command
// or Event per spec §7. Point lookups report "not found" as ok=false
// with a nil error, never as one of these.
var (
	// ErrAlreadyStarted is returned by components with a single Start
	// method when Start is called more than once.
	ErrAlreadyStarted = errors.New("commandbroker: already started")

	// ErrShutdown is returned by operations attempted after the hub or
	// commander has been shut down, including shutdown triggered by a
	// LogConsumer reporting an unrecoverable error.
	ErrShutdown = errors.New("commandbroker: shut down")
)
