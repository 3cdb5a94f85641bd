package tokenstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when no session record is stored.
// Callers treat it as "anonymous", not as a failure.
var ErrNotFound = errors.New("no session record stored")

// Store reads and writes the serialized session record.
//
// Logging in requires writable storage.
type Store interface {
	// Read returns the stored record bytes. Returns ErrNotFound when
	// nothing is stored.
	Read(ctx context.Context) ([]byte, error)

	// Write persists the record, replacing any previous one. Returns an
	// error if the backend is read-only (e.g. environment variables).
	Write(ctx context.Context, record []byte) error

	// Clear removes the stored record. Clearing an empty store is not an
	// error.
	Clear(ctx context.Context) error
}

// Watcher is implemented by backends that can report external changes to
// the stored record, made by other processes sharing the same storage.
type Watcher interface {
	// Watch returns a channel that receives a signal after every external
	// change. The channel is closed when ctx is done. Signals may be
	// coalesced; receivers re-read the store rather than trusting counts.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
