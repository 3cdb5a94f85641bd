package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hrustic/seedhub/internal/api"
	"github.com/hrustic/seedhub/internal/tokenstore"
)

// Bridge connects the in-memory Store to a durable tokenstore backend.
//
// Two write paths exist and they are deliberately distinct:
//   - Set/Clear: the internal path. Persists the record, then updates the
//     Store. Used by the Coordinator only.
//   - Watch: the external path. Consumes change notifications from other
//     processes, re-reads storage, and updates the Store without writing
//     it back. Re-persisting here would notify the other processes again
//     and loop forever.
type Bridge struct {
	store   *Store
	backend tokenstore.Store
}

// NewBridge creates a Bridge between the given Store and backend.
func NewBridge(store *Store, backend tokenstore.Store) (*Bridge, error) {
	if store == nil {
		return nil, fmt.Errorf("missing store")
	}
	if backend == nil {
		return nil, fmt.Errorf("missing storage backend")
	}

	return &Bridge{
		store:   store,
		backend: backend,
	}, nil
}

// Load populates the Store from durable storage. An absent or
// undecodable record means anonymous; decode failures are never
// surfaced, only logged.
func (b *Bridge) Load(ctx context.Context) error {
	b.store.Set(b.readBack(ctx))
	return ctx.Err()
}

// Set persists the token and then updates the Store, so a crash between
// the two steps leaves durable storage ahead of memory, never behind.
// A nil token clears storage.
func (b *Bridge) Set(ctx context.Context, token *api.AccessToken) error {
	if token == nil {
		if err := b.backend.Clear(ctx); err != nil {
			return fmt.Errorf("clearing session storage: %w", err)
		}
		b.store.Set(nil)
		return nil
	}

	record, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding session record: %w", err)
	}
	if err := b.backend.Write(ctx, record); err != nil {
		return fmt.Errorf("writing session storage: %w", err)
	}
	b.store.Set(token)
	return nil
}

// Clear removes the token from storage and memory.
func (b *Bridge) Clear(ctx context.Context) error {
	return b.Set(ctx, nil)
}

// Watch blocks consuming change notifications from the backend until ctx
// is done. Each notification re-reads storage and feeds the result into
// the Store; storage is never written from this path. Backends without
// notification support (keyring, env) make Watch a no-op that waits for
// ctx.
func (b *Bridge) Watch(ctx context.Context) error {
	watcher, ok := b.backend.(tokenstore.Watcher)
	if !ok {
		<-ctx.Done()
		return ctx.Err()
	}

	signals, err := watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watching session storage: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-signals:
			if !ok {
				return ctx.Err()
			}
			token := b.readBack(ctx)
			slog.DebugContext(ctx, "session storage changed externally", "authenticated", token != nil)
			b.store.Set(token)
		}
	}
}

// readBack reads and decodes the stored record, failing closed: anything
// unreadable or undecodable is treated as "no session".
func (b *Bridge) readBack(ctx context.Context) *api.AccessToken {
	record, err := b.backend.Read(ctx)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNotFound) {
			slog.DebugContext(ctx, "unreadable session record, treating as anonymous", "error", err)
		}
		return nil
	}

	token := &api.AccessToken{}
	if err := json.Unmarshal(record, token); err != nil {
		slog.DebugContext(ctx, "undecodable session record, treating as anonymous", "error", err)
		return nil
	}
	return token
}
