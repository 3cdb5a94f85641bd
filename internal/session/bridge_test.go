package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hrustic/seedhub/internal/api"
	"github.com/hrustic/seedhub/internal/tokenstore"
)

// fakeBackend is an in-memory tokenstore with external-change signaling,
// standing in for the file store.
type fakeBackend struct {
	mu      sync.Mutex
	record  []byte
	writes  int
	clears  int
	signals chan struct{}
}

var (
	_ tokenstore.Store   = (*fakeBackend)(nil)
	_ tokenstore.Watcher = (*fakeBackend)(nil)
)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{signals: make(chan struct{}, 1)}
}

func (f *fakeBackend) Read(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record == nil {
		return nil, tokenstore.ErrNotFound
	}
	return append([]byte(nil), f.record...), nil
}

func (f *fakeBackend) Write(ctx context.Context, record []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record = append([]byte(nil), record...)
	f.writes++
	return nil
}

func (f *fakeBackend) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record = nil
	f.clears++
	return nil
}

func (f *fakeBackend) Watch(ctx context.Context) (<-chan struct{}, error) {
	return f.signals, nil
}

// externalChange simulates another process replacing the stored record.
func (f *fakeBackend) externalChange(record []byte) {
	f.mu.Lock()
	f.record = record
	f.mu.Unlock()
	f.signals <- struct{}{}
}

func (f *fakeBackend) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes + f.clears
}

func mustToken(t *testing.T, record string) *api.AccessToken {
	t.Helper()
	token := &api.AccessToken{}
	if err := token.UnmarshalJSON([]byte(record)); err != nil {
		t.Fatalf("bad token record: %v", err)
	}
	return token
}

func TestBridgeRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()

	store := NewStore()
	bridge, err := NewBridge(store, backend)
	if err != nil {
		t.Fatal(err)
	}

	token := mustToken(t, `{"accessToken":"tok-123","tokenType":"Bearer"}`)
	if err := bridge.Set(ctx, token); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := store.Get(); !got.Equal(token) {
		t.Fatalf("store holds %v, want %v", got, token)
	}

	// Simulated reload: a fresh store fed from the same storage
	reloaded := NewStore()
	bridge2, err := NewBridge(reloaded, backend)
	if err != nil {
		t.Fatal(err)
	}
	if err := bridge2.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reloaded.Get(); !got.Equal(token) {
		t.Fatalf("after reload store holds %v, want %v", got, token)
	}
}

func TestBridgeLoadFailsClosed(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.record = []byte("{not json")

	store := NewStore()
	bridge, err := NewBridge(store, backend)
	if err != nil {
		t.Fatal(err)
	}

	if err := bridge.Load(ctx); err != nil {
		t.Fatalf("Load returned error for corrupt record: %v", err)
	}
	if store.IsAuthenticated() {
		t.Fatal("corrupt record produced an authenticated session")
	}
}

func TestBridgeClear(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()

	store := NewStore()
	bridge, err := NewBridge(store, backend)
	if err != nil {
		t.Fatal(err)
	}

	if err := bridge.Set(ctx, mustToken(t, `{"accessToken":"tok-123"}`)); err != nil {
		t.Fatal(err)
	}
	if err := bridge.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if store.IsAuthenticated() {
		t.Fatal("store authenticated after clear")
	}
	if _, err := backend.Read(ctx); err == nil {
		t.Fatal("backend still holds a record after clear")
	}
}

func TestBridgeExternalChangeDoesNotRePersist(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := newFakeBackend()
	store := NewStore()
	bridge, err := NewBridge(store, backend)
	if err != nil {
		t.Fatal(err)
	}

	applied := make(chan *api.AccessToken, 4)
	store.Subscribe(func(token *api.AccessToken) {
		applied <- token
	})

	done := make(chan error, 1)
	go func() { done <- bridge.Watch(ctx) }()

	// Another process logs in
	backend.externalChange([]byte(`{"accessToken":"tok-from-elsewhere"}`))

	select {
	case token := <-applied:
		if token == nil || token.Token != "tok-from-elsewhere" {
			t.Fatalf("applied token = %v, want tok-from-elsewhere", token)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("external change never reached the store")
	}

	if got := backend.writeCount(); got != 0 {
		t.Fatalf("bridge wrote storage %d times while consuming an external change", got)
	}

	// Another process logs out
	backend.externalChange(nil)

	select {
	case token := <-applied:
		if token != nil {
			t.Fatalf("applied token = %v, want nil after external logout", token)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("external logout never reached the store")
	}

	if got := backend.writeCount(); got != 0 {
		t.Fatalf("bridge wrote storage %d times, want 0", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop on context cancellation")
	}
}
