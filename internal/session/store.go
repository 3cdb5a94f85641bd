package session

import (
	"sync"

	"github.com/hrustic/seedhub/internal/api"
)

// Observer is notified synchronously whenever the current token changes.
// A nil token means the session became anonymous.
type Observer func(token *api.AccessToken)

// Store holds the current access token in memory and fans out changes to
// registered observers. It is the single in-process source of truth for
// "is there a session"; durable storage is the Bridge's concern.
type Store struct {
	mu        sync.Mutex
	token     *api.AccessToken
	observers map[int]Observer
	nextID    int
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		observers: make(map[int]Observer),
	}
}

// Get returns the current token, or nil when anonymous.
func (s *Store) Get() *api.AccessToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// IsAuthenticated reports whether a token is present.
func (s *Store) IsAuthenticated() bool {
	return s.Get() != nil
}

// Set replaces the current token and notifies observers before returning.
// Only the Bridge writes here; everything else observes.
func (s *Store) Set(token *api.AccessToken) {
	s.mu.Lock()
	s.token = token
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	// Notify outside the lock so observers may read the store.
	for _, fn := range observers {
		fn(token)
	}
}

// Subscribe registers an observer and returns its cancel function.
// The observer is not called for the state at subscription time.
func (s *Store) Subscribe(fn Observer) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}
