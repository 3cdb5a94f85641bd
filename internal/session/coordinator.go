package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hrustic/seedhub/internal/api"
)

// ErrAnonymous is returned by operations that need an authenticated
// session when there is none.
var ErrAnonymous = errors.New("not logged in")

// API is the remote surface the Coordinator drives. *api.Client
// implements it; tests substitute fakes.
type API interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.AccessToken, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.AccessToken, error)
	Refresh(ctx context.Context) (*api.AccessToken, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*api.UserProfile, error)
	DeleteMe(ctx context.Context) error
}

// Compile-time check that the real client satisfies API.
var _ API = (*api.Client)(nil)

// Coordinator orchestrates the authentication operations. Every
// operation follows the same contract: on success the new token is
// persisted through the Bridge, on failure local session state is
// cleared before the error is returned, so state never lags behind a
// known failure.
type Coordinator struct {
	client API
	store  *Store
	bridge *Bridge

	mu      sync.Mutex
	profile *api.UserProfile
}

// NewCoordinator creates a Coordinator over the given client, store, and
// bridge. The cached profile is invalidated on every token change,
// including changes arriving from other processes.
func NewCoordinator(client API, store *Store, bridge *Bridge) (*Coordinator, error) {
	if client == nil {
		return nil, fmt.Errorf("missing API client")
	}
	if store == nil {
		return nil, fmt.Errorf("missing store")
	}
	if bridge == nil {
		return nil, fmt.Errorf("missing bridge")
	}

	c := &Coordinator{
		client: client,
		store:  store,
		bridge: bridge,
	}

	// A profile is only ever valid for the token it was fetched under.
	store.Subscribe(func(*api.AccessToken) {
		c.mu.Lock()
		c.profile = nil
		c.mu.Unlock()
	})

	return c, nil
}

// IsAuthenticated reports whether a session token is present.
func (c *Coordinator) IsAuthenticated() bool {
	return c.store.IsAuthenticated()
}

// Login authenticates with a username or email plus password. The
// identifier is sent as an email when it contains '@', matching the
// server's own fallback resolution.
func (c *Coordinator) Login(ctx context.Context, identifier, password string) error {
	req := api.LoginRequest{Password: password}
	if strings.Contains(identifier, "@") {
		req.Email = identifier
	} else {
		req.Username = identifier
	}

	token, err := c.client.Login(ctx, req)
	if err != nil {
		c.clearLocal(ctx)
		return err
	}
	return c.establish(ctx, token)
}

// Register creates an account and starts a session for it.
func (c *Coordinator) Register(ctx context.Context, username, email, password string) error {
	token, err := c.client.Register(ctx, api.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		c.clearLocal(ctx)
		return err
	}
	return c.establish(ctx, token)
}

// Refresh exchanges the refresh credential for a new access token. A
// failed refresh is terminal for the session: local state is cleared
// before the error is returned.
func (c *Coordinator) Refresh(ctx context.Context) error {
	token, err := c.client.Refresh(ctx)
	if err != nil {
		c.clearLocal(ctx)
		return err
	}
	if err := c.bridge.Set(ctx, token); err != nil {
		return err
	}
	return nil
}

// Logout invalidates the remote session. Local state is cleared even
// when the remote call fails; ending the local session is the user's
// intent regardless.
func (c *Coordinator) Logout(ctx context.Context) error {
	err := c.client.Logout(ctx)
	c.clearLocal(ctx)
	return err
}

// CurrentUser returns the profile of the authenticated user, fetching
// and caching it on first use. Returns ErrAnonymous without a session.
func (c *Coordinator) CurrentUser(ctx context.Context) (*api.UserProfile, error) {
	c.mu.Lock()
	cached := c.profile
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	if !c.IsAuthenticated() {
		return nil, ErrAnonymous
	}

	profile, err := c.client.Me(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.profile = profile
	c.mu.Unlock()
	return profile, nil
}

// DeleteAccount deletes the remote account and ends the local session.
func (c *Coordinator) DeleteAccount(ctx context.Context) error {
	if !c.IsAuthenticated() {
		return ErrAnonymous
	}
	if err := c.client.DeleteMe(ctx); err != nil {
		return err
	}
	c.clearLocal(ctx)
	return nil
}

// establish persists the token and warms the profile cache. A failed
// profile fetch does not fail the login; the profile is refetched
// lazily.
func (c *Coordinator) establish(ctx context.Context, token *api.AccessToken) error {
	if err := c.bridge.Set(ctx, token); err != nil {
		return err
	}

	if _, err := c.CurrentUser(ctx); err != nil {
		slog.DebugContext(ctx, "profile fetch after authentication failed", "error", err)
	}
	return nil
}

// clearLocal drops token and profile. Storage failures during clearing
// are logged, not returned: the caller's original error matters more.
func (c *Coordinator) clearLocal(ctx context.Context) {
	if err := c.bridge.Clear(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to clear session storage", "error", err)
		// Memory still clears so in-process state stays consistent.
		c.store.Set(nil)
	}
}
