package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hrustic/seedhub/internal/api"
	"github.com/hrustic/seedhub/internal/session"
)

// SessionService is the slice of the session coordinator the gateway
// consumes.
type SessionService interface {
	AuthState
	Login(ctx context.Context, identifier, password string) error
	Register(ctx context.Context, username, email, password string) error
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*api.UserProfile, error)
}

// Option configures a Gateway.
type Option func(*config)

type config struct {
	assetsDir string
}

// WithAssets serves the web UI from the given directory instead of the
// built-in placeholder shell.
func WithAssets(dir string) Option {
	return func(c *config) {
		c.assetsDir = dir
	}
}

// Gateway is the local HTTP server: it forwards /api traffic to the
// SeedHub upstream with the session's bearer token attached, exposes the
// session state to the UI, and applies the navigation guards to the page
// routes.
type Gateway struct {
	router   chi.Router
	sessions SessionService
	store    *session.Store
	server   *http.Server
}

// Compile-time check that Gateway implements http.Handler.
var _ http.Handler = (*Gateway)(nil)

// New creates a Gateway proxying to baseURL. The transport performs the
// authenticated round trips; it is the same one the CLI's API client
// uses.
func New(sessions SessionService, store *session.Store, baseURL string, transport http.RoundTripper, opts ...Option) (*Gateway, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	upstream, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("upstream URL %q must be absolute", baseURL)
	}

	g := &Gateway{
		sessions: sessions,
		store:    store,
	}

	apiProxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = upstream.Scheme
			pr.Out.URL.Host = upstream.Host
			pr.Out.Host = upstream.Host
		},
		// Flush only when the upstream flushes; data endpoints may stream.
		FlushInterval: -1,
		Transport:     transport,
	}

	pages := newPageHandler(cfg.assetsDir)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logging(slog.Default()))
	r.Use(Recovery)

	r.Handle("/api/*", apiProxy)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", g.handleSessionState)
		r.Get("/events", g.handleSessionEvents)
		r.Post("/login", g.handleLogin)
		r.Post("/register", g.handleRegister)
		r.Post("/logout", g.handleLogout)
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthGuard(sessions))
		r.Get("/login", pages)
		r.Get("/register", pages)
	})

	r.Get("/", pages)
	r.Get("/about", pages)
	r.Get("/help", pages)
	r.Get("/contact", pages)

	r.Group(func(r chi.Router) {
		r.Use(UsernameGuard)
		r.Get("/{owner}", pages)
		r.Get("/{owner}/{repo}", pages)
	})

	g.router = r
	return g, nil
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.router.ServeHTTP(w, r)
}

// handleSessionState reports the derived session state plus the cached
// profile when one is available.
func (g *Gateway) handleSessionState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state := sessionState{Authenticated: g.sessions.IsAuthenticated()}
	if state.Authenticated {
		profile, err := g.sessions.CurrentUser(ctx)
		if err != nil {
			slog.DebugContext(ctx, "profile unavailable for session state", "error", err)
		} else {
			state.User = profile
		}
	}

	writeJSON(ctx, w, state, http.StatusOK)
}

// sessionState is the payload of GET /session and of every event on
// GET /session/events.
type sessionState struct {
	Authenticated bool             `json:"authenticated"`
	User          *api.UserProfile `json:"user,omitempty"`
}

// handleSessionEvents streams session-state changes as server-sent
// events. Pages on the login and registration views listen here and
// navigate home when the session changes underneath them, e.g. when
// another seedhub process logs out.
func (g *Gateway) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sse, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	// Observers run synchronously inside Store.Set and must not block;
	// coalescing into a one-slot channel is fine since every event is a
	// cue to re-read the state, not the state itself.
	changes := make(chan struct{}, 1)
	cancel := g.store.Subscribe(func(*api.AccessToken) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	defer cancel()

	if err := sse.writeData(sessionState{Authenticated: g.sessions.IsAuthenticated()}); err != nil {
		return
	}

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			if err := sse.writeData(sessionState{Authenticated: g.sessions.IsAuthenticated()}); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := sse.writeComment("keep-alive"); err != nil {
				return
			}
		}
	}
}

type loginPayload struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload loginPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeJSONError(ctx, w, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Identifier == "" || payload.Password == "" {
		writeJSONError(ctx, w, "identifier and password are required", http.StatusBadRequest)
		return
	}

	if err := g.sessions.Login(ctx, payload.Identifier, payload.Password); err != nil {
		writeSessionError(ctx, w, err)
		return
	}
	g.handleSessionState(w, r)
}

type registerPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload registerPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeJSONError(ctx, w, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Username == "" || payload.Email == "" || payload.Password == "" {
		writeJSONError(ctx, w, "username, email, and password are required", http.StatusBadRequest)
		return
	}

	if err := g.sessions.Register(ctx, payload.Username, payload.Email, payload.Password); err != nil {
		writeSessionError(ctx, w, err)
		return
	}
	g.handleSessionState(w, r)
}

func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := g.sessions.Logout(ctx); err != nil {
		// The local session is gone either way; the remote failure is
		// still worth reporting.
		writeSessionError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, sessionState{Authenticated: false}, http.StatusOK)
}

// writeSessionError maps coordinator failures onto the response: API
// errors keep their status and server wording, everything else is a bad
// gateway.
func writeSessionError(ctx context.Context, w http.ResponseWriter, err error) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		writeJSONError(ctx, w, apiErr.Message, apiErr.Status)
		return
	}
	slog.ErrorContext(ctx, "session operation failed", "error", err)
	writeJSONError(ctx, w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
}

// Start starts the HTTP server in the background and returns
// immediately: a channel for runtime errors plus any startup error.
// The caller is responsible for Shutdown.
func (g *Gateway) Start(ctx context.Context, address string) (<-chan error, error) {
	// Listen synchronously so port-in-use surfaces here, not later
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	g.server = &http.Server{
		Handler:     g,
		ReadTimeout: 30 * time.Second, // bound slow clients
		// No WriteTimeout: /session/events streams for the lifetime of
		// the page.
		IdleTimeout: 90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := g.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	if err := g.server.Shutdown(ctx); err != nil {
		_ = g.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
