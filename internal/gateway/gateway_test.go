package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hrustic/seedhub/internal/api"
	"github.com/hrustic/seedhub/internal/session"
)

// fakeSessions scripts the SessionService surface.
type fakeSessions struct {
	store     *session.Store
	loginErr  error
	logoutErr error
	profile   *api.UserProfile
}

func (f *fakeSessions) IsAuthenticated() bool { return f.store.IsAuthenticated() }

func (f *fakeSessions) Login(ctx context.Context, identifier, password string) error {
	if f.loginErr != nil {
		return f.loginErr
	}
	f.store.Set(&api.AccessToken{Token: "tok-123"})
	return nil
}

func (f *fakeSessions) Register(ctx context.Context, username, email, password string) error {
	f.store.Set(&api.AccessToken{Token: "tok-123"})
	return nil
}

func (f *fakeSessions) Logout(ctx context.Context) error {
	f.store.Set(nil)
	return f.logoutErr
}

func (f *fakeSessions) CurrentUser(ctx context.Context) (*api.UserProfile, error) {
	if f.profile == nil {
		return nil, session.ErrAnonymous
	}
	return f.profile, nil
}

func newTestGateway(t *testing.T, sessions *fakeSessions, upstream string) *Gateway {
	t.Helper()
	gw, err := New(sessions, sessions.store, upstream, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}
	return gw
}

func TestAPIRequestsAreForwardedUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/repos" {
			t.Errorf("upstream path = %s, want /api/repos", r.URL.Path)
		}
		fmt.Fprint(w, `[{"name":"dataset"}]`)
	}))
	defer upstream.Close()

	sessions := &fakeSessions{store: session.NewStore()}
	gw := newTestGateway(t, sessions, upstream.URL)

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/repos", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "dataset") {
		t.Errorf("body = %q, want the upstream payload", rec.Body.String())
	}
}

func TestSessionStateEndpoint(t *testing.T) {
	sessions := &fakeSessions{
		store:   session.NewStore(),
		profile: &api.UserProfile{Username: "alice"},
	}
	gw := newTestGateway(t, sessions, "https://api.seedhub.dev")

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))

	var state sessionState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatal(err)
	}
	if state.Authenticated {
		t.Error("anonymous gateway reports authenticated")
	}

	sessions.store.Set(&api.AccessToken{Token: "tok-123"})

	rec = httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))

	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatal(err)
	}
	if !state.Authenticated {
		t.Error("authenticated gateway reports anonymous")
	}
	if state.User == nil || state.User.Username != "alice" {
		t.Errorf("state.User = %v, want alice", state.User)
	}
}

func TestLoginEndpointSurfacesServerMessage(t *testing.T) {
	sessions := &fakeSessions{
		store:    session.NewStore(),
		loginErr: &api.Error{Status: http.StatusUnauthorized, Message: "Bad credentials"},
	}
	gw := newTestGateway(t, sessions, "https://api.seedhub.dev")

	body := strings.NewReader(`{"identifier":"alice","password":"wrongpw"}`)
	req := httptest.NewRequest(http.MethodPost, "/session/login", body)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message != "Bad credentials" {
		t.Errorf("message = %q, want the server message verbatim", resp.Message)
	}
}

func TestLoginPageRedirectsAuthenticatedSessions(t *testing.T) {
	sessions := &fakeSessions{store: session.NewStore()}
	sessions.store.Set(&api.AccessToken{Token: "tok-123"})
	gw := newTestGateway(t, sessions, "https://api.seedhub.dev")

	for _, path := range []string{"/login", "/register"} {
		rec := httptest.NewRecorder()
		gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusSeeOther {
			t.Errorf("GET %s status = %d, want redirect", path, rec.Code)
		}
		if rec.Header().Get("Location") != "/" {
			t.Errorf("GET %s Location = %q, want /", path, rec.Header().Get("Location"))
		}
	}
}

func TestReservedSegmentsAreNotOwners(t *testing.T) {
	sessions := &fakeSessions{store: session.NewStore()}
	gw := newTestGateway(t, sessions, "https://api.seedhub.dev")

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alice", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /alice status = %d, want 200", rec.Code)
	}

	// /help resolves to the static page, never to an owner called "help"
	rec = httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/help", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /help status = %d, want the static page", rec.Code)
	}
}

func TestSessionEventsStreamChanges(t *testing.T) {
	sessions := &fakeSessions{store: session.NewStore()}
	gw := newTestGateway(t, sessions, "https://api.seedhub.dev")

	server := httptest.NewServer(gw)
	defer server.Close()

	resp, err := http.Get(server.URL + "/session/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/event-stream") {
		t.Fatalf("Content-Type = %q, want text/event-stream", got)
	}

	events := make(chan string, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data: ") {
				events <- strings.TrimPrefix(line, "data: ")
			}
		}
	}()

	expect := func(wantAuthenticated bool) {
		t.Helper()
		select {
		case data := <-events:
			var state sessionState
			if err := json.Unmarshal([]byte(data), &state); err != nil {
				t.Fatalf("bad event payload %q: %v", data, err)
			}
			if state.Authenticated != wantAuthenticated {
				t.Fatalf("event authenticated = %v, want %v", state.Authenticated, wantAuthenticated)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no event received")
		}
	}

	// Initial snapshot, then a login and a logout
	expect(false)
	sessions.store.Set(&api.AccessToken{Token: "tok-123"})
	expect(true)
	sessions.store.Set(nil)
	expect(false)
}
