package session

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/hrustic/seedhub/internal/api"
)

// fakeAPI scripts the remote authentication API.
type fakeAPI struct {
	loginToken    *api.AccessToken
	loginErr      error
	registerToken *api.AccessToken
	registerErr   error
	refreshToken  *api.AccessToken
	refreshErr    error
	logoutErr     error
	profile       *api.UserProfile
	profileErr    error

	refreshCalls int
	logoutCalls  int
	meCalls      int
}

var _ API = (*fakeAPI)(nil)

func (f *fakeAPI) Login(ctx context.Context, req api.LoginRequest) (*api.AccessToken, error) {
	return f.loginToken, f.loginErr
}

func (f *fakeAPI) Register(ctx context.Context, req api.RegisterRequest) (*api.AccessToken, error) {
	return f.registerToken, f.registerErr
}

func (f *fakeAPI) Refresh(ctx context.Context) (*api.AccessToken, error) {
	f.refreshCalls++
	return f.refreshToken, f.refreshErr
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeAPI) Me(ctx context.Context) (*api.UserProfile, error) {
	f.meCalls++
	return f.profile, f.profileErr
}

func (f *fakeAPI) DeleteMe(ctx context.Context) error {
	return nil
}

func newTestCoordinator(t *testing.T, client API) (*Coordinator, *Store) {
	t.Helper()

	store := NewStore()
	bridge, err := NewBridge(store, newFakeBackend())
	if err != nil {
		t.Fatal(err)
	}
	coordinator, err := NewCoordinator(client, store, bridge)
	if err != nil {
		t.Fatal(err)
	}
	return coordinator, store
}

func TestLoginSuccess(t *testing.T) {
	client := &fakeAPI{
		loginToken: mustToken(t, `{"accessToken":"tok-123"}`),
		profile:    &api.UserProfile{Username: "alice"},
	}
	coordinator, store := newTestCoordinator(t, client)

	if err := coordinator.Login(context.Background(), "alice", "correctpw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if got := store.Get(); got == nil || got.Token != "tok-123" {
		t.Fatalf("store holds %v, want tok-123", got)
	}
	if !coordinator.IsAuthenticated() {
		t.Fatal("not authenticated after successful login")
	}

	profile, err := coordinator.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if profile.Username != "alice" {
		t.Errorf("profile.Username = %q, want alice", profile.Username)
	}
	if client.meCalls != 1 {
		t.Errorf("profile fetched %d times, want 1 (cached after login)", client.meCalls)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	client := &fakeAPI{
		loginErr: &api.Error{Status: http.StatusUnauthorized, Message: "Bad credentials"},
	}
	coordinator, store := newTestCoordinator(t, client)

	err := coordinator.Login(context.Background(), "alice", "wrongpw")
	if err == nil {
		t.Fatal("Login succeeded with bad credentials")
	}
	if err.Error() != "Bad credentials" {
		t.Errorf("error = %q, want the server message verbatim", err.Error())
	}
	if store.IsAuthenticated() {
		t.Fatal("authenticated after failed login")
	}
}

func TestRegisterConflictSurfacedVerbatim(t *testing.T) {
	client := &fakeAPI{
		registerErr: &api.Error{Status: http.StatusConflict, Message: "User 'admin' already exists."},
	}
	coordinator, store := newTestCoordinator(t, client)

	err := coordinator.Register(context.Background(), "admin", "admin@example.com", "hunter22pw")
	if err == nil {
		t.Fatal("Register succeeded for duplicate user")
	}
	if err.Error() != "User 'admin' already exists." {
		t.Errorf("error = %q, want the server message verbatim", err.Error())
	}
	if !api.IsConflict(err) {
		t.Error("conflict error not classified as conflict")
	}
	if store.IsAuthenticated() {
		t.Fatal("authenticated after failed registration")
	}
}

func TestRefreshReplacesToken(t *testing.T) {
	client := &fakeAPI{
		loginToken:   mustToken(t, `{"accessToken":"tok-123"}`),
		refreshToken: mustToken(t, `{"accessToken":"tok-456"}`),
	}
	coordinator, store := newTestCoordinator(t, client)

	if err := coordinator.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatal(err)
	}
	if err := coordinator.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if got := store.Get(); got == nil || got.Token != "tok-456" {
		t.Fatalf("store holds %v, want tok-456", got)
	}
}

func TestRefreshFailureClearsSession(t *testing.T) {
	client := &fakeAPI{
		loginToken: mustToken(t, `{"accessToken":"tok-123"}`),
		profile:    &api.UserProfile{Username: "alice"},
		refreshErr: &api.Error{Status: http.StatusUnauthorized, Message: "Refresh token expired."},
	}
	coordinator, store := newTestCoordinator(t, client)

	if err := coordinator.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatal(err)
	}

	err := coordinator.Refresh(context.Background())
	if err == nil {
		t.Fatal("Refresh succeeded with expired credential")
	}

	if coordinator.IsAuthenticated() {
		t.Fatal("authenticated after failed refresh")
	}
	if store.Get() != nil {
		t.Fatal("store still holds a token after failed refresh")
	}
	if _, err := coordinator.CurrentUser(context.Background()); !errors.Is(err, ErrAnonymous) {
		t.Fatalf("CurrentUser error = %v, want ErrAnonymous", err)
	}
}

func TestLogoutClearsLocallyEvenWhenRemoteFails(t *testing.T) {
	client := &fakeAPI{
		loginToken: mustToken(t, `{"accessToken":"tok-123"}`),
		logoutErr:  &api.Error{Status: http.StatusBadGateway, Message: "upstream unavailable"},
	}
	coordinator, store := newTestCoordinator(t, client)

	if err := coordinator.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatal(err)
	}

	err := coordinator.Logout(context.Background())
	if err == nil {
		t.Fatal("remote failure not surfaced")
	}
	if store.IsAuthenticated() {
		t.Fatal("still authenticated after logout")
	}
	if client.logoutCalls != 1 {
		t.Errorf("remote logout called %d times, want 1", client.logoutCalls)
	}
}

func TestProfileInvalidatedOnTokenChange(t *testing.T) {
	client := &fakeAPI{
		loginToken: mustToken(t, `{"accessToken":"tok-123"}`),
		profile:    &api.UserProfile{Username: "alice"},
	}
	coordinator, store := newTestCoordinator(t, client)

	if err := coordinator.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatal(err)
	}
	if _, err := coordinator.CurrentUser(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Token replaced from outside, e.g. another process; the cached
	// profile must not survive it
	store.Set(mustToken(t, `{"accessToken":"tok-other"}`))

	client.profile = &api.UserProfile{Username: "bob"}
	profile, err := coordinator.CurrentUser(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if profile.Username != "bob" {
		t.Errorf("profile.Username = %q, want refetched bob", profile.Username)
	}
	if client.meCalls != 2 {
		t.Errorf("profile fetched %d times, want 2", client.meCalls)
	}
}
