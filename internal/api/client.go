package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/google/uuid"
)

// AuthBasePath is the path prefix of the authentication endpoints.
// Requests under it never carry a bearer token.
const AuthBasePath = "/api/authenticate"

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	transport http.RoundTripper
}

// WithTransport sets the transport used for all API requests.
// This is where the authenticating round tripper is plugged in.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *clientConfig) {
		c.transport = transport
	}
}

// Client is a typed client for the SeedHub HTTP API.
//
// The refresh credential is an HttpOnly cookie the server manages; the
// client holds it in a cookie jar and never inspects its contents.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// New creates a Client for the given base URL, e.g. "https://api.seedhub.dev".
func New(baseURL string, opts ...ClientOption) (*Client, error) {
	cfg := &clientConfig{
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}

	// Jar holds the server-set refresh_token cookie between calls.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	return &Client{
		baseURL: parsed,
		httpClient: &http.Client{
			Jar:       jar,
			Transport: cfg.transport,
		},
	}, nil
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AccessToken, error) {
	token := &AccessToken{}
	if err := c.do(ctx, http.MethodPost, AuthBasePath+"/login", req, token); err != nil {
		return nil, err
	}
	return token, nil
}

// Register creates an account and yields an access token for it.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AccessToken, error) {
	token := &AccessToken{}
	if err := c.do(ctx, http.MethodPost, AuthBasePath+"/register", req, token); err != nil {
		return nil, err
	}
	return token, nil
}

// Refresh exchanges the refresh cookie for a new access token.
// Responds 401 when the cookie is missing, expired, or revoked.
func (c *Client) Refresh(ctx context.Context) (*AccessToken, error) {
	token := &AccessToken{}
	if err := c.do(ctx, http.MethodGet, AuthBasePath+"/refresh", nil, token); err != nil {
		return nil, err
	}
	return token, nil
}

// Logout invalidates the remote session and clears the refresh cookie.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, AuthBasePath+"/logout", nil, nil)
}

// Me fetches the profile of the authenticated user.
func (c *Client) Me(ctx context.Context) (*UserProfile, error) {
	profile := &UserProfile{}
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// DeleteMe deletes the authenticated user's account.
func (c *Client) DeleteMe(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/users/me", nil, nil)
}

// do issues one API request. Non-2xx responses become *Error values.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	target := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), payload)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response body: %w", err)
		}
	}
	return nil
}
