package authtransport

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hrustic/seedhub/internal/api"
)

// TokenReader exposes the current access token. *session.Store
// implements it; the transport only ever reads.
type TokenReader interface {
	Get() *api.AccessToken
}

// Refresher performs one token refresh. *session.Coordinator implements
// it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Transport is an http.RoundTripper that authenticates outbound API
// requests.
//
// Requests to the authentication endpoints pass through untouched; they
// must stay anonymous so login and refresh calls work. Every other
// request carries "Authorization: Bearer <token>" when a token is held.
// A 401 response triggers exactly one refresh and, on refresh success,
// one retry with the new token. A second 401 is returned to the caller
// as is.
//
// Concurrent requests that all hit 401 each run their own refresh; there
// is no coalescing, and the last refresh to finish determines the stored
// token.
type Transport struct {
	// Tokens supplies the current token. Required.
	Tokens TokenReader

	// Refresher drives the refresh on 401. When nil, 401 responses pass
	// through without a recovery attempt.
	Refresher Refresher

	// Base performs the actual round trips. Defaults to
	// http.DefaultTransport.
	Base http.RoundTripper
}

// Compile-time check that Transport implements http.RoundTripper.
var _ http.RoundTripper = (*Transport)(nil)

// New creates a Transport reading tokens from the given source. The
// Refresher is bound after the Coordinator exists, since the Coordinator
// itself talks through a client built on this transport.
func New(tokens TokenReader) *Transport {
	return &Transport{Tokens: tokens}
}

// RoundTrip implements the attach / refresh-once / retry-once sequence.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if strings.HasPrefix(req.URL.Path, api.AuthBasePath) {
		return base.RoundTrip(req)
	}

	resp, err := base.RoundTrip(t.withToken(req))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || t.Refresher == nil {
		return resp, nil
	}

	// The retry re-sends the body; without a replayable body the original
	// response is all we can offer.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	if err := t.Refresher.Refresh(req.Context()); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			// Refresh was answered and rejected: the session is gone, and
			// the caller sees its own original failure.
			return resp, nil
		}
		// The refresh call itself failed in transit; nothing better to
		// report than that.
		_ = resp.Body.Close()
		return nil, err
	}

	retry := t.withToken(req)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}

	_ = resp.Body.Close()
	return base.RoundTrip(retry)
}

// withToken clones the request and sets the bearer header from the
// current token. Without a token the header is left off entirely.
func (t *Transport) withToken(req *http.Request) *http.Request {
	clone := req.Clone(req.Context())
	if token := t.Tokens.Get(); token != nil {
		clone.Header.Set("Authorization", "Bearer "+token.Token)
	} else {
		clone.Header.Del("Authorization")
	}
	return clone
}
