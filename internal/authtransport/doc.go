// Package authtransport provides the http.RoundTripper that attaches the
// session's bearer token to outbound API requests and recovers from
// mid-session token expiry with a single refresh-and-retry attempt.
package authtransport
