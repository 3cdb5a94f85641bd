// Package api is the typed client for the SeedHub HTTP API.
//
// It covers the authentication endpoints (login, register, refresh,
// logout) and the current-user endpoints. The refresh credential is an
// HttpOnly cookie held in the client's jar and treated as opaque; access
// tokens are carried as the exact record bytes the server returned.
//
// Failures decode into *Error with the server's message preserved, so
// callers can surface it verbatim.
package api
