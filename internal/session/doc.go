// Package session owns the client-side session lifecycle: the current
// access token, its durable persistence, synchronization with other
// seedhub processes, and the login/register/refresh/logout operations.
//
// Store is the observable in-memory holder everything reads. Bridge
// couples it to durable storage and to external change notifications.
// Coordinator drives the remote authentication API and guarantees local
// state is cleared before any failure is surfaced.
package session
