package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// AuthState is the read-only session signal the guards consume.
type AuthState interface {
	IsAuthenticated() bool
}

// reservedOwnerSegments are first path segments that can never be an
// owner name, so "/login" resolves to the login view and not to an owner
// called "login".
var reservedOwnerSegments = map[string]bool{
	"login":    true,
	"register": true,
	"about":    true,
	"help":     true,
	"contact":  true,
}

// AuthGuard keeps authenticated sessions away from the login and
// registration views, redirecting them home instead.
func AuthGuard(sessions AuthState) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessions.IsAuthenticated() {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UsernameGuard refuses to match reserved segments as an owner name on
// the dynamic "/{owner}" routes, falling through to not-found.
func UsernameGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := chi.URLParam(r, "owner")
		if reservedOwnerSegments[owner] {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
