package gateway

import (
	"net/http"
	"os"
	"path/filepath"
)

// placeholderShell is served when no asset directory is configured. The
// inline script mirrors the guard behavior on the client side: while the
// login or registration view is open, any session change pushed over
// /session/events sends the page home.
const placeholderShell = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>SeedHub</title></head>
<body>
<h1>SeedHub</h1>
<p>No UI assets configured. Point ui.assets at a build of the SeedHub web app.</p>
<script>
(function () {
  var src = new EventSource("/session/events");
  var first = true;
  src.onmessage = function () {
    if (first) { first = false; return; }
    var p = window.location.pathname;
    if (p === "/login" || p === "/register") window.location.assign("/");
  };
})();
</script>
</body>
</html>
`

// newPageHandler serves the single-page app shell for every page route.
// Route resolution happens client-side; the gateway only decides whether
// a route may be entered at all (see guards.go).
func newPageHandler(assetsDir string) http.HandlerFunc {
	if assetsDir == "" {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(placeholderShell))
		}
	}

	index := filepath.Join(assetsDir, "index.html")
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := os.Stat(index); err != nil {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		http.ServeFile(w, r, index)
	}
}
