package httpx

import (
	"net/http"

	"github.com/splax/taskgate/internal/guard"
)

// guardNavigation wraps the app shell with the route guard. Only browser
// navigations are evaluated; the machine surface and asset fetches pass
// straight through (guard.Exempt).
func (r *Router) guardNavigation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			next.ServeHTTP(w, req)
			return
		}
		path := req.URL.Path
		if guard.Exempt(path) {
			next.ServeHTTP(w, req)
			return
		}

		tokenValid := false
		if raw, ok := r.sessions.Read(req); ok {
			if _, err := r.auth.Identify(raw); err == nil {
				tokenValid = true
			}
		}

		switch r.guard.Decide(path, tokenValid) {
		case guard.RedirectToLogin:
			original := path
			if req.URL.RawQuery != "" {
				original += "?" + req.URL.RawQuery
			}
			http.Redirect(w, req, r.guard.LoginURL(original), http.StatusFound)
		case guard.RedirectToApp:
			http.Redirect(w, req, r.guard.AppURL(), http.StatusFound)
		default:
			next.ServeHTTP(w, req)
		}
	})
}
