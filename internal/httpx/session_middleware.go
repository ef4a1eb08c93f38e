package httpx

import (
	"context"
	"net/http"

	"github.com/splax/taskgate/internal/domain"
	"github.com/splax/taskgate/internal/proxy"
)

type sessionContextKey string

const contextKeySession sessionContextKey = "taskgate-session"

// sessionInfo carries the verified identity plus the raw token, which the
// proxy re-presents to the backend as a bearer credential.
type sessionInfo struct {
	Profile domain.Profile
	Token   string
}

// requireSession gates the proxy surface. The order is fixed: cookie read,
// then verify, then the handler; the backend is never contacted for a
// request that fails either step.
func (r *Router) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		raw, ok := r.sessions.Read(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, proxy.MsgNotAuthenticated)
			return
		}
		profile, err := r.auth.Identify(raw)
		if err != nil {
			r.logger.Warn("session token rejected", "path", req.URL.Path)
			writeError(w, http.StatusUnauthorized, proxy.MsgSessionInvalid)
			return
		}
		ctx := context.WithValue(req.Context(), contextKeySession, sessionInfo{Profile: profile, Token: raw})
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

type contextSetter interface {
	SetContext(context.Context)
}

// sessionFromContext extracts the verified session, if any.
func sessionFromContext(ctx context.Context) (sessionInfo, bool) {
	value := ctx.Value(contextKeySession)
	if value == nil {
		return sessionInfo{}, false
	}
	info, ok := value.(sessionInfo)
	return info, ok
}
