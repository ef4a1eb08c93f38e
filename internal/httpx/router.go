package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/taskgate/internal/guard"
	"github.com/splax/taskgate/internal/proxy"
	"github.com/splax/taskgate/internal/service/auth"
	"github.com/splax/taskgate/internal/session"
)

// Router wires the gateway's HTTP surface: auth endpoints, the
// authenticated proxy, and the guarded app shell.
type Router struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	auth      auth.Service
	sessions  session.Store
	guard     guard.Guard
	forwarder *proxy.Forwarder
	limiter   RateLimiter
	dbHealth  func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	proxyUpstream      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateLimitLogin     = 12
	rateLimitSignup    = 5
	healthCheckTimeout = 2 * time.Second

	backendTasksPath  = "/api/v1/tasks/"
	backendHealthPath = "/health"
)

// NewRouter assembles routes with dependencies. app is the browser-facing
// shell (static files in production) that the route guard fronts.
func NewRouter(logger *slog.Logger, authSvc auth.Service, sessions session.Store, g guard.Guard, forwarder *proxy.Forwarder, app http.Handler, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		logger:    logger,
		auth:      authSvc,
		sessions:  sessions,
		guard:     g,
		forwarder: forwarder,
		limiter:   limiter,
		dbHealth:  dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if app == nil {
		app = http.NotFoundHandler()
	}
	r.initMetrics()
	r.register(app)
	return r
}

// ServeHTTP delegates to the underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register(app http.Handler) {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/auth/login", r.audit("/auth/login", r.withRateLimit("/auth/login", rateLimitLogin, rateWindowDefault, r.handleLogin)))
	r.mux.HandleFunc("/auth/signup", r.audit("/auth/signup", r.withRateLimit("/auth/signup", rateLimitSignup, rateWindowDefault, r.handleSignup)))
	r.mux.HandleFunc("/auth/identity", r.audit("/auth/identity", r.handleIdentity))
	r.mux.HandleFunc("/auth/logout", r.audit("/auth/logout", r.handleLogout))
	r.mux.HandleFunc("/proxy/tasks", r.audit("/proxy/tasks", r.requireSession(r.handleProxyTasks)))
	r.mux.HandleFunc("/proxy/tasks/", r.audit("/proxy/tasks", r.requireSession(r.handleProxyTasks)))
	r.mux.HandleFunc("/proxy/health", r.audit("/proxy/health", r.requireSession(r.handleProxyHealth)))
	r.mux.Handle("/", r.auditHandler("/", r.guardNavigation(app)))
}

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload credentialsPayload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	profile, signed, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "email and password are required")
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
		default:
			r.logger.Error("login failed", "error", err)
			writeError(w, http.StatusInternalServerError, proxy.MsgInternalError)
		}
		return
	}
	r.sessions.Write(w, signed)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Login successful",
		"user":    profile,
	})
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload credentialsPayload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	profile, signed, err := r.auth.Signup(req.Context(), payload.Email, payload.Password, payload.Name)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "a valid email and a password of at least 8 characters are required")
		case errors.Is(err, auth.ErrEmailTaken):
			writeError(w, http.StatusConflict, "email already registered")
		default:
			r.logger.Error("signup failed", "error", err)
			writeError(w, http.StatusInternalServerError, proxy.MsgInternalError)
		}
		return
	}
	r.sessions.Write(w, signed)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Account created",
		"user":    profile,
	})
}

func (r *Router) handleIdentity(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	raw, ok := r.sessions.Read(req)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"message": proxy.MsgNotAuthenticated,
			"user":    nil,
		})
		return
	}
	profile, err := r.auth.Identify(raw)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"message": proxy.MsgNotAuthenticated,
			"user":    nil,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Authenticated",
		"user":    profile,
	})
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	// Idempotent: clearing an absent session is still a success. The token
	// itself stays valid until expiry; only the client's copy is removed.
	r.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleProxyTasks(w http.ResponseWriter, req *http.Request) {
	info, ok := sessionFromContext(req.Context())
	if !ok {
		r.logger.Error("session context missing for proxy route", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, proxy.MsgInternalError)
		return
	}

	rest := strings.Trim(strings.TrimPrefix(req.URL.Path, "/proxy/tasks"), "/")
	segments := []string{}
	if rest != "" {
		segments = strings.Split(rest, "/")
	}

	var result proxy.Result
	switch len(segments) {
	case 0:
		switch req.Method {
		case http.MethodGet:
			result = r.forwarder.Forward(req.Context(), http.MethodGet, backendTasksPath, proxy.FilterQuery(req.URL.Query()), nil, info.Token)
		case http.MethodPost:
			result = r.forwarder.Forward(req.Context(), http.MethodPost, backendTasksPath, nil, req.Body, info.Token)
		default:
			r.methodNotAllowed(w)
			return
		}
	case 1:
		switch req.Method {
		case http.MethodGet, http.MethodDelete:
			result = r.forwarder.Forward(req.Context(), req.Method, backendTasksPath+segments[0], nil, nil, info.Token)
		case http.MethodPut:
			result = r.forwarder.Forward(req.Context(), http.MethodPut, backendTasksPath+segments[0], nil, req.Body, info.Token)
		default:
			r.methodNotAllowed(w)
			return
		}
	case 2:
		if segments[1] != "complete" {
			r.notFound(w)
			return
		}
		if req.Method != http.MethodPatch {
			r.methodNotAllowed(w)
			return
		}
		result = r.forwarder.Forward(req.Context(), http.MethodPatch, backendTasksPath+segments[0]+"/complete", nil, nil, info.Token)
	default:
		r.notFound(w)
		return
	}

	r.recordProxyUpstream("/proxy/tasks", result.Status)
	writeRelay(w, result)
}

func (r *Router) handleProxyHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := sessionFromContext(req.Context())
	if !ok {
		r.logger.Error("session context missing for proxy route", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, proxy.MsgInternalError)
		return
	}
	result := r.forwarder.Forward(req.Context(), http.MethodGet, backendHealthPath, nil, nil, info.Token)
	r.recordProxyUpstream("/proxy/health", result.Status)
	writeRelay(w, result)
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{"status": "down", "error": err.Error()}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// audit logs every request with outcome and timing, and feeds the request
// metrics. route is the stable label used for metrics cardinality.
func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := sessionFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.Profile.ID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

func (r *Router) auditHandler(route string, next http.Handler) http.Handler {
	return r.audit(route, next.ServeHTTP)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
