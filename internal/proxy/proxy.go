// Package proxy forwards authenticated requests to the task backend and
// normalizes whatever comes back. Every outcome is a structured JSON
// response; nothing from the transport layer escapes to the browser.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Canonical messages returned to the browser. Kept generic so failures
// never leak internal detail.
const (
	MsgNotAuthenticated = "Not authenticated"
	MsgSessionInvalid   = "Please log in again"
	MsgInternalError    = "internal server error"
)

// allowedQuery is the whitelist of query parameters relayed to the backend
// task list endpoint. Anything else is dropped.
var allowedQuery = map[string]struct{}{
	"completed": {},
	"priority":  {},
	"date_from": {},
	"date_to":   {},
	"page":      {},
	"page_size": {},
}

// Error is the canonical error body shared by the proxy and the auth
// endpoints.
type Error struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorBody marshals the canonical error shape.
func ErrorBody(message string) []byte {
	body, _ := json.Marshal(Error{Success: false, Message: message})
	return body
}

// Result is a fully normalized response ready to relay to the browser.
type Result struct {
	Status int
	Body   []byte
}

// Forwarder performs single-attempt calls against the backend task API.
type Forwarder struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customises forwarder instantiation.
type Option func(*Forwarder)

// WithHTTPClient overrides the default HTTP client. Tests use it; the
// default carries the configured request timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(f *Forwarder) {
		if h != nil {
			f.httpClient = h
		}
	}
}

// New constructs a Forwarder pointing at the backend base URL. The timeout
// bounds every backend call so a hung backend cannot hang the gateway.
func New(base string, timeout time.Duration, logger *slog.Logger, opts ...Option) (*Forwarder, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return nil, fmt.Errorf("backend base url is required")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	f := &Forwarder{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// FilterQuery keeps only the whitelisted task-list parameters.
func FilterQuery(query url.Values) url.Values {
	filtered := url.Values{}
	for key, values := range query {
		if _, ok := allowedQuery[key]; !ok {
			continue
		}
		for _, v := range values {
			filtered.Add(key, v)
		}
	}
	return filtered
}

// Forward performs exactly one backend call and normalizes the response.
// It never returns an error: transport failures collapse to a generic 500
// and retry policy is deliberately not this component's job.
func (f *Forwarder) Forward(ctx context.Context, method, path string, query url.Values, body io.Reader, bearer string) Result {
	endpoint := f.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		f.logger.Error("build backend request", "method", method, "path", path, "error", err)
		return Result{Status: http.StatusInternalServerError, Body: ErrorBody(MsgInternalError)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.logger.Error("backend unreachable", "method", method, "path", path, "error", err)
		return Result{Status: http.StatusInternalServerError, Body: ErrorBody(MsgInternalError)}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		f.logger.Error("read backend response", "method", method, "path", path, "error", err)
		return Result{Status: http.StatusInternalServerError, Body: ErrorBody(MsgInternalError)}
	}

	return normalize(resp.StatusCode, payload)
}

// normalize applies the relay rules: backend 401 means the session is no
// longer valid there, parseable error bodies are relayed verbatim, and
// anything unparseable gets wrapped in the canonical shape.
func normalize(status int, payload []byte) Result {
	switch {
	case status == http.StatusUnauthorized:
		return Result{Status: http.StatusUnauthorized, Body: ErrorBody(MsgSessionInvalid)}
	case status >= 200 && status < 300:
		return Result{Status: http.StatusOK, Body: payload}
	case json.Valid(payload):
		return Result{Status: status, Body: payload}
	default:
		message := strings.TrimSpace(string(payload))
		if message == "" {
			message = http.StatusText(status)
		}
		return Result{Status: status, Body: ErrorBody(message)}
	}
}
