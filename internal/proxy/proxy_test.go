package proxy

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/splax/taskgate/internal/domain"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newForwarder(t *testing.T, backendURL string) *Forwarder {
	t.Helper()
	f, err := New(backendURL, time.Second, newLogger())
	if err != nil {
		t.Fatalf("new forwarder: %v", err)
	}
	return f
}

func TestForwardRelaysSuccessBody(t *testing.T) {
	var gotAuth, gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tasks":[],"total_count":0,"page":1,"page_size":20}`))
	}))
	defer backend.Close()

	f := newForwarder(t, backend.URL)
	result := f.Forward(context.Background(), http.MethodGet, "/api/v1/tasks/", nil, nil, "signed-token")

	if result.Status != http.StatusOK {
		t.Fatalf("unexpected status: %d", result.Status)
	}
	if string(result.Body) != `{"tasks":[],"total_count":0,"page":1,"page_size":20}` {
		t.Fatalf("body must be relayed unchanged: %s", result.Body)
	}
	if gotAuth != "Bearer signed-token" {
		t.Fatalf("bearer header not attached: %q", gotAuth)
	}
	if gotPath != "/api/v1/tasks/" {
		t.Fatalf("unexpected backend path: %s", gotPath)
	}
}

func TestForwardRelaysBackendErrorVerbatim(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Task not found"}`))
	}))
	defer backend.Close()

	f := newForwarder(t, backend.URL)
	result := f.Forward(context.Background(), http.MethodGet, "/api/v1/tasks/missing", nil, nil, "tok")

	if result.Status != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", result.Status)
	}
	if string(result.Body) != `{"detail":"Task not found"}` {
		t.Fatalf("error body must be relayed verbatim: %s", result.Body)
	}
}

func TestForwardNormalizesBackend401(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Token has expired"}`))
	}))
	defer backend.Close()

	f := newForwarder(t, backend.URL)
	result := f.Forward(context.Background(), http.MethodGet, "/api/v1/tasks/", nil, nil, "stale")

	if result.Status != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", result.Status)
	}
	var body Error
	if err := json.Unmarshal(result.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Success || body.Message != MsgSessionInvalid {
		t.Fatalf("backend 401 must be normalized, got %+v", body)
	}
	if strings.Contains(string(result.Body), "expired") {
		t.Fatalf("backend 401 detail must not leak: %s", result.Body)
	}
}

func TestForwardWrapsNonJSONErrorBody(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer backend.Close()

	f := newForwarder(t, backend.URL)
	result := f.Forward(context.Background(), http.MethodGet, "/api/v1/tasks/", nil, nil, "tok")

	if result.Status != http.StatusBadGateway {
		t.Fatalf("unexpected status: %d", result.Status)
	}
	var body Error
	if err := json.Unmarshal(result.Body, &body); err != nil {
		t.Fatalf("wrapped body must be canonical JSON: %v", err)
	}
	if body.Success || body.Message != "upstream exploded" {
		t.Fatalf("unexpected wrapped body: %+v", body)
	}
}

func TestForwardCollapsesNetworkFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close() // connection refused from here on

	f := newForwarder(t, backend.URL)
	result := f.Forward(context.Background(), http.MethodGet, "/api/v1/tasks/", nil, nil, "tok")

	if result.Status != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", result.Status)
	}
	var body Error
	if err := json.Unmarshal(result.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Success || body.Message != MsgInternalError {
		t.Fatalf("network failure must collapse to generic message: %+v", body)
	}
}

func TestForwardTimeoutBoundsBackendCall(t *testing.T) {
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		backend.Close()
	}()

	f, err := New(backend.URL, 50*time.Millisecond, newLogger())
	if err != nil {
		t.Fatalf("new forwarder: %v", err)
	}
	start := time.Now()
	result := f.Forward(context.Background(), http.MethodGet, "/api/v1/tasks/", nil, nil, "tok")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout did not bound the call: %v", elapsed)
	}
	if result.Status != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", result.Status)
	}
}

func TestForwardMakesExactlyOneBackendCall(t *testing.T) {
	var calls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"try later"}`))
	}))
	defer backend.Close()

	f := newForwarder(t, backend.URL)
	f.Forward(context.Background(), http.MethodPost, "/api/v1/tasks/", nil, strings.NewReader(`{"title":"x"}`), "tok")

	if got := calls.Load(); got != 1 {
		t.Fatalf("proxy must make exactly one backend call, got %d", got)
	}
}

func TestForwardPreservesBackendTaskContract(t *testing.T) {
	const listBody = `{"tasks":[{"id":"3f0c","user_email":"a@b.com","title":"Ship it","description":null,` +
		`"priority":"high","is_completed":false,"due_date":null,"completed_at":null,` +
		`"created_at":"2026-08-01T10:00:00Z","updated_at":"2026-08-02T11:30:00Z"}],` +
		`"total_count":1,"page":1,"page_size":20}`
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listBody))
	}))
	defer backend.Close()

	f := newForwarder(t, backend.URL)
	result := f.Forward(context.Background(), http.MethodGet, "/api/v1/tasks/", nil, nil, "tok")

	var list domain.TaskList
	if err := json.Unmarshal(result.Body, &list); err != nil {
		t.Fatalf("relayed body must keep the backend list shape: %v", err)
	}
	if list.TotalCount != 1 || len(list.Tasks) != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}
	task := list.Tasks[0]
	if task.ID != "3f0c" || task.Priority != domain.PriorityHigh || task.IsCompleted {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.Description != nil || task.DueDate != nil || task.CompletedAt != nil {
		t.Fatalf("null fields must stay null: %+v", task)
	}
}

func TestFilterQueryWhitelist(t *testing.T) {
	query := url.Values{
		"completed": {"true"},
		"priority":  {"high"},
		"page":      {"2"},
		"page_size": {"10"},
		"date_from": {"2026-01-01"},
		"date_to":   {"2026-02-01"},
		"admin":     {"1"},
		"callback":  {"http://evil"},
	}
	filtered := FilterQuery(query)
	for _, key := range []string{"completed", "priority", "page", "page_size", "date_from", "date_to"} {
		if filtered.Get(key) == "" {
			t.Fatalf("whitelisted key %s dropped", key)
		}
	}
	for _, key := range []string{"admin", "callback"} {
		if filtered.Has(key) {
			t.Fatalf("non-whitelisted key %s relayed", key)
		}
	}
}
