package aqm

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type widgetModule struct {
	registered bool
	started    bool
	stopped    bool
}

func (m *widgetModule) RegisterRoutes(r chi.Router) {
	m.registered = true
	r.Get("/widgets", func(w http.ResponseWriter, _ *http.Request) {
		Respond(w, http.StatusOK, []string{"a"})
	})
}

func (m *widgetModule) HealthChecks() HealthChecks {
	return HealthChecks{Readiness: map[string]HealthCheck{"widgets": HealthStatusOK}}
}

func (m *widgetModule) Start(context.Context) error { m.started = true; return nil }
func (m *widgetModule) Stop(context.Context) error  { m.stopped = true; return nil }

func TestWithHTTPServerMountsModules(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("http.port", ":0")
	module := &widgetModule{}

	// Middleware registered after the server still applies.
	app := newTestApp(t,
		WithHTTPServer("http.port", module),
		WithHTTPMiddleware(func(next http.Handler) http.Handler { return next }),
		WithConfig(cfg),
	)

	if !module.registered {
		t.Error("module routes not registered")
	}
	if len(app.runners) != 1 || len(app.components) != 1 {
		t.Errorf("runners = %d, components = %d, want 1 each", len(app.runners), len(app.components))
	}
	if len(app.http.middlewares) != 1 {
		t.Errorf("middlewares = %d, want 1", len(app.http.middlewares))
	}
	for _, name := range []string{"widgets", "core"} {
		if _, ok := app.probes.ready[name]; !ok {
			t.Errorf("missing readiness probe %q", name)
		}
	}
}

func TestWithHTTPServerErrors(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"emptyAddrKey", []Option{WithHTTPServer("")}},
		{"nilModule", []Option{WithHTTPServer("http.port", nil)}},
		{"alreadyConfigured", []Option{WithHTTPServer("http.port"), WithHTTPServer("http.port")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{WithConfig(NewConfig()), WithLogger(NewNoopLogger())}, tt.opts...)
			if _, err := NewApp(opts...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMiddlewareWithoutServerIsInert(t *testing.T) {
	app := newTestApp(t, WithHTTPMiddleware(func(next http.Handler) http.Handler { return next }))
	if len(app.runners) != 0 {
		t.Errorf("runners = %d, want 0", len(app.runners))
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	_ = lis.Close()
	return addr
}

func TestHTTPServerServesModulesAndOps(t *testing.T) {
	addr := freeAddr(t)
	cfg := NewConfig()
	cfg.Set("http.port", addr)
	module := &widgetModule{}

	app := newTestApp(t,
		WithConfig(cfg),
		WithBuildInfo("customers", "test"),
		WithHTTPServer("http.port", module),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	client := &http.Client{Timeout: time.Second}
	get := func(path string) (int, string) {
		var lastErr error
		for i := 0; i < 50; i++ {
			resp, err := client.Get("http://" + addr + path)
			if err != nil {
				lastErr = err
				time.Sleep(20 * time.Millisecond)
				continue
			}
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return resp.StatusCode, string(body)
		}
		t.Fatalf("GET %s: %v", path, lastErr)
		return 0, ""
	}

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/widgets", http.StatusOK, `["a"]`},
		{"/readyz", http.StatusOK, ""},
		{"/nope", http.StatusNotFound, `{"error":"Not found"}`},
		{"/version", http.StatusOK, `{"name":"customers","version":"test"}`},
	}
	for _, tt := range tests {
		status, body := get(tt.path)
		if status != tt.status {
			t.Errorf("GET %s status = %d, want %d", tt.path, status, tt.status)
		}
		if tt.body != "" && strings.TrimSpace(body) != tt.body {
			t.Errorf("GET %s body = %q, want %q", tt.path, body, tt.body)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(7 * time.Second):
		t.Fatal("Run did not return")
	}

	if !module.started || !module.stopped {
		t.Errorf("module started=%v stopped=%v", module.started, module.stopped)
	}
}

func TestServerRunnerListenError(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	runner := newServerRunner(&http.Server{Addr: lis.Addr().String()}, nil)
	if err := runner.Start(context.Background()); err == nil {
		t.Error("expected listen error")
	}
}
