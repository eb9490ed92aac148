package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aquamarinepk/customers/internal/aqm"
	"github.com/go-chi/chi/v5"
)

type observation struct {
	path   string
	method string
	status int
}

type fakeMetrics struct {
	mu       sync.Mutex
	observed []observation
	counters map[string]float64
}

func (m *fakeMetrics) Counter(_ context.Context, name string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]float64{}
	}
	m.counters[name] += value
}

func (m *fakeMetrics) ObserveHTTPRequest(path, method string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed = append(m.observed, observation{path, method, status})
}

type fakeSpan struct {
	name string
	err  *error
}

func (s fakeSpan) End(err error) { *s.err = err }

type fakeTracer struct {
	names []string
	err   error
}

func (t *fakeTracer) Start(ctx context.Context, name string, _ map[string]any) (context.Context, aqm.Span) {
	t.names = append(t.names, name)
	return ctx, fakeSpan{name: name, err: &t.err}
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []error
}

func (r *fakeReporter) Report(_ context.Context, err error, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, err)
}

func TestRecoverer(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"error":"Internal server error"}` {
		t.Errorf("body = %q", body)
	}
}

func TestRecovererRepanicsAbortHandler(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestAllowContentType(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := AllowContentType()(ok)

	tests := []struct {
		name        string
		body        string
		contentType string
		status      int
	}{
		{"json", `{"username":"a"}`, "application/json", http.StatusOK},
		{"jsonWithCharset", `{}`, "Application/JSON; charset=utf-8", http.StatusOK},
		{"noBody", "", "", http.StatusOK},
		{"textPlain", "username=a", "text/plain", http.StatusUnsupportedMediaType},
		{"missingType", `{}`, "", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusUnsupportedMediaType {
				if body := strings.TrimSpace(rec.Body.String()); body != `{"error":"Unsupported media type"}` {
					t.Errorf("body = %q", body)
				}
			}
		})
	}
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	metrics := &fakeMetrics{}
	router := chi.NewRouter()
	router.Use(Metrics(metrics))
	router.Get("/customers/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	router.Get("/customers", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/customers/abc", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/customers", nil))

	want := []observation{
		{"/customers/{id}", http.MethodGet, http.StatusInternalServerError},
		{"/customers", http.MethodGet, http.StatusOK},
	}
	if len(metrics.observed) != len(want) {
		t.Fatalf("observed = %+v", metrics.observed)
	}
	for i := range want {
		if metrics.observed[i] != want[i] {
			t.Errorf("observation %d = %+v, want %+v", i, metrics.observed[i], want[i])
		}
	}
	if metrics.counters["http_server_errors_total"] != 1 {
		t.Errorf("server error counter = %v", metrics.counters["http_server_errors_total"])
	}
}

func TestTraceEndsSpanWithServerErrors(t *testing.T) {
	tracer := &fakeTracer{}
	handler := Trace(tracer)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/customers/1", nil))

	if len(tracer.names) != 1 || tracer.names[0] != "HTTP DELETE" {
		t.Errorf("spans = %v", tracer.names)
	}
	if tracer.err == nil {
		t.Error("expected span to end with an error")
	}
}

func TestErrorReporter(t *testing.T) {
	reporter := &fakeReporter{}
	mw := ErrorReporter(reporter)

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/customers", nil))
	if len(reporter.reports) != 0 {
		t.Errorf("4xx should not be reported: %v", reporter.reports)
	}

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/customers", nil))
	if len(reporter.reports) != 1 {
		t.Errorf("5xx should be reported once: %v", reporter.reports)
	}
}

func TestDefaultStack(t *testing.T) {
	metrics := &fakeMetrics{}
	reporter := &fakeReporter{}
	tracer := &fakeTracer{}

	router := aqm.NewRouter(DefaultStack(StackOptions{
		Metrics: metrics,
		Tracer:  tracer,
		Errors:  reporter,
		Timeout: time.Second,
	})...)
	router.Get("/customers/{id}", func(http.ResponseWriter, *http.Request) {
		panic(errors.New("store exploded"))
	})
	router.Post("/customers", func(w http.ResponseWriter, r *http.Request) {
		aqm.Respond(w, http.StatusCreated, map[string]string{"request_id": aqm.RequestIDFrom(r.Context())})
	})

	t.Run("panicBecomesJSON500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers/1", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d", rec.Code)
		}
		if body := strings.TrimSpace(rec.Body.String()); body != `{"error":"Internal server error"}` {
			t.Errorf("body = %q", body)
		}
		if rec.Header().Get(aqm.RequestIDHeader) == "" {
			t.Error("expected request id header")
		}
		if len(reporter.reports) != 1 {
			t.Errorf("reports = %v", reporter.reports)
		}
	})

	t.Run("requestIDReachesHandler", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(aqm.RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d", rec.Code)
		}
		if body := strings.TrimSpace(rec.Body.String()); body != `{"request_id":"abc-123"}` {
			t.Errorf("body = %q", body)
		}
	})
}

func TestDefaultStackOptionalLayers(t *testing.T) {
	tests := []struct {
		name string
		opts StackOptions
		want int
	}{
		{"bare", StackOptions{}, 8},
		{"negativeTimeout", StackOptions{Timeout: -time.Second}, 8},
		{"timeout", StackOptions{Timeout: time.Second}, 9},
		{"contentTypes", StackOptions{AllowedContentTypes: []string{"application/json"}}, 9},
		{"both", StackOptions{Timeout: time.Second, AllowedContentTypes: []string{"application/json"}}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(DefaultStack(tt.opts)); got != tt.want {
				t.Errorf("layers = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDefaultStackLeavesBodiesToHandlers(t *testing.T) {
	router := aqm.NewRouter(DefaultStack(StackOptions{})...)
	router.Post("/customers", func(w http.ResponseWriter, r *http.Request) {
		aqm.RespondError(w, http.StatusBadRequest, "handled")
	})

	req := httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader("username=alice"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAllowContentTypeChunkedBody(t *testing.T) {
	handler := AllowContentType("application/json")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(`{}`))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnsupportedMediaType)
	}
}
