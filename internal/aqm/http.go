package aqm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	defaultHTTPAddr   = ":8080"
	readHeaderTimeout = 10 * time.Second
	drainTimeout      = 5 * time.Second
)

// HTTPModule mounts its routes on the shared router. A module that also
// implements HealthReporter contributes probes, and one with Start/Stop
// methods joins the lifecycle.
type HTTPModule interface {
	RegisterRoutes(router chi.Router)
}

type httpSetup struct {
	addrKey     string
	middlewares []func(http.Handler) http.Handler
	modules     []HTTPModule
}

func (a *App) httpSetup() *httpSetup {
	if a.http == nil {
		a.http = &httpSetup{}
	}
	return a.http
}

// mountHTTP builds the router once every option has been applied, so option
// order does not matter.
func (a *App) mountHTTP() error {
	router := NewRouter(a.http.middlewares...)

	a.probes.Live("core", HealthStatusOK)
	a.probes.Ready("core", HealthStatusOK)
	ops := OpsEndpoints{Info: a.info}
	if h, ok := a.metrics.(http.Handler); ok {
		ops.Metrics = h
	}
	RegisterHealthEndpoints(router, a.probes, ops)
	RegisterDebugRoutes(router, a.debugRoutes)

	for _, m := range a.http.modules {
		m.RegisterRoutes(router)
		if hr, ok := m.(HealthReporter); ok {
			a.probes.Add(hr.HealthChecks())
		}
		if r, ok := asRunner(m); ok {
			a.components = append(a.components, r)
		}
	}

	addr := a.cfg.GetPort(a.http.addrKey, defaultHTTPAddr)
	if addr == "" {
		return fmt.Errorf("http: no address under %q", a.http.addrKey)
	}
	a.runners = append(a.runners, newServerRunner(&http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}, a.logger))
	return nil
}

// NewRouter returns a chi router with mws installed and JSON answers for
// unknown routes and methods.
func NewRouter(mws ...func(http.Handler) http.Handler) *chi.Mux {
	router := chi.NewRouter()
	for _, mw := range mws {
		if mw != nil {
			router.Use(mw)
		}
	}
	JSONFallbacks(router)
	return router
}

type serverRunner struct {
	srv    *http.Server
	logger Logger
	failed chan error
}

func newServerRunner(srv *http.Server, logger Logger) *serverRunner {
	if logger == nil {
		logger = NewNoopLogger()
	}
	return &serverRunner{srv: srv, logger: logger, failed: make(chan error, 1)}
}

// Start binds before returning so a busy port fails the start.
func (s *serverRunner) Start(context.Context) error {
	lis, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("http: listen %s: %w", s.srv.Addr, err)
	}
	s.logger.Info("http server listening", "addr", lis.Addr().String())

	go func() {
		defer close(s.failed)
		if err := s.srv.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
			s.failed <- err
		}
	}()
	return nil
}

// Stop drains in-flight requests for a bounded time.
func (s *serverRunner) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()

	err := s.srv.Shutdown(ctx)
	select {
	case serveErr := <-s.failed:
		err = errors.Join(err, serveErr)
	default:
	}
	return err
}
