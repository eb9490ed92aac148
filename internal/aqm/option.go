package aqm

import (
	"errors"
	"net/http"
)

// Option configures an App under construction.
type Option func(*App) error

func WithConfig(cfg *Config) Option {
	return func(a *App) error {
		if cfg == nil {
			return errors.New("option: nil config")
		}
		a.cfg = cfg
		return nil
	}
}

func WithLogger(logger Logger) Option {
	return func(a *App) error {
		if logger == nil {
			return errors.New("option: nil logger")
		}
		a.logger = logger
		return nil
	}
}

// WithMetrics installs the collector used by the middleware. A collector that
// is also an http.Handler is served at /metrics.
func WithMetrics(m Metrics) Option {
	return func(a *App) error {
		if m != nil {
			a.metrics = m
		}
		return nil
	}
}

// WithErrorReporter receives start and stop failures of the app itself.
func WithErrorReporter(r ErrorReporter) Option {
	return func(a *App) error {
		if r != nil {
			a.errs = r
		}
		return nil
	}
}

func WithBuildInfo(name, version string) Option {
	return func(a *App) error {
		a.info = BuildInfo{Name: name, Version: version}
		return nil
	}
}

// WithHealthChecks registers probes under name. The first check is liveness,
// the second readiness. Missing or nil checks always pass.
func WithHealthChecks(name string, checks ...HealthCheck) Option {
	return func(a *App) error {
		if name == "" {
			return errors.New("option: health check name required")
		}
		live, ready := HealthCheck(HealthStatusOK), HealthCheck(HealthStatusOK)
		if len(checks) > 0 && checks[0] != nil {
			live = checks[0]
		}
		if len(checks) > 1 && checks[1] != nil {
			ready = checks[1]
		}
		a.probes.Live(name, live)
		a.probes.Ready(name, ready)
		return nil
	}
}

// WithDebugRoutes serves GET /debug/routes when enabled.
func WithDebugRoutes(enabled bool) Option {
	return func(a *App) error {
		a.debugRoutes = enabled
		return nil
	}
}

// WithLifecycle registers values with a Start and/or Stop method. They start
// before the runners and stop after them. Other values are ignored.
func WithLifecycle(components ...any) Option {
	return func(a *App) error {
		for _, c := range components {
			if r, ok := asRunner(c); ok {
				a.components = append(a.components, r)
			}
		}
		return nil
	}
}

func WithRunner(r Runner) Option {
	return func(a *App) error {
		if r == nil {
			return errors.New("option: nil runner")
		}
		a.runners = append(a.runners, r)
		return nil
	}
}

// WithHTTPMiddleware appends middlewares for the HTTP server, outermost first.
func WithHTTPMiddleware(mws ...func(http.Handler) http.Handler) Option {
	return func(a *App) error {
		a.httpSetup().middlewares = append(a.httpSetup().middlewares, mws...)
		return nil
	}
}

// WithHTTPServer serves modules on the address stored under addrKey. It may
// be given once.
func WithHTTPServer(addrKey string, modules ...HTTPModule) Option {
	return func(a *App) error {
		if addrKey == "" {
			return errors.New("option: http address key required")
		}
		setup := a.httpSetup()
		if setup.addrKey != "" {
			return errors.New("option: http server already configured")
		}
		for _, m := range modules {
			if m == nil {
				return errors.New("option: nil http module")
			}
		}
		setup.addrKey = addrKey
		setup.modules = modules
		return nil
	}
}

func WithShutdown(fn ShutdownFunc) Option {
	return func(a *App) error {
		if fn == nil {
			return errors.New("option: nil shutdown hook")
		}
		a.shutdown = append(a.shutdown, fn)
		return nil
	}
}
