package aqm

import (
	"context"
	"errors"
	"fmt"
)

// App runs the process: lifecycle components start first, then runners such
// as the HTTP server. When the run context ends everything that started is
// stopped in reverse and the shutdown hooks run last.
type App struct {
	cfg     *Config
	logger  Logger
	metrics Metrics
	errs    ErrorReporter
	info    BuildInfo

	probes      *Probes
	http        *httpSetup
	debugRoutes bool

	components []Runner
	runners    []Runner
	shutdown   []ShutdownFunc
}

// BuildInfo is served by GET /version.
type BuildInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ShutdownFunc releases a resource once all runners are stopped.
type ShutdownFunc func(context.Context) error

// Runner is a component with a start/stop lifecycle.
type Runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type starter interface {
	Start(context.Context) error
}

type stopper interface {
	Stop(context.Context) error
}

// Hooks turns a pair of functions into a Runner. Either may be nil.
type Hooks struct {
	OnStart func(context.Context) error
	OnStop  func(context.Context) error
}

func (h Hooks) Start(ctx context.Context) error {
	if h.OnStart != nil {
		return h.OnStart(ctx)
	}
	return nil
}

func (h Hooks) Stop(ctx context.Context) error {
	if h.OnStop != nil {
		return h.OnStop(ctx)
	}
	return nil
}

// NewApp applies opts in order. Config and logger are mandatory; metrics and
// the error reporter default to no-ops.
func NewApp(opts ...Option) (*App, error) {
	app := &App{
		metrics: NoopMetrics{},
		errs:    NoopErrorReporter{},
		probes:  NewProbes(),
	}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if app.logger == nil {
		return nil, errors.New("app: logger is required")
	}
	if app.http != nil && app.http.addrKey != "" {
		if err := app.mountHTTP(); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Run blocks until ctx is done. A failing start rolls back whatever already
// started and the error is returned together with any teardown errors.
func (a *App) Run(ctx context.Context) error {
	stages := make([]Runner, 0, len(a.components)+len(a.runners))
	stages = append(stages, a.components...)
	stages = append(stages, a.runners...)

	for i, stage := range stages {
		if err := stage.Start(ctx); err != nil {
			err = fmt.Errorf("start: %w", err)
			a.errs.Report(ctx, err, map[string]any{"phase": "start"})
			return errors.Join(err, a.teardown(stages[:i]))
		}
	}
	a.logger.Info("service started", "name", a.info.Name, "version", a.info.Version)

	<-ctx.Done()
	a.logger.Info("shutting down")
	if err := a.teardown(stages); err != nil {
		a.errs.Report(context.Background(), err, map[string]any{"phase": "stop"})
		return err
	}
	return nil
}

// teardown uses a fresh context since the run context is already cancelled.
func (a *App) teardown(started []Runner) error {
	ctx := context.Background()
	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop: %w", err))
		}
	}
	for _, fn := range a.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Config returns the configuration the app was built with.
func (a *App) Config() *Config { return a.cfg }

// Logger returns the shared logger.
func (a *App) Logger() Logger { return a.logger }

// asRunner adapts anything with Start and/or Stop methods. It reports false
// when v has neither.
func asRunner(v any) (Runner, bool) {
	if r, ok := v.(Runner); ok {
		return r, true
	}
	var h Hooks
	if s, ok := v.(starter); ok {
		h.OnStart = s.Start
	}
	if s, ok := v.(stopper); ok {
		h.OnStop = s.Stop
	}
	return h, h.OnStart != nil || h.OnStop != nil
}
