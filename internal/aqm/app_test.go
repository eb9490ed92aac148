package aqm

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) runner(name string, startErr, stopErr error) Runner {
	return Hooks{
		OnStart: func(context.Context) error { l.add("start " + name); return startErr },
		OnStop:  func(context.Context) error { l.add("stop " + name); return stopErr },
	}
}

func newTestApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	base := []Option{WithConfig(NewConfig()), WithLogger(NewNoopLogger())}
	app, err := NewApp(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

func runUntilCancelled(t *testing.T, app *App) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		return err
	case <-time.After(7 * time.Second):
		t.Fatal("Run did not return after cancel")
		return nil
	}
}

func TestNewAppDefaults(t *testing.T) {
	app := newTestApp(t)

	if app.Config() == nil || app.Logger() == nil {
		t.Fatal("config and logger must be set")
	}
	if _, ok := app.metrics.(NoopMetrics); !ok {
		t.Errorf("metrics = %T, want NoopMetrics", app.metrics)
	}
	if _, ok := app.errs.(NoopErrorReporter); !ok {
		t.Errorf("errs = %T, want NoopErrorReporter", app.errs)
	}
	if app.http != nil {
		t.Error("no http setup expected")
	}
}

func TestNewAppErrors(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"nilLogger", []Option{WithConfig(NewConfig()), WithLogger(nil)}},
		{"nilConfig", []Option{WithConfig(nil), WithLogger(NewNoopLogger())}},
		{"missingLogger", []Option{WithConfig(NewConfig())}},
		{"missingConfig", []Option{WithLogger(NewNoopLogger())}},
		{"nilRunner", []Option{WithConfig(NewConfig()), WithLogger(NewNoopLogger()), WithRunner(nil)}},
		{"nilShutdown", []Option{WithConfig(NewConfig()), WithLogger(NewNoopLogger()), WithShutdown(nil)}},
		{"emptyHealthName", []Option{WithConfig(NewConfig()), WithLogger(NewNoopLogger()), WithHealthChecks("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := NewApp(tt.opts...)
			if err == nil {
				t.Fatal("expected error")
			}
			if app != nil {
				t.Error("expected nil app")
			}
		})
	}
}

type handlerMetrics struct {
	NoopMetrics
	http.Handler
}

func TestAppOptions(t *testing.T) {
	metrics := &handlerMetrics{Handler: http.NotFoundHandler()}
	reporter := ErrorReporterFunc(func(context.Context, error, map[string]any) {})

	app := newTestApp(t,
		WithMetrics(metrics),
		WithErrorReporter(reporter),
		WithBuildInfo("customers", "v1"),
		WithDebugRoutes(true),
	)

	if got, ok := app.metrics.(*handlerMetrics); !ok || got != metrics {
		t.Errorf("metrics = %v", app.metrics)
	}
	if app.errs == nil {
		t.Error("expected error reporter")
	}
	if want := (BuildInfo{Name: "customers", Version: "v1"}); app.info != want {
		t.Errorf("info = %+v, want %+v", app.info, want)
	}
	if !app.debugRoutes {
		t.Error("expected debug routes enabled")
	}
}

func TestAppNilOptionalDepsKeepNoop(t *testing.T) {
	app := newTestApp(t, WithMetrics(nil), WithErrorReporter(nil))

	if _, ok := app.metrics.(NoopMetrics); !ok {
		t.Errorf("metrics = %T, want NoopMetrics", app.metrics)
	}
	if _, ok := app.errs.(NoopErrorReporter); !ok {
		t.Errorf("errs = %T, want NoopErrorReporter", app.errs)
	}
}

func TestWithHealthChecks(t *testing.T) {
	ready := func(context.Context) error { return errors.New("not ready") }
	app := newTestApp(t, WithHealthChecks("customers", nil, ready))

	if live := app.probes.evaluate(context.Background(), false); live.Status != "ok" {
		t.Errorf("liveness = %+v", live)
	}
	if readiness := app.probes.evaluate(context.Background(), true); readiness.Checks["customers"] != "not ready" {
		t.Errorf("readiness = %+v", readiness)
	}
}

type stopOnly struct{ stopped bool }

func (s *stopOnly) Stop(context.Context) error { s.stopped = true; return nil }

func TestWithLifecycleAdaptsComponents(t *testing.T) {
	closer := &stopOnly{}
	app := newTestApp(t, WithLifecycle(Hooks{}, closer, nil, "not a component"))

	if len(app.components) != 2 {
		t.Fatalf("components = %d, want 2", len(app.components))
	}
	if err := app.components[1].Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := app.components[1].Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !closer.stopped {
		t.Error("expected Stop to reach the component")
	}
}

func TestAppRunOrder(t *testing.T) {
	log := &eventLog{}
	app := newTestApp(t,
		WithRunner(log.runner("a", nil, nil)),
		WithLifecycle(log.runner("hooks", nil, nil)),
		WithRunner(log.runner("b", nil, nil)),
		WithShutdown(func(context.Context) error { log.add("shutdown"); return nil }),
	)

	if err := runUntilCancelled(t, app); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"start hooks", "start a", "start b", "stop b", "stop a", "stop hooks", "shutdown"}
	if got := log.snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestAppStartFailureRollsBack(t *testing.T) {
	log := &eventLog{}
	bindErr := errors.New("bind failed")
	var reported error
	app := newTestApp(t,
		WithRunner(log.runner("a", nil, nil)),
		WithRunner(log.runner("b", bindErr, nil)),
		WithShutdown(func(context.Context) error { log.add("shutdown"); return nil }),
		WithErrorReporter(ErrorReporterFunc(func(_ context.Context, err error, _ map[string]any) { reported = err })),
	)

	if err := app.Run(context.Background()); !errors.Is(err, bindErr) {
		t.Errorf("Run = %v, want %v", err, bindErr)
	}
	if !errors.Is(reported, bindErr) {
		t.Errorf("reported = %v", reported)
	}
	want := []string{"start a", "start b", "stop a", "shutdown"}
	if got := log.snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestAppLifecycleStartFailure(t *testing.T) {
	log := &eventLog{}
	app := newTestApp(t, WithLifecycle(
		log.runner("first", nil, nil),
		log.runner("seed", errors.New("seed failed"), nil),
	), WithRunner(log.runner("http", nil, nil)))

	if err := app.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	want := []string{"start first", "start seed", "stop first"}
	if got := log.snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestAppRunJoinsTeardownErrors(t *testing.T) {
	log := &eventLog{}
	stopErr := errors.New("stop failed")
	hookErr := errors.New("disconnect failed")
	app := newTestApp(t,
		WithRunner(log.runner("a", nil, stopErr)),
		WithShutdown(func(context.Context) error { return hookErr }),
	)

	err := runUntilCancelled(t, app)
	if !errors.Is(err, stopErr) || !errors.Is(err, hookErr) {
		t.Errorf("Run = %v, want both teardown errors", err)
	}
}

func TestHooksWithNilFuncs(t *testing.T) {
	var hooks Hooks
	if err := hooks.Start(context.Background()); err != nil {
		t.Errorf("Start: %v", err)
	}
	if err := hooks.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
