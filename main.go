package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aquamarinepk/customers/internal/aqm"
	"github.com/aquamarinepk/customers/internal/aqm/middleware"
	"github.com/aquamarinepk/customers/internal/aqm/seed"
	"github.com/aquamarinepk/customers/internal/aqm/telemetry"
	"github.com/aquamarinepk/customers/internal/customer"
)

const (
	namespace  = "CUSTOMERS"
	appName    = "customers"
	appVersion = "v0.1.0"
)

func main() {
	cfg, err := aqm.LoadConfig(namespace, os.Args[1:])
	if err != nil {
		fail(fmt.Errorf("load config: %w", err))
	}

	settings, err := loadSettings(cfg)
	if err != nil {
		fail(err)
	}

	logger := aqm.NewLogger(settings.Log.Level)
	metrics := telemetry.NewMetrics(appName)
	tracer, err := newTracer(settings)
	if err != nil {
		fail(err)
	}
	reporter := aqm.NewLogErrorReporter(logger)

	store, tracker, closeStore, err := openStore(context.Background(), settings, logger)
	if err != nil {
		// The service cannot answer without its store.
		fail(err)
	}

	service := customer.NewService(store, logger)
	handler := customer.NewHandler(service, logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:  logger,
		Metrics: metrics,
		Tracer:  tracer,
		Errors:  reporter,
		Timeout: settings.HTTP.Timeout,
	})

	seeding := aqm.Hooks{
		OnStart: func(ctx context.Context) error {
			if !settings.Seed.Enabled {
				return nil
			}
			applied, err := seed.Apply(ctx, tracker, customer.DemoSeeds(store), appName)
			if err != nil {
				return fmt.Errorf("seed customers: %w", err)
			}
			if len(applied) > 0 {
				logger.Info("seeds applied", "ids", applied)
			}
			return nil
		},
	}

	app, err := aqm.NewApp(
		aqm.WithConfig(cfg),
		aqm.WithLogger(logger),
		aqm.WithMetrics(metrics),
		aqm.WithErrorReporter(reporter),
		aqm.WithBuildInfo(appName, appVersion),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHealthChecks(appName),
		aqm.WithDebugRoutes(settings.HTTP.DebugRoutes),
		aqm.WithLifecycle(seeding, tracer),
		aqm.WithHTTPServer("http.port", handler),
		aqm.WithShutdown(closeStore),
	)
	if err != nil {
		_ = closeStore(context.Background())
		fail(err)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := app.Run(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s (%s) stopped with error: %v\n", appName, appVersion, err)
		os.Exit(1)
	}
}

func newTracer(settings Settings) (*telemetry.Tracer, error) {
	if !settings.Telemetry.Tracing {
		return telemetry.NewTracer(appName, nil)
	}
	tracer, err := telemetry.NewTracer(appName, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("new tracer: %w", err)
	}
	return tracer, nil
}

// openStore connects the configured backend once. The returned close func is
// registered as a shutdown hook.
func openStore(ctx context.Context, settings Settings, logger aqm.Logger) (customer.Store, seed.Tracker, aqm.ShutdownFunc, error) {
	if settings.Store.Driver == driverMemory {
		logger.Info("using in-memory customer store")
		noop := func(context.Context) error { return nil }
		return customer.NewMemoryStore(), seed.NewMemoryTracker(), noop, nil
	}

	client, err := aqm.NewMongoClient(ctx, aqm.MongoConfig{
		URI:            settings.Mongo.URI,
		Database:       settings.Mongo.Database,
		AppName:        appName,
		ConnectTimeout: settings.Mongo.ConnectTimeout,
		StrictAPI:      true,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("new mongo client: %w", err)
	}
	logger.Info("connected to mongo", "database", settings.Mongo.Database)

	store, err := customer.NewMongoStore(client.Collection(settings.Mongo.Collection), settings.Mongo.OpTimeout)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, nil, fmt.Errorf("new customer store: %w", err)
	}
	return store, seed.NewMongoTracker(client.Database(), seed.DefaultCollection), client.Disconnect, nil
}

func fail(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "%s (%s): %v\n", appName, appVersion, err)
	os.Exit(1)
}
