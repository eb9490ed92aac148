package aqm

import (
	"context"
	"time"
)

// Metrics is what the HTTP middleware records into.
type Metrics interface {
	Counter(ctx context.Context, name string, value float64, labels map[string]string)
	ObserveHTTPRequest(path, method string, status int, duration time.Duration)
}

// Tracer opens spans around units of work.
type Tracer interface {
	Start(ctx context.Context, name string, attrs map[string]any) (context.Context, Span)
}

// Span is closed with the error the traced work ended with, if any.
type Span interface {
	End(err error)
}

type (
	NoopMetrics struct{}
	NoopTracer  struct{}
	NoopSpan    struct{}
)

func (NoopMetrics) Counter(context.Context, string, float64, map[string]string) {}

func (NoopMetrics) ObserveHTTPRequest(string, string, int, time.Duration) {}

func (NoopTracer) Start(ctx context.Context, _ string, _ map[string]any) (context.Context, Span) {
	return ctx, NoopSpan{}
}

func (NoopSpan) End(error) {}
