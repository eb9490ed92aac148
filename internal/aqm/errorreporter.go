package aqm

import (
	"context"
	"sort"
)

// ErrorReporter receives failures nobody handled: 5xx responses, panics and
// store faults.
type ErrorReporter interface {
	Report(ctx context.Context, err error, fields map[string]any)
}

// ErrorReporterFunc adapts a function into an ErrorReporter.
type ErrorReporterFunc func(ctx context.Context, err error, fields map[string]any)

func (f ErrorReporterFunc) Report(ctx context.Context, err error, fields map[string]any) {
	if f != nil {
		f(ctx, err, fields)
	}
}

// NoopErrorReporter drops all reports.
type NoopErrorReporter struct{}

func (NoopErrorReporter) Report(context.Context, error, map[string]any) {}

type logReporter struct {
	logger Logger
}

// NewLogErrorReporter turns reports into error log lines with the fields
// sorted by key.
func NewLogErrorReporter(logger Logger) ErrorReporter {
	if logger == nil {
		return NoopErrorReporter{}
	}
	return &logReporter{logger: logger}
}

func (lr *logReporter) Report(ctx context.Context, err error, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := []any{"error", err}
	for _, k := range keys {
		kv = append(kv, k, fields[k])
	}
	if _, set := fields["request_id"]; !set {
		if id := RequestIDFrom(ctx); id != "" {
			kv = append(kv, "request_id", id)
		}
	}
	lr.logger.Error("unexpected failure", kv...)
}
