package aqm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestErrorReporterFunc(t *testing.T) {
	var got error
	reporter := ErrorReporterFunc(func(_ context.Context, err error, _ map[string]any) {
		got = err
	})
	want := errors.New("boom")
	reporter.Report(context.Background(), want, nil)
	if !errors.Is(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	var nilFunc ErrorReporterFunc
	nilFunc.Report(context.Background(), want, nil)
}

func TestNewLogErrorReporter(t *testing.T) {
	buf := &bytes.Buffer{}
	reporter := NewLogErrorReporter(NewWriterLogger(buf, "info", "text"))

	ctx := WithRequestID(context.Background(), "req-9")
	reporter.Report(ctx, errors.New("store down"), map[string]any{"path": "/customers"})

	out := buf.String()
	for _, want := range []string{"unexpected failure", "store down", "path=/customers", "request_id=req-9"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestNewLogErrorReporterNilLogger(t *testing.T) {
	if _, ok := NewLogErrorReporter(nil).(NoopErrorReporter); !ok {
		t.Error("expected NoopErrorReporter for nil logger")
	}
}
