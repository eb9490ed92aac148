package middleware

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/aquamarinepk/customers/internal/aqm"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const defaultCompressLevel = 5

// StackOptions configures DefaultStack. Nil collaborators become no-ops.
// A non-positive Timeout leaves requests unbounded, and the content type gate
// is only installed when AllowedContentTypes is set.
type StackOptions struct {
	Logger              aqm.Logger
	Metrics             aqm.Metrics
	Tracer              aqm.Tracer
	Errors              aqm.ErrorReporter
	Timeout             time.Duration
	CompressLevel       int
	AllowedContentTypes []string
}

func (o StackOptions) withDefaults() StackOptions {
	if o.Logger == nil {
		o.Logger = aqm.NewNoopLogger()
	}
	if o.Metrics == nil {
		o.Metrics = aqm.NoopMetrics{}
	}
	if o.Tracer == nil {
		o.Tracer = aqm.NoopTracer{}
	}
	if o.Errors == nil {
		o.Errors = aqm.NoopErrorReporter{}
	}
	if o.CompressLevel <= 0 {
		o.CompressLevel = defaultCompressLevel
	}
	return o
}

// DefaultStack returns the service middlewares, outermost first.
func DefaultStack(opts StackOptions) []func(http.Handler) http.Handler {
	o := opts.withDefaults()
	stack := []func(http.Handler) http.Handler{
		aqm.RequestIDMiddleware,
		chimiddleware.RealIP,
		chimiddleware.Compress(o.CompressLevel),
		Recoverer(o.Logger),
		ErrorReporter(o.Errors),
	}
	if o.Timeout > 0 {
		stack = append(stack, chimiddleware.Timeout(o.Timeout))
	}
	stack = append(stack,
		aqm.NewRequestLogger(o.Logger),
		Trace(o.Tracer),
		Metrics(o.Metrics),
	)
	if len(o.AllowedContentTypes) > 0 {
		stack = append(stack, AllowContentType(o.AllowedContentTypes...))
	}
	return stack
}

// serve runs next and returns the status it wrote, 200 when it wrote none.
func serve(next http.Handler, w http.ResponseWriter, r *http.Request) int {
	ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
	next.ServeHTTP(ww, r)
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}

// Recoverer answers panics with the JSON 500 body and logs the stack.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recoverer(logger aqm.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				logger.Error("panic recovered",
					"request_id", aqm.RequestIDFrom(r.Context()),
					"panic", fmt.Sprint(rec),
					"stack", string(debug.Stack()),
				)
				if r.Header.Get("Connection") != "Upgrade" {
					aqm.RespondInternalError(w)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ErrorReporter reports 5xx responses, and panics before passing them on.
func ErrorReporter(reporter aqm.ErrorReporter) func(http.Handler) http.Handler {
	if reporter == nil {
		reporter = aqm.NoopErrorReporter{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err, ok := rec.(error)
					if !ok {
						err = fmt.Errorf("panic: %v", rec)
					}
					reporter.Report(r.Context(), err, requestFields(r, 0))
					panic(rec)
				}
			}()
			if status := serve(next, w, r); status >= http.StatusInternalServerError {
				reporter.Report(r.Context(), fmt.Errorf("http %d", status), requestFields(r, status))
			}
		})
	}
}

// Trace opens one span per request; responses of 500 and above end it with an
// error.
func Trace(tracer aqm.Tracer) func(http.Handler) http.Handler {
	if tracer == nil {
		tracer = aqm.NoopTracer{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), "HTTP "+r.Method, map[string]any{
				"http.method":     r.Method,
				"http.target":     r.URL.Path,
				"http.request_id": aqm.RequestIDFrom(r.Context()),
			})
			var spanErr error
			if status := serve(next, w, r.WithContext(ctx)); status >= http.StatusInternalServerError {
				spanErr = fmt.Errorf("http %d", status)
			}
			span.End(spanErr)
		})
	}
}

// Metrics records every request under its chi route pattern, so
// /customers/{id} is one series whatever the id. 5xx answers also bump
// http_server_errors_total.
func Metrics(metrics aqm.Metrics) func(http.Handler) http.Handler {
	if metrics == nil {
		metrics = aqm.NoopMetrics{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			status := serve(next, w, r)
			route := routePattern(r)

			metrics.ObserveHTTPRequest(route, r.Method, status, time.Since(began))
			if status >= http.StatusInternalServerError {
				metrics.Counter(r.Context(), "http_server_errors_total", 1, map[string]string{
					"method": r.Method,
					"path":   route,
					"status": strconv.Itoa(status),
				})
			}
		})
	}
}

// AllowContentType answers 415 in the JSON error shape when a request with a
// body is not one of types. Parameters such as charset are ignored. Bodies of
// unknown length (chunked) are checked too.
func AllowContentType(types ...string) func(http.Handler) http.Handler {
	if len(types) == 0 {
		types = []string{"application/json"}
	}
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength == 0 || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || !allowed[mediaType] {
				aqm.RespondError(w, http.StatusUnsupportedMediaType, aqm.MsgUnsupportedMedia)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func requestFields(r *http.Request, status int) map[string]any {
	fields := map[string]any{
		"request_id": aqm.RequestIDFrom(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
	}
	if status > 0 {
		fields["status"] = status
	}
	return fields
}
