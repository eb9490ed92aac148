package aqm

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const probeTimeout = 2 * time.Second

// HealthCheck returns nil while the dependency it watches is usable.
type HealthCheck func(context.Context) error

// HealthChecks groups the probes a component contributes.
type HealthChecks struct {
	Liveness  map[string]HealthCheck
	Readiness map[string]HealthCheck
}

// HealthReporter is implemented by HTTP modules that expose probes.
type HealthReporter interface {
	HealthChecks() HealthChecks
}

// HealthStatusOK always passes.
func HealthStatusOK(context.Context) error { return nil }

// Probes holds the named liveness and readiness checks.
type Probes struct {
	mu    sync.RWMutex
	live  map[string]HealthCheck
	ready map[string]HealthCheck
}

func NewProbes() *Probes {
	return &Probes{live: map[string]HealthCheck{}, ready: map[string]HealthCheck{}}
}

// Live registers a liveness check. Empty names and nil checks are ignored.
func (p *Probes) Live(name string, check HealthCheck) { p.put(p.live, name, check) }

// Ready registers a readiness check. Empty names and nil checks are ignored.
func (p *Probes) Ready(name string, check HealthCheck) { p.put(p.ready, name, check) }

// Add registers every check in hc.
func (p *Probes) Add(hc HealthChecks) {
	for name, check := range hc.Liveness {
		p.Live(name, check)
	}
	for name, check := range hc.Readiness {
		p.Ready(name, check)
	}
}

func (p *Probes) put(into map[string]HealthCheck, name string, check HealthCheck) {
	if name == "" || check == nil {
		return
	}
	p.mu.Lock()
	into[name] = check
	p.mu.Unlock()
}

// ProbeReport is the body of /healthz, /livez and /readyz. Checks maps each
// probe name to "ok" or its failure message.
type ProbeReport struct {
	Status    string            `json:"status"`
	CheckedAt time.Time         `json:"checked_at"`
	Checks    map[string]string `json:"checks"`
}

// evaluate runs the checks of one kind concurrently, each bounded by a short
// timeout, and reports "ok" only when all of them pass.
func (p *Probes) evaluate(ctx context.Context, readiness bool) ProbeReport {
	p.mu.RLock()
	set := p.live
	if readiness {
		set = p.ready
	}
	checks := make(map[string]HealthCheck, len(set))
	for name, check := range set {
		checks[name] = check
	}
	p.mu.RUnlock()

	report := ProbeReport{Status: "ok", CheckedAt: time.Now().UTC(), Checks: make(map[string]string, len(checks))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check HealthCheck) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			outcome := "ok"
			if err := check(cctx); err != nil {
				outcome = err.Error()
			}
			mu.Lock()
			report.Checks[name] = outcome
			if outcome != "ok" {
				report.Status = "unavailable"
			}
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()
	return report
}

func (p *Probes) handler(readiness bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := p.evaluate(r.Context(), readiness)
		code := http.StatusOK
		if report.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		Respond(w, code, report)
	}
}

// OpsEndpoints carries the optional handlers mounted next to the probes.
type OpsEndpoints struct {
	Metrics http.Handler
	Info    BuildInfo
}

// RegisterHealthEndpoints mounts the probe, ping, metrics and version routes.
func RegisterHealthEndpoints(r chi.Router, probes *Probes, ops OpsEndpoints) {
	if probes == nil {
		probes = NewProbes()
	}
	r.Get("/healthz", probes.handler(false))
	r.Get("/livez", probes.handler(false))
	r.Get("/readyz", probes.handler(true))

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		Respond(w, http.StatusOK, ops.Info)
	})

	metrics := ops.Metrics
	if metrics == nil {
		metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotImplemented)
		})
	}
	r.Method(http.MethodGet, "/metrics", metrics)
}
