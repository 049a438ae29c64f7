package server

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/graphdb"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"

	defaultProbeTimeout = 2 * time.Second
)

// Check is one named dependency the service needs to accept analyses.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// GraphCheck probes the Neo4j database that receives exported cases.
func GraphCheck(client graphdb.Client) Check {
	return Check{Name: "graph", Probe: client.VerifyConnectivity}
}

// Readiness describes what /healthz reports. Detectors and Sinks are static
// and echoed as-is; Checks are probed on every request.
type Readiness struct {
	Checks    []Check
	Detectors []string
	Sinks     []string
	// Timeout bounds all probes together; zero means two seconds.
	Timeout time.Duration
}

// HealthReport is the /healthz response body.
type HealthReport struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Detectors []string          `json:"detectors,omitempty"`
	Sinks     []string          `json:"sinks,omitempty"`
}

// Healthy reports whether every check passed.
func (r HealthReport) Healthy() bool { return r.Status == statusOK }

// Report runs every check concurrently. A failing check marks the report
// degraded but does not stop the others.
func (r Readiness) Report(ctx context.Context) HealthReport {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report := HealthReport{
		Status:    statusOK,
		Detectors: r.Detectors,
		Sinks:     r.Sinks,
	}
	if len(r.Checks) == 0 {
		return report
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	report.Checks = make(map[string]string, len(r.Checks))
	for _, check := range r.Checks {
		g.Go(func() error {
			state := statusOK
			if err := check.Probe(ctx); err != nil {
				state = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			report.Checks[check.Name] = state
			if state != statusOK {
				report.Status = statusDegraded
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// failing lists the names of failed checks, sorted.
func (r HealthReport) failing() []string {
	var names []string
	for name, state := range r.Checks {
		if state != statusOK {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func healthHandler(logger *slog.Logger, readiness Readiness) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, http.MethodGet, http.MethodHead)
			return
		}

		report := readiness.Report(r.Context())
		status := http.StatusOK
		if !report.Healthy() {
			status = http.StatusServiceUnavailable
			logger.Warn("readiness degraded", "failing", report.failing())
		}
		respondJSON(w, status, report)
	}
}
