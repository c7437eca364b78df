// Package health aggregates component health checks.
package health

import "context"

// StorePinger checks the artifact store backend.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// CacheProber checks that the local cache medium is usable.
type CacheProber interface {
	Probe() error
}

// Status is the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult is one component's outcome.
type CheckResult string

const (
	// CheckOK indicates a passing check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing check.
	CheckError CheckResult = "error"
)

// Report aggregates check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store StorePinger
	cache CacheProber
}

// New creates a Service. cache may be nil when the local cache is disabled.
func New(store StorePinger, cache CacheProber) *Service {
	return &Service{store: store, cache: cache}
}

// Check runs all component checks.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = CheckError
	} else {
		checks["store"] = CheckOK
	}

	if s.cache != nil {
		if err := s.cache.Probe(); err != nil {
			checks["cache"] = CheckError
		} else {
			checks["cache"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	return Report{Status: status, Checks: checks}
}
