package stage

import (
	"context"

	"jobscout/internal/pipeline"
)

// Result is the common outcome contract for stage executors. An executor
// returns a non-nil error from Execute only when the stage cannot continue:
// a cancelled context or a fatal failure that should end the session.
// Recoverable per-item problems go in Errors and never abort the stage.
type Result struct {
	Success        bool
	Items          []pipeline.JobPosting
	ItemsProcessed int
	ItemsTotal     int
	Errors         []string
}

// Collector gathers postings for a search request. Collection is the only
// stage with internal sub-progress (multiple sources), so the orchestrator
// polls Progress while Execute is in flight.
type Collector interface {
	Execute(ctx context.Context, req pipeline.SearchRequest) (*Result, error)
	Progress(sessionID string) float64
}

// Filter partitions collected postings into passed and skipped. The same
// error contract as Result applies: per-item issues live in the outcome,
// a returned error means cancellation or fatal failure.
type Filter interface {
	Execute(ctx context.Context, items []pipeline.JobPosting) (*pipeline.FilterOutcome, error)
}

// Enricher augments filtered postings with LLM-derived summaries and scores.
// Ready reports whether the enrichment credential is present; the
// orchestrator treats a missing credential as a precondition failure, not a
// runtime exception.
type Enricher interface {
	Execute(ctx context.Context, items []pipeline.JobPosting) (*Result, error)
	Ready() bool
}

// Health describes the readiness of one pipeline component.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy builds a passing health report.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy builds a failing health report with a reason.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
