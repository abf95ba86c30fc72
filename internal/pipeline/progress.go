package pipeline

import (
	"strings"
	"time"
)

// Stage identifies a pipeline position.
type Stage string

const (
	StageCollecting Stage = "collecting"
	StageFiltering  Stage = "filtering"
	StageEnriching  Stage = "enriching"
	StageCompleted  Stage = "completed"
)

// Stages returns the executable pipeline stages in order.
func Stages() []Stage {
	return []Stage{StageCollecting, StageFiltering, StageEnriching}
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case StageCollecting, StageFiltering, StageEnriching, StageCompleted:
		return normalized, true
	default:
		return "", false
	}
}

// Status reflects session lifecycle control, orthogonal to pipeline position.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusStopped   Status = "stopped"
	StatusError     Status = "error"
	StatusCompleted Status = "completed"
)

// StageStatus is the lifecycle of one stage.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusPaused    StageStatus = "paused"
	StageStatusStopped   StageStatus = "stopped"
	StageStatusCompleted StageStatus = "completed"
	StageStatusSkipped   StageStatus = "skipped"
	StageStatusFailed    StageStatus = "failed"
)

// StageProgress is the live state of one stage within a session.
type StageProgress struct {
	Status         StageStatus `json:"status"`
	Progress       float64     `json:"progress"`
	ItemsProcessed int         `json:"itemsProcessed"`
	ItemsTotal     int         `json:"itemsTotal"`
	StartedAt      *time.Time  `json:"startedAt,omitempty"`
	CompletedAt    *time.Time  `json:"completedAt,omitempty"`
	PausedAt       *time.Time  `json:"pausedAt,omitempty"`
	Errors         []string    `json:"errors,omitempty"`

	// ETA fields are derived on every progress read and never persisted as a
	// source of truth.
	ETASeconds    *float64 `json:"etaSeconds,omitempty"`
	ETAConfidence *float64 `json:"etaConfidence,omitempty"`
}

// StageWeights blends per-stage progress into the overall percentage.
// Startup covers session setup before collection reports anything.
type StageWeights struct {
	Startup    float64
	Collection float64
	Filtering  float64
	Enrichment float64
}

// DefaultStageWeights returns the 10/30/30/30 heuristic blend.
func DefaultStageWeights() StageWeights {
	return StageWeights{Startup: 10, Collection: 30, Filtering: 30, Enrichment: 30}
}

// PauseMessage is appended to the error log when a session pauses and
// stripped again on resume.
const PauseMessage = "Search paused by user"

// StopMessage is appended to the error log when a session is stopped.
const StopMessage = "Search stopped by user"

// MultiStageProgress is the live state of a session.
type MultiStageProgress struct {
	SessionID       string                    `json:"sessionId"`
	CurrentStage    Stage                     `json:"currentStage"`
	Status          Status                    `json:"status"`
	Stages          map[Stage]*StageProgress  `json:"stages"`
	OverallProgress float64                   `json:"overallProgress"`
	IsComplete      bool                      `json:"isComplete"`
	CanStop         bool                      `json:"canStop"`
	Errors          []string                  `json:"errors,omitempty"`
	FilteringStats  *FilteringStats           `json:"filteringStats,omitempty"`
	StartedAt       time.Time                 `json:"startedAt"`
	UpdatedAt       time.Time                 `json:"updatedAt"`

	// Overall ETA fields are derived on read, like their per-stage
	// counterparts.
	ETASeconds    *float64 `json:"etaSeconds,omitempty"`
	ETAConfidence *float64 `json:"etaConfidence,omitempty"`
}

// NewMultiStageProgress initializes a session progress aggregate with every
// stage pending and the session running at the collection stage.
func NewMultiStageProgress(sessionID string) *MultiStageProgress {
	now := time.Now().UTC()
	stages := make(map[Stage]*StageProgress, len(Stages()))
	for _, stage := range Stages() {
		stages[stage] = &StageProgress{Status: StageStatusPending}
	}
	return &MultiStageProgress{
		SessionID:    sessionID,
		CurrentStage: StageCollecting,
		Status:       StatusRunning,
		Stages:       stages,
		CanStop:      true,
		StartedAt:    now,
		UpdatedAt:    now,
	}
}

// StageProgressFor returns the progress record for a stage, creating a
// pending record when absent.
func (p *MultiStageProgress) StageProgressFor(stage Stage) *StageProgress {
	if p.Stages == nil {
		p.Stages = make(map[Stage]*StageProgress)
	}
	sp, ok := p.Stages[stage]
	if !ok {
		sp = &StageProgress{Status: StageStatusPending}
		p.Stages[stage] = sp
	}
	return sp
}

// ActiveStage returns the stage currently running or paused, if any.
func (p *MultiStageProgress) ActiveStage() (Stage, bool) {
	for _, stage := range Stages() {
		sp, ok := p.Stages[stage]
		if !ok {
			continue
		}
		if sp.Status == StageStatusRunning || sp.Status == StageStatusPaused {
			return stage, true
		}
	}
	return "", false
}

// BeginStage marks a stage running and makes it the current stage. The single
// running-stage invariant holds because stage execution is strictly
// sequential per session; Begin refuses to demote a stage that already
// completed.
func (p *MultiStageProgress) BeginStage(stage Stage) *StageProgress {
	sp := p.StageProgressFor(stage)
	if sp.Status == StageStatusCompleted {
		return sp
	}
	now := time.Now().UTC()
	// Re-entry after pause replays the stage from its start, so the start
	// timestamp always reflects the current attempt.
	sp.StartedAt = &now
	sp.Status = StageStatusRunning
	sp.PausedAt = nil
	p.CurrentStage = stage
	p.UpdatedAt = now
	return sp
}

// CompleteStage marks a stage finished with final counters.
func (p *MultiStageProgress) CompleteStage(stage Stage, processed, total int) {
	sp := p.StageProgressFor(stage)
	now := time.Now().UTC()
	sp.Status = StageStatusCompleted
	sp.Progress = 100
	sp.ItemsProcessed = processed
	sp.ItemsTotal = total
	sp.CompletedAt = &now
	sp.PausedAt = nil
	p.UpdatedAt = now
}

// SkipStage marks a stage as skipped (not failed).
func (p *MultiStageProgress) SkipStage(stage Stage) {
	sp := p.StageProgressFor(stage)
	now := time.Now().UTC()
	sp.Status = StageStatusSkipped
	sp.Progress = 100
	sp.CompletedAt = &now
	p.UpdatedAt = now
}

// AppendError records a session-level error message.
func (p *MultiStageProgress) AppendError(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	p.Errors = append(p.Errors, message)
	p.UpdatedAt = time.Now().UTC()
}

// StripPauseMessages removes pause-related entries from the session and
// stage error logs. Called on resume.
func (p *MultiStageProgress) StripPauseMessages() {
	p.Errors = withoutPauseMessages(p.Errors)
	for _, sp := range p.Stages {
		sp.Errors = withoutPauseMessages(sp.Errors)
	}
}

func withoutPauseMessages(errs []string) []string {
	if len(errs) == 0 {
		return errs
	}
	out := errs[:0]
	for _, msg := range errs {
		if strings.Contains(msg, PauseMessage) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// RecomputeOverall refreshes the overall percentage from the weighted stage
// blend. Startup weight is granted in full once collection has begun.
func (p *MultiStageProgress) RecomputeOverall(weights StageWeights) {
	total := weights.Startup + weights.Collection + weights.Filtering + weights.Enrichment
	if total <= 0 {
		return
	}
	if p.IsComplete && p.Status == StatusCompleted {
		p.OverallProgress = 100
		return
	}

	acc := 0.0
	if sp, ok := p.Stages[StageCollecting]; ok && sp.Status != StageStatusPending {
		acc += weights.Startup
	}
	acc += weights.Collection * stageFraction(p.Stages[StageCollecting])
	acc += weights.Filtering * stageFraction(p.Stages[StageFiltering])
	acc += weights.Enrichment * stageFraction(p.Stages[StageEnriching])

	p.OverallProgress = clampPercent(acc / total * 100)
}

func stageFraction(sp *StageProgress) float64 {
	if sp == nil {
		return 0
	}
	switch sp.Status {
	case StageStatusCompleted, StageStatusSkipped:
		return 1
	case StageStatusPending:
		return 0
	default:
		return clampPercent(sp.Progress) / 100
	}
}

func clampPercent(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

// Clone returns a deep copy safe to hand to pollers while the pipeline keeps
// mutating the original.
func (p *MultiStageProgress) Clone() *MultiStageProgress {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Stages = make(map[Stage]*StageProgress, len(p.Stages))
	for stage, sp := range p.Stages {
		dup := *sp
		dup.StartedAt = copyTime(sp.StartedAt)
		dup.CompletedAt = copyTime(sp.CompletedAt)
		dup.PausedAt = copyTime(sp.PausedAt)
		dup.Errors = append([]string(nil), sp.Errors...)
		dup.ETASeconds = copyFloat(sp.ETASeconds)
		dup.ETAConfidence = copyFloat(sp.ETAConfidence)
		cp.Stages[stage] = &dup
	}
	cp.Errors = append([]string(nil), p.Errors...)
	cp.ETASeconds = copyFloat(p.ETASeconds)
	cp.ETAConfidence = copyFloat(p.ETAConfidence)
	if p.FilteringStats != nil {
		stats := *p.FilteringStats
		stats.Reasons = make(map[string]int, len(p.FilteringStats.Reasons))
		for reason, count := range p.FilteringStats.Reasons {
			stats.Reasons[reason] = count
		}
		cp.FilteringStats = &stats
	}
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	dup := *t
	return &dup
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	dup := *f
	return &dup
}
