package eta

import (
	"math"
	"sync"

	"jobscout/internal/pipeline"
)

const (
	defaultWindowSize = 10
	// defaultSpeed is the assumed items/second throughput for stages with no
	// recorded samples yet.
	defaultSpeed = 1.5
	// defaultSpeedConfidence is attributed to estimates built purely on the
	// assumed throughput.
	defaultSpeedConfidence = 0.2
	// smoothingAlpha weights the newest sample in the exponential average.
	smoothingAlpha = 0.3
)

// Estimate is a smoothed seconds-remaining value with a confidence score in
// (0, 1].
type Estimate struct {
	Seconds    float64
	Confidence float64
}

// Estimator maintains bounded rolling speed windows per stage. One estimator
// serves one session so stale samples from a prior session cannot leak into a
// new estimate.
type Estimator struct {
	mu         sync.Mutex
	windowSize int
	assumed    float64
	windows    map[pipeline.Stage][]float64
}

// Option customizes an Estimator.
type Option func(*Estimator)

// WithWindowSize overrides the rolling window length.
func WithWindowSize(size int) Option {
	return func(e *Estimator) {
		if size > 0 {
			e.windowSize = size
		}
	}
}

// WithAssumedSpeed overrides the throughput assumed for unstarted stages.
func WithAssumedSpeed(itemsPerSecond float64) Option {
	return func(e *Estimator) {
		if itemsPerSecond > 0 {
			e.assumed = itemsPerSecond
		}
	}
}

// NewEstimator constructs an estimator with empty windows.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		windowSize: defaultWindowSize,
		assumed:    defaultSpeed,
		windows:    make(map[pipeline.Stage][]float64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RecordProgress appends an instantaneous speed sample for a stage. Samples
// with non-positive elapsed time or negative counters are discarded rather
// than poisoning the window.
func (e *Estimator) RecordProgress(stage pipeline.Stage, itemsProcessed, itemsTotal int, elapsedSeconds float64) {
	if elapsedSeconds <= 0 || itemsProcessed < 0 || itemsTotal < 0 {
		return
	}
	speed := float64(itemsProcessed) / elapsedSeconds
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	window := append(e.windows[stage], speed)
	if len(window) > e.windowSize {
		window = window[len(window)-e.windowSize:]
	}
	e.windows[stage] = window
}

// StageEstimate reports the smoothed ETA for one stage. ok is false when no
// samples exist or the smoothed speed is zero; callers must surface that as
// "unknown", never as infinity or NaN.
func (e *Estimator) StageEstimate(stage pipeline.Stage, itemsProcessed, itemsTotal int) (Estimate, bool) {
	e.mu.Lock()
	window := append([]float64(nil), e.windows[stage]...)
	size := e.windowSize
	e.mu.Unlock()

	if len(window) == 0 {
		return Estimate{}, false
	}
	speed := smooth(window)
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return Estimate{}, false
	}

	remaining := itemsTotal - itemsProcessed
	if remaining < 0 {
		remaining = 0
	}
	seconds := float64(remaining) / speed
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return Estimate{}, false
	}
	return Estimate{Seconds: seconds, Confidence: confidence(len(window), size)}, true
}

// OverallEstimate sums the remaining time of the current stage with the full
// estimated duration of not-yet-started stages. Unstarted stages fall back to
// the assumed throughput until real samples exist; completed and skipped
// stages contribute nothing.
func (e *Estimator) OverallEstimate(progress *pipeline.MultiStageProgress) (Estimate, bool) {
	if progress == nil {
		return Estimate{}, false
	}

	var (
		totalSeconds  float64
		minConfidence = 1.0
		contributed   bool
	)
	for _, stage := range pipeline.Stages() {
		sp, ok := progress.Stages[stage]
		if !ok {
			continue
		}
		switch sp.Status {
		case pipeline.StageStatusCompleted, pipeline.StageStatusSkipped:
			continue
		case pipeline.StageStatusPending:
			total := sp.ItemsTotal
			if total == 0 {
				total = inheritedTotal(progress)
			}
			if total == 0 {
				continue
			}
			totalSeconds += float64(total) / e.assumed
			if defaultSpeedConfidence < minConfidence {
				minConfidence = defaultSpeedConfidence
			}
			contributed = true
		default:
			est, ok := e.StageEstimate(stage, sp.ItemsProcessed, sp.ItemsTotal)
			if !ok {
				// Remaining time of an active stage with no usable samples is
				// unknowable; the overall ETA is unknown too.
				return Estimate{}, false
			}
			totalSeconds += est.Seconds
			if est.Confidence < minConfidence {
				minConfidence = est.Confidence
			}
			contributed = true
		}
	}
	if !contributed {
		return Estimate{}, false
	}
	return Estimate{Seconds: totalSeconds, Confidence: minConfidence}, true
}

// Apply recomputes the derived ETA fields on a progress aggregate in place.
func (e *Estimator) Apply(progress *pipeline.MultiStageProgress) {
	if progress == nil {
		return
	}
	for _, stage := range pipeline.Stages() {
		sp, ok := progress.Stages[stage]
		if !ok {
			continue
		}
		if sp.Status == pipeline.StageStatusCompleted || sp.Status == pipeline.StageStatusSkipped {
			sp.ETASeconds = nil
			sp.ETAConfidence = nil
			continue
		}
		est, ok := e.StageEstimate(stage, sp.ItemsProcessed, sp.ItemsTotal)
		if !ok {
			sp.ETASeconds = nil
			zero := 0.0
			sp.ETAConfidence = &zero
			continue
		}
		seconds := est.Seconds
		conf := est.Confidence
		sp.ETASeconds = &seconds
		sp.ETAConfidence = &conf
	}
	if est, ok := e.OverallEstimate(progress); ok {
		seconds := est.Seconds
		conf := est.Confidence
		progress.ETASeconds = &seconds
		progress.ETAConfidence = &conf
	} else {
		progress.ETASeconds = nil
		progress.ETAConfidence = nil
	}
}

// Reset clears every rolling window. Called once at session start.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.windows = make(map[pipeline.Stage][]float64)
}

func smooth(window []float64) float64 {
	ema := window[0]
	for _, speed := range window[1:] {
		ema = smoothingAlpha*speed + (1-smoothingAlpha)*ema
	}
	return ema
}

// confidence starts low and rises as samples accumulate, never exceeding 1.
func confidence(samples, windowSize int) float64 {
	if windowSize <= 0 {
		return 0
	}
	value := float64(samples) / float64(windowSize)
	if value > 1 {
		return 1
	}
	if value <= 0 {
		return 0
	}
	return value
}

// inheritedTotal guesses the workload of an unstarted stage from the stages
// before it: items flow through the pipeline, so the current stage's total is
// the best available proxy.
func inheritedTotal(progress *pipeline.MultiStageProgress) int {
	best := 0
	for _, stage := range pipeline.Stages() {
		sp, ok := progress.Stages[stage]
		if !ok {
			continue
		}
		if sp.ItemsTotal > 0 {
			best = sp.ItemsTotal
		}
	}
	return best
}
