package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobscout/internal/config"
	"jobscout/internal/eta"
	"jobscout/internal/logging"
	"jobscout/internal/pipeline"
	"jobscout/internal/postings"
	"jobscout/internal/snapshot"
	"jobscout/internal/stage"
)

// Manager owns every live session and drives them through the pipeline.
type Manager struct {
	cfg       *config.Config
	logger    *slog.Logger
	collector stage.Collector
	filter    stage.Filter
	enricher  stage.Enricher
	snapshots *snapshot.Store
	postings  *postings.Store
	weights   pipeline.StageWeights
	retention time.Duration
	sample    time.Duration

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
	wg       sync.WaitGroup
}

type session struct {
	mu        sync.Mutex
	id        string
	request   pipeline.SearchRequest
	progress  *pipeline.MultiStageProgress
	estimator *eta.Estimator
	items     []pipeline.JobPosting
	cancel    context.CancelFunc
	evict     *time.Timer
}

// NewManager wires the orchestrator.
func NewManager(
	cfg *config.Config,
	logger *slog.Logger,
	collector stage.Collector,
	filter stage.Filter,
	enricher stage.Enricher,
	snapshots *snapshot.Store,
	postingStore *postings.Store,
) *Manager {
	weights := pipeline.StageWeights{
		Startup:    cfg.Pipeline.StartupWeight,
		Collection: cfg.Pipeline.CollectionWeight,
		Filtering:  cfg.Pipeline.FilteringWeight,
		Enrichment: cfg.Pipeline.EnrichmentWeight,
	}
	retention := time.Duration(cfg.Pipeline.SessionRetentionSeconds) * time.Second
	sample := time.Duration(cfg.Pipeline.ProgressSampleInterval) * time.Second
	if sample <= 0 {
		sample = 2 * time.Second
	}
	return &Manager{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "session"),
		collector: collector,
		filter:    filter,
		enricher:  enricher,
		snapshots: snapshots,
		postings:  postingStore,
		weights:   weights,
		retention: retention,
		sample:    sample,
		sessions:  make(map[string]*session),
	}
}

// Start launches a new search session and returns its identifier. The
// pipeline runs asynchronously; callers observe it through Progress.
func (m *Manager) Start(req pipeline.SearchRequest) (string, error) {
	if len(req.Queries) == 0 {
		return "", stage.Wrap(stage.ErrValidation, "session", "start", "at least one query is required", nil)
	}
	if len(req.Sites) == 0 {
		return "", stage.Wrap(stage.ErrValidation, "session", "start", "at least one site is required", nil)
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = uuid.NewString()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", stage.Wrap(stage.ErrValidation, "session", "start", "manager is shut down", nil)
	}
	if _, exists := m.sessions[req.SessionID]; exists {
		m.mu.Unlock()
		return "", stage.Wrap(stage.ErrValidation, "session", "start",
			fmt.Sprintf("session %s already exists", req.SessionID), nil)
	}

	s := &session{
		id:        req.SessionID,
		request:   req,
		progress:  pipeline.NewMultiStageProgress(req.SessionID),
		estimator: eta.NewEstimator(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	ctx = stage.WithSessionID(ctx, s.id)
	s.cancel = cancel
	m.sessions[s.id] = s
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("session started",
		logging.String(logging.FieldSessionID, s.id),
		logging.Int("queries", len(req.Queries)),
		logging.Int("sites", len(req.Sites)),
	)
	go m.run(ctx, s, pipeline.StageCollecting, nil)
	return s.id, nil
}

// run drives a session from the given stage to completion. carried holds the
// previous stage's output when resuming mid-pipeline.
func (m *Manager) run(ctx context.Context, s *session, from pipeline.Stage, carried []pipeline.JobPosting) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("session panicked",
				logging.String(logging.FieldSessionID, s.id),
				logging.Any("panic", r),
			)
			m.failSession(s, fmt.Sprintf("internal error: %v", r))
		}
	}()

	items := carried
	started := false
	for _, st := range pipeline.Stages() {
		if st == from {
			started = true
		}
		if !started {
			continue
		}

		var ok bool
		switch st {
		case pipeline.StageCollecting:
			items, ok = m.runCollection(stage.WithName(ctx, string(st)), s)
		case pipeline.StageFiltering:
			items, ok = m.runFiltering(stage.WithName(ctx, string(st)), s, items)
		case pipeline.StageEnriching:
			ok = m.runEnrichment(stage.WithName(ctx, string(st)), s, items)
		}
		if !ok {
			return
		}
	}
	m.completeSession(s)
}

func (m *Manager) runCollection(ctx context.Context, s *session) ([]pipeline.JobPosting, bool) {
	s.mu.Lock()
	s.progress.BeginStage(pipeline.StageCollecting)
	s.progress.RecomputeOverall(m.weights)
	s.mu.Unlock()
	m.saveSnapshot(s)

	stageStart := time.Now()
	done := make(chan struct{})
	go m.sampleCollection(s, done)

	result, err := m.collector.Execute(ctx, s.request)
	close(done)

	if err != nil {
		// Only a cancelled context means pause or stop; anything else is a
		// fatal stage failure.
		if ctx.Err() != nil {
			m.recordInterrupt(s, pipeline.StageCollecting, result)
			return nil, false
		}
		m.failStage(s, pipeline.StageCollecting, []string{fmt.Sprintf("collection failed: %v", err)})
		return nil, false
	}
	if !result.Success || len(result.Items) == 0 {
		msgs := result.Errors
		if len(result.Items) == 0 && result.Success {
			msgs = append(msgs, "collection produced no postings")
		}
		m.failStage(s, pipeline.StageCollecting, msgs)
		return nil, false
	}

	if dbErr := m.postings.ReplacePhase(ctx, s.id, postings.PhaseCollected, result.Items); dbErr != nil {
		m.logger.Error("failed to persist collected postings",
			logging.String(logging.FieldSessionID, s.id),
			logging.Error(dbErr),
		)
	}

	s.mu.Lock()
	sp := s.progress.StageProgressFor(pipeline.StageCollecting)
	sp.Errors = append(sp.Errors, result.Errors...)
	for _, msg := range result.Errors {
		s.progress.AppendError(msg)
	}
	s.progress.CompleteStage(pipeline.StageCollecting, result.ItemsProcessed, result.ItemsTotal)
	s.progress.RecomputeOverall(m.weights)
	s.items = result.Items
	s.estimator.RecordProgress(pipeline.StageCollecting,
		result.ItemsProcessed, result.ItemsTotal, time.Since(stageStart).Seconds())
	s.mu.Unlock()
	m.saveSnapshot(s)

	m.logger.Info("collection finished",
		logging.String(logging.FieldSessionID, s.id),
		logging.Int("postings", len(result.Items)),
		logging.Int("failedCells", len(result.Errors)),
	)
	return result.Items, true
}

// sampleCollection refreshes the collection sub-progress until the stage
// resolves.
func (m *Manager) sampleCollection(s *session, done <-chan struct{}) {
	ticker := time.NewTicker(m.sample)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			sub := m.collector.Progress(s.id)
			s.mu.Lock()
			sp := s.progress.StageProgressFor(pipeline.StageCollecting)
			if sp.Status == pipeline.StageStatusRunning {
				sp.Progress = sub
				s.progress.RecomputeOverall(m.weights)
				s.progress.UpdatedAt = time.Now().UTC()
			}
			s.mu.Unlock()
		}
	}
}

func (m *Manager) runFiltering(ctx context.Context, s *session, items []pipeline.JobPosting) ([]pipeline.JobPosting, bool) {
	s.mu.Lock()
	sp := s.progress.BeginStage(pipeline.StageFiltering)
	sp.ItemsTotal = len(items)
	s.progress.RecomputeOverall(m.weights)
	s.mu.Unlock()
	m.saveSnapshot(s)

	stageStart := time.Now()
	outcome, err := m.filter.Execute(ctx, items)
	if err != nil {
		var partial *stage.Result
		if outcome != nil {
			partial = &stage.Result{
				ItemsProcessed: outcome.Stats.FilteredCount + outcome.Stats.SkippedCount,
				ItemsTotal:     len(items),
			}
		}
		if ctx.Err() != nil {
			m.recordInterrupt(s, pipeline.StageFiltering, partial)
			return nil, false
		}
		m.failStage(s, pipeline.StageFiltering, []string{fmt.Sprintf("filtering failed: %v", err)})
		return nil, false
	}

	if dbErr := m.postings.ReplacePhase(ctx, s.id, postings.PhaseFiltered, outcome.Filtered); dbErr != nil {
		m.logger.Error("failed to persist filtered postings",
			logging.String(logging.FieldSessionID, s.id),
			logging.Error(dbErr),
		)
	}

	s.mu.Lock()
	sp = s.progress.StageProgressFor(pipeline.StageFiltering)
	sp.Errors = append(sp.Errors, outcome.Errors...)
	for _, msg := range outcome.Errors {
		s.progress.AppendError(msg)
	}
	stats := outcome.Stats
	s.progress.FilteringStats = &stats
	s.progress.CompleteStage(pipeline.StageFiltering, len(items), len(items))
	s.progress.RecomputeOverall(m.weights)
	s.items = outcome.Filtered
	s.estimator.RecordProgress(pipeline.StageFiltering,
		len(items), len(items), time.Since(stageStart).Seconds())
	s.mu.Unlock()
	m.saveSnapshot(s)

	m.logger.Info("filtering finished",
		logging.String(logging.FieldSessionID, s.id),
		logging.Int("passed", stats.FilteredCount),
		logging.Int("skipped", stats.SkippedCount),
	)
	return outcome.Filtered, true
}

func (m *Manager) runEnrichment(ctx context.Context, s *session, items []pipeline.JobPosting) bool {
	if len(items) == 0 {
		s.mu.Lock()
		s.progress.SkipStage(pipeline.StageEnriching)
		s.progress.RecomputeOverall(m.weights)
		s.mu.Unlock()
		m.saveSnapshot(s)
		m.logger.Info("enrichment skipped, nothing survived filtering",
			logging.String(logging.FieldSessionID, s.id))
		return true
	}
	if !m.enricher.Ready() {
		m.failStage(s, pipeline.StageEnriching,
			[]string{"enrichment credential is missing; set enrichment.api_key or OPENROUTER_API_KEY"})
		return false
	}

	s.mu.Lock()
	sp := s.progress.BeginStage(pipeline.StageEnriching)
	sp.ItemsTotal = len(items)
	s.progress.RecomputeOverall(m.weights)
	s.mu.Unlock()
	m.saveSnapshot(s)

	stageStart := time.Now()
	result, err := m.enricher.Execute(ctx, items)
	if err != nil {
		if ctx.Err() != nil {
			m.recordInterrupt(s, pipeline.StageEnriching, result)
			return false
		}
		m.failStage(s, pipeline.StageEnriching, []string{fmt.Sprintf("enrichment failed: %v", err)})
		return false
	}

	if dbErr := m.postings.ReplacePhase(ctx, s.id, postings.PhaseEnriched, result.Items); dbErr != nil {
		m.logger.Error("failed to persist enriched postings",
			logging.String(logging.FieldSessionID, s.id),
			logging.Error(dbErr),
		)
	}

	s.mu.Lock()
	sp = s.progress.StageProgressFor(pipeline.StageEnriching)
	sp.Errors = append(sp.Errors, result.Errors...)
	for _, msg := range result.Errors {
		s.progress.AppendError(msg)
	}
	s.progress.CompleteStage(pipeline.StageEnriching, result.ItemsProcessed, result.ItemsTotal)
	s.progress.RecomputeOverall(m.weights)
	s.items = result.Items
	s.estimator.RecordProgress(pipeline.StageEnriching,
		result.ItemsProcessed, result.ItemsTotal, time.Since(stageStart).Seconds())
	s.mu.Unlock()
	m.saveSnapshot(s)

	m.logger.Info("enrichment finished",
		logging.String(logging.FieldSessionID, s.id),
		logging.Int("enriched", result.ItemsProcessed-len(result.Errors)),
		logging.Int("failed", len(result.Errors)),
	)
	return true
}

// recordInterrupt updates partial counters after a pause or stop cancelled a
// stage. The status transition itself already happened synchronously in Pause
// or Stop.
func (m *Manager) recordInterrupt(s *session, st pipeline.Stage, partial *stage.Result) {
	s.mu.Lock()
	if partial != nil {
		sp := s.progress.StageProgressFor(st)
		if partial.ItemsProcessed > sp.ItemsProcessed {
			sp.ItemsProcessed = partial.ItemsProcessed
		}
		if partial.ItemsTotal > sp.ItemsTotal {
			sp.ItemsTotal = partial.ItemsTotal
		}
	}
	s.progress.RecomputeOverall(m.weights)
	s.mu.Unlock()
	m.saveSnapshot(s)
}

func (m *Manager) completeSession(s *session) {
	s.mu.Lock()
	s.progress.CurrentStage = pipeline.StageCompleted
	s.progress.Status = pipeline.StatusCompleted
	s.progress.IsComplete = true
	s.progress.CanStop = false
	s.progress.RecomputeOverall(m.weights)
	s.mu.Unlock()
	m.saveSnapshot(s)
	m.scheduleEviction(s)
	m.logger.Info("session completed", logging.String(logging.FieldSessionID, s.id))
}

// failSession marks the whole session failed outside any particular stage.
func (m *Manager) failSession(s *session, message string) {
	s.mu.Lock()
	s.progress.Status = pipeline.StatusError
	s.progress.CanStop = false
	s.progress.AppendError(message)
	if st, ok := s.progress.ActiveStage(); ok {
		s.progress.StageProgressFor(st).Status = pipeline.StageStatusFailed
	}
	s.progress.RecomputeOverall(m.weights)
	s.mu.Unlock()
	m.saveSnapshot(s)
	m.scheduleEviction(s)
}

// failStage marks one stage failed and the session errored.
func (m *Manager) failStage(s *session, st pipeline.Stage, messages []string) {
	s.mu.Lock()
	sp := s.progress.StageProgressFor(st)
	if sp.Status == pipeline.StageStatusPending {
		s.progress.BeginStage(st)
	}
	sp.Status = pipeline.StageStatusFailed
	sp.Errors = append(sp.Errors, messages...)
	for _, msg := range messages {
		s.progress.AppendError(msg)
	}
	s.progress.Status = pipeline.StatusError
	s.progress.CanStop = false
	s.progress.RecomputeOverall(m.weights)
	s.mu.Unlock()
	m.saveSnapshot(s)
	m.scheduleEviction(s)
	m.logger.Error("stage failed",
		logging.String(logging.FieldSessionID, s.id),
		logging.String(logging.FieldStage, string(st)),
		logging.Int("errors", len(messages)),
	)
}

// Pause suspends a running session. The active stage is cancelled and will
// replay from its start on resume.
func (m *Manager) Pause(sessionID string) error {
	s, err := m.lookup(sessionID, "pause")
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.progress.Status != pipeline.StatusRunning {
		status := s.progress.Status
		s.mu.Unlock()
		return stage.Wrap(stage.ErrValidation, "session", "pause",
			fmt.Sprintf("only a running search can be paused, session is %s", status), nil)
	}
	now := time.Now().UTC()
	s.progress.Status = pipeline.StatusPaused
	s.progress.CanStop = false
	if st, ok := s.progress.ActiveStage(); ok {
		sp := s.progress.StageProgressFor(st)
		sp.Status = pipeline.StageStatusPaused
		sp.PausedAt = &now
	}
	s.progress.AppendError(pipeline.PauseMessage)
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.saveSnapshot(s)
	m.logger.Info("session paused", logging.String(logging.FieldSessionID, sessionID))
	return nil
}

// Stop terminates a session for good. Stop is gated on CanStop, so paused,
// stopped, completed, and errored sessions all reject it.
func (m *Manager) Stop(sessionID string) error {
	s, err := m.lookup(sessionID, "stop")
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.progress.CanStop {
		status := s.progress.Status
		s.mu.Unlock()
		return stage.Wrap(stage.ErrValidation, "session", "stop",
			fmt.Sprintf("session cannot be stopped, it is %s", status), nil)
	}
	s.progress.Status = pipeline.StatusStopped
	s.progress.IsComplete = true
	s.progress.CanStop = false
	if st, ok := s.progress.ActiveStage(); ok {
		s.progress.StageProgressFor(st).Status = pipeline.StageStatusStopped
	}
	s.progress.AppendError(pipeline.StopMessage)
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.saveSnapshot(s)
	m.scheduleEviction(s)
	m.logger.Info("session stopped", logging.String(logging.FieldSessionID, sessionID))
	return nil
}

// Resume restarts a paused session. The paused stage replays from the
// persisted output of the stage before it.
func (m *Manager) Resume(sessionID string) error {
	s, err := m.lookup(sessionID, "resume")
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.progress.Status != pipeline.StatusPaused {
		status := s.progress.Status
		s.mu.Unlock()
		return stage.Wrap(stage.ErrValidation, "session", "resume",
			fmt.Sprintf("only a paused search can be resumed, session is %s", status), nil)
	}

	from := nextStage(s.progress)
	s.progress.StripPauseMessages()
	s.progress.Status = pipeline.StatusRunning
	s.progress.CanStop = true
	sp := s.progress.StageProgressFor(from)
	if sp.Status == pipeline.StageStatusPaused {
		sp.Status = pipeline.StageStatusPending
		sp.PausedAt = nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	ctx = stage.WithSessionID(ctx, s.id)
	s.cancel = cancel
	s.mu.Unlock()

	carried, err := m.replayInput(ctx, sessionID, from)
	if err != nil {
		s.mu.Lock()
		s.progress.Status = pipeline.StatusPaused
		s.progress.CanStop = false
		s.mu.Unlock()
		return stage.Wrap(stage.ErrTransient, "session", "resume", "load persisted postings", err)
	}

	m.mu.Lock()
	m.wg.Add(1)
	m.mu.Unlock()
	m.logger.Info("session resumed",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String(logging.FieldStage, string(from)),
	)
	go m.run(ctx, s, from, carried)
	return nil
}

// nextStage picks the stage a resume should start from: the paused stage
// itself, or the first pending one when the pause landed between stages.
func nextStage(progress *pipeline.MultiStageProgress) pipeline.Stage {
	for _, st := range pipeline.Stages() {
		sp := progress.StageProgressFor(st)
		switch sp.Status {
		case pipeline.StageStatusCompleted, pipeline.StageStatusSkipped:
			continue
		default:
			return st
		}
	}
	return pipeline.StageCollecting
}

// replayInput loads the persisted input items for a stage replay.
func (m *Manager) replayInput(ctx context.Context, sessionID string, from pipeline.Stage) ([]pipeline.JobPosting, error) {
	switch from {
	case pipeline.StageFiltering:
		return m.postings.ItemsForPhase(ctx, sessionID, postings.PhaseCollected)
	case pipeline.StageEnriching:
		return m.postings.ItemsForPhase(ctx, sessionID, postings.PhaseFiltered)
	default:
		return nil, nil
	}
}

// Progress returns a deep copy of a session's state with freshly derived ETA
// fields. Evicted sessions fall back to their snapshot on disk.
func (m *Manager) Progress(sessionID string) (*pipeline.MultiStageProgress, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		snap, err := m.snapshots.Load(sessionID)
		if err != nil {
			return nil, stage.Wrap(stage.ErrNotFound, "session", "progress",
				fmt.Sprintf("session %s", sessionID), err)
		}
		return snap.Progress, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, active := s.progress.ActiveStage(); active {
		sp := s.progress.StageProgressFor(st)
		if sp.Status == pipeline.StageStatusRunning && sp.StartedAt != nil && sp.ItemsProcessed > 0 {
			elapsed := time.Since(*sp.StartedAt).Seconds()
			s.estimator.RecordProgress(st, sp.ItemsProcessed, sp.ItemsTotal, elapsed)
		}
	}
	clone := s.progress.Clone()
	s.estimator.Apply(clone)
	return clone, nil
}

// Sessions lists every persisted session, newest first.
func (m *Manager) Sessions() ([]*snapshot.Snapshot, error) {
	return m.snapshots.List()
}

// Delete removes a session's snapshot and stored postings. Running sessions
// must be stopped first.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if ok {
		s.mu.Lock()
		status := s.progress.Status
		s.mu.Unlock()
		if status == pipeline.StatusRunning || status == pipeline.StatusPaused {
			return stage.Wrap(stage.ErrValidation, "session", "delete",
				fmt.Sprintf("session is %s, stop it first", status), nil)
		}
		m.evictNow(sessionID)
	}

	if !m.snapshots.Delete(sessionID) {
		return stage.Wrap(stage.ErrTransient, "session", "delete", "remove snapshot", nil)
	}
	if err := m.postings.DeleteSession(ctx, sessionID); err != nil {
		return stage.Wrap(stage.ErrTransient, "session", "delete", "remove stored postings", err)
	}
	return nil
}

// RestoreSessions loads resumable snapshots back into memory after a daemon
// restart. A session that was running when the process died cannot still be
// running, so it is normalized to paused and waits for an explicit resume.
func (m *Manager) RestoreSessions() error {
	snaps, err := m.snapshots.List()
	if err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}

	restored := 0
	for _, snap := range snaps {
		if snap.Progress == nil || snap.Progress.IsComplete {
			continue
		}
		switch snap.Progress.Status {
		case pipeline.StatusRunning, pipeline.StatusPaused:
		default:
			continue
		}

		progress := snap.Progress.Clone()
		if progress.Status == pipeline.StatusRunning {
			now := time.Now().UTC()
			progress.Status = pipeline.StatusPaused
			progress.CanStop = false
			if st, ok := progress.ActiveStage(); ok {
				sp := progress.StageProgressFor(st)
				sp.Status = pipeline.StageStatusPaused
				sp.PausedAt = &now
			}
			progress.AppendError(pipeline.PauseMessage)
		}

		s := &session{
			id:        snap.SessionID,
			request:   snap.Request,
			progress:  progress,
			estimator: eta.NewEstimator(),
			items:     snap.Items,
		}
		m.mu.Lock()
		m.sessions[s.id] = s
		m.mu.Unlock()
		m.saveSnapshot(s)
		restored++
	}

	if restored > 0 {
		m.logger.Info("restored interrupted sessions", logging.Int("count", restored))
	}
	return nil
}

// Close cancels every live session and waits for their goroutines.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		cancel := s.cancel
		if s.evict != nil {
			s.evict.Stop()
		}
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
	m.wg.Wait()
}

func (m *Manager) lookup(sessionID, op string) (*session, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, stage.Wrap(stage.ErrNotFound, "session", op,
			fmt.Sprintf("session %s", sessionID), nil)
	}
	return s, nil
}

// saveSnapshot persists the session state; persistence failures are logged
// and never abort the pipeline.
func (m *Manager) saveSnapshot(s *session) {
	s.mu.Lock()
	snap := &snapshot.Snapshot{
		SessionID: s.id,
		Request:   s.request,
		Settings: snapshot.SessionSettings{
			Filtering:        m.cfg.Filtering,
			EnrichmentModel:  m.cfg.Enrichment.Model,
			EnrichmentAPIKey: m.cfg.Enrichment.APIKey,
		},
		Progress: s.progress.Clone(),
		Items:    append([]pipeline.JobPosting(nil), s.items...),
	}
	s.mu.Unlock()

	if _, _, err := m.snapshots.Save(snap); err != nil {
		m.logger.Error("failed to save snapshot",
			logging.String(logging.FieldSessionID, s.id),
			logging.Error(err),
		)
	}
}

// scheduleEviction drops a finished session from memory after the retention
// window. Its snapshot stays on disk.
func (m *Manager) scheduleEviction(s *session) {
	if m.retention <= 0 {
		return
	}
	s.mu.Lock()
	if s.evict != nil {
		s.evict.Stop()
	}
	s.evict = time.AfterFunc(m.retention, func() {
		m.evictNow(s.id)
	})
	s.mu.Unlock()
}

func (m *Manager) evictNow(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	if s.evict != nil {
		s.evict.Stop()
	}
	s.mu.Unlock()
	m.logger.Debug("session evicted from memory", logging.String(logging.FieldSessionID, sessionID))
}
