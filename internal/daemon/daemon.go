package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"jobscout/internal/collect"
	"jobscout/internal/config"
	"jobscout/internal/enrich"
	"jobscout/internal/filtering"
	"jobscout/internal/logging"
	"jobscout/internal/pipeline"
	"jobscout/internal/postings"
	"jobscout/internal/session"
	"jobscout/internal/snapshot"
	"jobscout/internal/stage"
)

// Daemon coordinates the pipeline services and enforces single-instance
// execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	manager   *session.Manager
	snapshots *snapshot.Store
	store     *postings.Store
	enricher  stage.Enricher
	sources   []collect.Source
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
}

// Option customizes daemon construction.
type Option func(*Daemon)

// WithSources registers the collection sources the daemon searches against.
func WithSources(sources ...collect.Source) Option {
	return func(d *Daemon) {
		d.sources = append(d.sources, sources...)
	}
}

// Status reports daemon runtime information.
type Status struct {
	Running        bool           `json:"running"`
	PID            int            `json:"pid"`
	StartedAt      time.Time      `json:"startedAt"`
	SnapshotDir    string         `json:"snapshotDir"`
	PostingsDBPath string         `json:"postingsDbPath"`
	LockFilePath   string         `json:"lockFilePath"`
	Sessions       int            `json:"sessions"`
	StorageBytes   int64          `json:"storageBytes"`
	Components     []stage.Health `json:"components"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(d)
	}

	store, err := postings.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open posting store: %w", err)
	}
	snapshots, err := snapshot.NewStore(cfg.SessionsDir(), logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	collector := collect.NewCoordinator(logger, d.sources...)
	engine := filtering.NewEngine(cfg.Filtering, logger)
	enricher := enrich.NewEnricher(enrich.NewClient(cfg.Enrichment), logger)

	d.store = store
	d.snapshots = snapshots
	d.enricher = enricher
	d.manager = session.NewManager(cfg, logger, collector, engine, enricher, snapshots, store)
	d.lockPath = filepath.Join(cfg.Paths.LogDir, "jobscoutd.lock")
	d.lock = flock.New(d.lockPath)
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, restores interrupted sessions, and brings
// up the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another jobscout daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.manager.RestoreSessions(); err != nil {
		d.logger.Warn("session restore failed", logging.Error(err))
	}
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			_ = d.lock.Unlock()
			cancel()
			d.cancel = nil
			return err
		}
	}

	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("jobscout daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the API, cancels live sessions, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.manager.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("jobscout daemon stopped")
}

// Close stops the daemon and releases held resources.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// StartSearch launches a session, filling request gaps from the configured
// search defaults.
func (d *Daemon) StartSearch(req pipeline.SearchRequest) (string, error) {
	if len(req.Queries) == 0 {
		req.Queries = d.cfg.Search.Queries
	}
	if len(req.Sites) == 0 {
		req.Sites = d.cfg.Search.Sites
	}
	if len(req.Countries) == 0 {
		req.Countries = d.cfg.Search.Countries
	}
	if req.HoursOld <= 0 {
		req.HoursOld = d.cfg.Search.HoursOld
	}
	if req.ResultsWanted <= 0 {
		req.ResultsWanted = d.cfg.Search.ResultsWanted
	}
	if !req.RemoteOnly {
		req.RemoteOnly = d.cfg.Search.RemoteOnly
	}
	return d.manager.Start(req)
}

// Progress returns a session's current state.
func (d *Daemon) Progress(sessionID string) (*pipeline.MultiStageProgress, error) {
	return d.manager.Progress(sessionID)
}

// StopSearch stops a session.
func (d *Daemon) StopSearch(sessionID string) error {
	return d.manager.Stop(sessionID)
}

// PauseSearch pauses a session.
func (d *Daemon) PauseSearch(sessionID string) error {
	return d.manager.Pause(sessionID)
}

// ResumeSearch resumes a paused session.
func (d *Daemon) ResumeSearch(sessionID string) error {
	return d.manager.Resume(sessionID)
}

// Sessions lists persisted session snapshots, newest first.
func (d *Daemon) Sessions() ([]*snapshot.Snapshot, error) {
	return d.manager.Sessions()
}

// DeleteSession removes a session's snapshot and stored postings.
func (d *Daemon) DeleteSession(ctx context.Context, sessionID string) error {
	return d.manager.Delete(ctx, sessionID)
}

// SessionItems returns a session's stored postings for one pipeline phase.
func (d *Daemon) SessionItems(ctx context.Context, sessionID string, phase postings.Phase) ([]pipeline.JobPosting, error) {
	return d.store.ItemsForPhase(ctx, sessionID, phase)
}

// Status reports the current daemon state.
func (d *Daemon) Status() Status {
	stats := d.snapshots.Stats()
	components := []stage.Health{
		d.collectorHealth(),
		stage.Healthy("filtering"),
		d.enricherHealth(),
	}
	return Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		StartedAt:      d.startedAt,
		SnapshotDir:    d.snapshots.Dir(),
		PostingsDBPath: d.store.Path(),
		LockFilePath:   d.lockPath,
		Sessions:       stats.Sessions,
		StorageBytes:   stats.TotalBytes,
		Components:     components,
	}
}

func (d *Daemon) collectorHealth() stage.Health {
	if len(d.sources) == 0 {
		return stage.Unhealthy("collection", "no sources registered")
	}
	names := make([]string, 0, len(d.sources))
	for _, source := range d.sources {
		names = append(names, source.Name())
	}
	health := stage.Healthy("collection")
	health.Detail = strings.Join(names, ", ")
	return health
}

func (d *Daemon) enricherHealth() stage.Health {
	if d.enricher.Ready() {
		return stage.Healthy("enrichment")
	}
	return stage.Unhealthy("enrichment", "api key not configured")
}
