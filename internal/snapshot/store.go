package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/pipeline"
)

// SchemaVersion is bumped when the on-disk snapshot shape changes.
const SchemaVersion = 1

var (
	// ErrNotFound is returned when no snapshot exists for a session.
	ErrNotFound = errors.New("snapshot not found")
	// ErrMalformed is returned when a snapshot file cannot be decoded or is
	// structurally invalid.
	ErrMalformed = errors.New("snapshot malformed")
)

// SessionSettings is the sanitized settings block persisted with a session.
// The enrichment credential is always written as an empty string.
type SessionSettings struct {
	Filtering        config.Filtering `json:"filtering"`
	EnrichmentModel  string           `json:"enrichmentModel,omitempty"`
	EnrichmentAPIKey string           `json:"enrichmentApiKey"`
}

// Snapshot is the durable representation of a session.
type Snapshot struct {
	SessionID       string                       `json:"sessionId"`
	SchemaVersion   int                          `json:"schemaVersion"`
	SnapshotVersion int                          `json:"snapshotVersion"`
	CreatedAt       time.Time                    `json:"createdAt"`
	UpdatedAt       time.Time                    `json:"updatedAt"`
	Request         pipeline.SearchRequest       `json:"request"`
	Settings        SessionSettings              `json:"settings"`
	Progress        *pipeline.MultiStageProgress `json:"progress"`
	Items           []pipeline.JobPosting        `json:"items,omitempty"`
	CanResume       bool                         `json:"canResume"`
}

// StorageStats summarizes the snapshot directory.
type StorageStats struct {
	Sessions   int   `json:"sessions"`
	TotalBytes int64 `json:"totalBytes"`
}

// Store manages snapshot files under a single directory.
type Store struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStore creates the sessions directory if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("snapshot directory must be set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &Store{dir: dir, logger: logging.NewComponentLogger(logger, "snapshot")}, nil
}

// Dir returns the snapshot directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Save persists a snapshot, bumping the stored version by one. A missing or
// unreadable prior file means the save starts at version 1. The credential is
// redacted and CanResume recomputed before anything touches disk.
func (s *Store) Save(snap *Snapshot) (string, int, error) {
	if snap == nil || strings.TrimSpace(snap.SessionID) == "" {
		return "", 0, errors.New("snapshot requires a session id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.pathFor(snap.SessionID)
	previousVersion := 0
	if existing, err := s.readFile(path); err == nil {
		previousVersion = existing.SnapshotVersion
	}

	now := time.Now().UTC()
	snap.SchemaVersion = SchemaVersion
	snap.SnapshotVersion = previousVersion + 1
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = now
	}
	snap.UpdatedAt = now
	snap.Settings.EnrichmentAPIKey = ""
	snap.CanResume = computeCanResume(snap.Progress)

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", 0, fmt.Errorf("encode snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return "", 0, fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", 0, fmt.Errorf("finalize snapshot: %w", err)
	}
	return path, snap.SnapshotVersion, nil
}

// Load reads and validates one snapshot. Missing files yield ErrNotFound and
// undecodable or structurally invalid files yield ErrMalformed.
func (s *Store) Load(sessionID string) (*Snapshot, error) {
	return s.readFile(s.pathFor(sessionID))
}

// List enumerates all snapshots sorted by update time, newest first. A single
// corrupt file is logged and skipped so it cannot hide the others.
func (s *Store) List() ([]*Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot directory: %w", err)
	}

	snapshots := make([]*Snapshot, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		snap, err := s.readFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot",
				logging.String("file", entry.Name()),
				logging.Error(err),
			)
			continue
		}
		snapshots = append(snapshots, snap)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].UpdatedAt.After(snapshots[j].UpdatedAt)
	})
	return snapshots, nil
}

// Delete removes a session's snapshot. It reports success as a boolean;
// a missing file counts as deleted.
func (s *Store) Delete(sessionID string) bool {
	err := os.Remove(s.pathFor(sessionID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to delete snapshot",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Error(err),
		)
		return false
	}
	return true
}

// Stats reports housekeeping numbers; failures degrade to zeros.
func (s *Store) Stats() StorageStats {
	stats := StorageStats{}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return stats
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		stats.Sessions++
		if info, err := entry.Info(); err == nil {
			stats.TotalBytes += info.Size()
		}
	}
	return stats
}

func (s *Store) readFile(path string) (*Snapshot, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func validate(snap *Snapshot) error {
	if strings.TrimSpace(snap.SessionID) == "" {
		return fmt.Errorf("%w: missing session id", ErrMalformed)
	}
	if snap.SchemaVersion <= 0 {
		return fmt.Errorf("%w: missing schema version", ErrMalformed)
	}
	if snap.SnapshotVersion <= 0 {
		return fmt.Errorf("%w: missing snapshot version", ErrMalformed)
	}
	if snap.Progress == nil {
		return fmt.Errorf("%w: missing progress", ErrMalformed)
	}
	return nil
}

func computeCanResume(progress *pipeline.MultiStageProgress) bool {
	if progress == nil {
		return false
	}
	return !progress.IsComplete && progress.Status != pipeline.StatusError
}

var unsafeSessionChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeSessionID maps an opaque session id onto a safe filename stem.
func SanitizeSessionID(id string) string {
	cleaned := unsafeSessionChars.ReplaceAllString(strings.TrimSpace(id), "_")
	if cleaned == "" {
		cleaned = "session"
	}
	return cleaned
}

func (s *Store) pathFor(sessionID string) string {
	return filepath.Join(s.dir, SanitizeSessionID(sessionID)+".json")
}
