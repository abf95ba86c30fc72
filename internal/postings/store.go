package postings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"jobscout/internal/config"
	"jobscout/internal/pipeline"
)

// Phase identifies which pipeline output a stored posting belongs to.
type Phase string

const (
	PhaseCollected Phase = "collected"
	PhaseFiltered  Phase = "filtered"
	PhaseEnriched  Phase = "enriched"
)

// Store manages posting persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the posting database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.PostingsDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// ReplacePhase atomically replaces a session's postings for one phase.
func (s *Store) ReplacePhase(ctx context.Context, sessionID string, phase Phase, items []pipeline.JobPosting) error {
	if sessionID == "" {
		return errors.New("session id must not be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM postings WHERE session_id = ? AND phase = ?`,
		sessionID, string(phase),
	); err != nil {
		return fmt.Errorf("clear phase: %w", err)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO postings (session_id, phase, company, title, site, payload, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		payload, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal posting: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			sessionID, string(phase), item.Company, item.Title, item.Site,
			string(payload), timestamp,
		); err != nil {
			return fmt.Errorf("insert posting: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// ItemsForPhase returns a session's postings for one phase in insertion order.
func (s *Store) ItemsForPhase(ctx context.Context, sessionID string, phase Phase) ([]pipeline.JobPosting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM postings WHERE session_id = ? AND phase = ? ORDER BY id`,
		sessionID, string(phase),
	)
	if err != nil {
		return nil, fmt.Errorf("query phase: %w", err)
	}
	defer rows.Close()

	var items []pipeline.JobPosting
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		var item pipeline.JobPosting
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return nil, fmt.Errorf("decode posting: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// PhaseCounts reports how many postings each phase holds for a session.
func (s *Store) PhaseCounts(ctx context.Context, sessionID string) (map[Phase]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT phase, COUNT(*) FROM postings WHERE session_id = ? GROUP BY phase`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[Phase]int)
	for rows.Next() {
		var phase string
		var count int
		if err := rows.Scan(&phase, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Phase(phase)] = count
	}
	return counts, rows.Err()
}

// DeleteSession removes every stored posting for a session.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM postings WHERE session_id = ?`, sessionID,
	); err != nil {
		return fmt.Errorf("delete session postings: %w", err)
	}
	return nil
}
