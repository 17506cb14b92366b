// Package castdb is the SQLite registry of generated audio casts.
//
// The UNIQUE(feature_path, episode_number) constraint is the authority on
// episode uniqueness. A row is reserved as "pending" before any file is
// written, promoted to "complete" once both artifacts exist, and deleted
// if persistence fails.
package castdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Status values stored in audio_casts.status.
const (
	StatusPending  = "pending"
	StatusComplete = "complete"
)

// Default and maximum page sizes for List.
const (
	DefaultListLimit = 20
	MaxListLimit     = 500
)

var (
	// ErrDuplicate means the (feature, episode) pair is already registered.
	ErrDuplicate = errors.New("castdb: episode already registered")
	// ErrNotFound means no row matched the given id.
	ErrNotFound = errors.New("castdb: cast not found")
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Reservation is the row written before artifacts hit the disk.
type Reservation struct {
	ID              string
	FeaturePath     string
	EpisodeNumber   int
	AgentName       string
	ScriptPath      string
	AudioPath       string
	TranscriptChars int
}

// Cast is one registry row.
type Cast struct {
	ID              string     `json:"id"`
	FeaturePath     string     `json:"feature_path"`
	EpisodeNumber   int        `json:"episode_number"`
	AgentName       string     `json:"agent_name"`
	ScriptPath      string     `json:"script_path"`
	AudioPath       string     `json:"audio_path"`
	TranscriptChars int        `json:"transcript_chars"`
	AudioBytes      int64      `json:"audio_bytes"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Filter narrows List. Zero values mean "any".
type Filter struct {
	FeaturePath    string
	Limit          int
	IncludePending bool
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store wraps the registry database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the registry at path and migrates it.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("castdb: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("castdb: create data dir: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("castdb: open database: %w", err)
	}
	// A single connection keeps the per-connection pragmas in force.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("castdb: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("castdb: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS audio_casts (
			id               TEXT PRIMARY KEY,
			feature_path     TEXT NOT NULL,
			episode_number   INTEGER NOT NULL CHECK (episode_number > 0),
			agent_name       TEXT NOT NULL,
			script_path      TEXT NOT NULL,
			audio_path       TEXT NOT NULL,
			transcript_chars INTEGER NOT NULL DEFAULT 0,
			audio_bytes      INTEGER NOT NULL DEFAULT 0,
			status           TEXT NOT NULL DEFAULT 'pending',
			created_at       TEXT NOT NULL,
			completed_at     TEXT,
			UNIQUE (feature_path, episode_number)
		);

		CREATE INDEX IF NOT EXISTS idx_audio_casts_feature ON audio_casts(feature_path, created_at);
		CREATE INDEX IF NOT EXISTS idx_audio_casts_status  ON audio_casts(status, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Writes ──────────────────────────────────────────────────────────────────

// Reserve inserts a pending row. It returns ErrDuplicate when the
// (feature, episode) pair is taken, whatever the other row's status.
func (s *Store) Reserve(ctx context.Context, r Reservation) error {
	if r.ID == "" || r.FeaturePath == "" || r.EpisodeNumber < 1 {
		return errors.New("castdb: reservation needs id, feature and a positive episode")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audio_casts
			(id, feature_path, episode_number, agent_name, script_path, audio_path, transcript_chars, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FeaturePath, r.EpisodeNumber, r.AgentName, r.ScriptPath, r.AudioPath,
		r.TranscriptChars, StatusPending, formatTime(timeNow()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("reserving cast: %w", err)
	}
	return nil
}

// Complete marks a reserved row as complete.
func (s *Store) Complete(ctx context.Context, id string, audioBytes int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE audio_casts SET status = ?, audio_bytes = ?, completed_at = ? WHERE id = ?`,
		StatusComplete, audioBytes, formatTime(timeNow()), id,
	)
	if err != nil {
		return fmt.Errorf("completing cast: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Discard deletes a row. Deleting a missing row is not an error.
func (s *Store) Discard(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM audio_casts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("discarding cast: %w", err)
	}
	return nil
}

// DiscardStale deletes pending rows older than maxAge. Such rows belong
// to a process that died mid-persist. A non-positive maxAge disables the
// sweep so live reservations are never removed.
func (s *Store) DiscardStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := formatTime(timeNow().Add(-maxAge))
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audio_casts WHERE status = ? AND created_at < ?`,
		StatusPending, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("discarding stale casts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ─── Reads ───────────────────────────────────────────────────────────────────

// Exists reports whether any row (pending or complete) holds the pair.
func (s *Store) Exists(ctx context.Context, featurePath string, episode int) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audio_casts WHERE feature_path = ? AND episode_number = ?`,
		featurePath, episode,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking cast: %w", err)
	}
	return n > 0, nil
}

// NextEpisode returns one past the highest registered episode for the
// feature, or 1 when none exist.
func (s *Store) NextEpisode(ctx context.Context, featurePath string) (int, error) {
	var highest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(episode_number) FROM audio_casts WHERE feature_path = ?`,
		featurePath,
	).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("querying next episode: %w", err)
	}
	if !highest.Valid {
		return 1, nil
	}
	return int(highest.Int64) + 1, nil
}

// Get returns one row by id.
func (s *Store) Get(ctx context.Context, id string) (*Cast, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	c, err := scanCast(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting cast: %w", err)
	}
	return c, nil
}

// List returns casts newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Cast, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	var (
		where []string
		args  []any
	)
	if f.FeaturePath != "" {
		where = append(where, "feature_path = ?")
		args = append(args, f.FeaturePath)
	}
	if !f.IncludePending {
		where = append(where, "status = ?")
		args = append(args, StatusComplete)
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, episode_number DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing casts: %w", err)
	}
	defer rows.Close()

	var out []Cast
	for rows.Next() {
		c, err := scanCast(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning cast: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing casts: %w", err)
	}
	return out, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

const selectColumns = `SELECT id, feature_path, episode_number, agent_name, script_path, audio_path,
	transcript_chars, audio_bytes, status, created_at, completed_at FROM audio_casts`

type scanner interface {
	Scan(dest ...any) error
}

func scanCast(row scanner) (*Cast, error) {
	var (
		c         Cast
		created   string
		completed sql.NullString
	)
	if err := row.Scan(&c.ID, &c.FeaturePath, &c.EpisodeNumber, &c.AgentName, &c.ScriptPath,
		&c.AudioPath, &c.TranscriptChars, &c.AudioBytes, &c.Status, &created, &completed); err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(created)
	if completed.Valid {
		t := parseTime(completed.String)
		c.CompletedAt = &t
	}
	return &c, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isUniqueViolation checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
