package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages catalog persistence backed by SQLite.
//
// Mark* transitions are guarded: they apply only when the record's current
// fingerprint matches the caller's, and report false otherwise so the caller
// can log a reconciliation event instead of committing a stale result.
type Store struct {
	db   *sql.DB
	path string

	// mu serializes every write so concurrent producers and workers observe
	// one consistent per-path ordering of states.
	mu sync.Mutex
}

// Open initializes or connects to the catalog database at dbPath.
func Open(dbPath string) (*Store, error) {
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
	// Pragmas bind per connection. A single pooled connection keeps them in
	// force and concurrent writers queue instead of hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
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

// Path returns the catalog database location.
func (s *Store) Path() string {
	return s.path
}

// Register records a discovered candidate and reports whether it is eligible
// for enqueueing. A path whose equal-fingerprint record is already queued,
// transcribing, or committed is not eligible; anything else (new path, new
// fingerprint, or a previously failed attempt) resets the record to
// discovered and is.
func (s *Store) Register(ctx context.Context, path string, fp Fingerprint, source Source) (bool, error) {
	if path == "" {
		return false, errors.New("path is required")
	}
	encoded := fp.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		existingFP    string
		existingState string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, state FROM media_files WHERE path = ?`, path,
	).Scan(&existingFP, &existingState)
	switch {
	case err == nil:
		if existingFP == encoded {
			if _, busy := busyStates[State(existingState)]; busy {
				return false, nil
			}
		}
	case errors.Is(err, sql.ErrNoRows):
		// first sighting
	default:
		return false, fmt.Errorf("lookup record: %w", err)
	}

	now := timestamp()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO media_files (path, fingerprint, source, state, error_message, discovered_at, updated_at)
         VALUES (?, ?, ?, ?, NULL, ?, ?)
         ON CONFLICT(path) DO UPDATE SET
             fingerprint = excluded.fingerprint,
             source = excluded.source,
             state = excluded.state,
             error_message = NULL,
             updated_at = excluded.updated_at`,
		path, encoded, string(source), string(StateDiscovered), now, now,
	)
	if err != nil {
		return false, fmt.Errorf("register %s: %w", path, err)
	}
	return true, nil
}

// RecordCommitted upserts a committed record for a path whose transcript
// already exists on disk, bypassing the queue (the scan short-circuit).
func (s *Store) RecordCommitted(ctx context.Context, path string, fp Fingerprint, source Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := timestamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO media_files (path, fingerprint, source, state, error_message, discovered_at, updated_at)
         VALUES (?, ?, ?, ?, NULL, ?, ?)
         ON CONFLICT(path) DO UPDATE SET
             fingerprint = excluded.fingerprint,
             source = excluded.source,
             state = excluded.state,
             error_message = NULL,
             updated_at = excluded.updated_at`,
		path, fp.String(), string(source), string(StateCommitted), now, now,
	)
	if err != nil {
		return fmt.Errorf("record committed %s: %w", path, err)
	}
	return nil
}

// MarkQueued transitions a record to queued. It reports false when the
// record's fingerprint no longer matches (the file changed since discovery)
// or the record already advanced: a worker can mark the record transcribing
// before the producer's queued write lands, and that must not be undone.
func (s *Store) MarkQueued(ctx context.Context, path string, fp Fingerprint) (bool, error) {
	return s.transition(ctx, path, fp, StateQueued, "", StateDiscovered)
}

// MarkTranscribing transitions a record to transcribing.
func (s *Store) MarkTranscribing(ctx context.Context, path string, fp Fingerprint) (bool, error) {
	return s.transition(ctx, path, fp, StateTranscribing, "", StateDiscovered, StateQueued)
}

// MarkCommitted transitions a record to committed.
func (s *Store) MarkCommitted(ctx context.Context, path string, fp Fingerprint) (bool, error) {
	return s.transition(ctx, path, fp, StateCommitted, "", StateQueued, StateTranscribing)
}

// MarkFailed transitions a record to failed with the given reason.
func (s *Store) MarkFailed(ctx context.Context, path string, fp Fingerprint, reason string) (bool, error) {
	return s.transition(ctx, path, fp, StateFailed, reason, StateDiscovered, StateQueued, StateTranscribing)
}

// transition applies a guarded state change: the record must still carry the
// caller's fingerprint and sit in one of the allowed source states. A record
// that moved on is left untouched and reported as false.
func (s *Store) transition(ctx context.Context, path string, fp Fingerprint, to State, errMsg string, from ...State) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE media_files SET state = ?, error_message = ?, updated_at = ?
         WHERE path = ? AND fingerprint = ?`
	args := []any{string(to), nullableString(errMsg), timestamp(), path, fp.String()}
	if len(from) > 0 {
		query += ` AND state IN (` + makePlaceholders(len(from)) + `)`
		for _, state := range from {
			args = append(args, string(state))
		}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("mark %s %s: %w", path, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearNonTerminal removes the record for a deleted path unless it reached a
// terminal state. Committed transcripts are never invalidated by deletion of
// the source file.
func (s *Store) ClearNonTerminal(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM media_files WHERE path = ? AND state NOT IN (?, ?)`,
		path, string(StateCommitted), string(StateFailed),
	)
	if err != nil {
		return false, fmt.Errorf("clear record %s: %w", path, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ResetInFlight returns records stuck in queued or transcribing back to
// discovered. Called once at startup: jobs interrupted by a crash are
// re-admitted by the next scan pass.
func (s *Store) ResetInFlight(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE media_files SET state = ?, updated_at = ? WHERE state IN (?, ?)`,
		string(StateDiscovered), timestamp(), string(StateQueued), string(StateTranscribing),
	)
	if err != nil {
		return 0, fmt.Errorf("reset in-flight records: %w", err)
	}
	return res.RowsAffected()
}

// Get fetches the record for a path, or nil when none exists.
func (s *Store) Get(ctx context.Context, path string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM media_files WHERE path = ?`, path)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// List returns records filtered by state set (or all records when no state
// is provided), ordered by discovery time.
func (s *Store) List(ctx context.Context, states ...State) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM media_files`
	args := make([]any, 0, len(states))
	if len(states) > 0 {
		query += ` WHERE state IN (` + makePlaceholders(len(states)) + `)`
		for _, state := range states {
			args = append(args, string(state))
		}
	}
	query += ` ORDER BY discovered_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Stats returns a count of records grouped by state.
func (s *Store) Stats(ctx context.Context) (map[State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM media_files GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("catalog stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[State]int)
	for rows.Next() {
		var state State
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

// Summary aggregates catalog state for diagnostic output.
func (s *Store) Summary(ctx context.Context) (Stats, error) {
	counts, err := s.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	summary := Stats{}
	for state, count := range counts {
		summary.Total += count
		switch state {
		case StateDiscovered:
			summary.Discovered += count
		case StateQueued:
			summary.Queued += count
		case StateTranscribing:
			summary.Transcribing += count
		case StateCommitted:
			summary.Committed += count
		case StateFailed:
			summary.Failed += count
		}
	}
	return summary, nil
}

const recordColumns = "id, path, fingerprint, source, state, error_message, discovered_at, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id            int64
		path          string
		fingerprint   string
		source        string
		state         string
		errorMessage  sql.NullString
		discoveredRaw string
		updatedRaw    string
	)
	if err := scanner.Scan(&id, &path, &fingerprint, &source, &state, &errorMessage, &discoveredRaw, &updatedRaw); err != nil {
		return nil, err
	}

	record := &Record{
		ID:           id,
		Path:         path,
		Fingerprint:  fingerprint,
		Source:       Source(source),
		State:        State(state),
		ErrorMessage: errorMessage.String,
	}
	if discovered, err := time.Parse(time.RFC3339Nano, discoveredRaw); err == nil {
		record.DiscoveredAt = discovered
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
