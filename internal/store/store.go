// Package store persists completed review sessions in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/fyrsmithlabs/reviewd/internal/store/migrations"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
	"go.uber.org/zap"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when no record exists for a session.
var ErrNotFound = errors.New("review record not found")

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 20

// Record is one persisted review session.
type Record struct {
	SessionID    string                           `json:"session_id"`
	Reference    string                           `json:"reference"`
	Title        string                           `json:"title"`
	Summary      string                           `json:"summary"`
	FindingCount int                              `json:"finding_count"`
	Verdict      *workflows.Verdict               `json:"verdict,omitempty"`
	StartedAt    time.Time                        `json:"started_at"`
	CompletedAt  time.Time                        `json:"completed_at"`
	Timings      map[string]workflows.PhaseTiming `json:"timings,omitempty"`
}

// Store is the SQLite-backed review record sink. It implements
// workflows.RecordSink.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ workflows.RecordSink = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// embedded migrations. A leading ~ expands to the home directory.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	clean := filepath.Clean(expanded)
	if err := os.MkdirAll(filepath.Dir(clean), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	dsn := "file:" + clean + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("review store opened", zap.String("path", clean))
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append implements workflows.RecordSink. It upserts on session ID so a
// retried activity attempt overwrites rather than duplicates.
func (s *Store) Append(ctx context.Context, rec workflows.PersistInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(rec.SessionID) == "" {
		return fmt.Errorf("%w: session id is required", workflows.ErrPermanent)
	}

	var verdictJSON sql.NullString
	var summary string
	var count int
	if rec.Verdict != nil {
		b, err := json.Marshal(rec.Verdict)
		if err != nil {
			return fmt.Errorf("%w: encode verdict: %v", workflows.ErrPermanent, err)
		}
		verdictJSON = sql.NullString{String: string(b), Valid: true}
		summary = rec.Verdict.Summary
		count = len(rec.Verdict.Findings)
	}
	timings := rec.Timings
	if timings == nil {
		timings = map[string]workflows.PhaseTiming{}
	}
	timingsJSON, err := json.Marshal(timings)
	if err != nil {
		return fmt.Errorf("%w: encode timings: %v", workflows.ErrPermanent, err)
	}
	completed := rec.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO review_records (
    session_id, reference, title, verdict_json, summary,
    finding_count, started_at, completed_at, timings_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
    reference = excluded.reference,
    title = excluded.title,
    verdict_json = excluded.verdict_json,
    summary = excluded.summary,
    finding_count = excluded.finding_count,
    started_at = excluded.started_at,
    completed_at = excluded.completed_at,
    timings_json = excluded.timings_json`,
		rec.SessionID, rec.Reference, rec.Title, verdictJSON, summary,
		count, toMillis(rec.StartedAt), toMillis(completed), string(timingsJSON),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: append review record: %v", workflows.ErrPermanent, err)
		}
		return fmt.Errorf("append review record: %w", err)
	}
	s.logger.Debug("review record stored",
		zap.String("session_id", rec.SessionID),
		zap.Int("findings", count))
	return nil
}

const selectColumns = `session_id, reference, title, verdict_json, summary,
    finding_count, started_at, completed_at, timings_json`

// Get returns the record for one session.
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM review_records WHERE session_id = ?`, sessionID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// List returns up to limit records, most recently completed first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM review_records ORDER BY completed_at DESC, session_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list review records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list review records: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec                  Record
		verdictJSON          sql.NullString
		startedAt, completed int64
		timingsJSON          string
	)
	if err := row.Scan(&rec.SessionID, &rec.Reference, &rec.Title, &verdictJSON, &rec.Summary,
		&rec.FindingCount, &startedAt, &completed, &timingsJSON); err != nil {
		return nil, err
	}
	rec.StartedAt = fromMillis(startedAt)
	rec.CompletedAt = fromMillis(completed)
	if verdictJSON.Valid {
		rec.Verdict = &workflows.Verdict{}
		if err := json.Unmarshal([]byte(verdictJSON.String), rec.Verdict); err != nil {
			return nil, fmt.Errorf("decode verdict for %s: %w", rec.SessionID, err)
		}
	}
	if err := json.Unmarshal([]byte(timingsJSON), &rec.Timings); err != nil {
		return nil, fmt.Errorf("decode timings for %s: %w", rec.SessionID, err)
	}
	return &rec, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMilli(v).UTC()
}

func isConstraintViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code()&0xff == sqlite3lib.SQLITE_CONSTRAINT
}
