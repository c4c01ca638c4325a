// Package ledger records requests whose caller gave up waiting while the venue may
// still answer, so that late outcomes can be reconciled.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	StatusPending  = "pending"
	StatusResolved = "resolved"
)

// Entry is one timed-out request.
type Entry struct {
	CorrelationID string
	Kind          string
	Venue         string
	Symbol        string
	Detail        string
	Status        string
	Outcome       string
	Error         string
	TimedOutAt    time.Time
	ResolvedAt    time.Time
}

// Store wraps a sqlite database of timed-out requests.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens or creates the sqlite database.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("ledger path is empty")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, errors.New("ledger is closed")
	}
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	stmt := `
	CREATE TABLE IF NOT EXISTS timed_out_requests (
		correlation_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		venue TEXT,
		symbol TEXT,
		detail TEXT,
		status TEXT NOT NULL,
		outcome TEXT,
		error TEXT,
		timed_out_at INTEGER NOT NULL,
		resolved_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_timed_out_status ON timed_out_requests(status);
	`
	_, err := db.Exec(stmt)
	return err
}

// RecordTimeout stores e as pending. Recording the same id again refreshes it.
func (s *Store) RecordTimeout(ctx context.Context, e Entry) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if strings.TrimSpace(e.CorrelationID) == "" {
		return fmt.Errorf("correlation id is required")
	}
	at := e.TimedOutAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO timed_out_requests(correlation_id, kind, venue, symbol, detail, status, timed_out_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(correlation_id) DO UPDATE SET
			kind=excluded.kind,
			venue=excluded.venue,
			symbol=excluded.symbol,
			detail=excluded.detail,
			timed_out_at=excluded.timed_out_at;
	`, e.CorrelationID, e.Kind, nullIfEmpty(e.Venue), nullIfEmpty(e.Symbol), nullIfEmpty(e.Detail), StatusPending, at.UnixMilli())
	return err
}

// Resolve marks id as resolved with outcome. It reports whether the id was pending.
func (s *Store) Resolve(ctx context.Context, id, outcome, errText string, at time.Time) (bool, error) {
	db, err := s.handle()
	if err != nil {
		return false, err
	}
	if at.IsZero() {
		at = time.Now()
	}
	res, err := db.ExecContext(ctx, `
		UPDATE timed_out_requests
		SET status = ?, outcome = ?, error = ?, resolved_at = ?
		WHERE correlation_id = ? AND status = ?`,
		StatusResolved, nullIfEmpty(outcome), nullIfEmpty(errText), at.UnixMilli(), id, StatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get returns the entry for id if present.
func (s *Store) Get(ctx context.Context, id string) (Entry, bool, error) {
	db, err := s.handle()
	if err != nil {
		return Entry{}, false, err
	}
	row := db.QueryRowContext(ctx, selectColumns+` WHERE correlation_id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Pending lists unresolved entries, oldest first.
func (s *Store) Pending(ctx context.Context) ([]Entry, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, selectColumns+` WHERE status = ? ORDER BY timed_out_at ASC`, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const selectColumns = `
	SELECT correlation_id, kind, venue, symbol, detail, status, outcome, error, timed_out_at, resolved_at
	FROM timed_out_requests`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e                                      Entry
		venue, symbol, detail, outcome, errTxt sql.NullString
		timedOut                               int64
		resolved                               sql.NullInt64
	)
	if err := sc.Scan(&e.CorrelationID, &e.Kind, &venue, &symbol, &detail, &e.Status, &outcome, &errTxt, &timedOut, &resolved); err != nil {
		return Entry{}, err
	}
	e.Venue = venue.String
	e.Symbol = symbol.String
	e.Detail = detail.String
	e.Outcome = outcome.String
	e.Error = errTxt.String
	e.TimedOutAt = time.UnixMilli(timedOut)
	if resolved.Valid {
		e.ResolvedAt = time.UnixMilli(resolved.Int64)
	}
	return e, nil
}

func nullIfEmpty(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
