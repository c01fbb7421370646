package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/civil"
	_ "github.com/mattn/go-sqlite3"
)

const rangeQuerySQL = `SELECT user_id, date, status FROM attendance
WHERE user_id = ? AND date BETWEEN ? AND ?
ORDER BY date
LIMIT ?`

// DefaultTimeout bounds a single store access when no timeout is configured.
const DefaultTimeout = 2 * time.Second

// Store answers range queries against an existing SQLite attendance dataset.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	db      *sql.DB
	path    string
	timeout time.Duration
	logger  *slog.Logger
}

// Open opens the dataset at path. It fails with ErrNotFound if the file does
// not exist or does not contain an attendance table.
//
// timeout bounds every store access; zero uses DefaultTimeout.
func Open(path string, timeout time.Duration, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat dataset %s: %w", path, err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}

	s := &Store{
		db:      db,
		path:    path,
		timeout: timeout,
		logger:  logger.With("component", "record-store"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var name string
	err = db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'attendance'",
	).Scan(&name)
	if err != nil {
		db.Close()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s has no attendance table", ErrNotFound, path)
		}
		return nil, fmt.Errorf("inspect dataset %s: %w", path, err)
	}

	return s, nil
}

// Path returns the dataset location.
func (s *Store) Path() string {
	return s.path
}

// RangeQuery returns the user's records whose date falls in [key.Start, key.End],
// ordered by date ascending and capped at MaxRows. An empty window is not an error.
//
// A timeout or driver failure is reported as ErrStoreUnavailable.
func (s *Store) RangeQuery(ctx context.Context, key Key) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, rangeQuerySQL,
		key.UserID, key.Start.String(), key.End.String(), MaxRows)
	if err != nil {
		return nil, s.unavailable("range query", err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var (
			rec    Record
			date   string
			status string
		)
		if err := rows.Scan(&rec.UserID, &date, &status); err != nil {
			return nil, s.unavailable("scan row", err)
		}
		rec.Date, err = civil.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("parse date %q for user %d: %w", date, rec.UserID, err)
		}
		rec.Status = Status(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.unavailable("iterate rows", err)
	}

	return out, nil
}

// Ping checks that the dataset is reachable within the store timeout.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return s.unavailable("ping", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) unavailable(op string, err error) error {
	s.logger.Warn("store access failed", "op", op, "error", err)
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
