package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"cloud.google.com/go/civil"
)

const insertBatch = 5000

// DefaultSeed is the seed the seeding tool uses when none is given.
const DefaultSeed uint64 = 42

// GenerateOptions controls the synthetic dataset produced by Generate.
type GenerateOptions struct {
	Rows  int
	Users int
	Days  int
	// Seed is used as given, including zero.
	Seed  uint64
	// Today anchors the date window. Zero means the current local date.
	Today civil.Date
}

func (o *GenerateOptions) setDefaults() {
	if o.Users <= 0 {
		o.Users = 300
	}
	if o.Days <= 0 {
		o.Days = 120
	}
	if o.Today.IsZero() {
		o.Today = civil.DateOf(time.Now())
	}
}

// Generate writes a fresh dataset of opts.Rows attendance records to path,
// replacing any existing file. Users are numbered 1..Users and dates fall
// between Today-Days and Today inclusive. The same options always produce the
// same rows.
func Generate(ctx context.Context, path string, opts GenerateOptions, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Rows <= 0 {
		return errors.New("rows must be > 0")
	}
	opts.setDefaults()

	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", path+suffix, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("create dataset %s: %w", path, err)
	}
	defer db.Close()

	schema := []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)",
		`CREATE TABLE attendance (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			status TEXT NOT NULL,
			FOREIGN KEY(user_id) REFERENCES users(id)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	if err := insertUsers(ctx, db, opts.Users); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	start := opts.Today.AddDays(-opts.Days)

	for done := 0; done < opts.Rows; {
		n := min(insertBatch, opts.Rows-done)
		if err := insertAttendance(ctx, db, rng, start, opts, n); err != nil {
			return err
		}
		done += n
		logger.Debug("inserted attendance batch", "rows", done, "total", opts.Rows)
	}

	logger.Info("dataset generated", "path", path, "rows", opts.Rows, "users", opts.Users, "days", opts.Days)
	return nil
}

func insertUsers(ctx context.Context, db *sql.DB, users int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin users: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO users (id, name) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare users: %w", err)
	}
	defer stmt.Close()

	for id := 1; id <= users; id++ {
		if _, err := stmt.ExecContext(ctx, id, fmt.Sprintf("user%d", id)); err != nil {
			return fmt.Errorf("insert user %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func insertAttendance(ctx context.Context, db *sql.DB, rng *rand.Rand, start civil.Date, opts GenerateOptions, n int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO attendance (user_id, date, status) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare attendance: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		user := rng.IntN(opts.Users) + 1
		date := start.AddDays(rng.IntN(opts.Days+1))
		status := Statuses[rng.IntN(len(Statuses))]
		if _, err := stmt.ExecContext(ctx, user, date.String(), string(status)); err != nil {
			return fmt.Errorf("insert attendance: %w", err)
		}
	}
	return tx.Commit()
}
