package records

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var testToday = civil.Date{Year: 2024, Month: time.June, Day: 1}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStore generates a small deterministic dataset and opens it.
func newTestStore(t *testing.T, opts GenerateOptions) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "attendance.sqlite3")
	if opts.Today.IsZero() {
		opts.Today = testToday
	}
	if err := Generate(context.Background(), path, opts, discardLogger()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	store, err := Open(path, time.Second, discardLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpen_MissingDataset(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.sqlite3"), time.Second, discardLogger())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open() error = %v, want ErrNotFound", err)
	}
}

func TestOpen_NoAttendanceTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.sqlite3")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	if _, err := db.Exec("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatalf("create table error = %v", err)
	}
	db.Close()

	_, err = Open(path, time.Second, discardLogger())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open() error = %v, want ErrNotFound", err)
	}
}

func TestRangeQuery_Bounds(t *testing.T) {
	store := newTestStore(t, GenerateOptions{Rows: 2000, Users: 5, Days: 60})

	key := Key{
		UserID: 3,
		Start:  testToday.AddDays(-30),
		End:    testToday.AddDays(-10),
	}

	got, err := store.RangeQuery(context.Background(), key)
	if err != nil {
		t.Fatalf("RangeQuery() error = %v", err)
	}
	if len(got) == 0 {
		t.Fatal("RangeQuery() returned no rows, want some")
	}

	for i, rec := range got {
		if rec.UserID != key.UserID {
			t.Errorf("row %d user = %d, want %d", i, rec.UserID, key.UserID)
		}
		if !key.Contains(rec.Date) {
			t.Errorf("row %d date = %s, outside [%s, %s]", i, rec.Date, key.Start, key.End)
		}
		if !rec.Status.Valid() {
			t.Errorf("row %d status = %q, want a known status", i, rec.Status)
		}
		if i > 0 && rec.Date.Before(got[i-1].Date) {
			t.Errorf("row %d date %s before previous %s", i, rec.Date, got[i-1].Date)
		}
	}
}

func TestRangeQuery_Cap(t *testing.T) {
	store := newTestStore(t, GenerateOptions{Rows: 500, Users: 1, Days: 120})

	got, err := store.RangeQuery(context.Background(), Key{
		UserID: 1,
		Start:  testToday.AddDays(-200),
		End:    testToday,
	})
	if err != nil {
		t.Fatalf("RangeQuery() error = %v", err)
	}
	if len(got) != MaxRows {
		t.Errorf("len(RangeQuery()) = %d, want %d", len(got), MaxRows)
	}
}

func TestRangeQuery_EmptyWindow(t *testing.T) {
	store := newTestStore(t, GenerateOptions{Rows: 100, Users: 2})

	got, err := store.RangeQuery(context.Background(), Key{
		UserID: 1,
		Start:  testToday.AddDays(10),
		End:    testToday.AddDays(20),
	})
	if err != nil {
		t.Fatalf("RangeQuery() error = %v, want nil for empty window", err)
	}
	if len(got) != 0 {
		t.Errorf("len(RangeQuery()) = %d, want 0", len(got))
	}
}

func TestRangeQuery_CanceledContext(t *testing.T) {
	store := newTestStore(t, GenerateOptions{Rows: 100, Users: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.RangeQuery(ctx, Key{UserID: 1, Start: testToday.AddDays(-30), End: testToday})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("RangeQuery() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	opts := GenerateOptions{Rows: 300, Users: 4, Days: 30, Seed: 7}
	a := newTestStore(t, opts)
	b := newTestStore(t, opts)

	key := Key{UserID: 2, Start: testToday.AddDays(-30), End: testToday}
	ra, err := a.RangeQuery(context.Background(), key)
	if err != nil {
		t.Fatalf("RangeQuery(a) error = %v", err)
	}
	rb, err := b.RangeQuery(context.Background(), key)
	if err != nil {
		t.Fatalf("RangeQuery(b) error = %v", err)
	}

	if len(ra) != len(rb) {
		t.Fatalf("row counts differ: %d vs %d", len(ra), len(rb))
	}
	for i := range ra {
		if ra[i] != rb[i] {
			t.Errorf("row %d differs: %+v vs %+v", i, ra[i], rb[i])
		}
	}
}

func TestGenerate_SeedUsedAsGiven(t *testing.T) {
	key := Key{UserID: 1, Start: testToday.AddDays(-30), End: testToday}
	var rows [2][]Record
	for i, seed := range []uint64{0, DefaultSeed} {
		store := newTestStore(t, GenerateOptions{Rows: 100, Users: 1, Days: 30, Seed: seed})
		got, err := store.RangeQuery(context.Background(), key)
		if err != nil {
			t.Fatalf("RangeQuery(seed %d) error = %v", seed, err)
		}
		rows[i] = got
	}

	if slices.Equal(rows[0], rows[1]) {
		t.Errorf("seed 0 and seed %d produced the same rows", DefaultSeed)
	}
}

func TestGenerate_WindowIncludesToday(t *testing.T) {
	store := newTestStore(t, GenerateOptions{Rows: 300, Users: 1, Days: 2, Seed: 3})

	got, err := store.RangeQuery(context.Background(), Key{UserID: 1, Start: testToday, End: testToday})
	if err != nil {
		t.Fatalf("RangeQuery() error = %v", err)
	}
	if len(got) == 0 {
		t.Errorf("no rows dated %s, want the window to include today", testToday)
	}

	got, err = store.RangeQuery(context.Background(), Key{UserID: 1, Start: testToday.AddDays(-2), End: testToday})
	if err != nil {
		t.Fatalf("RangeQuery() error = %v", err)
	}
	if len(got) != MaxRows {
		t.Errorf("RangeQuery() over the whole window = %d rows, want the %d cap", len(got), MaxRows)
	}
}

func TestGenerate_Schema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.sqlite3")
	if err := Generate(context.Background(), path, GenerateOptions{Rows: 10, Users: 2, Days: 5, Today: testToday}, discardLogger()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer db.Close()

	var ddl string
	if err := db.QueryRow("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = 'attendance'").Scan(&ddl); err != nil {
		t.Fatalf("read attendance schema: %v", err)
	}
	for _, want := range []string{"user_id INTEGER NOT NULL", "date TEXT NOT NULL", "status TEXT NOT NULL", "REFERENCES users(id)"} {
		if !strings.Contains(ddl, want) {
			t.Errorf("attendance schema missing %q:\n%s", want, ddl)
		}
	}

	if err := db.QueryRow("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = 'users'").Scan(&ddl); err != nil {
		t.Fatalf("read users schema: %v", err)
	}
	if !strings.Contains(ddl, "name TEXT NOT NULL") {
		t.Errorf("users schema missing NOT NULL name:\n%s", ddl)
	}
}

func TestKey_String(t *testing.T) {
	key := Key{UserID: 100, Start: civil.Date{Year: 2024, Month: 1, Day: 2}, End: civil.Date{Year: 2024, Month: 2, Day: 1}}
	if got, want := key.String(), "100:2024-01-02:2024-02-01"; got != want {
		t.Errorf("Key.String() = %q, want %q", got, want)
	}
}

func TestProperty_RangeQueryWithinWindow(t *testing.T) {
	store := newTestStore(t, GenerateOptions{Rows: 3000, Users: 5, Days: 120})

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("rows match user, window, order and cap", prop.ForAll(
		func(user int64, offset, length int) bool {
			key := Key{
				UserID: user,
				Start:  testToday.AddDays(-offset),
				End:    testToday.AddDays(-offset + length),
			}
			got, err := store.RangeQuery(context.Background(), key)
			if err != nil || len(got) > MaxRows {
				return false
			}
			for i, rec := range got {
				if rec.UserID != user || !key.Contains(rec.Date) {
					return false
				}
				if i > 0 && rec.Date.Before(got[i-1].Date) {
					return false
				}
			}
			return true
		},
		gen.Int64Range(1, 6),
		gen.IntRange(0, 130),
		gen.IntRange(0, 90),
	))

	properties.TestingRun(t)
}

func TestIndexController_SetIndexedIdempotent(t *testing.T) {
	store := newTestStore(t, GenerateOptions{Rows: 500, Users: 5})
	ctrl := NewIndexController(store, true, discardLogger())
	ctx := context.Background()
	key := Key{UserID: 1, Start: testToday.AddDays(-30), End: testToday}

	if err := ctrl.SetIndexed(ctx, true); err != nil {
		t.Fatalf("SetIndexed(true) error = %v", err)
	}
	once, err := ctrl.ExplainPlan(ctx, key)
	if err != nil {
		t.Fatalf("ExplainPlan() error = %v", err)
	}

	if err := ctrl.SetIndexed(ctx, true); err != nil {
		t.Fatalf("second SetIndexed(true) error = %v", err)
	}
	twice, err := ctrl.ExplainPlan(ctx, key)
	if err != nil {
		t.Fatalf("ExplainPlan() error = %v", err)
	}

	if len(once) != len(twice) {
		t.Fatalf("plan length changed: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("plan step %d changed: %+v vs %+v", i, once[i], twice[i])
		}
	}
	if !planMentions(once, IndexName) {
		t.Errorf("indexed plan %+v does not use %s", once, IndexName)
	}

	indexed, err := ctrl.Indexed(ctx)
	if err != nil || !indexed {
		t.Errorf("Indexed() = %v, %v, want true, nil", indexed, err)
	}
}

func TestIndexController_Disable(t *testing.T) {
	store := newTestStore(t, GenerateOptions{Rows: 500, Users: 5})
	ctrl := NewIndexController(store, false, discardLogger())
	ctx := context.Background()
	key := Key{UserID: 1, Start: testToday.AddDays(-30), End: testToday}

	if err := ctrl.SetIndexed(ctx, true); err != nil {
		t.Fatalf("SetIndexed(true) error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := ctrl.SetIndexed(ctx, false); err != nil {
			t.Fatalf("SetIndexed(false) #%d error = %v", i+1, err)
		}
	}

	plan, err := ctrl.ExplainPlan(ctx, key)
	if err != nil {
		t.Fatalf("ExplainPlan() error = %v", err)
	}
	if planMentions(plan, IndexName) {
		t.Errorf("unindexed plan %+v still uses %s", plan, IndexName)
	}
	if indexed, _ := ctrl.Indexed(ctx); indexed {
		t.Error("Indexed() = true after disabling, want false")
	}
}

func TestIndexController_ApplyRunsOnce(t *testing.T) {
	store := newTestStore(t, GenerateOptions{Rows: 100, Users: 2})
	ctrl := NewIndexController(store, true, discardLogger())
	ctx := context.Background()

	if err := ctrl.Apply(ctx); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	// Dropping the index behind the controller's back must not be undone by a second Apply.
	if err := ctrl.SetIndexed(ctx, false); err != nil {
		t.Fatalf("SetIndexed(false) error = %v", err)
	}
	if err := ctrl.Apply(ctx); err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if indexed, _ := ctrl.Indexed(ctx); indexed {
		t.Error("second Apply() re-created the index, want no-op")
	}

	if err := ctrl.Reconfigure(ctx, true); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	if indexed, _ := ctrl.Indexed(ctx); !indexed {
		t.Error("Reconfigure(true) did not create the index")
	}
	if !ctrl.Enabled() {
		t.Error("Enabled() = false after Reconfigure(true)")
	}
}

func planMentions(plan []PlanStep, s string) bool {
	for _, step := range plan {
		if strings.Contains(step.Detail, s) {
			return true
		}
	}
	return false
}
