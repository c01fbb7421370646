package records

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// IndexName is the composite (user_id, date) index toggled by IndexController.
const IndexName = "idx_attendance_user_date"

const explainSQL = "EXPLAIN QUERY PLAN " + rangeQuerySQL

// PlanStep is one row of SQLite's EXPLAIN QUERY PLAN output.
type PlanStep struct {
	ID     int    `json:"id"`
	Parent int    `json:"parent"`
	Detail string `json:"detail"`
}

// IndexController switches the range query between a table scan and an
// index search by creating or dropping IndexName.
//
// Changing the index is not safe while queries are in flight. Apply is meant
// to run during start-up, before the HTTP listener accepts traffic.
type IndexController struct {
	store  *Store
	logger *slog.Logger

	mu       sync.Mutex
	enabled  bool
	once     sync.Once
	applyErr error
}

// NewIndexController creates a controller for store with the configured index flag.
func NewIndexController(store *Store, enabled bool, logger *slog.Logger) *IndexController {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexController{
		store:   store,
		enabled: enabled,
		logger:  logger.With("component", "index-controller"),
	}
}

// Apply brings the index to the configured state. Only the first call does
// any work; later calls return the first call's result.
func (c *IndexController) Apply(ctx context.Context) error {
	c.once.Do(func() {
		c.applyErr = c.SetIndexed(ctx, c.Enabled())
	})
	return c.applyErr
}

// Reconfigure changes the configured flag and applies it immediately.
func (c *IndexController) Reconfigure(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
	return c.SetIndexed(ctx, enabled)
}

// Enabled returns the configured index flag.
func (c *IndexController) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetIndexed creates the index when enabled is true and drops it otherwise.
// Both directions are idempotent.
func (c *IndexController) SetIndexed(ctx context.Context, enabled bool) error {
	stmt := fmt.Sprintf("DROP INDEX IF EXISTS %s", IndexName)
	if enabled {
		stmt = fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON attendance(user_id, date)", IndexName)
	}

	if _, err := c.store.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("set indexed=%t: %w", enabled, err)
	}

	c.logger.Info("index configured", "index", IndexName, "enabled", enabled)
	return nil
}

// Indexed reports whether the index currently exists in the dataset.
func (c *IndexController) Indexed(ctx context.Context) (bool, error) {
	var n int
	err := c.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?", IndexName,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspect index: %w", err)
	}
	return n > 0, nil
}

// ExplainPlan returns the execution plan SQLite would use for the range query
// identified by key. It does not modify the dataset.
func (c *IndexController) ExplainPlan(ctx context.Context, key Key) ([]PlanStep, error) {
	ctx, cancel := context.WithTimeout(ctx, c.store.timeout)
	defer cancel()

	rows, err := c.store.db.QueryContext(ctx, explainSQL,
		key.UserID, key.Start.String(), key.End.String(), MaxRows)
	if err != nil {
		return nil, c.store.unavailable("explain", err)
	}
	defer rows.Close()

	plan := make([]PlanStep, 0, 2)
	for rows.Next() {
		var (
			step    PlanStep
			notused int
		)
		if err := rows.Scan(&step.ID, &step.Parent, &notused, &step.Detail); err != nil {
			return nil, c.store.unavailable("scan plan", err)
		}
		plan = append(plan, step)
	}
	if err := rows.Err(); err != nil {
		return nil, c.store.unavailable("iterate plan", err)
	}

	return plan, nil
}
