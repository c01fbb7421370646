// Package query implements the attendance query service: it resolves the
// requested date window, answers from the result cache when it can and falls
// back to the record store otherwise, and exposes plan and health
// introspection for benchmark diagnostics.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"

	"github.com/HatiCode/attendbench/pkg/cache"
	"github.com/HatiCode/attendbench/pkg/records"
)

// ErrInvalidQuery is returned for a non-positive user or a reversed window.
var ErrInvalidQuery = errors.New("invalid query")

// DefaultWindowDays is how far back an omitted start date reaches from today.
const DefaultWindowDays = 30

// Source tells a caller where a result came from.
type Source string

const (
	SourceCache Source = "cache"
	SourceDB    Source = "db"
)

// Params are the raw request parameters. A zero Start or End is replaced by
// the default window, computed when the request is handled.
type Params struct {
	UserID int64
	Start  civil.Date
	End    civil.Date
}

// Result is the answer to an attendance query.
type Result struct {
	Source Source           `json:"source"`
	Rows   []records.Record `json:"rows"`
}

// PlanResult pairs the store's execution plan with the configured index flag.
type PlanResult struct {
	Plan     []records.PlanStep `json:"plan"`
	UseIndex bool               `json:"use_index"`
}

// Health summarizes the service configuration and store reachability.
type Health struct {
	OK       bool   `json:"ok"`
	DB       string `json:"db"`
	UseIndex bool   `json:"use_index"`
	UseCache bool   `json:"use_cache"`
	TTL      int    `json:"ttl"`
}

// RecordStore is the subset of *records.Store the service needs.
type RecordStore interface {
	RangeQuery(ctx context.Context, key records.Key) ([]records.Record, error)
	Ping(ctx context.Context) error
	Path() string
}

// Planner is the subset of *records.IndexController the service needs.
type Planner interface {
	ExplainPlan(ctx context.Context, key records.Key) ([]records.PlanStep, error)
	Enabled() bool
}

// Recorder receives query instrumentation. A nil Recorder disables it.
type Recorder interface {
	RecordQuery(source string, seconds float64)
	RecordCacheLookup(hit bool)
	RecordError(component, reason string)
}

// Service answers attendance, plan and health requests.
// It is safe for concurrent use; the cache is its only shared mutable state.
type Service struct {
	store    RecordStore
	planner  Planner
	cache    cache.Cache
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a query service. The index must already be in its configured
// state; see records.IndexController.Apply.
func New(store RecordStore, planner Planner, c cache.Cache, recorder Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		planner:  planner,
		cache:    c,
		recorder: recorder,
		logger:   logger.With("component", "query-service"),
		now:      time.Now,
	}
}

// Resolve fills in the default window and validates the resulting key.
// If either date is omitted both are replaced by the DefaultWindowDays days
// ending today; a lone start or end is ignored.
func (s *Service) Resolve(p Params) (records.Key, error) {
	key := records.Key{UserID: p.UserID, Start: p.Start, End: p.End}
	if key.Start.IsZero() || key.End.IsZero() {
		today := civil.DateOf(s.now())
		key.Start, key.End = today.AddDays(-DefaultWindowDays), today
	}

	if key.UserID <= 0 {
		return records.Key{}, fmt.Errorf("%w: user must be a positive integer", ErrInvalidQuery)
	}
	if !key.Start.IsValid() || !key.End.IsValid() {
		return records.Key{}, fmt.Errorf("%w: invalid date", ErrInvalidQuery)
	}
	if key.Start.After(key.End) {
		return records.Key{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidQuery, key.Start, key.End)
	}
	return key, nil
}

// HandleAttendanceQuery returns the user's records for the requested window,
// tagged with whether they came from the cache or the store.
//
// Cache backend failures are logged and treated as misses. Store failures
// are returned, wrapping records.ErrStoreUnavailable when the access timed out.
func (s *Service) HandleAttendanceQuery(ctx context.Context, p Params) (Result, error) {
	start := time.Now()

	key, err := s.Resolve(p)
	if err != nil {
		return Result{}, err
	}

	rows, found, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.logger.Warn("cache lookup failed", "key", key.String(), "error", err)
		s.recordError("cache", "get")
	case s.cache.Enabled():
		s.recordLookup(found)
	}
	if err == nil && found {
		s.recordQuery(SourceCache, start)
		return Result{Source: SourceCache, Rows: rows}, nil
	}

	rows, err = s.store.RangeQuery(ctx, key)
	if err != nil {
		reason := "query"
		if errors.Is(err, records.ErrStoreUnavailable) {
			reason = "unavailable"
		}
		s.recordError("store", reason)
		return Result{}, fmt.Errorf("query user %d: %w", key.UserID, err)
	}

	if err := s.cache.Put(ctx, key, rows); err != nil {
		s.logger.Warn("cache fill failed", "key", key.String(), "error", err)
		s.recordError("cache", "put")
	}

	s.recordQuery(SourceDB, start)
	return Result{Source: SourceDB, Rows: rows}, nil
}

// HandlePlanQuery returns the execution plan for the resolved query and the
// configured index flag.
func (s *Service) HandlePlanQuery(ctx context.Context, p Params) (PlanResult, error) {
	key, err := s.Resolve(p)
	if err != nil {
		return PlanResult{}, err
	}

	plan, err := s.planner.ExplainPlan(ctx, key)
	if err != nil {
		s.recordError("planner", "explain")
		return PlanResult{}, fmt.Errorf("explain user %d: %w", key.UserID, err)
	}

	return PlanResult{Plan: plan, UseIndex: s.planner.Enabled()}, nil
}

// Health reports the configuration and whether the store answers a ping.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{
		OK:       true,
		DB:       s.store.Path(),
		UseIndex: s.planner.Enabled(),
		UseCache: s.cache.Enabled(),
		TTL:      int(s.cache.TTL() / time.Second),
	}

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		h.OK = false
	}
	return h
}

func (s *Service) recordQuery(source Source, start time.Time) {
	if s.recorder != nil {
		s.recorder.RecordQuery(string(source), time.Since(start).Seconds())
	}
}

func (s *Service) recordLookup(hit bool) {
	if s.recorder != nil {
		s.recorder.RecordCacheLookup(hit)
	}
}

func (s *Service) recordError(component, reason string) {
	if s.recorder != nil {
		s.recorder.RecordError(component, reason)
	}
}
