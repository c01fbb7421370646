// Package sampler drives timed benchmark runs against the query service and
// appends every measurement to the sample log as soon as it is taken.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"golang.org/x/time/rate"

	"github.com/HatiCode/attendbench/pkg/analysis"
	"github.com/HatiCode/attendbench/pkg/records"
	"github.com/HatiCode/attendbench/pkg/samples"
)

// RunSpec describes one measurement run.
type RunSpec struct {
	Condition string
	Size      string
	Mode      samples.Mode
	UserID    int64
	Start     civil.Date
	End       civil.Date
	N         int
}

// Note returns the run's "condition_size" label.
func (s RunSpec) Note() (samples.Note, error) {
	return samples.NewNote(s.Condition, s.Size)
}

// Validate checks the spec before any request is sent.
func (s RunSpec) Validate() error {
	if _, err := s.Note(); err != nil {
		return err
	}
	if _, err := samples.ParseMode(string(s.Mode)); err != nil {
		return err
	}
	if s.N <= 0 {
		return errors.New("n must be > 0")
	}
	if s.UserID <= 0 {
		return errors.New("user must be > 0")
	}
	if s.Start.IsZero() || s.End.IsZero() {
		return errors.New("start and end dates are required")
	}
	if s.Start.After(s.End) {
		return fmt.Errorf("start %s is after end %s", s.Start, s.End)
	}
	return nil
}

// SampleLog receives samples as they are measured.
type SampleLog interface {
	Append(s samples.Sample) error
}

// Report summarizes a finished run.
type Report struct {
	Spec    RunSpec
	Samples []samples.Sample
	// Failed counts iterations that produced no logged sample.
	Failed int
	// Sources counts successful responses by their reported source.
	Sources map[string]int
	Stats   analysis.Stats
}

// Runner executes runs sequentially. Iterations are never parallelized so
// measurements are not skewed by the sampler's own load.
type Runner struct {
	log        SampleLog
	logger     *slog.Logger
	limiter    *rate.Limiter
	onProgress func()
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithRateLimit paces timed requests to at most rps per second. Zero or
// negative disables pacing.
func WithRateLimit(rps float64) Option {
	return func(r *Runner) {
		if rps > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithProgress registers fn to be called after every timed iteration.
func WithProgress(fn func()) Option {
	return func(r *Runner) {
		r.onProgress = fn
	}
}

// New creates a runner that appends to log.
func New(log SampleLog, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		log:    log,
		logger: logger.With("component", "sampler"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run measures spec.N requests against target.
//
// In repeat mode one untimed warm-up request is sent first; its failure is
// logged and the run continues. Elapsed time comes from the monotonic clock
// reading carried by time.Now, while the sample timestamp is wall-clock.
// A failed request or log write skips that iteration only. Run returns early
// only when ctx is done, with the samples taken so far.
func (r *Runner) Run(ctx context.Context, spec RunSpec, target Target) (Report, error) {
	if err := spec.Validate(); err != nil {
		return Report{}, fmt.Errorf("invalid run: %w", err)
	}
	note, _ := spec.Note()

	key := records.Key{UserID: spec.UserID, Start: spec.Start, End: spec.End}
	logger := r.logger.With("note", note.String(), "mode", spec.Mode)
	report := Report{Spec: spec, Sources: make(map[string]int)}

	if spec.Mode == samples.ModeRepeat {
		if _, err := target.Query(ctx, key); err != nil {
			logger.Warn("warm-up request failed", "error", err)
		}
	}

	for i := 1; i <= spec.N; i++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return r.finish(report), err
			}
		}
		if err := ctx.Err(); err != nil {
			return r.finish(report), err
		}

		ts := r.now()
		start := time.Now()
		resp, err := target.Query(ctx, key)
		elapsed := time.Since(start)

		if err != nil {
			report.Failed++
			logger.Warn("request failed", "iteration", i, "error", err)
			r.progress()
			continue
		}

		s := samples.Sample{
			Timestamp: ts,
			Mode:      spec.Mode,
			UserID:    spec.UserID,
			Start:     spec.Start,
			End:       spec.End,
			Iteration: i,
			ElapsedMS: float64(elapsed.Nanoseconds()) / 1e6,
			Note:      note.String(),
		}
		if err := r.log.Append(s); err != nil {
			report.Failed++
			logger.Error("failed to write sample", "iteration", i, "error", err)
			r.progress()
			continue
		}

		report.Samples = append(report.Samples, s)
		report.Sources[resp.Source]++
		logger.Debug("sample taken", "iteration", i, "elapsed_ms", s.ElapsedMS, "source", resp.Source, "rows", resp.Rows)
		r.progress()
	}

	return r.finish(report), nil
}

func (r *Runner) progress() {
	if r.onProgress != nil {
		r.onProgress()
	}
}

func (r *Runner) finish(report Report) Report {
	values := make([]float64, len(report.Samples))
	for i, s := range report.Samples {
		values[i] = s.ElapsedMS
	}
	report.Stats = analysis.Describe(values)
	return report
}
