// Package samples defines the timed benchmark sample, the condition/size note
// grammar that labels it, and the append-only CSV log samples are written to.
package samples

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
)

// TimestampLayout is the wall-clock format of the log's first column.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrMalformedRow is returned for log rows that cannot be decoded.
var ErrMalformedRow = errors.New("malformed sample row")

// Mode distinguishes cold-path from warm-cache measurements.
type Mode string

const (
	ModeInitial Mode = "initial"
	ModeRepeat  Mode = "repeat"
)

// ParseMode validates a mode label.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeInitial, ModeRepeat:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (must be initial or repeat)", s)
}

// Sample is one timed request. Samples are appended to the log and never
// rewritten.
type Sample struct {
	Timestamp time.Time
	Mode      Mode
	UserID    int64
	Start     civil.Date
	End       civil.Date
	Iteration int
	ElapsedMS float64
	// Note is the raw "condition_size" label; see ParseNote.
	Note string
}

// fields encodes s in log column order.
func (s Sample) fields() []string {
	return []string{
		s.Timestamp.Format(TimestampLayout),
		string(s.Mode),
		strconv.FormatInt(s.UserID, 10),
		s.Start.String(),
		s.End.String(),
		strconv.Itoa(s.Iteration),
		strconv.FormatFloat(s.ElapsedMS, 'f', 3, 64),
		s.Note,
	}
}

const numFields = 8

func parseFields(rec []string) (Sample, error) {
	if len(rec) != numFields {
		return Sample{}, fmt.Errorf("%w: got %d fields, want %d", ErrMalformedRow, len(rec), numFields)
	}

	var (
		s   Sample
		err error
	)
	if s.Timestamp, err = time.ParseInLocation(TimestampLayout, rec[0], time.Local); err != nil {
		return Sample{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedRow, err)
	}
	if s.Mode, err = ParseMode(rec[1]); err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	if s.UserID, err = strconv.ParseInt(rec[2], 10, 64); err != nil {
		return Sample{}, fmt.Errorf("%w: user_id: %v", ErrMalformedRow, err)
	}
	if s.Start, err = civil.ParseDate(rec[3]); err != nil {
		return Sample{}, fmt.Errorf("%w: start_date: %v", ErrMalformedRow, err)
	}
	if s.End, err = civil.ParseDate(rec[4]); err != nil {
		return Sample{}, fmt.Errorf("%w: end_date: %v", ErrMalformedRow, err)
	}
	if s.Iteration, err = strconv.Atoi(rec[5]); err != nil || s.Iteration < 1 {
		return Sample{}, fmt.Errorf("%w: iteration %q must be a positive integer", ErrMalformedRow, rec[5])
	}
	if s.ElapsedMS, err = strconv.ParseFloat(rec[6], 64); err != nil ||
		s.ElapsedMS < 0 || math.IsNaN(s.ElapsedMS) || math.IsInf(s.ElapsedMS, 0) {
		return Sample{}, fmt.Errorf("%w: elapsed_ms %q must be a finite non-negative number", ErrMalformedRow, rec[6])
	}
	s.Note = rec[7]

	return s, nil
}
