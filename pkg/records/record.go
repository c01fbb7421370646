// Package records provides the SQLite-backed attendance dataset: the range
// query used by the query service, the composite index toggle that changes
// its execution path, and a deterministic dataset generator.
package records

import (
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
)

var (
	// ErrNotFound is returned when the dataset file or its attendance table is absent.
	ErrNotFound = errors.New("dataset not found")

	// ErrStoreUnavailable is returned when a single store access times out or fails.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// MaxRows caps the number of rows a range query returns.
const MaxRows = 200

// Status is the attendance state recorded for a user on a day.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusAbsent  Status = "ABSENT"
	StatusLate    Status = "LATE"
)

// Statuses lists every valid status in generation order.
var Statuses = []Status{StatusPresent, StatusAbsent, StatusLate}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	}
	return false
}

// Record is one attendance row. Records are never modified after generation.
type Record struct {
	UserID int64      `json:"user_id"`
	Date   civil.Date `json:"date"`
	Status Status     `json:"status"`
}

// Key identifies a range query: one user and an inclusive date window.
type Key struct {
	UserID int64
	Start  civil.Date
	End    civil.Date
}

// String returns the cache key form "user:start:end".
func (k Key) String() string {
	return fmt.Sprintf("%d:%s:%s", k.UserID, k.Start, k.End)
}

// Contains reports whether d falls within the key's inclusive window.
func (k Key) Contains(d civil.Date) bool {
	return !d.Before(k.Start) && !d.After(k.End)
}
