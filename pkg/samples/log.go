package samples

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// LogWriter appends samples to a headerless CSV file. Every Append is flushed
// before it returns so an interrupted run keeps what it measured.
type LogWriter struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
	path string
}

// OpenLog opens path for appending, creating it and its directory if needed.
func OpenLog(path string) (*LogWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open sample log: %w", err)
	}

	return &LogWriter{file: f, w: csv.NewWriter(f), path: path}, nil
}

// Path returns the log location.
func (l *LogWriter) Path() string {
	return l.path
}

// Append writes one sample and flushes it to the file.
//
// This operation is safe for concurrent use.
func (l *LogWriter) Append(s Sample) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return errors.New("sample log is closed")
	}
	if err := l.w.Write(s.fields()); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("flush sample: %w", err)
	}
	return nil
}

// Close flushes and closes the file. It is safe to call more than once.
func (l *LogWriter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	l.w.Flush()
	err := errors.Join(l.w.Error(), l.file.Close())
	l.file = nil
	return err
}

// RowError describes a log row that could not be decoded.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// ReadLog reads every complete sample in the file at path.
// See ParseLog for the tolerance rules.
func ReadLog(path string) ([]Sample, []RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sample log: %w", err)
	}
	defer f.Close()

	return ParseLog(f)
}

// ParseLog decodes samples from r.
//
// The log may still be growing: a final line without a terminating newline
// is ignored. A header row on the first line is skipped if present. Rows
// that cannot be decoded are returned as RowErrors and do not stop parsing.
func ParseLog(r io.Reader) ([]Sample, []RowError, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read sample log: %w", err)
	}
	if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
		data = data[:i+1]
	} else {
		data = nil
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		out     []Sample
		rowErrs []RowError
		first   = true
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				rowErrs = append(rowErrs, RowError{Line: perr.Line, Err: fmt.Errorf("%w: %v", ErrMalformedRow, perr.Err)})
				continue
			}
			return out, rowErrs, fmt.Errorf("read sample log: %w", err)
		}

		line, _ := cr.FieldPos(0)
		if first {
			first = false
			if isHeader(rec) {
				continue
			}
		}

		s, err := parseFields(rec)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: err})
			continue
		}
		out = append(out, s)
	}

	return out, rowErrs, nil
}

func isHeader(rec []string) bool {
	return len(rec) > 0 && (rec[0] == "timestamp" || rec[0] == "ts")
}
