package samples

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedNote is returned when a note is not exactly token "_" token.
var ErrMalformedNote = errors.New("malformed note")

const noteSeparator = '_'

// Note is a parsed "condition_size" label, e.g. "C1_5k".
type Note struct {
	Condition string
	Size      string
}

// String joins the note back into its label form.
func (n Note) String() string {
	return n.Condition + string(noteSeparator) + n.Size
}

// ParseNote splits a label into condition and size.
//
// Grammar: note = token "_" token, token = 1*(ALPHA / DIGIT / "-" / ".").
// A missing or repeated separator, an empty token, or any other character
// yields ErrMalformedNote.
func ParseNote(s string) (Note, error) {
	i := strings.IndexByte(s, noteSeparator)
	if i < 0 {
		return Note{}, fmt.Errorf("%w: %q has no %q separator", ErrMalformedNote, s, noteSeparator)
	}

	cond, size := s[:i], s[i+1:]
	if err := checkToken(cond); err != nil {
		return Note{}, fmt.Errorf("%w: %q condition: %v", ErrMalformedNote, s, err)
	}
	if err := checkToken(size); err != nil {
		return Note{}, fmt.Errorf("%w: %q size: %v", ErrMalformedNote, s, err)
	}

	return Note{Condition: cond, Size: size}, nil
}

// NewNote builds a note from its parts, rejecting parts that would not parse back.
func NewNote(condition, size string) (Note, error) {
	return ParseNote(condition + string(noteSeparator) + size)
}

func checkToken(tok string) error {
	if tok == "" {
		return errors.New("empty token")
	}
	for _, r := range tok {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
		default:
			return fmt.Errorf("invalid character %q", r)
		}
	}
	return nil
}
