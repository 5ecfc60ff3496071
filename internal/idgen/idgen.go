// Package idgen issues identifiers: zero-padded sequential record ids
// ("INT0001") and random handles backed by UUIDv4.
package idgen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var ErrMalformedID = errors.New("malformed sequential id")

// New generates a random UUID string.
func New() string {
	return uuid.NewString()
}

// WithPrefix generates a random handle with a prefix (e.g. "cmp_").
// Result is prefix + 32 hex chars.
func WithPrefix(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Format renders n as prefix followed by n zero-padded to width digits.
// Numbers wider than width are written in full.
func Format(prefix string, width int, n int64) string {
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}

// Parse extracts the number from an id produced by Format.
func Parse(prefix, id string) (int64, error) {
	digits, ok := strings.CutPrefix(id, prefix)
	if !ok || digits == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	return n, nil
}

// Sequence issues increasing ids starting at 1. Safe for concurrent use.
type Sequence struct {
	prefix string
	width  int

	mu   sync.Mutex
	last int64
}

// NewSequence creates a sequence for ids like prefix+"0001" (width 4).
func NewSequence(prefix string, width int) *Sequence {
	return &Sequence{prefix: prefix, width: width}
}

// Next returns the next id and its number.
func (s *Sequence) Next() (string, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return Format(s.prefix, s.width, s.last), s.last
}
