package ids

import (
	mathrand "math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier used for request ids and token ids.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Sequence hands out strictly increasing integers. The zero value starts at 1.
type Sequence struct {
	mu   sync.Mutex
	last int64
}

// NewSequence returns a sequence whose next value is start.
func NewSequence(start int64) *Sequence {
	return &Sequence{last: start - 1}
}

// Next returns the next value.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}

// Observe makes sure later values are greater than n.
// Used when records with pre-assigned ids are loaded.
func (s *Sequence) Observe(n int64) {
	s.mu.Lock()
	if n > s.last {
		s.last = n
	}
	s.mu.Unlock()
}

// ObserveString is Observe for decimal string ids; non-numeric ids are ignored.
func (s *Sequence) ObserveString(id string) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return
	}
	s.Observe(n)
}

// NextString returns Next formatted as a decimal string.
func (s *Sequence) NextString() string {
	return strconv.FormatInt(s.Next(), 10)
}
