package timeline

import (
	"strconv"
	"sync/atomic"
	"time"
)

// IDSource hands out step identifiers.
type IDSource interface {
	Next() string
}

// Sequence yields "<unix-nanos>-<seq>" identifiers. The counter makes ids unique
// within a process even when the clock does not advance between calls.
type Sequence struct {
	seq atomic.Uint64
	now func() time.Time
}

// NewSequence returns a Sequence using the wall clock.
func NewSequence() *Sequence {
	return &Sequence{now: time.Now}
}

// Next returns the next identifier.
func (s *Sequence) Next() string {
	n := s.seq.Add(1)
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	return strconv.FormatInt(now().UnixNano(), 10) + "-" + strconv.FormatUint(n, 10)
}
