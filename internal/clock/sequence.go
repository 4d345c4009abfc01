package clock

import "sync/atomic"

// Sequence is a monotonic logical clock for event ordering.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations).
// In practice only the station loop goroutine calls Next().
type Sequence struct {
	seq atomic.Int64
}

// NewSequence creates a sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next sequence number and increments the counter.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}
