package codec

import "sync/atomic"

// Sequence issues the one byte sequence-operation ids. Values wrap at 256.
type Sequence struct {
	n atomic.Uint32
}

// Next returns the next id, starting at 0.
func (s *Sequence) Next() byte {
	return byte(s.n.Add(1) - 1)
}

// Peek returns the id the next call to Next will issue.
func (s *Sequence) Peek() byte {
	return byte(s.n.Load())
}
