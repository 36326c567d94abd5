package stream

import "math/rand"

// shuffler is a bounded shuffle buffer. Once full, every push emits a
// uniformly chosen element and takes its slot; drain empties the rest in
// random order.
type shuffler struct {
	buf [][]byte
	cap int
	rnd *rand.Rand
}

func newShuffler(capacity int, rnd *rand.Rand) *shuffler {
	return &shuffler{buf: make([][]byte, 0, min(capacity, 4096)), cap: capacity, rnd: rnd}
}

func (s *shuffler) push(item []byte) ([]byte, bool) {
	if len(s.buf) < s.cap {
		s.buf = append(s.buf, item)
		return nil, false
	}
	i := s.rnd.Intn(len(s.buf))
	out := s.buf[i]
	s.buf[i] = item
	return out, true
}

// pop removes a random element. It returns false when the buffer is empty.
func (s *shuffler) pop() ([]byte, bool) {
	n := len(s.buf)
	if n == 0 {
		return nil, false
	}
	i := s.rnd.Intn(n)
	out := s.buf[i]
	s.buf[i] = s.buf[n-1]
	s.buf[n-1] = nil
	s.buf = s.buf[:n-1]
	return out, true
}
