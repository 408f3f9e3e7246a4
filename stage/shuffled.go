package stage

import "math/rand/v2"

// Shuffled holds its elements in random order and hands them out without
// replacement. It is not safe for concurrent use.
type Shuffled[T any] struct {
	items []T
	next  int
}

// NewShuffled copies items and shuffles the copy.
func NewShuffled[T any](items []T) *Shuffled[T] {
	s := &Shuffled[T]{items: append([]T(nil), items...)}
	s.shuffle()
	return s
}

func (s *Shuffled[T]) shuffle() {
	s.next = 0
	rand.Shuffle(len(s.items), func(i, j int) {
		s.items[i], s.items[j] = s.items[j], s.items[i]
	})
}

// Take returns the next n elements, clamped to what is left. Once every
// element has been taken it returns an empty slice until Reset.
func (s *Shuffled[T]) Take(n int) []T {
	if n <= 0 || s.next >= len(s.items) {
		return nil
	}
	end := min(s.next+n, len(s.items))
	out := append([]T(nil), s.items[s.next:end]...)
	s.next = end
	return out
}

// TakeRandom returns a uniformly chosen element without consuming it.
func (s *Shuffled[T]) TakeRandom() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	return s.items[rand.IntN(len(s.items))], true
}

// Reset reshuffles and makes every element available again.
func (s *Shuffled[T]) Reset() {
	s.shuffle()
}

// Len returns the total number of elements.
func (s *Shuffled[T]) Len() int { return len(s.items) }

// Remaining returns how many elements Take can still hand out.
func (s *Shuffled[T]) Remaining() int { return len(s.items) - s.next }
