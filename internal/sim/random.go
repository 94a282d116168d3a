// Package sim holds the randomness seam behind every simulated outcome.
package sim

import (
	"math/rand/v2"
	"sync"
)

// RandomSource picks an index in [0, n).
type RandomSource interface {
	Intn(n int) int
}

// Uniform draws from the runtime's shared generator. It is safe for
// concurrent use.
type Uniform struct{}

func (Uniform) Intn(n int) int { return rand.IntN(n) }

// Scripted replays a fixed sequence of picks, wrapping around at the end.
// Each pick is reduced modulo n.
type Scripted struct {
	mu    sync.Mutex
	picks []int
	next  int
}

// NewScripted returns a source that yields picks in order.
func NewScripted(picks ...int) *Scripted {
	if len(picks) == 0 {
		picks = []int{0}
	}
	return &Scripted{picks: picks}
}

func (s *Scripted) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.picks[s.next%len(s.picks)]
	s.next++
	if p < 0 {
		p = -p
	}
	return p % n
}

// Pick returns a uniformly chosen element of options.
func Pick[T any](src RandomSource, options []T) T {
	return options[src.Intn(len(options))]
}
