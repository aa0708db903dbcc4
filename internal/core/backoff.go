package core

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff is a capped exponential delay policy with jitter.
// Delay n (starting at 0) is Base*Factor^n capped at Max, then spread by ±Jitter.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64

	mu      sync.Mutex
	attempt int
	rnd     func() float64
}

// NewBackoff builds a policy with factor 2 and 20% jitter.
func NewBackoff(base, ceiling time.Duration) *Backoff {
	return &Backoff{Base: base, Max: ceiling, Factor: 2, Jitter: 0.2}
}

// Next returns the delay before the next attempt and advances the attempt counter.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := float64(b.Base)
	for i := 0; i < b.attempt; i++ {
		d *= b.factor()
		if b.Max > 0 && d >= float64(b.Max) {
			break
		}
	}
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	b.attempt++

	if b.Jitter > 0 {
		r := rand.Float64
		if b.rnd != nil {
			r = b.rnd
		}
		d += d * b.Jitter * (2*r() - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Attempts returns how many delays were handed out since the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt
}

// Reset starts over from Base. Called once a connection registers.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempt = 0
}

func (b *Backoff) factor() float64 {
	if b.Factor < 1 {
		return 1
	}
	return b.Factor
}
