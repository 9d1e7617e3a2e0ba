package gateway

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff paces reconnection attempts: exponential growth from Base, capped
// at Max, with ±20% jitter so a fleet of bots does not reconnect in
// lockstep.
type Backoff struct {
	mu       sync.Mutex
	attempts int

	Base time.Duration
	Max  time.Duration

	// rand source, replaceable in tests
	randFloat func() float64
}

// NewBackoff returns a controller growing from base up to max.
func NewBackoff(base, max time.Duration) *Backoff {
	return &Backoff{Base: base, Max: max, randFloat: rand.Float64}
}

// NextDelay records one more attempt and returns how long to wait before it.
// The first call returns the base delay (plus jitter).
func (b *Backoff) NextDelay() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.Base
	for i := 0; i < b.attempts; i++ {
		d *= 2
		if d >= b.Max {
			d = b.Max
			break
		}
	}
	b.attempts++

	// ±20% jitter
	jitter := 1 + (b.randFloat()*0.4 - 0.2)
	d = time.Duration(float64(d) * jitter)
	if d > b.Max {
		d = b.Max
	}
	return d
}

// RecordSuccess resets the attempt counter; the next delay starts over from
// the base value. Called once a connection is stably running (handshake done
// and a heartbeat acknowledged).
func (b *Backoff) RecordSuccess() {
	b.mu.Lock()
	b.attempts = 0
	b.mu.Unlock()
}

// Attempts reports how many delays were handed out since the last success.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}
