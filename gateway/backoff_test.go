package gateway

import (
	"testing"
	"time"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := NewBackoff(time.Second, 30*time.Second)
	b.randFloat = func() float64 { return 0.5 } // jitter factor 1.0

	var prev time.Duration
	for i := 0; i < 10; i++ {
		d := b.NextDelay()
		if d < prev {
			t.Fatalf("attempt %d: delay %s decreased from %s", i, d, prev)
		}
		if d > 30*time.Second {
			t.Fatalf("attempt %d: delay %s exceeds the cap", i, d)
		}
		prev = d
	}
	if prev != 30*time.Second {
		t.Fatalf("after 10 attempts delay is %s, want the cap", prev)
	}
}

func TestBackoffResetsAfterSuccess(t *testing.T) {
	b := NewBackoff(time.Second, 30*time.Second)
	b.randFloat = func() float64 { return 0.5 }

	for i := 0; i < 5; i++ {
		b.NextDelay()
	}
	b.RecordSuccess()

	if got := b.Attempts(); got != 0 {
		t.Fatalf("attempts after success: got %d, want 0", got)
	}
	if d := b.NextDelay(); d != time.Second {
		t.Fatalf("delay after success: got %s, want base", d)
	}
}

func TestBackoffJitterStaysWithinBounds(t *testing.T) {
	for _, r := range []float64{0, 0.25, 0.5, 0.75, 0.999} {
		b := NewBackoff(time.Second, time.Hour)
		b.randFloat = func() float64 { return r }

		d := b.NextDelay()
		if d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Fatalf("randFloat=%v: delay %s outside base ±20%%", r, d)
		}
	}
}
