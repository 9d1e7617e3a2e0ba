package gateway

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterWaitUnlockCycle(t *testing.T) {
	l := NewRateLimiter(WithCommandsPerMinute(120))

	for i := 0; i < 5; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
		l.Unlock()
	}
}

func TestRateLimiterResetDoesNotOrphanHeldLock(t *testing.T) {
	// A sender can hold the lock across a reconnect; Reset on the new
	// connection must not swap the mutex out from under it.
	l := NewRateLimiter()

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	l.Reset()
	l.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := l.Wait(context.Background()); err != nil {
			t.Errorf("wait after reset: %v", err)
			return
		}
		l.Unlock()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("send path deadlocked after reset")
	}
}
