package gateway

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestHeartbeatFirstDelayIsJittered(t *testing.T) {
	interval := 40 * time.Second
	m := newHeartbeatMonitor(interval, func() error { return nil }, func() {})

	for i := 0; i < 1000; i++ {
		d := m.firstDelay()
		if d < 0 || d >= interval {
			t.Fatalf("first delay %s outside [0, %s)", d, interval)
		}
	}
}

func TestHeartbeatBeatSetsPendingAndAckClearsIt(t *testing.T) {
	sent := 0
	m := newHeartbeatMonitor(time.Minute, func() error { sent++; return nil }, func() {
		t.Fatal("stale must not fire on a healthy connection")
	})

	if !m.beat() {
		t.Fatal("first beat should succeed")
	}
	if sent != 1 {
		t.Fatalf("sent %d heartbeats, want 1", sent)
	}
	if !m.ackPending {
		t.Fatal("beat must mark the acknowledgement pending")
	}

	m.ack()
	if m.ackPending {
		t.Fatal("ack must clear the pending flag")
	}

	if !m.beat() {
		t.Fatal("beat after ack should succeed")
	}
}

func TestHeartbeatStalenessFiresWhenAckMissing(t *testing.T) {
	stale := false
	m := newHeartbeatMonitor(time.Minute, func() error { return nil }, func() { stale = true })

	m.beat()
	// Next interval elapses with the previous ack still outstanding.
	if m.beat() {
		t.Fatal("beat on a stale connection must report failure")
	}
	if !stale {
		t.Fatal("staleness callback did not fire")
	}
}

func TestHeartbeatSendFailureReportsStale(t *testing.T) {
	stale := false
	m := newHeartbeatMonitor(time.Minute,
		func() error { return errors.New("broken pipe") },
		func() { stale = true })

	if m.beat() {
		t.Fatal("beat must fail when the send fails")
	}
	if !stale {
		t.Fatal("send failure must be reported as a dead connection")
	}
}

func TestHeartbeatStopConcurrent(t *testing.T) {
	// The run loop, the shutdown path, and the stale handler can all call
	// Stop at once; none of them may panic on an already-closed channel.
	for i := 0; i < 100; i++ {
		m := newHeartbeatMonitor(time.Minute, func() error { return nil }, func() {})

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				m.Stop()
			}()
		}
		wg.Wait()

		select {
		case <-m.stop:
		default:
			t.Fatal("stop channel not closed")
		}
	}
}

func TestHeartbeatLatencyRecorded(t *testing.T) {
	m := newHeartbeatMonitor(time.Minute, func() error { return nil }, func() {})

	m.beat()
	time.Sleep(5 * time.Millisecond)
	m.ack()

	if m.Latency() <= 0 {
		t.Fatalf("latency %s, want > 0", m.Latency())
	}
}
