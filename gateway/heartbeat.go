package gateway

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// heartbeatMonitor owns the periodic heartbeat schedule for one connection.
// It writes through the session's serialized send path and reports a stale
// connection (a beat fired while the previous one is still unacknowledged)
// through the stale callback.
type heartbeatMonitor struct {
	interval time.Duration
	send     func() error
	stale    func()

	mu         sync.Mutex
	ackPending bool
	lastSent   time.Time
	lastAck    time.Time
	latency    time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

func newHeartbeatMonitor(interval time.Duration, send func() error, stale func()) *heartbeatMonitor {
	return &heartbeatMonitor{
		interval: interval,
		send:     send,
		stale:    stale,
		stop:     make(chan struct{}),
	}
}

// firstDelay is the jitter before the very first beat: uniform in
// [0, interval). Sending at t=0 would make every client of a mass reconnect
// beat in phase.
func (m *heartbeatMonitor) firstDelay() time.Duration {
	return time.Duration(rand.Int63n(int64(m.interval)))
}

// run blocks until Stop. The first beat waits for the jitter delay, every
// following beat fires on the interval.
func (m *heartbeatMonitor) run() {
	first := time.NewTimer(m.firstDelay())
	defer first.Stop()

	select {
	case <-m.stop:
		return
	case <-first.C:
	}
	if !m.beat() {
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if !m.beat() {
				return
			}
		}
	}
}

// beat sends one heartbeat. It returns false when the connection is stale,
// after handing the problem to the session.
func (m *heartbeatMonitor) beat() bool {
	m.mu.Lock()
	stale := m.ackPending
	m.mu.Unlock()

	if stale {
		slog.Warn("heartbeat not acknowledged within interval", "interval", m.interval)
		m.stale()
		return false
	}

	if err := m.send(); err != nil {
		m.stale()
		return false
	}

	m.mu.Lock()
	m.ackPending = true
	m.lastSent = time.Now()
	m.mu.Unlock()
	return true
}

// ack clears the pending flag and records the round-trip latency.
func (m *heartbeatMonitor) ack() {
	m.mu.Lock()
	m.ackPending = false
	m.lastAck = time.Now()
	m.latency = m.lastAck.Sub(m.lastSent)
	m.mu.Unlock()
}

// Latency reports the last measured heartbeat round trip.
func (m *heartbeatMonitor) Latency() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latency
}

// Stop is safe to call from multiple goroutines; the session's run loop,
// shutdown path, and stale handler can all race here.
func (m *heartbeatMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}
