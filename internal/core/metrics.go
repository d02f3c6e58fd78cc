package core

import (
	"sync"
	"sync/atomic"
	"time"
)

// IdleWatchdogMetrics counts idle disconnects, all-time and in a
// one-minute window whose counter is reset to zero every minute, the
// same ticking-reset shape the teacher's rate limiter uses for its
// per-minute request counter — here repurposed purely for
// observability, never to throttle anything.
type IdleWatchdogMetrics struct {
	total  atomic.Int64
	window atomic.Int64
	reset  *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// NewIdleWatchdogMetrics starts the rolling window immediately. Call
// Stop when the server shuts down.
func NewIdleWatchdogMetrics() *IdleWatchdogMetrics {
	m := &IdleWatchdogMetrics{reset: time.NewTicker(time.Minute), done: make(chan struct{})}
	go m.run()
	return m
}

func (m *IdleWatchdogMetrics) run() {
	for {
		select {
		case <-m.reset.C:
			m.window.Store(0)
		case <-m.done:
			return
		}
	}
}

// RecordDisconnect is called by a transport's watchdog close callback.
func (m *IdleWatchdogMetrics) RecordDisconnect() {
	m.total.Add(1)
	m.window.Add(1)
}

// Snapshot returns (all-time total, disconnects since the last
// one-minute reset).
func (m *IdleWatchdogMetrics) Snapshot() (total, lastMinute int64) {
	return m.total.Load(), m.window.Load()
}

// Stop releases the underlying ticker and its reset goroutine. Idempotent.
func (m *IdleWatchdogMetrics) Stop() {
	m.once.Do(func() {
		m.reset.Stop()
		close(m.done)
	})
}
