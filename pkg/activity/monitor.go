// Package activity ends idle sessions.
package activity

import (
	"sync"
	"time"
)

// DefaultTimeout is how long a session may go without interaction.
const DefaultTimeout = 60 * time.Second

// Target is what the monitor watches. session.Controller implements it.
type Target interface {
	Busy() bool
	Active() bool
}

// Monitor calls OnIdle when an active target has seen no Touch for Timeout.
// It fires even while a command is running. The timer is re-armed after every
// check so the monitor keeps watching across sessions until Stop.
type Monitor struct {
	target  Target
	onIdle  func()
	timeout time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	deadline time.Time
	gen      uint64
	running  bool
	wg       sync.WaitGroup
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithTimeout sets the idle window. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// NewMonitor creates a stopped monitor.
func NewMonitor(target Target, onIdle func(), opts ...Option) *Monitor {
	m := &Monitor{
		target:  target,
		onIdle:  onIdle,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Timeout returns the idle window.
func (m *Monitor) Timeout() time.Duration {
	return m.timeout
}

// Start arms the timer. Calling Start on a running monitor does nothing.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.armLocked()
}

// Touch records user interaction and restarts the idle window.
func (m *Monitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.armLocked()
}

// Remaining returns the time left before the idle callback fires, or zero when stopped.
func (m *Monitor) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return 0
	}
	if d := time.Until(m.deadline); d > 0 {
		return d
	}
	return 0
}

// Stop releases the timer and waits for a callback in progress. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.running {
		m.running = false
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// armLocked replaces the current timer. Only the timer of the latest arming
// may call onIdle or re-arm.
func (m *Monitor) armLocked() {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.gen++
	gen := m.gen
	m.deadline = time.Now().Add(m.timeout)
	m.timer = time.AfterFunc(m.timeout, func() { m.fire(gen) })
}

func (m *Monitor) fire(gen uint64) {
	m.mu.Lock()
	if !m.running || gen != m.gen || time.Now().Before(m.deadline) {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()

	if m.target.Active() && m.onIdle != nil {
		m.onIdle()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running && gen == m.gen {
		m.armLocked()
	}
}
