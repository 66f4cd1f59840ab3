// internal/pkg/session/idle.go
package session

import (
	"sync"
	"time"
)

type idleTimer struct {
	timer *time.Timer
	gen   uint64
}

// IdleMonitor fires onExpire once per key after window passes without activity.
type IdleMonitor struct {
	window   time.Duration
	onExpire func(key string)

	mu     sync.Mutex
	timers map[string]*idleTimer
}

// NewIdleMonitor returns a monitor. A non-positive window disables expiry.
func NewIdleMonitor(window time.Duration, onExpire func(key string)) *IdleMonitor {
	return &IdleMonitor{
		window:   window,
		onExpire: onExpire,
		timers:   make(map[string]*idleTimer),
	}
}

// Track starts (or restarts) the idle window for key.
func (m *IdleMonitor) Track(key string) {
	m.TrackFor(key, m.window)
}

// TrackFor arms key to expire after d, or after the full window when d is not
// positive.
func (m *IdleMonitor) TrackFor(key string, d time.Duration) {
	if m.window <= 0 {
		return
	}
	if d <= 0 {
		d = m.window
	}
	m.reset(key, d)
}

// Activity resets the window when event is a tracked user interaction.
func (m *IdleMonitor) Activity(key, event string) bool {
	if !ActivityEvents[event] {
		return false
	}
	m.Track(key)
	return true
}

// Stop cancels the window for key without firing.
func (m *IdleMonitor) Stop(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.timers[key]; ok {
		e.timer.Stop()
		delete(m.timers, key)
	}
}

// StopAll cancels every pending window.
func (m *IdleMonitor) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.timers {
		e.timer.Stop()
		delete(m.timers, key)
	}
}

// Tracked reports whether key has a pending window.
func (m *IdleMonitor) Tracked(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[key]
	return ok
}

func (m *IdleMonitor) reset(key string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.timers[key]
	if !ok {
		e = &idleTimer{}
		m.timers[key] = e
	} else {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	e.timer = time.AfterFunc(d, func() { m.fire(key, gen) })
}

// fire runs onExpire only if no reset happened since the timer was armed.
func (m *IdleMonitor) fire(key string, gen uint64) {
	m.mu.Lock()
	e, ok := m.timers[key]
	if !ok || e.gen != gen {
		m.mu.Unlock()
		return
	}
	delete(m.timers, key)
	m.mu.Unlock()

	if m.onExpire != nil {
		m.onExpire(key)
	}
}
