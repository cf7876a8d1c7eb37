package app

import (
	"sync"
	"time"
)

// Clock is the App's only source of wall time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the monotonic system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// MockClock provides a controllable time source for testing.
type MockClock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

func (m *MockClock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Set moves the clock to t.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
