package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type ticket struct {
	windowStart time.Time
	window      time.Duration
	count       int
}

// Memory is an in-process fixed-window limiter.
type Memory struct {
	mu        sync.Mutex
	tickets   map[string]*ticket
	now       func() time.Time
	lastSweep time.Time
}

func NewMemory() *Memory {
	return &Memory{
		tickets: make(map[string]*ticket),
		now:     time.Now,
	}
}

// Allow implements Limiter.
func (m *Memory) Allow(_ context.Context, key string, rule Rule) (Decision, error) {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Decision{}, fmt.Errorf("invalid rate limit rule %+v", rule)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	t, ok := m.tickets[key]
	if !ok || !now.Before(t.windowStart.Add(t.window)) {
		t = &ticket{windowStart: now, window: rule.Window}
		m.tickets[key] = t
	}

	if t.count >= rule.Limit {
		return Decision{
			Allowed:    false,
			RetryAfter: t.windowStart.Add(t.window).Sub(now),
		}, nil
	}

	t.count++
	return Decision{
		Allowed:   true,
		Remaining: rule.Limit - t.count,
	}, nil
}

// Reset drops the ticket for key.
func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.tickets, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < time.Minute {
		return
	}
	m.lastSweep = now
	for key, t := range m.tickets {
		if !now.Before(t.windowStart.Add(t.window)) {
			delete(m.tickets, key)
		}
	}
}
