package model

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/types"
)

// Model owns the current Dashboard. Snapshot never blocks; writers are
// serialized.
type Model struct {
	current   atomic.Pointer[Dashboard]
	published atomic.Bool
	mu        sync.Mutex

	subMu       sync.Mutex
	subscribers map[int]chan *Dashboard
	nextSub     int
}

func New() *Model {
	m := &Model{
		subscribers: make(map[int]chan *Dashboard),
	}
	m.current.Store(empty())

	return m
}

// Snapshot returns the current dashboard. Callers must not modify it.
func (m *Model) Snapshot() *Dashboard {
	return m.current.Load()
}

// Published reports whether the scheduler has published at least once.
func (m *Model) Published() bool {
	return m.published.Load()
}

// Publish applies fn to a copy of the current dashboard, swaps it in and
// marks the model as published.
func (m *Model) Publish(fn func(d *Dashboard)) *Dashboard {
	return m.swap(fn, true)
}

// Update is Publish without marking the model published. Used for operator
// changes that may happen before the first tick.
func (m *Model) Update(fn func(d *Dashboard)) *Dashboard {
	return m.swap(fn, false)
}

func (m *Model) swap(fn func(d *Dashboard), publish bool) *Dashboard {
	m.mu.Lock()

	next := m.current.Load().clone()
	fn(next)
	next.PublishedAt = time.Now().UTC()
	m.current.Store(next)

	if publish {
		m.published.Store(true)
	}

	// under mu so subscribers see dashboards in swap order
	m.notify(next)
	m.mu.Unlock()

	return next
}

// AutoTrading returns the operator's auto-trading flag.
func (m *Model) AutoTrading() bool {
	return m.Snapshot().AutoTradingEnabled
}

// SetAutoTrading sets the flag and returns the new value.
func (m *Model) SetAutoTrading(on bool) bool {
	return m.Update(func(d *Dashboard) { d.AutoTradingEnabled = on }).AutoTradingEnabled
}

// ToggleAutoTrading flips the flag and returns the new value.
func (m *Model) ToggleAutoTrading() bool {
	return m.Update(func(d *Dashboard) { d.AutoTradingEnabled = !d.AutoTradingEnabled }).AutoTradingEnabled
}

// AddAlerts appends to the alert ring.
func (m *Model) AddAlerts(alerts ...types.NewsAlert) {
	if len(alerts) == 0 {
		return
	}

	m.Update(func(d *Dashboard) { d.AppendAlerts(alerts...) })
}

// Subscribe returns a channel that receives every new dashboard. Slow
// subscribers only see the newest one. Call cancel to unsubscribe.
func (m *Model) Subscribe() (<-chan *Dashboard, func()) {
	ch := make(chan *Dashboard, 1)

	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = ch
	m.subMu.Unlock()

	cancel := func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()

		if _, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(ch)
		}
	}

	return ch, cancel
}

func (m *Model) notify(d *Dashboard) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for _, ch := range m.subscribers {
		select {
		case ch <- d:
			continue
		default:
		}

		// drop the stale value and retry once
		select {
		case <-ch:
		default:
		}

		select {
		case ch <- d:
		default:
		}
	}
}
