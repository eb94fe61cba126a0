// Package model holds the dashboard snapshot shared by the scheduler, the HTTP
// API and the chat bot.
//
// A Dashboard value is immutable once published. Writers build a copy, change
// it and swap the pointer; readers load the pointer and never lock.
package model

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/types"
)

const (
	// AlertRingSize bounds Dashboard.AlertsRecent.
	AlertRingSize = 10
	// SignalRingSize bounds Dashboard.Signals.
	SignalRingSize = 20
	// StaleFactor is how many tick periods may pass before the dashboard is
	// considered stale.
	StaleFactor = 3
)

type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
)

// Dashboard is one published state of the monitor.
type Dashboard struct {
	System             types.SystemStatus    `json:"system"`
	Portfolio          types.Portfolio       `json:"portfolio"`
	Conditions         Conditions            `json:"conditions"`
	AlertsRecent       []types.NewsAlert     `json:"alerts_recent"`
	Sentiment          types.MarketSentiment `json:"sentiment"`
	Signals            []types.Signal        `json:"signals"`
	AutoTradingEnabled bool                  `json:"auto_trading_enabled"`
	LastUpdate         *time.Time            `json:"last_update"`
	Status             Status                `json:"status"`
	EngineReachable    bool                  `json:"engine_reachable"`
	Degraded           bool                  `json:"degraded"`
	TickCount          uint64                `json:"tick_count"`
	PublishedAt        time.Time             `json:"published_at"`
}

func empty() *Dashboard {
	return &Dashboard{
		System:       types.SystemStatus{Processes: []types.ProcessStatus{}},
		Portfolio:    types.Portfolio{OpenTrades: []types.TradeSummary{}, RecentTrades: []types.TradeSummary{}},
		Conditions:   Conditions{},
		AlertsRecent: []types.NewsAlert{},
		Signals:      []types.Signal{},
		Status:       StatusStarting,
	}
}

// clone copies every slice so the copy can be changed without touching d.
// Evaluation maps inside conditions are shared: they are built fresh by the
// evaluator and never changed afterwards.
func (d *Dashboard) clone() *Dashboard {
	c := *d
	c.System.Processes = append([]types.ProcessStatus{}, d.System.Processes...)
	c.Portfolio.OpenTrades = append([]types.TradeSummary{}, d.Portfolio.OpenTrades...)
	c.Portfolio.RecentTrades = append([]types.TradeSummary{}, d.Portfolio.RecentTrades...)
	c.Conditions = append(Conditions{}, d.Conditions...)
	c.AlertsRecent = append([]types.NewsAlert{}, d.AlertsRecent...)
	c.Signals = append([]types.Signal{}, d.Signals...)

	if d.LastUpdate != nil {
		ts := *d.LastUpdate
		c.LastUpdate = &ts
	}

	return &c
}

// StaleAt reports whether the last productive tick is older than
// StaleFactor tick periods at now. A dashboard that never updated is stale.
func (d *Dashboard) StaleAt(now time.Time, tickPeriod time.Duration) bool {
	if d.LastUpdate == nil {
		return true
	}

	return now.Sub(*d.LastUpdate) > StaleFactor*tickPeriod
}

// Condition returns the entry for symbol.
func (d *Dashboard) Condition(symbol string) (types.SymbolCondition, bool) {
	for _, c := range d.Conditions {
		if c.Symbol == symbol {
			return c, true
		}
	}

	return types.SymbolCondition{}, false
}

// AppendSignals adds signals to the ring, dropping the oldest.
func (d *Dashboard) AppendSignals(signals ...types.Signal) {
	d.Signals = appendRing(d.Signals, SignalRingSize, signals...)
}

// AppendAlerts adds alerts to the ring, dropping the oldest.
func (d *Dashboard) AppendAlerts(alerts ...types.NewsAlert) {
	d.AlertsRecent = appendRing(d.AlertsRecent, AlertRingSize, alerts...)
}

func appendRing[T any](ring []T, size int, items ...T) []T {
	out := append(ring, items...)
	if len(out) > size {
		out = append([]T{}, out[len(out)-size:]...)
	}

	return out
}

// Conditions is the per-symbol view in display order. It encodes as a JSON
// object keyed by symbol that keeps that order.
type Conditions []types.SymbolCondition

// Sort puts ready symbols first by buy_met+sell_met descending, then the rest
// by buy_met descending. Ties are broken by symbol.
func (c Conditions) Sort() {
	sort.SliceStable(c, func(i, j int) bool {
		a, b := c[i], c[j]
		if a.Ready() != b.Ready() {
			return a.Ready()
		}

		var ka, kb int
		if a.Ready() {
			ka = a.Evaluation.BuyMet + a.Evaluation.SellMet
			kb = b.Evaluation.BuyMet + b.Evaluation.SellMet
		} else {
			ka = a.Evaluation.BuyMet
			kb = b.Evaluation.BuyMet
		}

		if ka != kb {
			return ka > kb
		}

		return a.Symbol < b.Symbol
	})
}

func (c Conditions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, cond := range c {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(cond.Symbol)
		if err != nil {
			return nil, err
		}

		val, err := json.Marshal(cond)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func (c *Conditions) UnmarshalJSON(data []byte) error {
	var m map[string]types.SymbolCondition
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	out := make(Conditions, 0, len(m))

	for symbol, cond := range m {
		cond.Symbol = symbol
		out = append(out, cond)
	}

	out.Sort()
	*c = out

	return nil
}
