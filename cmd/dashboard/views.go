package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/rxtech-lab/argo-monitor/internal/model"
	"github.com/rxtech-lab/argo-monitor/internal/types"
)

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)

	t.SetStyles(s)

	return t
}

// NewConditionsTable creates the per-symbol rule table.
func NewConditionsTable() table.Model {
	return newTable([]table.Column{
		{Title: "Symbol", Width: 12},
		{Title: "Close", Width: 16},
		{Title: "RSI", Width: 7},
		{Title: "Trend", Width: 7},
		{Title: "Buy", Width: 8},
		{Title: "Sell", Width: 6},
		{Title: "Ready", Width: 9},
	})
}

// NewSignalsTable creates the signal ring table.
func NewSignalsTable() table.Model {
	return newTable([]table.Column{
		{Title: "Time", Width: 10},
		{Title: "Symbol", Width: 12},
		{Title: "Side", Width: 6},
		{Title: "Strength", Width: 9},
		{Title: "Price", Width: 14},
	})
}

// NewAlertsTable creates the news alert table.
func NewAlertsTable() table.Model {
	return newTable([]table.Column{
		{Title: "Time", Width: 10},
		{Title: "Asset", Width: 7},
		{Title: "Sentiment", Width: 10},
		{Title: "Impact", Width: 7},
		{Title: "Action", Width: 12},
		{Title: "Headline", Width: 50},
	})
}

// UpdateConditionRows fills the table in dashboard order.
func UpdateConditionRows(t table.Model, conditions model.Conditions, prevClose map[string]float64) table.Model {
	rows := make([]table.Row, 0, len(conditions))

	for _, c := range conditions {
		ready := ""
		switch {
		case c.Evaluation.ReadyToBuy && c.Evaluation.ReadyToSell:
			ready = "BUY+SELL"
		case c.Evaluation.ReadyToBuy:
			ready = "BUY"
		case c.Evaluation.ReadyToSell:
			ready = "SELL"
		}

		if c.Snapshot.Stale {
			ready = "stale"
		}

		rows = append(rows, table.Row{
			c.Symbol,
			FormatPriceWithColor(float64(c.Snapshot.Close), prevClose[c.Symbol]),
			fmt.Sprintf("%.1f", types.Finite(float64(c.Snapshot.RSI), 50)),
			fmt.Sprintf("%+.2f", types.Finite(float64(c.Snapshot.Trend), 0)),
			fmt.Sprintf("%d/%d", c.Evaluation.BuyMet, c.Evaluation.BuyTotal),
			fmt.Sprintf("%d/%d", c.Evaluation.SellMet, c.Evaluation.SellTotal),
			ready,
		})
	}

	t.SetRows(rows)

	return t
}

// UpdateSignalRows lists signals newest first.
func UpdateSignalRows(t table.Model, signals []types.Signal) table.Model {
	sorted := append([]types.Signal{}, signals...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TS.After(sorted[j].TS) })

	rows := make([]table.Row, 0, len(sorted))
	for _, s := range sorted {
		rows = append(rows, table.Row{
			s.TS.Local().Format("15:04:05"),
			s.Symbol,
			string(s.Side),
			fmt.Sprintf("%.2f", types.Finite(float64(s.Strength), 0)),
			fmt.Sprintf("%.4f", types.Finite(float64(s.Price), 0)),
		})
	}

	t.SetRows(rows)

	return t
}

// UpdateAlertRows lists alerts newest first.
func UpdateAlertRows(t table.Model, alerts []types.NewsAlert) table.Model {
	rows := make([]table.Row, 0, len(alerts))

	for i := len(alerts) - 1; i >= 0; i-- {
		a := alerts[i]
		rows = append(rows, table.Row{
			a.TS.Local().Format("15:04:05"),
			a.AssetSymbol,
			string(a.Sentiment),
			fmt.Sprintf("%.2f", types.Finite(float64(a.ImpactScore), 0)),
			string(a.ActionTaken),
			a.Headline,
		})
	}

	t.SetRows(rows)

	return t
}

// RenderSummary is the header above every view.
func RenderSummary(d *model.Dashboard) string {
	var s strings.Builder

	p := d.Portfolio

	engine := "engine up"
	if !d.EngineReachable {
		engine = "engine DOWN"
	}

	auto := "auto-trading off"
	if d.AutoTradingEnabled {
		auto = "auto-trading ON"
	}

	fmt.Fprintf(&s, "%s | %s | %s | tick %d\n", d.Status, engine, auto, d.TickCount)
	fmt.Fprintf(&s, "Balance %.2f %s | PnL %s | Today %s | Win rate %.1f%% | Open %d\n",
		types.Finite(float64(p.TotalBalance), 0), p.Currency,
		FormatPnL(types.Finite(float64(p.TotalPnL), 0), ""),
		FormatPnL(types.Finite(float64(p.DailyPnL), 0), ""),
		types.Finite(float64(p.WinRate), 0), len(p.OpenTrades))
	fmt.Fprintf(&s, "CPU %.0f%% | Mem %.0f%% | Disk %.0f%% | Mood %s",
		types.Finite(float64(d.System.CPUPercent), 0),
		types.Finite(float64(d.System.MemoryPercent), 0),
		types.Finite(float64(d.System.DiskPercent), 0),
		d.Sentiment.Mood)

	if d.LastUpdate != nil {
		fmt.Fprintf(&s, " | updated %s", d.LastUpdate.Local().Format("15:04:05"))
	}

	return s.String()
}
