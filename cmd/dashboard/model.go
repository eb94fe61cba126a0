package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rxtech-lab/argo-monitor/internal/model"
	"github.com/rxtech-lab/argo-monitor/internal/version"
)

// Application states.
const (
	StateLoading = iota
	StateConditions
	StateSignals
	StateAlerts
)

var tabNames = map[int]string{
	StateConditions: "Conditions",
	StateSignals:    "Signals",
	StateAlerts:     "Alerts",
}

const requestTimeout = 5 * time.Second

// Model is the main Bubble Tea model of the dashboard.
type Model struct {
	state      int
	client     *Client
	interval   time.Duration
	spinner    spinner.Model
	conditions table.Model
	signals    table.Model
	alerts     table.Model
	dashboard  *model.Dashboard
	prevClose  map[string]float64
	status     string
	confirm    bool
	err        error
	width      int
	height     int
}

// NewModel creates a new Model polling client every interval.
func NewModel(client *Client, interval time.Duration) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		state:      StateLoading,
		client:     client,
		interval:   interval,
		spinner:    sp,
		conditions: NewConditionsTable(),
		signals:    NewSignalsTable(),
		alerts:     NewAlertsTable(),
		prevClose:  make(map[string]float64),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch(), m.checkVersion())
}

func (m Model) fetch() tea.Cmd {
	client := m.client

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		d, err := client.Dashboard(ctx)
		if err != nil {
			return FetchErrorMsg{Err: err}
		}

		return DashboardMsg{Dashboard: d}
	}
}

func (m Model) schedule() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m Model) checkVersion() tea.Cmd {
	client := m.client

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		h, err := client.Health(ctx)
		if err != nil {
			return VersionMsg{Err: err}
		}

		return VersionMsg{Version: h.Version, Err: version.CheckVersionCompatibility(h.Version, version.Version)}
	}
}

func (m Model) post(command, path string) tea.Cmd {
	client := m.client

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		res, err := client.Post(ctx, path, nil)

		return CommandResultMsg{Command: command, Result: res, Err: err}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		for _, t := range []*table.Model{&m.conditions, &m.signals, &m.alerts} {
			t.SetWidth(msg.Width)
			t.SetHeight(max(3, msg.Height-10))
		}

		return m, nil

	case DashboardMsg:
		if m.dashboard != nil {
			for _, c := range m.dashboard.Conditions {
				m.prevClose[c.Symbol] = float64(c.Snapshot.Close)
			}
		}

		m.dashboard = msg.Dashboard
		m.err = nil
		m.conditions = UpdateConditionRows(m.conditions, msg.Dashboard.Conditions, m.prevClose)
		m.signals = UpdateSignalRows(m.signals, msg.Dashboard.Signals)
		m.alerts = UpdateAlertRows(m.alerts, msg.Dashboard.AlertsRecent)

		if m.state == StateLoading {
			m.state = StateConditions
		}

		return m, m.schedule()

	case FetchErrorMsg:
		m.err = msg.Err

		return m, m.schedule()

	case pollMsg:
		return m, m.fetch()

	case CommandResultMsg:
		if msg.Err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.Command, msg.Err)
		} else {
			m.status = msg.Result.Message
		}

		return m, m.fetch()

	case VersionMsg:
		if msg.Err != nil {
			m.status = "Version check: " + msg.Err.Error()
		}

		return m, nil

	case spinner.TickMsg:
		if m.state != StateLoading {
			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m.updateTable(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm {
		m.confirm = false

		if msg.String() == "y" {
			m.status = "Emergency stop sent"

			return m, m.post("emergency stop", "/api/emergency-stop")
		}

		m.status = "Emergency stop cancelled"

		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		if m.state != StateLoading {
			m.state = m.state%StateAlerts + 1
		}

		return m, nil
	case "1":
		return m.show(StateConditions), nil
	case "2":
		return m.show(StateSignals), nil
	case "3":
		return m.show(StateAlerts), nil
	case "r":
		return m, m.post("refresh", "/api/refresh-data")
	case "a":
		return m, m.post("toggle", "/api/toggle-auto-trading")
	case "X":
		m.confirm = true

		return m, nil
	}

	return m.updateTable(msg)
}

func (m Model) show(state int) Model {
	if m.state != StateLoading {
		m.state = state
	}

	return m
}

func (m Model) updateTable(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.state {
	case StateConditions:
		m.conditions, cmd = m.conditions.Update(msg)
	case StateSignals:
		m.signals, cmd = m.signals.Update(msg)
	case StateAlerts:
		m.alerts, cmd = m.alerts.Update(msg)
	}

	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("Argo Monitor"))
	s.WriteString("\n\n")

	if m.state == StateLoading {
		if m.err != nil {
			s.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			s.WriteString("\n\n")
		}

		s.WriteString(m.spinner.View() + " Waiting for the monitor...\n\n")
		s.WriteString(HelpStyle.Render("q: quit"))

		return s.String()
	}

	if m.dashboard.Degraded {
		s.WriteString(BannerStyle.Render("DEGRADED: data may be stale"))
		s.WriteString("\n")
	}

	s.WriteString(RenderSummary(m.dashboard))
	s.WriteString("\n\n")

	for state := StateConditions; state <= StateAlerts; state++ {
		style := TabStyle
		if state == m.state {
			style = ActiveTabStyle
		}

		s.WriteString(style.Render(fmt.Sprintf("%d %s", state, tabNames[state])))
	}

	s.WriteString("\n\n")

	switch m.state {
	case StateConditions:
		s.WriteString(m.conditions.View())
	case StateSignals:
		s.WriteString(m.signals.View())
	case StateAlerts:
		s.WriteString(m.alerts.View())
	}

	s.WriteString("\n")

	if m.err != nil {
		s.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n")
	}

	switch {
	case m.confirm:
		s.WriteString(ErrorStyle.Render("Emergency stop? Press y to confirm"))
		s.WriteString("\n")
	case m.status != "":
		s.WriteString(m.status)
		s.WriteString("\n")
	}

	s.WriteString(HelpStyle.Render("q: quit | tab/1-3: view | r: refresh | a: auto-trading | X: emergency stop"))

	return s.String()
}
