package main

import (
	"github.com/rxtech-lab/argo-monitor/internal/control"
	"github.com/rxtech-lab/argo-monitor/internal/model"
)

// DashboardMsg carries a freshly fetched dashboard.
type DashboardMsg struct {
	Dashboard *model.Dashboard
}

// FetchErrorMsg indicates a failed poll.
type FetchErrorMsg struct {
	Err error
}

// CommandResultMsg is the answer to a write command.
type CommandResultMsg struct {
	Command string
	Result  control.Result
	Err     error
}

// VersionMsg reports the monitor build compatibility check.
type VersionMsg struct {
	Version string
	Err     error
}

// pollMsg schedules the next fetch.
type pollMsg struct{}
