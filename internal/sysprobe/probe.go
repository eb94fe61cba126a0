// Package sysprobe reads coarse host metrics and checks the process table
// for companion processes.
package sysprobe

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Probe collects the host part of the system view.
type Probe interface {
	Collect(ctx context.Context) types.SystemStatus
}

// HostProbe reads the local host through gopsutil.
type HostProbe struct {
	diskPath     string
	processNames []string
	started      time.Time
	logger       *logger.Logger
}

var _ Probe = (*HostProbe)(nil)

func NewHostProbe(diskPath string, processNames []string, log *logger.Logger) *HostProbe {
	if diskPath == "" {
		diskPath = "/"
	}

	return &HostProbe{
		diskPath:     diskPath,
		processNames: processNames,
		started:      time.Now(),
		logger:       log.Named("sysprobe"),
	}
}

// Collect never fails: a metric that cannot be read is reported as NaN and
// logged at debug level.
func (p *HostProbe) Collect(ctx context.Context) types.SystemStatus {
	status := types.SystemStatus{
		CPUPercent:    types.Float(math.NaN()),
		MemoryPercent: types.Float(math.NaN()),
		DiskPercent:   types.Float(math.NaN()),
		Processes:     []types.ProcessStatus{},
		UptimeSeconds: int64(time.Since(p.started).Seconds()),
		CollectedAt:   time.Now().UTC(),
	}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		status.CPUPercent = types.Float(types.Round(pct[0], 1))
	} else if err != nil {
		p.logger.Debug("cpu probe failed", zap.Error(err))
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		status.MemoryPercent = types.Float(types.Round(vm.UsedPercent, 1))
	} else {
		p.logger.Debug("memory probe failed", zap.Error(err))
	}

	if du, err := disk.UsageWithContext(ctx, p.diskPath); err == nil {
		status.DiskPercent = types.Float(types.Round(du.UsedPercent, 1))
	} else {
		p.logger.Debug("disk probe failed", zap.String("path", p.diskPath), zap.Error(err))
	}

	if len(p.processNames) > 0 {
		status.Processes = p.processes(ctx)
	}

	return status
}

func (p *HostProbe) processes(ctx context.Context) []types.ProcessStatus {
	out := make([]types.ProcessStatus, len(p.processNames))
	for i, name := range p.processNames {
		out[i] = types.ProcessStatus{Name: name}
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		p.logger.Debug("process table probe failed", zap.Error(err))

		return out
	}

	for _, proc := range procs {
		name, _ := proc.NameWithContext(ctx)
		cmdline, _ := proc.CmdlineWithContext(ctx)

		for i := range out {
			if out[i].Running {
				continue
			}

			if MatchProcess(out[i].Name, name, cmdline) {
				out[i].Running = true
				out[i].PID = proc.Pid
			}
		}
	}

	return out
}

// MatchProcess reports whether a process with the given executable name and
// command line is the wanted one. The command line is searched too because
// interpreters show up under their own name.
func MatchProcess(want, name, cmdline string) bool {
	want = strings.ToLower(want)
	if want == "" {
		return false
	}

	return strings.EqualFold(name, want) || strings.Contains(strings.ToLower(cmdline), want)
}
