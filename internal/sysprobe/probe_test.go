package sysprobe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchProcess(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		exe     string
		cmdline string
		match   bool
	}{
		{name: "exact executable", want: "freqtrade", exe: "freqtrade", match: true},
		{name: "case insensitive", want: "Freqtrade", exe: "freqtrade", match: true},
		{name: "python entry point", want: "freqtrade", exe: "python3", cmdline: "/usr/bin/python3 -m freqtrade trade", match: true},
		{name: "other process", want: "freqtrade", exe: "nginx", cmdline: "nginx: master process", match: false},
		{name: "empty want", want: "", exe: "freqtrade", match: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, MatchProcess(tt.want, tt.exe, tt.cmdline))
		})
	}
}

func TestCollectFindsOwnProcess(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	self := filepath.Base(exe)
	p := NewHostProbe(os.TempDir(), []string{self, "definitely-not-running-xyz"}, logger.NewNopLogger())

	status := p.Collect(context.Background())
	require.Len(t, status.Processes, 2)
	assert.True(t, status.Processes[0].Running)
	assert.False(t, status.Processes[1].Running)
	assert.False(t, status.CollectedAt.IsZero())
	assert.GreaterOrEqual(t, float64(status.MemoryPercent), 0.0)
}
