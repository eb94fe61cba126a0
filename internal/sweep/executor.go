package sweep

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// Command is one engine invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
}

// Output is what a finished invocation left behind.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Elapsed  time.Duration
}

// Executor runs engine commands.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// ProcessExecutor runs commands as child processes.
type ProcessExecutor struct{}

var _ Executor = ProcessExecutor{}

// Run starts the process and waits for it. A cancelled ctx kills it.
func (ProcessExecutor) Run(ctx context.Context, cmd Command) (Output, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir

	var stdout, stderr bytes.Buffer

	c.Stdout = &stdout
	c.Stderr = &stderr

	started := time.Now()
	err := c.Run()

	out := Output{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: c.ProcessState.ExitCode(),
		Elapsed:  time.Since(started),
	}

	if err != nil {
		if ctx.Err() != nil {
			return out, errors.Wrap(errors.ErrCodeTimeout, "backtest interrupted", ctx.Err())
		}

		return out, errors.Wrapf(errors.ErrCodeBacktestFailed, err, "%s exited with code %d", cmd.Name, out.ExitCode)
	}

	return out, nil
}
