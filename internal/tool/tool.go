// Package tool abstracts external command execution so the pipeline depends
// on a capability, not on process spawning, and tests can substitute a fake.
package tool

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// Runner executes an external command with a bounded timeout and captures
// its output. On timeout the process is killed and the returned error is
// context.DeadlineExceeded.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs real subprocesses.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		// CommandContext kills the process; surface the deadline, not
		// the resulting "signal: killed".
		err = ctx.Err()
	}
	return stdout.Bytes(), stderr.Bytes(), err
}
