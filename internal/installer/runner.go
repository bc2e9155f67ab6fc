package installer

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// CommandRunner runs external commands. It exists so install steps can be
// mocked in tests.
type CommandRunner interface {
	// Run executes argv in dir and returns the combined stdout/stderr.
	Run(ctx context.Context, dir string, argv []string) ([]byte, error)
}

// ExecRunner runs commands with os/exec. A positive Timeout bounds each
// command independent of the caller's context.
type ExecRunner struct {
	Timeout time.Duration
}

func (r *ExecRunner) Run(ctx context.Context, dir string, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}
