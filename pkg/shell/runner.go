// Package shell runs shell-command actions as external processes.
package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// DefaultTimeout bounds every shell invocation; on expiry the process is
// killed and the action reported as failed.
const DefaultTimeout = 30 * time.Second

type Runner struct {
	timeout time.Duration
	logger  *slog.Logger
}

func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{
		timeout: DefaultTimeout,
		logger:  logger.With("module", "shell_runner"),
	}
}

// WithTimeout overrides the command timeout, mainly for tests.
func (r *Runner) WithTimeout(d time.Duration) *Runner {
	r.timeout = d

	return r
}

// RunCommand executes the command through `sh -c`. The action input, if any,
// is passed on stdin as JSON. Stdout is returned as the action result.
func (r *Runner) RunCommand(ctx context.Context, command string, input map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)

	if len(input) > 0 {
		stdin, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("failed to encode command input: %w", err)
		}

		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.logger.Warn("Command timed out", "command", command, "timeout", r.timeout)

		return nil, fmt.Errorf("command timed out after %s", r.timeout)
	}

	if err != nil {
		return nil, fmt.Errorf("command failed: %w (stderr: %s)", err, stderr.String())
	}

	r.logger.Debug("Command completed", "command", command, "duration", time.Since(start))

	return map[string]any{
		"stdout":   stdout.String(),
		"exitCode": 0,
	}, nil
}
