package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"campaignsites/internal/logging"
)

// DirectExecutor runs commands on the host using os/exec.
type DirectExecutor struct {
	config Config
}

// NewDirectExecutor creates an executor with the default config.
func NewDirectExecutor() *DirectExecutor {
	return NewDirectExecutorWithConfig(DefaultConfig())
}

// NewDirectExecutorWithConfig creates an executor with a custom config.
func NewDirectExecutorWithConfig(config Config) *DirectExecutor {
	if config.MaxOutputBytes <= 0 {
		config.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if config.KillGrace <= 0 {
		config.KillGrace = 2 * time.Second
	}
	logging.RunnerDebug("Creating DirectExecutor: maxOutput=%d bytes, inheritEnv=%v",
		config.MaxOutputBytes, config.AllowedEnvironment == nil)
	return &DirectExecutor{config: config}
}

// Validate checks if a command can be executed.
func (e *DirectExecutor) Validate(cmd Command) error {
	if cmd.Binary == "" {
		return fmt.Errorf("binary is required")
	}
	return nil
}

// Execute runs cmd and waits for it to finish.
func (e *DirectExecutor) Execute(ctx context.Context, cmd Command) (*Result, error) {
	if err := e.Validate(cmd); err != nil {
		return nil, err
	}

	timer := logging.StartTimer(logging.CategoryRunner, "exec "+cmd.Binary)
	defer timer.Stop()

	logging.RunnerDebug("Executing: %s (dir=%s, timeout=%s)", cmd.CommandString(), cmd.WorkingDirectory, cmd.Timeout)

	result := &Result{ExitCode: -1}

	execCtx := ctx
	var cancel context.CancelFunc
	if cmd.Timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
	} else {
		execCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	execCmd.Dir = cmd.WorkingDirectory
	execCmd.Env = e.buildEnvironment(cmd.Environment)
	setupProcessGroup(execCmd)
	execCmd.Cancel = func() error { return killProcessGroup(execCmd, e.config.KillGrace) }
	execCmd.WaitDelay = e.config.KillGrace

	var stdoutBuf, stderrBuf bytes.Buffer
	combined := &lockedBuffer{max: 2 * e.config.MaxOutputBytes}
	stdoutLimited := &limitedWriter{w: &stdoutBuf, max: e.config.MaxOutputBytes}
	stderrLimited := &limitedWriter{w: &stderrBuf, max: e.config.MaxOutputBytes}

	execCmd.Stdout = fanWriter(stdoutLimited, combined, cmd.Stdout)
	execCmd.Stderr = fanWriter(stderrLimited, combined, cmd.Stderr)

	result.StartedAt = time.Now()
	err := execCmd.Run()
	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)

	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()
	result.Combined = combined.String()

	if stdoutLimited.truncated || stderrLimited.truncated {
		result.Truncated = true
		result.TruncatedBytes = stdoutLimited.discarded + stderrLimited.discarded
		logging.RunnerWarn("Output of %s truncated: %d bytes discarded", cmd.Binary, result.TruncatedBytes)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.Success = true
		result.ExitCode = 0
	case errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.Success = true
		result.Killed = true
		result.KillReason = fmt.Sprintf("timeout after %s", cmd.Timeout)
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		logging.RunnerWarn("Command killed (timeout): %s after %s", cmd.Binary, cmd.Timeout)
	case execCtx.Err() != nil:
		result.Success = true
		result.Killed = true
		result.KillReason = "context canceled"
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		logging.RunnerDebug("Command canceled: %s", cmd.Binary)
	case errors.As(err, &exitErr):
		result.Success = true
		result.ExitCode = exitErr.ExitCode()
		logging.RunnerDebug("Command exited non-zero: %s -> %d", cmd.Binary, result.ExitCode)
	default:
		result.Success = false
		result.Error = err.Error()
		logging.RunnerError("Command failed to run: %s - %v", cmd.Binary, err)
		return result, nil
	}

	logging.RunnerDebug("Command completed: %s -> exit=%d, duration=%s, output=%d bytes",
		cmd.Binary, result.ExitCode, result.Duration, len(result.Combined))
	return result, nil
}

// buildEnvironment layers cmdEnv over the allowed process environment.
func (e *DirectExecutor) buildEnvironment(cmdEnv []string) []string {
	var env []string
	if e.config.AllowedEnvironment == nil {
		env = os.Environ()
	} else {
		for _, key := range e.config.AllowedEnvironment {
			if val, ok := os.LookupEnv(key); ok {
				env = append(env, key+"="+val)
			}
		}
	}
	return MergeEnv(env, cmdEnv...)
}

func fanWriter(capture, combined io.Writer, stream io.Writer) io.Writer {
	if stream == nil {
		return io.MultiWriter(capture, combined)
	}
	return io.MultiWriter(capture, combined, stream)
}

// lockedBuffer is shared by the stdout and stderr copiers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int64
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := b.max - int64(b.buf.Len())
	switch {
	case remaining <= 0:
	case int64(len(p)) > remaining:
		b.buf.Write(p[:remaining])
	default:
		b.buf.Write(p)
	}
	return len(p), nil
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
