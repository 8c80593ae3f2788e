// Package runner executes external processes: the site generator, child
// build processes, and deployment platform CLIs.
//
// A Result with Success=true means the process ran; check ExitCode and
// Killed to learn whether it succeeded. Success=false means the process
// could not be started at all.
package runner

import (
	"context"
	"io"
	"strings"
	"time"
)

// DefaultMaxOutputBytes caps captured output per stream.
const DefaultMaxOutputBytes int64 = 4 << 20

// Command describes one process invocation.
type Command struct {
	// Binary is the executable to run (e.g. "npm", "wrangler").
	Binary string `json:"binary"`

	// Arguments are the command-line arguments.
	Arguments []string `json:"arguments"`

	// WorkingDirectory is the directory to execute in.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Environment holds KEY=VALUE pairs layered over the executor's base environment.
	Environment []string `json:"environment,omitempty"`

	// Timeout bounds the run. Zero means no limit beyond the context.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Stdout and Stderr, when set, receive output as it is produced in
	// addition to the captured copy.
	Stdout io.Writer `json:"-"`
	Stderr io.Writer `json:"-"`
}

// secretFlags take a credential as their value.
var secretFlags = map[string]bool{
	"--token":    true,
	"--api-key":  true,
	"--auth":     true,
	"--password": true,
	"--secret":   true,
}

// CommandString returns the command line for display, with the values of
// credential flags masked.
func (c Command) CommandString() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(RedactArgs(c.Arguments), " ")
}

// RedactArgs masks the value after a credential flag, in both the
// "--token X" and "--token=X" forms. args is not modified.
func RedactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out); i++ {
		flag, _, hasValue := strings.Cut(out[i], "=")
		if !secretFlags[strings.ToLower(flag)] {
			continue
		}
		if hasValue {
			out[i] = flag + "=***"
		} else if i+1 < len(out) {
			out[i+1] = "***"
			i++
		}
	}
	return out
}

// Result is the outcome of running a Command.
type Result struct {
	// Success is false only when the process could not be run.
	Success bool `json:"success"`

	// ExitCode is the process exit code (-1 if not available).
	ExitCode int `json:"exit_code"`

	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	// Combined is stdout and stderr interleaved in arrival order.
	Combined string `json:"combined"`

	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`

	// Killed is set when the process was terminated by timeout or cancellation.
	Killed     bool   `json:"killed"`
	KillReason string `json:"kill_reason,omitempty"`

	Truncated      bool  `json:"truncated"`
	TruncatedBytes int64 `json:"truncated_bytes,omitempty"`

	// Error holds the start failure when Success is false.
	Error string `json:"error,omitempty"`
}

// OK reports whether the process ran to completion with exit code 0.
func (r *Result) OK() bool {
	return r != nil && r.Success && !r.Killed && r.ExitCode == 0
}

// Executor runs commands.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*Result, error)
}

// Config configures a DirectExecutor.
type Config struct {
	// AllowedEnvironment lists variables copied from the current process.
	// Nil inherits the whole environment.
	AllowedEnvironment []string `json:"allowed_environment,omitempty"`

	// MaxOutputBytes caps captured output per stream.
	MaxOutputBytes int64 `json:"max_output_bytes"`

	// KillGrace is how long to wait for output pipes to close after the
	// process group has been killed.
	KillGrace time.Duration `json:"kill_grace"`
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		MaxOutputBytes: DefaultMaxOutputBytes,
		KillGrace:      2 * time.Second,
	}
}
