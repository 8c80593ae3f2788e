// Package fanout builds every discovered tenant concurrently, one child
// process per tenant, and reports the outcome of all of them.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"campaignsites/internal/logging"
	"campaignsites/internal/runner"
)

// ErrNoTenants is returned when discovery yields no domains at all.
var ErrNoTenants = errors.New("no tenants discovered")

// Discoverer lists tenant domains; *tenant.Registry satisfies it.
type Discoverer interface {
	Discover(ctx context.Context) []string
}

// Options configures a Coordinator.
type Options struct {
	// Executable and Args form the child command; the domain is appended.
	// For sitectl this is the running binary with "build".
	Executable string
	Args       []string

	// WorkDir and Env are applied to every child.
	WorkDir string
	Env     []string

	// MaxParallel caps concurrent children; 0 means one per tenant.
	MaxParallel int

	// Timeout bounds each child; 0 means none.
	Timeout time.Duration

	// Output receives every child's output, each line tagged with its domain.
	Output io.Writer
}

// Coordinator runs the fan-out.
type Coordinator struct {
	registry Discoverer
	exec     runner.Executor
	opts     Options
}

// NewCoordinator creates a coordinator.
func NewCoordinator(registry Discoverer, exec runner.Executor, opts Options) *Coordinator {
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	return &Coordinator{registry: registry, exec: exec, opts: opts}
}

// BuildAll discovers tenants and builds all of them. It waits for every
// child to settle; one failure never cancels or blocks the others.
// The returned error is non-nil only when nothing could be attempted.
func (c *Coordinator) BuildAll(ctx context.Context) (*Report, error) {
	domains := c.registry.Discover(ctx)
	if len(domains) == 0 {
		return nil, ErrNoTenants
	}
	return c.Run(ctx, domains)
}

// Run builds the given domains.
func (c *Coordinator) Run(ctx context.Context, domains []string) (*Report, error) {
	if len(domains) == 0 {
		return nil, ErrNoTenants
	}
	if c.opts.Executable == "" {
		return nil, fmt.Errorf("no child executable configured")
	}

	logging.Fanout("Building %d tenants (max parallel: %s)", len(domains), limitString(c.opts.MaxParallel))
	start := time.Now()
	prefixer := runner.NewPrefixer(c.opts.Output)
	results := make([]Result, len(domains))

	var g errgroup.Group
	if c.opts.MaxParallel > 0 {
		g.SetLimit(c.opts.MaxParallel)
	}
	for i, domain := range domains {
		g.Go(func() error {
			results[i] = c.buildOne(ctx, prefixer, domain)
			return nil
		})
	}
	_ = g.Wait()

	report := newReport(results, time.Since(start))
	logging.Fanout("Fan-out finished in %s: %d succeeded, %d failed",
		report.Elapsed.Round(time.Millisecond), len(report.Successful()), len(report.Failed()))
	return report, nil
}

func (c *Coordinator) buildOne(ctx context.Context, prefixer *runner.Prefixer, domain string) Result {
	out := prefixer.Writer(domain)
	defer out.Flush()

	args := append(append([]string{}, c.opts.Args...), domain)
	logging.FanoutDebug("Spawning child for %s", domain)

	res, err := c.exec.Execute(ctx, runner.Command{
		Binary:           c.opts.Executable,
		Arguments:        args,
		WorkingDirectory: c.opts.WorkDir,
		Environment:      c.opts.Env,
		Timeout:          c.opts.Timeout,
		Stdout:           out,
		Stderr:           out,
	})

	r := Result{Domain: domain, ExitCode: -1}
	switch {
	case err != nil:
		r.Error = err.Error()
	case !res.Success:
		r.Error = res.Error
		r.Duration = res.Duration
	default:
		r.ExitCode = res.ExitCode
		r.Output = res.Combined
		r.Duration = res.Duration
		switch {
		case res.Killed:
			r.Error = res.KillReason
		case res.ExitCode != 0:
			r.Error = fmt.Sprintf("exit code %d", res.ExitCode)
		default:
			r.Success = true
		}
	}

	if r.Success {
		logging.Fanout("%s built in %s", domain, r.Duration.Round(time.Millisecond))
	} else {
		logging.FanoutError("%s failed: %s", domain, r.Error)
	}
	return r
}

func limitString(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprint(n)
}

// Result is the outcome of one tenant's child build.
type Result struct {
	Domain   string        `json:"domain"`
	Success  bool          `json:"success"`
	ExitCode int           `json:"exitCode"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report aggregates all results, keyed and sorted by domain.
type Report struct {
	Results []Result      `json:"results"`
	Elapsed time.Duration `json:"elapsed"`
}

func newReport(results []Result, elapsed time.Duration) *Report {
	sorted := append([]Result(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Domain < sorted[j].Domain })
	return &Report{Results: sorted, Elapsed: elapsed}
}

// Successful returns the domains that built.
func (r *Report) Successful() []string {
	var out []string
	for _, res := range r.Results {
		if res.Success {
			out = append(out, res.Domain)
		}
	}
	return out
}

// Failed returns the domains that did not build.
func (r *Report) Failed() []string {
	var out []string
	for _, res := range r.Results {
		if !res.Success {
			out = append(out, res.Domain)
		}
	}
	return out
}

// OK reports whether every tenant built.
func (r *Report) OK() bool {
	return len(r.Failed()) == 0
}
