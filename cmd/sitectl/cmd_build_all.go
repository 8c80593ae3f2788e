package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"campaignsites/internal/fanout"
	"campaignsites/internal/runner"
)

var (
	buildAllTimeout     time.Duration
	buildAllMaxParallel int
)

// selfExecutable locates the binary re-invoked for each tenant.
var selfExecutable = os.Executable

var buildAllCmd = &cobra.Command{
	Use:   "build-all",
	Short: "Build every discovered tenant concurrently",
	Long: `Discovers tenant domains and runs one isolated "sitectl build <domain>"
process per tenant. Every build runs to completion regardless of the
others; the summary lists which tenants succeeded and which failed.

Exits non-zero if any tenant failed.`,
	Args: cobra.NoArgs,
	RunE: runBuildAll,
}

func init() {
	buildAllCmd.Flags().DurationVar(&buildAllTimeout, "timeout", 0, "Abort each tenant build after this long (default: build.timeout, or none)")
	buildAllCmd.Flags().IntVar(&buildAllMaxParallel, "max-parallel", 0, "Limit concurrent builds (default: build.max_parallel, 0 = one per tenant)")
}

func runBuildAll(cmd *cobra.Command, args []string) error {
	self, err := selfExecutable()
	if err != nil {
		return fmt.Errorf("cannot locate sitectl binary: %w", err)
	}

	repo, err := newRepository(appConfig)
	if err != nil {
		return &configError{err: err}
	}
	registry := newRegistry(appConfig, repo)

	timeout := appConfig.GetBuildTimeout()
	if buildAllTimeout > 0 {
		timeout = buildAllTimeout
	}
	maxParallel := buildAllParallelism()

	// Child output goes to stderr when stdout carries the JSON summary.
	var childOut io.Writer = os.Stdout
	if jsonOutput {
		childOut = os.Stderr
	}

	coord := fanout.NewCoordinator(registry, runner.NewDirectExecutor(), fanout.Options{
		Executable:  self,
		Args:        childArgs(),
		MaxParallel: maxParallel,
		Timeout:     timeout,
		Output:      childOut,
	})

	report, err := coord.BuildAll(cmd.Context())
	if err != nil {
		return err
	}
	if registry.UsedFallback() {
		logger.Warn("Built the fallback tenant list", zap.Error(registry.Err()))
	}

	if jsonOutput {
		if err := report.WriteJSON(os.Stdout); err != nil {
			return err
		}
	} else {
		report.Print(os.Stdout, stylesFor(os.Stdout))
	}

	if !report.OK() {
		return &exitError{
			code: 1,
			msg:  fmt.Sprintf("%d of %d tenant builds failed", len(report.Failed()), len(report.Results)),
			hint: "re-run a failed tenant with `sitectl build <domain> --verbose` to see the full generator output",
		}
	}
	return nil
}

// buildAllParallelism applies --max-parallel over build.max_parallel.
// A shared output directory always builds one tenant at a time.
func buildAllParallelism() int {
	maxParallel := appConfig.Build.MaxParallel
	if buildAllMaxParallel > 0 {
		maxParallel = buildAllMaxParallel
	}
	if appConfig.Build.SharesOutputDir() && maxParallel != 1 {
		logger.Warn("Output directory is shared by all tenants; building one at a time",
			zap.String("output_dir", appConfig.Build.OutputDir))
		maxParallel = 1
	}
	return maxParallel
}

// childArgs are the arguments before the domain for each child build.
// The config file and output flags carry over so children resolve and
// log the same way.
func childArgs() []string {
	var args []string
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if verbose {
		args = append(args, "--verbose")
	}
	if jsonOutput {
		args = append(args, "--json")
	}
	return append(args, "build")
}
