// Command sitectl builds and deploys the static campaign sites, one per
// tenant domain, from the headless content store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"campaignsites/internal/config"
	"campaignsites/internal/logging"
	"campaignsites/internal/ui"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	// Loaded in PersistentPreRunE.
	appConfig *config.Config
	logger    *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sitectl",
	Short: "Build and deploy multi-tenant campaign sites",
	Long: `sitectl discovers campaign tenants in the content store, builds one
static site per domain, and deploys the results to static hosting.

Each build runs the site generator with the tenant's domain in its
environment and writes builds/<domain>/ with a deployment-info.json stamp.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./sitectl.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Log JSON lines to stderr and print machine-readable results")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(buildAllCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads configuration and initializes logging.
func setup() error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigFile
	}
	cfg, err := config.Load(path)
	if err != nil {
		return &configError{err: err}
	}
	if err := cfg.Validate(); err != nil {
		return &configError{err: err}
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	if err := logging.Initialize(logging.Options{
		Level:      level,
		JSON:       jsonOutput || cfg.Logging.Format == "json",
		Color:      ui.IsTerminal(os.Stderr),
		Output:     os.Stderr,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return &configError{err: err}
	}

	appConfig = cfg
	logger = logging.L()
	logging.BootDebug("Loaded config from %s", path)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(reportError(os.Stdout, os.Stderr, err))
	}
}

func printf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
}
