package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"campaignsites/internal/tenant"
	"campaignsites/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <domain>",
	Short: "Rebuild a tenant whenever its site sources change",
	Long: `Builds the tenant once, then watches build.watch_paths and rebuilds
after changes settle. A failed rebuild keeps the last good artifact.
Tenants resolve as previews: a domain missing from the content store
falls back to the local tenant table, then the default tenant.
Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "Wait this long after the last change before rebuilding")
}

func runWatch(cmd *cobra.Command, args []string) error {
	domain := args[0]
	ctx := cmd.Context()

	repo, err := newRepository(appConfig)
	if err != nil {
		return &configError{err: err}
	}
	orch, err := newOrchestrator(appConfig, repo, tenant.ModePreview)
	if err != nil {
		return err
	}

	rebuild := func(ctx context.Context, changed []string) error {
		logger.Info("Rebuilding", zap.String("domain", domain), zap.Int("changes", len(changed)))
		art, err := orch.BuildTenant(ctx, domain)
		if err != nil {
			logger.Error("Rebuild failed", zap.String("domain", domain), zap.Error(err))
			return err
		}
		return printArtifact(art)
	}
	if err := rebuild(ctx, nil); err != nil {
		logger.Warn("Initial build failed; waiting for changes", zap.Error(err))
	}

	paths, err := orch.PathsFor(domain)
	if err != nil {
		return err
	}
	w, err := watch.New(watch.Options{
		Root:     appConfig.Build.WorkDir,
		Paths:    appConfig.Build.WatchPaths,
		Ignore:   ignoreRelative(paths.WorkDir, paths.BuildsDir, paths.OutputDir),
		Debounce: watchDebounce,
	}, rebuild)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	<-w.Done()
	stats := w.Stats()
	logger.Info("Watch ended",
		zap.Int("rebuilds", stats.Rebuilds),
		zap.Int("failures", stats.Failures))
	return nil
}

// ignoreRelative makes generated directories relative to root so the
// watcher never reacts to its own output.
func ignoreRelative(root string, dirs ...string) []string {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil
	}
	var out []string
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			continue
		}
		if rel, err := filepath.Rel(absRoot, abs); err == nil && rel != "." {
			out = append(out, rel)
		}
	}
	return out
}
