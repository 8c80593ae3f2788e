package main

import (
	"errors"
	"os"

	"campaignsites/internal/build"
	"campaignsites/internal/cms"
	"campaignsites/internal/config"
	"campaignsites/internal/logging"
	"campaignsites/internal/runner"
	"campaignsites/internal/tenant"
	"campaignsites/internal/ui"
)

var errCMSNotConfigured = errors.New("content store not configured (set cms.project_id, cms.base_url or SANITY_PROJECT_ID)")

// newRepository returns the content store client for cfg. Without a
// configured endpoint every query fails, which sends discovery to the
// fallback list and resolution to the local table.
func newRepository(cfg *config.Config) (tenant.Repository, error) {
	if cfg.CMSEndpoint() == "" {
		logging.CMSWarn("No content store configured; using local data only")
		mem := cms.NewMemoryClient()
		mem.FailWith(errCMSNotConfigured)
		return mem, nil
	}
	client, err := cms.NewHTTPClient(cms.Options{
		BaseURL:    cfg.CMSEndpoint(),
		Dataset:    cfg.CMS.Dataset,
		APIVersion: cfg.CMS.APIVersion,
		Token:      cfg.CMS.Token,
		Timeout:    cfg.GetCMSTimeout(),
		Retries:    cfg.CMS.Retries,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newRegistry(cfg *config.Config, repo tenant.Repository) *tenant.Registry {
	return tenant.NewRegistry(repo, cfg.Tenants.FallbackDomains)
}

func newResolver(cfg *config.Config, repo tenant.Repository) (*tenant.Resolver, error) {
	table, err := tenant.LoadTable(cfg.Tenants.LocalTable)
	if err != nil {
		return nil, &configError{err: err}
	}
	return tenant.NewResolver(repo, table, tenant.DefaultsFromConfig(cfg.Tenants)), nil
}

// newOrchestrator wires a single-tenant build resolved with mode. Generator
// output streams to the terminal.
func newOrchestrator(cfg *config.Config, repo tenant.Repository, mode tenant.Mode) (*build.Orchestrator, error) {
	resolver, err := newResolver(cfg, repo)
	if err != nil {
		return nil, err
	}
	exec := runner.NewDirectExecutorWithConfig(runner.Config{
		AllowedEnvironment: cfg.Build.AllowedEnvVars,
		MaxOutputBytes:     runner.DefaultMaxOutputBytes,
		KillGrace:          runner.DefaultConfig().KillGrace,
	})
	// Stdout is reserved for the JSON result in --json mode.
	stdout := os.Stdout
	if jsonOutput {
		stdout = os.Stderr
	}
	return build.NewOrchestrator(cfg.Build, resolver, repo, exec, build.Options{
		Version: version,
		Timeout: cfg.GetBuildTimeout(),
		Mode:    mode,
		Stdout:  stdout,
		Stderr:  os.Stderr,
	}), nil
}

// stylesFor returns colored styles for a terminal and plain ones otherwise.
func stylesFor(f *os.File) ui.Styles {
	if ui.IsTerminal(f) {
		return ui.DefaultStyles()
	}
	return ui.PlainStyles()
}
