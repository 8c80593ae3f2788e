package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"campaignsites/internal/tenant"
	"campaignsites/internal/visibility"
)

var resolvePreview bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <domain>",
	Short: "Print the resolved configuration for a tenant",
	Long: `Resolves a domain to its complete tenant configuration and prints it as
JSON. Builds use the content store only; with --preview the local
tenant table and the default tenant are consulted as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

var planCmd = &cobra.Command{
	Use:   "plan <domain>",
	Short: "Show which content sections a build would generate",
	Long: `Resolves the tenant and counts its published content per category.
A section is generated only when its feature flag is on and it has at
least one published item.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	resolveCmd.Flags().BoolVar(&resolvePreview, "preview", false, "Resolve as a preview, falling back to local data")
	planCmd.Flags().BoolVar(&resolvePreview, "preview", false, "Resolve as a preview, falling back to local data")
}

func resolveMode() tenant.Mode {
	if resolvePreview {
		return tenant.ModePreview
	}
	return tenant.ModeBuild
}

func resolveTenant(cmd *cobra.Command, domain string) (*tenant.Config, tenant.Repository, error) {
	repo, err := newRepository(appConfig)
	if err != nil {
		return nil, nil, &configError{err: err}
	}
	resolver, err := newResolver(appConfig, repo)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := resolver.Resolve(cmd.Context(), domain, resolveMode())
	if err != nil {
		return nil, nil, err
	}
	return cfg, repo, nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveTenant(cmd, args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, repo, err := resolveTenant(cmd, args[0])
	if err != nil {
		return err
	}
	plan, err := visibility.BuildPlan(cmd.Context(), repo, cfg)
	if err != nil {
		return fmt.Errorf("counting content for %s: %w", cfg.Domain, err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	}

	styles := stylesFor(os.Stdout)
	printf("%s\n\n", styles.Title.Render(fmt.Sprintf("%s (%s)", cfg.Title, cfg.Domain)))
	for _, d := range plan.Decisions {
		status := styles.Muted.Render("skip")
		if d.Generate {
			status = styles.Success.Render("gen ")
		}
		flag := "off"
		if d.Enabled {
			flag = "on"
		}
		printf("%s  %-14s %-20s flag %-3s  %d published\n", status, d.Category, d.Label, flag, d.Count)
	}
	return nil
}
