package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"campaignsites/internal/build"
	"campaignsites/internal/tenant"
)

var buildTimeout time.Duration

var buildCmd = &cobra.Command{
	Use:   "build <domain>",
	Short: "Build the static site for one tenant",
	Long: `Resolves the tenant's configuration, decides which content sections to
generate, runs the site generator, and writes builds/<domain>/ with the
site and a deployment-info.json stamp.

A failed build leaves any previous artifact for the domain in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().DurationVar(&buildTimeout, "timeout", 0, "Abort the generator after this long (default: build.timeout, or none)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	domain := args[0]
	if buildTimeout > 0 {
		appConfig.Build.Timeout = buildTimeout.String()
	}

	repo, err := newRepository(appConfig)
	if err != nil {
		return &configError{err: err}
	}
	orch, err := newOrchestrator(appConfig, repo, tenant.ModeBuild)
	if err != nil {
		return err
	}

	logger.Info("Building tenant", zap.String("domain", domain))
	art, err := orch.BuildTenant(cmd.Context(), domain)
	if err != nil {
		return err
	}
	return printArtifact(art)
}

func printArtifact(art *build.Artifact) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(art)
	}
	styles := stylesFor(os.Stdout)
	printf("%s %s -> %s\n", styles.Success.Render("Built"), art.Domain, art.Dir)
	printf("%s\n", styles.Muted.Render("build "+art.Info.BuildID+" at "+art.Info.BuildDate))
	return nil
}
