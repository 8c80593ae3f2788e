package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"campaignsites/internal/deploy"
	"campaignsites/internal/runner"
)

var deployStrict bool

var deployCmd = &cobra.Command{
	Use:   "deploy <domain> <platform> [environment]",
	Short: "Deploy a built tenant site to static hosting",
	Long: fmt.Sprintf(`Uploads builds/<domain>/site to a hosting platform.

Supported platforms: %s
Environment is "production" (default) or "preview".

Before uploading, sitectl checks that the platform credentials are
exported, the platform CLI is installed and logged in, and the platform
API is reachable. The hosting project is created if needed; a project
that already exists is not an error.`, strings.Join(deploy.PlatformNames(), ", ")),
	Args: cobra.RangeArgs(2, 3),
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().BoolVar(&deployStrict, "strict-provisioning", false, "Fail when project creation fails for any reason other than already existing")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	domain, platform := args[0], args[1]
	envName := ""
	if len(args) == 3 {
		envName = args[2]
	}
	env, err := deploy.ParseEnvironment(envName)
	if err != nil {
		return err
	}

	opts := deploy.OptionsFromConfig(appConfig)
	if deployStrict {
		opts.Strict = true
	}
	opts.Stdout = os.Stdout
	if jsonOutput {
		opts.Stdout = os.Stderr
	}
	opts.Stderr = os.Stderr

	d := deploy.NewDispatcher(runner.NewDirectExecutor(), opts)
	p, err := d.Platform(platform)
	if err != nil {
		return err
	}

	res, err := d.Deploy(cmd.Context(), domain, platform, env)
	if err != nil {
		var pre *deploy.PreflightError
		var fail *deploy.Failure
		if errors.As(err, &pre) || errors.As(err, &fail) {
			return &deployError{err: err, platform: p, domain: domain}
		}
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	styles := stylesFor(os.Stdout)
	printf("%s %s to %s (%s) as %s\n", styles.Success.Render("Deployed"), res.Domain, res.Platform, res.Environment, res.Project)
	printf("%s\n", styles.Muted.Render(fmt.Sprintf("project %s, injected %s, %s",
		res.Provisioning, injectedList(res.Injected), res.Duration.Round(time.Millisecond))))
	if res.URL != "" {
		printf("%s\n", styles.Info.Render(res.URL))
	}
	return nil
}

func injectedList(files []string) string {
	if len(files) == 0 {
		return "nothing"
	}
	return strings.Join(files, ", ")
}
