package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"campaignsites/internal/build"
	"campaignsites/internal/deploy"
	"campaignsites/internal/fanout"
	"campaignsites/internal/tenant"
	"campaignsites/internal/ui"
)

// configError marks problems with sitectl.yaml or the environment.
type configError struct {
	err error
}

func (e *configError) Error() string { return "config: " + e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// exitError carries an exit code for failures whose details were already
// printed, such as a build-all report with failed tenants.
type exitError struct {
	code int
	msg  string
	hint string
}

func (e *exitError) Error() string { return e.msg }

// deployError pairs a failed deployment with its troubleshooting checklist.
type deployError struct {
	err      error
	platform deploy.Platform
	domain   string
}

func (e *deployError) Error() string { return e.err.Error() }
func (e *deployError) Unwrap() error { return e.err }

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
	Domain  string `json:"domain,omitempty"`
}

// reportError prints err with a remediation hint and returns the exit code.
// In JSON mode the error is a single object on stdout.
func reportError(stdout, stderr io.Writer, err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		if jsonOutput {
			return ee.code
		}
		styles := stylesFor(os.Stderr)
		if ee.msg != "" {
			fmt.Fprintln(stderr, styles.Error.Render("Error: ")+ee.msg)
		}
		if ee.hint != "" {
			fmt.Fprintln(stderr, styles.Muted.Render("Hint: "+ee.hint))
		}
		return ee.code
	}

	kind, hint, domain := classify(err)
	if jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]errorBody{"error": {
			Kind:    kind,
			Message: err.Error(),
			Hint:    hint,
			Domain:  domain,
		}})
		return 1
	}

	styles := stylesFor(os.Stderr)
	fmt.Fprintln(stderr, styles.Error.Render("Error: ")+err.Error())

	var de *deployError
	if errors.As(err, &de) {
		md := deploy.Troubleshooting(de.platform, de.domain, de.err)
		fmt.Fprintln(stderr, ui.RenderMarkdown(md, !ui.IsTerminal(os.Stderr)))
		return 1
	}
	if hint != "" {
		fmt.Fprintln(stderr, styles.Muted.Render("Hint: "+hint))
	}
	return 1
}

// classify maps an error to a stable kind and a remediation hint.
func classify(err error) (kind, hint, domain string) {
	var (
		unknown  *tenant.UnknownDomainError
		failure  *build.Failure
		cfgErr   *configError
		preErr   *deploy.PreflightError
		depFail  *deploy.Failure
		deployEr *deployError
	)
	switch {
	case errors.As(err, &cfgErr):
		return "config", "check sitectl.yaml and the SANITY_* environment variables", ""
	case errors.As(err, &unknown):
		return "unknown_domain", "check the spelling, or run `sitectl discover-domains` to list known tenants", unknown.Domain
	case errors.As(err, &failure):
		return "build_failed", fmt.Sprintf("fix the generator error above, then run `sitectl build %s --verbose`", failure.Domain), failure.Domain
	case errors.Is(err, fanout.ErrNoTenants):
		return "no_tenants", "configure the content store or tenants.fallback_domains", ""
	case errors.Is(err, deploy.ErrUnknownPlatform):
		return "unknown_platform", "use one of the supported platforms", ""
	case errors.As(err, &preErr):
		return "preflight_failed", preflightHint(preErr), domainOf(err)
	case errors.As(err, &depFail):
		if depFail.Stage == deploy.StageArtifact {
			return "artifact_missing", fmt.Sprintf("run `sitectl build %s` first", depFail.Domain), depFail.Domain
		}
		return "deploy_failed", "see the platform CLI output above", depFail.Domain
	case errors.As(err, &deployEr):
		return "deploy_failed", "", deployEr.domain
	}
	return "error", "re-run with --verbose for details", ""
}

func preflightHint(e *deploy.PreflightError) string {
	switch e.Check {
	case "credentials":
		return "export the missing credentials and retry"
	case "cli":
		return "install the platform CLI and make sure it is on PATH"
	case "login":
		return "log in with the platform CLI"
	}
	return "check network access to the platform API"
}

func domainOf(err error) string {
	var de *deployError
	if errors.As(err, &de) {
		return de.domain
	}
	return ""
}
