package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignsites/internal/build"
	"campaignsites/internal/deploy"
	"campaignsites/internal/fanout"
	"campaignsites/internal/tenant"
	"campaignsites/internal/visibility"
)

func TestRunBuild_WritesArtifact(t *testing.T) {
	srv := newFakeCMS(t, testTenants, map[string]int{"newsPost": 2})
	dir := setupWorkspace(t, srv.URL)

	var err error
	out := captureOutput(t, func() {
		err = runBuild(newCmd(), []string{"a.org"})
	})
	require.NoError(t, err, out)
	assert.Contains(t, out, "generated a.org")
	assert.Contains(t, out, "Built a.org")

	site := filepath.Join(dir, "builds", "a.org", build.SiteDir)
	index, err := os.ReadFile(filepath.Join(site, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "a.org")

	plan, err := os.ReadFile(filepath.Join(site, "plan.txt"))
	require.NoError(t, err)
	assert.Equal(t, "news=true\n", string(plan))

	data, err := os.ReadFile(filepath.Join(dir, "builds", "a.org", build.InfoFile))
	require.NoError(t, err)
	var info build.DeploymentInfo
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, "a.org", info.Domain)
	assert.NotEmpty(t, info.BuildID)
	assert.Equal(t, version, info.ToolVersions["sitectl"])
}

func TestRunBuild_JSONOutput(t *testing.T) {
	srv := newFakeCMS(t, testTenants, nil)
	setupWorkspace(t, srv.URL)
	jsonOutput = true

	var err error
	out := captureOutput(t, func() {
		err = runBuild(newCmd(), []string{"b.org"})
	})
	require.NoError(t, err)

	start := strings.Index(out, "{")
	require.GreaterOrEqual(t, start, 0, out)
	var art build.Artifact
	require.NoError(t, json.NewDecoder(strings.NewReader(out[start:])).Decode(&art))
	assert.Equal(t, "b.org", art.Domain)
	assert.False(t, art.Info.Plan["news"])
}

func TestRunBuild_UnknownDomain(t *testing.T) {
	srv := newFakeCMS(t, testTenants, nil)
	dir := setupWorkspace(t, srv.URL)

	err := runBuild(newCmd(), []string{"nowhere.org"})
	var unknown *tenant.UnknownDomainError
	require.True(t, errors.As(err, &unknown), "got %v", err)
	assert.Equal(t, "nowhere.org", unknown.Domain)

	kind, hint, domain := classify(err)
	assert.Equal(t, "unknown_domain", kind)
	assert.Contains(t, hint, "discover-domains")
	assert.Equal(t, "nowhere.org", domain)

	_, statErr := os.Stat(filepath.Join(dir, "builds", "nowhere.org"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunBuild_FailureKeepsPreviousArtifact(t *testing.T) {
	srv := newFakeCMS(t, testTenants, nil)
	dir := setupWorkspace(t, srv.URL)

	previous := filepath.Join(dir, "builds", "bad.org", build.SiteDir)
	require.NoError(t, os.MkdirAll(previous, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(previous, "index.html"), []byte("old"), 0644))

	var err error
	captureOutput(t, func() {
		err = runBuild(newCmd(), []string{"bad.org"})
	})
	var failure *build.Failure
	require.True(t, errors.As(err, &failure), "got %v", err)
	assert.Equal(t, 3, failure.ExitCode)

	kind, _, _ := classify(err)
	assert.Equal(t, "build_failed", kind)

	data, err := os.ReadFile(filepath.Join(previous, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestRunBuildAll_IsolatesFailures(t *testing.T) {
	srv := newFakeCMS(t, testTenants, nil)
	dir := setupWorkspace(t, srv.URL)
	t.Setenv(helperEnv, "1")

	var err error
	out := captureOutput(t, func() {
		err = runBuildAll(newCmd(), nil)
	})

	var ee *exitError
	require.True(t, errors.As(err, &ee), "got %v\n%s", err, out)
	assert.Equal(t, 1, ee.code)
	assert.Contains(t, ee.hint, "sitectl build <domain> --verbose")
	assert.Contains(t, out, "2 succeeded, 1 failed, 3 total")
	assert.Contains(t, out, "[a.org]")
	assert.Contains(t, out, "generator exploded")

	for _, domain := range []string{"a.org", "b.org"} {
		_, statErr := os.Stat(filepath.Join(dir, "builds", domain, build.InfoFile))
		assert.NoError(t, statErr, domain)
	}
	_, statErr := os.Stat(filepath.Join(dir, "builds", "bad.org"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunBuildAll_JSONSummary(t *testing.T) {
	srv := newFakeCMS(t, testTenants[:1], nil)
	setupWorkspace(t, srv.URL)
	t.Setenv(helperEnv, "1")
	jsonOutput = true
	buildAllMaxParallel = 1

	// Stdout carries only the summary; child output goes to stderr.
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	runErr := runBuildAll(newCmd(), nil)
	require.NoError(t, w.Close())
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	require.NoError(t, runErr)

	var summary fanout.Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &summary), buf.String())
	assert.Equal(t, []string{"a.org"}, summary.Successful)
	assert.Empty(t, summary.Failed)
}

func TestBuildAllParallelism(t *testing.T) {
	setupWorkspace(t, "")
	assert.Equal(t, 0, buildAllParallelism())

	buildAllMaxParallel = 4
	assert.Equal(t, 4, buildAllParallelism())

	appConfig.Build.OutputDir = "dist"
	appConfig.Build.MaxParallel = 1
	assert.Equal(t, 1, buildAllParallelism(), "flag must not parallelize a shared output dir")
}

func TestChildArgs(t *testing.T) {
	resetGlobals(t)
	assert.Equal(t, []string{"build"}, childArgs())

	configPath = "/etc/sitectl.yaml"
	verbose = true
	jsonOutput = true
	assert.Equal(t, []string{"--config", "/etc/sitectl.yaml", "--verbose", "--json", "build"}, childArgs())
}

func TestRunDiscover_ListsTenants(t *testing.T) {
	srv := newFakeCMS(t, testTenants, nil)
	setupWorkspace(t, srv.URL)

	var err error
	out := captureOutput(t, func() {
		err = runDiscover(newCmd(), nil)
	})
	require.NoError(t, err)
	assert.Equal(t, "a.org\nbad.org\nb.org\n", out)
}

func TestRunDiscover_FallbackWithoutContentStore(t *testing.T) {
	setupWorkspace(t, "")
	jsonOutput = true

	var err error
	out := captureOutput(t, func() {
		err = runDiscover(newCmd(), nil)
	})
	require.NoError(t, err)

	var got discoverOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	assert.Equal(t, []string{"one.org", "two.org"}, got.Domains)
	assert.Equal(t, "fallback", got.Source)
	assert.Equal(t, 2, got.Count)
	assert.Contains(t, got.Warning, "not configured")
}

func TestRunDiscover_Validate(t *testing.T) {
	records := []cmsRecord{
		{"_id": "1", "title": "Alpha", "domain": "a.org", "location": "North", "mainColor": "#112233"},
		{"_id": "2", "title": "Broken", "domain": "broken.org", "mainColor": "red"},
	}
	srv := newFakeCMS(t, records, nil)
	setupWorkspace(t, srv.URL)
	discoverValidate = true

	var err error
	out := captureOutput(t, func() {
		err = runDiscover(newCmd(), nil)
	})
	var ee *exitError
	require.True(t, errors.As(err, &ee), "got %v", err)
	assert.Contains(t, ee.msg, "1 of 2")
	assert.NotEmpty(t, ee.hint)
	assert.Contains(t, out, "OK    a.org")
	assert.Contains(t, out, "FAIL  broken.org")
	assert.Contains(t, out, "missing location")
}

func TestRunDiscover_ValidateNeedsContentStore(t *testing.T) {
	setupWorkspace(t, "")
	discoverValidate = true

	var err error
	captureOutput(t, func() {
		err = runDiscover(newCmd(), nil)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot validate")
}

func TestRunResolve_PreviewUsesLocalTable(t *testing.T) {
	setupWorkspace(t, "")
	resolvePreview = true

	var err error
	out := captureOutput(t, func() {
		err = runResolve(newCmd(), []string{"vamosjuntos.org"})
	})
	require.NoError(t, err)

	var cfg tenant.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg), out)
	assert.Equal(t, "vamosjuntos.org", cfg.Domain)
	assert.Equal(t, "Vamos Juntos", cfg.Title)
	assert.Equal(t, "local-table", cfg.Source)
}

func TestRunResolve_PreviewFallsBackToDefaultTenant(t *testing.T) {
	setupWorkspace(t, "")
	resolvePreview = true

	var err error
	out := captureOutput(t, func() {
		err = runResolve(newCmd(), []string{"localhost"})
	})
	require.NoError(t, err)

	var cfg tenant.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg), out)
	assert.Equal(t, "localhost", cfg.Domain)
	assert.Equal(t, "default", cfg.Source)
	assert.NotEmpty(t, cfg.MainColor)
}

func TestRunResolve_BuildModeNeedsContentStore(t *testing.T) {
	setupWorkspace(t, "")

	err := runResolve(newCmd(), []string{"vamosjuntos.org"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errCMSNotConfigured), "got %v", err)
}

func TestRunPlan_JSON(t *testing.T) {
	srv := newFakeCMS(t, testTenants, map[string]int{"proposal": 4, "newsPost": 0, "event": 1})
	setupWorkspace(t, srv.URL)
	jsonOutput = true

	var err error
	out := captureOutput(t, func() {
		err = runPlan(newCmd(), []string{"a.org"})
	})
	require.NoError(t, err)

	var plan visibility.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan), out)
	assert.Equal(t, "a.org", plan.Domain)
	assert.True(t, plan.Generate(tenant.Proposals))
	assert.False(t, plan.Generate(tenant.News))
	assert.True(t, plan.Generate(tenant.Events))
	assert.False(t, plan.Generate(tenant.CustomPages))
}

func TestRunPlan_Text(t *testing.T) {
	srv := newFakeCMS(t, testTenants, map[string]int{"proposal": 4})
	setupWorkspace(t, srv.URL)

	var err error
	out := captureOutput(t, func() {
		err = runPlan(newCmd(), []string{"a.org"})
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Alpha (a.org)")
	assert.Contains(t, out, "gen   proposals")
	assert.Contains(t, out, "skip  news")
}

func TestRunDeploy_MissingArtifact(t *testing.T) {
	setupWorkspace(t, "")

	err := runDeploy(newCmd(), []string{"a.org", "netlify"})
	var de *deployError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Equal(t, "netlify", de.platform.Name)

	kind, hint, domain := classify(err)
	assert.Equal(t, "artifact_missing", kind)
	assert.Contains(t, hint, "sitectl build a.org")
	assert.Equal(t, "a.org", domain)
}

func TestRunDeploy_RejectsBadInput(t *testing.T) {
	setupWorkspace(t, "")

	err := runDeploy(newCmd(), []string{"a.org", "geocities"})
	assert.True(t, errors.Is(err, deploy.ErrUnknownPlatform), "got %v", err)

	err = runDeploy(newCmd(), []string{"a.org", "netlify", "staging"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown environment")
}

func TestRunDeploy_MissingCredentials(t *testing.T) {
	dir := setupWorkspace(t, "")
	t.Setenv("NETLIFY_AUTH_TOKEN", "")
	require.NoError(t, os.Unsetenv("NETLIFY_AUTH_TOKEN"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "builds", "a.org", build.SiteDir), 0755))

	err := runDeploy(newCmd(), []string{"a.org", "netlify", "preview"})
	var pre *deploy.PreflightError
	require.True(t, errors.As(err, &pre), "got %v", err)
	assert.Equal(t, []string{"NETLIFY_AUTH_TOKEN"}, pre.Missing)

	kind, hint, _ := classify(err)
	assert.Equal(t, "preflight_failed", kind)
	assert.Contains(t, hint, "credentials")

	var stderr bytes.Buffer
	code := reportError(&bytes.Buffer{}, &stderr, err)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "NETLIFY_AUTH_TOKEN")
}

func TestReportError_JSON(t *testing.T) {
	resetGlobals(t)
	jsonOutput = true

	var stdout, stderr bytes.Buffer
	code := reportError(&stdout, &stderr, &tenant.UnknownDomainError{Domain: "x.org", Tried: []string{"cms"}})
	assert.Equal(t, 1, code)
	assert.Empty(t, stderr.String())

	var body map[string]errorBody
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &body))
	assert.Equal(t, "unknown_domain", body["error"].Kind)
	assert.Equal(t, "x.org", body["error"].Domain)
	assert.NotEmpty(t, body["error"].Hint)
}

func TestReportError_Text(t *testing.T) {
	resetGlobals(t)

	var stdout, stderr bytes.Buffer
	code := reportError(&stdout, &stderr, &configError{err: errors.New("build.command is required")})
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "config: build.command is required")
	assert.Contains(t, stderr.String(), "Hint: check sitectl.yaml")
}

func TestReportError_ExitCode(t *testing.T) {
	resetGlobals(t)

	var stderr bytes.Buffer
	code := reportError(&bytes.Buffer{}, &stderr, &exitError{code: 1, msg: "2 of 5 tenant builds failed", hint: "re-run with --verbose"})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "2 of 5 tenant builds failed")
	assert.Contains(t, stderr.String(), "Hint: re-run with --verbose")
}

func TestReportError_ExitCodeJSONPrintsNothing(t *testing.T) {
	resetGlobals(t)
	jsonOutput = true

	var stdout, stderr bytes.Buffer
	code := reportError(&stdout, &stderr, &exitError{code: 1, msg: "1 of 2 tenant builds failed", hint: "x"})
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String())
}

func TestClassify_NoTenants(t *testing.T) {
	kind, hint, _ := classify(fanout.ErrNoTenants)
	assert.Equal(t, "no_tenants", kind)
	assert.Contains(t, hint, "fallback_domains")
}

func TestIgnoreRelative(t *testing.T) {
	root := t.TempDir()
	got := ignoreRelative(root,
		filepath.Join(root, "builds"),
		filepath.Join(root, ".sitectl", "a.org", "out"),
		root,
	)
	assert.Equal(t, []string{"builds", filepath.Join(".sitectl", "a.org", "out")}, got)
}

func TestVersionCommand(t *testing.T) {
	out := captureOutput(t, func() {
		require.NoError(t, versionCmd.RunE(versionCmd, nil))
	})
	assert.True(t, strings.HasPrefix(out, "sitectl "+version), out)
}

func TestRunWatch_StopsOnCancel(t *testing.T) {
	srv := newFakeCMS(t, testTenants, nil)
	dir := setupWorkspace(t, srv.URL)
	appConfig.Build.WatchPaths = []string{"src"}
	watchDebounce = 50 * time.Millisecond

	cmd := newCmd()
	ctx, cancel := context.WithCancel(context.Background())
	cmd.SetContext(ctx)

	errCh := make(chan error, 1)
	captureOutput(t, func() {
		go func() { errCh <- runWatch(cmd, []string{"a.org"}) }()

		require.Eventually(t, func() bool {
			_, err := os.Stat(filepath.Join(dir, "builds", "a.org", build.InfoFile))
			return err == nil
		}, 10*time.Second, 50*time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("watch did not stop")
		}
	})
}

func TestRunWatch_BuildsLocalTenantWithoutContentStore(t *testing.T) {
	dir := setupWorkspace(t, "")
	appConfig.Build.WatchPaths = []string{"src"}
	watchDebounce = 50 * time.Millisecond

	cmd := newCmd()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd.SetContext(ctx)

	errCh := make(chan error, 1)
	captureOutput(t, func() {
		go func() { errCh <- runWatch(cmd, []string{"vamosjuntos.org"}) }()

		require.Eventually(t, func() bool {
			_, err := os.Stat(filepath.Join(dir, "builds", "vamosjuntos.org", build.InfoFile))
			return err == nil
		}, 10*time.Second, 50*time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("watch did not stop")
		}
	})

	index, err := os.ReadFile(filepath.Join(dir, "builds", "vamosjuntos.org", build.SiteDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "vamosjuntos.org")
}
