package deploy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"campaignsites/internal/build"
	"campaignsites/internal/config"
	"campaignsites/internal/logging"
	"campaignsites/internal/runner"
)

const loginCheckTimeout = 30 * time.Second

// Options configures a Dispatcher.
type Options struct {
	BuildsDir     string
	Strict        bool
	ProjectPrefix string
	ProbeTimeout  time.Duration

	// Overrides holds per-platform settings from the config file.
	Overrides map[string]config.PlatformConfig

	// Stdout and Stderr receive CLI output as it is produced.
	Stdout io.Writer
	Stderr io.Writer

	// LookupEnv reads credentials; defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// OptionsFromConfig maps the deploy and build sections of cfg to Options.
func OptionsFromConfig(cfg *config.Config) Options {
	buildsDir := cfg.Build.BuildsDir
	if !filepath.IsAbs(buildsDir) {
		buildsDir = filepath.Join(cfg.Build.WorkDir, buildsDir)
	}
	return Options{
		BuildsDir:     buildsDir,
		Strict:        cfg.Deploy.StrictProvisioning,
		ProjectPrefix: cfg.Deploy.ProjectPrefix,
		ProbeTimeout:  cfg.GetProbeTimeout(),
		Overrides:     cfg.Deploy.Platforms,
	}
}

// Result describes a completed deployment.
type Result struct {
	Domain       string        `json:"domain"`
	Platform     string        `json:"platform"`
	Environment  Environment   `json:"environment"`
	Project      string        `json:"project"`
	Provisioning string        `json:"provisioning"`
	Injected     []string      `json:"injected"`
	URL          string        `json:"url,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Dispatcher deploys artifacts.
type Dispatcher struct {
	exec      runner.Executor
	http      *resty.Client
	opts      Options
	platforms map[string]Platform
}

// NewDispatcher creates a dispatcher with the built-in platforms, with any
// config overrides applied.
func NewDispatcher(exec runner.Executor, opts Options) *Dispatcher {
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 15 * time.Second
	}
	platforms := Platforms()
	for name, o := range opts.Overrides {
		p, ok := platforms[name]
		if !ok {
			logging.DeployWarn("Ignoring settings for unknown platform %q", name)
			continue
		}
		if o.CLI != "" {
			p.CLI = o.CLI
		}
		if o.APIBaseURL != "" {
			p.APIBaseURL = o.APIBaseURL
		}
		if o.Branch != "" {
			p.DefaultBranch = o.Branch
		}
		platforms[name] = p
	}
	return &Dispatcher{
		exec:      exec,
		http:      resty.New().SetTimeout(opts.ProbeTimeout).SetHeader("Accept", "application/json"),
		opts:      opts,
		platforms: platforms,
	}
}

// Platform returns the effective definition for name.
func (d *Dispatcher) Platform(name string) (Platform, error) {
	p, ok := d.platforms[strings.ToLower(name)]
	if !ok {
		return Platform{}, fmt.Errorf("%w %q (supported: %s)", ErrUnknownPlatform, name, strings.Join(PlatformNames(), ", "))
	}
	return p, nil
}

// Deploy uploads the artifact for domain to platform. Nothing is uploaded
// unless the artifact exists and preflight passes.
func (d *Dispatcher) Deploy(ctx context.Context, domain, platform string, env Environment) (*Result, error) {
	start := time.Now()
	p, err := d.Platform(platform)
	if err != nil {
		return nil, err
	}
	if env != Production && env != Preview {
		return nil, fmt.Errorf("unknown environment %q", env)
	}

	art, err := build.Locate(d.opts.BuildsDir, domain)
	if err != nil {
		return nil, &Failure{Platform: p.Name, Domain: domain, Stage: StageArtifact, Cause: err}
	}

	inv := Invocation{
		Project:     ProjectName(d.opts.ProjectPrefix, domain),
		Dir:         art.Site,
		Environment: env,
		Branch:      p.DefaultBranch,
	}
	if inv.Branch == "" {
		inv.Branch = "main"
	}

	logging.Deploy("Deploying %s to %s (%s) as project %s", domain, p.Name, env, inv.Project)

	if err := d.Preflight(ctx, p, &inv); err != nil {
		logging.DeployError("%v", err)
		return nil, err
	}

	outcome, err := d.ensureProject(ctx, p, inv, domain)
	if err != nil {
		return nil, err
	}

	site, cleanup, err := stageSite(art)
	if err != nil {
		return nil, &Failure{Platform: p.Name, Domain: domain, Stage: StageInject, Cause: err}
	}
	defer cleanup()
	injected, err := Inject(site, p.Files)
	if err != nil {
		return nil, &Failure{Platform: p.Name, Domain: domain, Stage: StageInject, Cause: err}
	}
	inv.Dir = site

	res, err := d.exec.Execute(ctx, runner.Command{
		Binary:      p.CLI,
		Arguments:   p.DeployArgs(inv),
		Environment: d.credentialEnv(p),
		Stdout:      d.opts.Stdout,
		Stderr:      d.opts.Stderr,
	})
	if err != nil {
		return nil, &Failure{Platform: p.Name, Domain: domain, Stage: StageUpload, Cause: err}
	}
	if !res.OK() {
		return nil, &Failure{
			Platform: p.Name,
			Domain:   domain,
			Stage:    StageUpload,
			Output:   res.Combined,
			Cause:    resultError(p.CLI, res),
		}
	}

	result := &Result{
		Domain:       domain,
		Platform:     p.Name,
		Environment:  env,
		Project:      inv.Project,
		Provisioning: outcome.String(),
		Injected:     injected,
		URL:          lastMatch(p, res.Combined),
		Duration:     time.Since(start),
	}
	logging.Deploy("Deployed %s to %s in %s %s", domain, p.Name, result.Duration.Round(time.Millisecond), result.URL)
	return result, nil
}

// Preflight checks credentials, then the CLI, then the platform API.
// It fills inv.Token from the platform's token credential.
func (d *Dispatcher) Preflight(ctx context.Context, p Platform, inv *Invocation) error {
	var missing []string
	for _, c := range p.Credentials {
		if v, ok := d.opts.LookupEnv(c.Env); !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, c.Env)
		}
	}
	if len(missing) > 0 {
		return &PreflightError{Platform: p.Name, Missing: missing, Check: "credentials"}
	}
	inv.Token, _ = d.opts.LookupEnv(p.TokenEnv)

	res, err := d.exec.Execute(ctx, runner.Command{
		Binary:      p.CLI,
		Arguments:   p.LoginArgs(*inv),
		Environment: d.credentialEnv(p),
		Timeout:     loginCheckTimeout,
	})
	switch {
	case err != nil:
		return &PreflightError{Platform: p.Name, Check: "cli", Cause: err}
	case !res.Success:
		return &PreflightError{Platform: p.Name, Check: "cli", Cause: fmt.Errorf("%s is not installed or not runnable: %s", p.CLI, res.Error)}
	case !res.OK():
		return &PreflightError{Platform: p.Name, Check: "login", Cause: resultError(p.CLI, res)}
	}

	return d.probe(ctx, p, inv.Token)
}

// credentialEnv passes the platform credentials to its CLI, so they reach
// it even when the executor restricts the inherited environment.
func (d *Dispatcher) credentialEnv(p Platform) []string {
	var env []string
	for _, c := range p.Credentials {
		if v, ok := d.opts.LookupEnv(c.Env); ok {
			env = append(env, c.Env+"="+v)
		}
	}
	return env
}

func (d *Dispatcher) probe(ctx context.Context, p Platform, token string) error {
	url := strings.TrimRight(p.APIBaseURL, "/") + p.ProbePath
	logging.DeployDebug("Probing %s", url)

	resp, err := d.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get(url)
	if err != nil {
		return &PreflightError{Platform: p.Name, Check: "api", Cause: fmt.Errorf("cannot reach %s: %w", p.APIBaseURL, err)}
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &PreflightError{Platform: p.Name, Check: "api", Cause: fmt.Errorf("credentials rejected by %s (%s)", p.APIBaseURL, resp.Status())}
	case code >= 400:
		return &PreflightError{Platform: p.Name, Check: "api", Cause: fmt.Errorf("%s returned %s", url, resp.Status())}
	}
	return nil
}

// ensureProject creates the hosting project. An "already exists" answer
// counts as success. Other failures are fatal only in strict mode.
func (d *Dispatcher) ensureProject(ctx context.Context, p Platform, inv Invocation, domain string) (CreateOutcome, error) {
	res, err := d.exec.Execute(ctx, runner.Command{
		Binary:      p.CLI,
		Arguments:   p.CreateArgs(inv),
		Environment: d.credentialEnv(p),
	})

	outcome := CreateFailed
	var cause error
	var output string
	switch {
	case err != nil:
		cause = err
	case !res.Success:
		cause = fmt.Errorf("%s", res.Error)
	default:
		output = res.Combined
		outcome = ClassifyCreate(res.ExitCode, res.Combined)
		if outcome == CreateFailed {
			cause = resultError(p.CLI, res)
		}
	}

	switch outcome {
	case Created:
		logging.Deploy("Created %s project %s", p.Name, inv.Project)
	case AlreadyExists:
		logging.DeployDebug("%s project %s already exists", p.Name, inv.Project)
	default:
		if d.opts.Strict {
			return outcome, &Failure{Platform: p.Name, Domain: domain, Stage: StageProvision, Output: output, Cause: cause}
		}
		logging.DeployWarn("Could not create %s project %s, deploying anyway: %v", p.Name, inv.Project, cause)
	}
	return outcome, nil
}

// stageSite copies the artifact's site next to the artifact, so platform
// files are added to a scratch copy and never persist between deploys.
func stageSite(art *build.Artifact) (string, func(), error) {
	staging, err := os.MkdirTemp(filepath.Dir(art.Dir), "."+art.Domain+".deploy-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() {
		if err := os.RemoveAll(staging); err != nil {
			logging.DeployWarn("Could not remove %s: %v", staging, err)
		}
	}
	site := filepath.Join(staging, build.SiteDir)
	if err := build.CopyPath(art.Site, site); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("stage site: %w", err)
	}
	return site, cleanup, nil
}

// Inject writes platform files into dir, keeping any the site already has.
// It returns the names written.
func Inject(dir string, files map[string]string) ([]string, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var written []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			logging.DeployDebug("Site already provides %s, leaving it", name)
			continue
		}
		if err := os.WriteFile(path, []byte(files[name]), 0644); err != nil {
			return written, err
		}
		written = append(written, name)
	}
	return written, nil
}

func resultError(cli string, res *runner.Result) error {
	if res.Killed {
		return fmt.Errorf("%s killed: %s", cli, res.KillReason)
	}
	return fmt.Errorf("%s exited with code %d", cli, res.ExitCode)
}

func lastMatch(p Platform, output string) string {
	if p.URLPattern == nil {
		return ""
	}
	matches := p.URLPattern.FindAllString(output, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1]
}
