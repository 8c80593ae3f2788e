package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"campaignsites/internal/config"
	"campaignsites/internal/logging"
	"campaignsites/internal/runner"
	"campaignsites/internal/tenant"
	"campaignsites/internal/visibility"
)

// Environment variables exported to the site generator besides the
// configured domain variable.
const (
	EnvOutputDir    = "SITE_OUTPUT_DIR"
	EnvTenantConfig = "SITE_TENANT_CONFIG"
	EnvGeneratePfx  = "SITE_GENERATE_"
)

const toolVersionTimeout = 10 * time.Second

// Resolver produces the total configuration for a domain.
type Resolver interface {
	Resolve(ctx context.Context, domain string, mode tenant.Mode) (*tenant.Config, error)
}

// Options tunes an Orchestrator. Zero values are replaced with defaults.
type Options struct {
	// Version is recorded as the sitectl tool version.
	Version string

	// Timeout bounds the generator run; zero means no limit.
	Timeout time.Duration

	// Mode selects the resolution chain. Builds default to the content
	// store only; preview rebuilds fall back to local data.
	Mode tenant.Mode

	// Stdout and Stderr receive generator output as it is produced.
	Stdout io.Writer
	Stderr io.Writer

	Now   func() time.Time
	NewID func() string
}

// Orchestrator builds one tenant at a time. A single build is strictly
// sequential: resolve, plan, generate, relocate, stamp.
type Orchestrator struct {
	cfg      config.BuildConfig
	resolver Resolver
	counter  visibility.Counter
	exec     runner.Executor
	opts     Options

	// outputMu serializes builds that share one output directory.
	outputMu sync.Mutex
}

// NewOrchestrator creates an orchestrator for the given build settings.
func NewOrchestrator(cfg config.BuildConfig, resolver Resolver, counter visibility.Counter, exec runner.Executor, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Orchestrator{cfg: cfg, resolver: resolver, counter: counter, exec: exec, opts: opts}
}

// Paths are the filesystem locations used by one tenant build.
type Paths struct {
	WorkDir    string `json:"workDir"`
	OutputDir  string `json:"outputDir"`
	StateDir   string `json:"stateDir"`
	TenantFile string `json:"tenantFile"`
	BuildsDir  string `json:"buildsDir"`
	Artifact   string `json:"artifact"`
}

// PathsFor computes the build paths for domain. Relative paths resolve
// against the configured work directory.
func (o *Orchestrator) PathsFor(domain string) (Paths, error) {
	workDir, err := filepath.Abs(orDot(o.cfg.WorkDir))
	if err != nil {
		return Paths{}, err
	}
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(workDir, p)
	}
	stateDir := filepath.Join(workDir, ".sitectl", domain)
	buildsDir := resolve(o.cfg.BuildsDir)
	return Paths{
		WorkDir:    workDir,
		OutputDir:  resolve(strings.ReplaceAll(o.cfg.OutputDir, "{domain}", domain)),
		StateDir:   stateDir,
		TenantFile: filepath.Join(stateDir, "tenant.json"),
		BuildsDir:  buildsDir,
		Artifact:   ArtifactDir(buildsDir, domain),
	}, nil
}

// BuildTenant builds domain and replaces its artifact directory.
// A generator failure returns *Failure and leaves any previous artifact untouched.
func (o *Orchestrator) BuildTenant(ctx context.Context, domain string) (*Artifact, error) {
	if err := ValidateDomain(domain); err != nil {
		return nil, err
	}
	timer := logging.StartTimer(logging.CategoryBuild, "build "+domain)
	defer timer.StopWithInfo()

	cfg, err := o.resolver.Resolve(ctx, domain, o.opts.Mode)
	if err != nil {
		return nil, err
	}
	plan, err := visibility.BuildPlan(ctx, o.counter, cfg)
	if err != nil {
		return nil, fmt.Errorf("content plan for %s: %w", domain, err)
	}

	paths, err := o.PathsFor(domain)
	if err != nil {
		return nil, err
	}
	if o.cfg.SharesOutputDir() {
		o.outputMu.Lock()
		defer o.outputMu.Unlock()
	}
	if err := o.prepare(paths, cfg, plan); err != nil {
		return nil, err
	}

	logging.Build("Building %s (%s)", domain, cfg.Title)
	res, err := o.exec.Execute(ctx, runner.Command{
		Binary:           o.cfg.Command,
		Arguments:        o.cfg.Args,
		WorkingDirectory: paths.WorkDir,
		Environment:      o.Environment(domain, paths, plan),
		Timeout:          o.opts.Timeout,
		Stdout:           o.opts.Stdout,
		Stderr:           o.opts.Stderr,
	})
	if ferr := failureFrom(domain, res, err); ferr != nil {
		logging.BuildError("%v", ferr)
		return nil, ferr
	}

	if fi, err := os.Stat(paths.OutputDir); err != nil || !fi.IsDir() {
		return nil, &Failure{
			Domain: domain,
			Output: res.Combined,
			Reason: fmt.Sprintf("generator produced no output directory at %s", paths.OutputDir),
		}
	}

	info := DeploymentInfo{
		Domain:       domain,
		BuildDate:    o.opts.Now().UTC().Format(time.RFC3339),
		BuildID:      o.opts.NewID(),
		ToolVersions: o.ToolVersions(ctx, paths.WorkDir),
		Plan:         plan.Map(),
	}
	if err := o.relocate(paths, info); err != nil {
		return nil, fmt.Errorf("write artifact for %s: %w", domain, err)
	}

	logging.Build("Built %s -> %s", domain, paths.Artifact)
	return &Artifact{
		Domain: domain,
		Dir:    paths.Artifact,
		Site:   filepath.Join(paths.Artifact, SiteDir),
		Info:   info,
	}, nil
}

// Environment returns the tenant-scoped variables for the generator.
func (o *Orchestrator) Environment(domain string, paths Paths, plan visibility.Plan) []string {
	env := runner.EnvFromMap(o.cfg.EnvVars)
	env = runner.MergeEnv(env,
		o.cfg.DomainEnv+"="+domain,
		EnvOutputDir+"="+paths.OutputDir,
		EnvTenantConfig+"="+paths.TenantFile,
	)
	for _, d := range plan.Decisions {
		env = runner.MergeEnv(env, fmt.Sprintf("%s%s=%t", EnvGeneratePfx, EnvName(d.Category), d.Generate))
	}
	return env
}

// EnvName converts a category to its environment form (customPages -> CUSTOM_PAGES).
func EnvName(c tenant.Category) string {
	var b strings.Builder
	for i, r := range string(c) {
		if r >= 'A' && r <= 'Z' && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

type tenantFile struct {
	Tenant *tenant.Config  `json:"tenant"`
	Plan   visibility.Plan `json:"plan"`
}

// prepare writes the generator's tenant file and clears stale output.
func (o *Orchestrator) prepare(paths Paths, cfg *tenant.Config, plan visibility.Plan) error {
	if err := os.MkdirAll(paths.StateDir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := writeJSON(paths.TenantFile, tenantFile{Tenant: cfg, Plan: plan}); err != nil {
		return fmt.Errorf("write tenant file: %w", err)
	}
	if err := os.RemoveAll(paths.OutputDir); err != nil {
		return fmt.Errorf("clear output dir: %w", err)
	}
	return nil
}

// relocate stages the artifact next to its final location and swaps it in,
// so builds/<domain> is either the previous artifact or the complete new one.
func (o *Orchestrator) relocate(paths Paths, info DeploymentInfo) error {
	if err := os.MkdirAll(paths.BuildsDir, 0755); err != nil {
		return err
	}
	staging, err := os.MkdirTemp(paths.BuildsDir, "."+info.Domain+".staging-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	if err := CopyPath(paths.OutputDir, filepath.Join(staging, SiteDir)); err != nil {
		return fmt.Errorf("copy site: %w", err)
	}
	for _, aux := range o.cfg.AuxFiles {
		src := aux
		if !filepath.IsAbs(src) {
			src = filepath.Join(paths.WorkDir, aux)
		}
		if _, err := os.Stat(src); os.IsNotExist(err) {
			logging.BuildDebug("Auxiliary path %s not present, skipping", aux)
			continue
		}
		if err := CopyPath(src, filepath.Join(staging, auxTarget(aux))); err != nil {
			return fmt.Errorf("copy %s: %w", aux, err)
		}
	}
	if err := writeJSON(filepath.Join(staging, InfoFile), info); err != nil {
		return err
	}

	if err := os.RemoveAll(paths.Artifact); err != nil {
		return fmt.Errorf("remove previous artifact: %w", err)
	}
	return os.Rename(staging, paths.Artifact)
}

// ToolVersions runs each configured version command. Failures record "unknown".
func (o *Orchestrator) ToolVersions(ctx context.Context, workDir string) map[string]string {
	versions := map[string]string{"sitectl": o.opts.Version}
	names := make([]string, 0, len(o.cfg.ToolVersions))
	for name := range o.cfg.ToolVersions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		versions[name] = "unknown"
		fields := strings.Fields(o.cfg.ToolVersions[name])
		if len(fields) == 0 {
			continue
		}
		res, err := o.exec.Execute(ctx, runner.Command{
			Binary:           fields[0],
			Arguments:        fields[1:],
			WorkingDirectory: workDir,
			Timeout:          toolVersionTimeout,
		})
		if err != nil || !res.OK() {
			logging.BuildDebug("Version probe for %s failed", name)
			continue
		}
		if v := firstLine(res.Stdout); v != "" {
			versions[name] = v
		}
	}
	return versions
}

func failureFrom(domain string, res *runner.Result, err error) *Failure {
	switch {
	case err != nil:
		return &Failure{Domain: domain, ExitCode: -1, Reason: err.Error()}
	case res == nil:
		return &Failure{Domain: domain, ExitCode: -1, Reason: "no result from generator"}
	case !res.Success:
		return &Failure{Domain: domain, ExitCode: -1, Output: res.Combined, Reason: res.Error}
	case res.Killed:
		return &Failure{Domain: domain, ExitCode: res.ExitCode, Output: res.Combined, Reason: res.KillReason}
	case res.ExitCode != 0:
		return &Failure{Domain: domain, ExitCode: res.ExitCode, Output: res.Combined}
	}
	return nil
}

// auxTarget keeps relative aux paths as they are under the work directory.
func auxTarget(aux string) string {
	clean := filepath.Clean(aux)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return filepath.Base(clean)
	}
	return clean
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func orDot(s string) string {
	if s == "" {
		return "."
	}
	return s
}
