package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the file looked up when --config is not given.
const DefaultConfigFile = "sitectl.yaml"

// hexColor is the accepted shape for every color in config and in tenant records.
var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Config holds all sitectl configuration.
type Config struct {
	// Content store connection
	CMS CMSConfig `yaml:"cms"`

	// Tenant discovery and fallback defaults
	Tenants TenantsConfig `yaml:"tenants"`

	// Site generation and artifact layout
	Build BuildConfig `yaml:"build"`

	// Deployment targets
	Deploy DeployConfig `yaml:"deploy"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// CMSConfig configures the content repository client.
type CMSConfig struct {
	ProjectID  string `yaml:"project_id"`
	Dataset    string `yaml:"dataset"`
	APIVersion string `yaml:"api_version"` // date-style version, e.g. 2024-01-01
	Token      string `yaml:"token"`
	BaseURL    string `yaml:"base_url"` // overrides the project-derived URL when set
	UseCDN     bool   `yaml:"use_cdn"`
	Timeout    string `yaml:"timeout"`
	Retries    int    `yaml:"retries"`
}

// TenantsConfig configures tenant discovery and configuration fallbacks.
type TenantsConfig struct {
	// FallbackDomains replaces the built-in list used when discovery fails.
	FallbackDomains []string `yaml:"fallback_domains"`

	// LocalTable is a YAML file of known tenants consulted in preview contexts.
	// Empty means the embedded table.
	LocalTable string `yaml:"local_table"`

	DefaultMainColor      string `yaml:"default_main_color"`
	DefaultSecondaryColor string `yaml:"default_secondary_color"`

	// Labels are the navigation labels used when a tenant does not override them.
	Labels LabelsConfig `yaml:"labels"`
}

// LabelsConfig holds per-category navigation labels.
type LabelsConfig struct {
	Proposals   string `yaml:"proposals"`
	News        string `yaml:"news"`
	Events      string `yaml:"events"`
	CustomPages string `yaml:"custom_pages"`
}

// BuildConfig configures the site generator invocation and artifact relocation.
type BuildConfig struct {
	// Command and Args invoke the underlying site generator.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	// WorkDir is where the generator runs. Relative paths below resolve against it.
	WorkDir string `yaml:"work_dir"`

	// OutputDir is where the generator writes the site. "{domain}" is expanded.
	OutputDir string `yaml:"output_dir"`

	// BuildsDir is the root of per-tenant artifacts (builds/<domain>/).
	BuildsDir string `yaml:"builds_dir"`

	// AuxFiles are copied next to the site, preserving their relative paths.
	AuxFiles []string `yaml:"aux_files"`

	// DomainEnv is the environment variable carrying the tenant domain.
	DomainEnv string `yaml:"domain_env"`

	// EnvVars are extra variables for the generator.
	EnvVars map[string]string `yaml:"env_vars"`

	// AllowedEnvVars are passed through from the sitectl environment.
	AllowedEnvVars []string `yaml:"allowed_env_vars"`

	// ToolVersions maps a tool name to the command printing its version.
	ToolVersions map[string]string `yaml:"tool_versions"`

	// Timeout bounds one generator run. Empty means no limit.
	Timeout string `yaml:"timeout"`

	// MaxParallel caps concurrent child builds in build-all. 0 means unlimited.
	MaxParallel int `yaml:"max_parallel"`

	// WatchPaths are the source paths watched by `sitectl watch`.
	WatchPaths []string `yaml:"watch_paths"`
}

// DeployConfig configures the deployment dispatcher.
type DeployConfig struct {
	// StrictProvisioning fails a deploy when project creation fails for any
	// reason other than the project already existing.
	StrictProvisioning bool `yaml:"strict_provisioning"`

	// ProjectPrefix is prepended to the project name derived from the domain.
	ProjectPrefix string `yaml:"project_prefix"`

	// ProbeTimeout bounds the platform API connectivity probe.
	ProbeTimeout string `yaml:"probe_timeout"`

	// Platforms holds per-platform overrides keyed by platform name.
	Platforms map[string]PlatformConfig `yaml:"platforms"`
}

// PlatformConfig overrides a deployment platform's defaults.
type PlatformConfig struct {
	CLI        string `yaml:"cli"`          // binary name or path
	APIBaseURL string `yaml:"api_base_url"` // used by the connectivity probe
	Branch     string `yaml:"branch"`       // production branch name where applicable
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // text, json
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		CMS: CMSConfig{
			Dataset:    "production",
			APIVersion: "2024-01-01",
			UseCDN:     false,
			Timeout:    "20s",
			Retries:    2,
		},

		Tenants: TenantsConfig{
			DefaultMainColor:      "#1D4ED8",
			DefaultSecondaryColor: "#F59E0B",
			Labels: LabelsConfig{
				Proposals:   "Proposals",
				News:        "News",
				Events:      "Events",
				CustomPages: "More",
			},
		},

		Build: BuildConfig{
			Command:        "npm",
			Args:           []string{"run", "build"},
			WorkDir:        ".",
			OutputDir:      ".sitectl/{domain}/out",
			BuildsDir:      "builds",
			AuxFiles:       []string{"public", "package.json"},
			DomainEnv:      "CAMPAIGN_DOMAIN",
			EnvVars:        map[string]string{"NEXT_TELEMETRY_DISABLED": "1"},
			AllowedEnvVars: []string{"PATH", "HOME", "USER", "LANG", "LC_ALL", "TMPDIR", "NODE_OPTIONS", "SANITY_PROJECT_ID", "SANITY_DATASET", "SANITY_API_TOKEN"},
			ToolVersions: map[string]string{
				"node": "node --version",
				"npm":  "npm --version",
			},
			Timeout:     "",
			MaxParallel: 0,
			WatchPaths:  []string{"src", "public"},
		},

		Deploy: DeployConfig{
			ProbeTimeout: "15s",
			Platforms:    map[string]PlatformConfig{},
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SANITY_PROJECT_ID"); v != "" {
		c.CMS.ProjectID = v
	}
	if v := os.Getenv("SANITY_DATASET"); v != "" {
		c.CMS.Dataset = v
	}
	if v := os.Getenv("SANITY_API_TOKEN"); v != "" {
		c.CMS.Token = v
	}
	if v := os.Getenv("SITECTL_CMS_URL"); v != "" {
		c.CMS.BaseURL = v
	}
	if v := os.Getenv("SITECTL_BUILDS_DIR"); v != "" {
		c.Build.BuildsDir = v
	}
	if v := os.Getenv("SITECTL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// GetCMSTimeout returns the content store request timeout.
func (c *Config) GetCMSTimeout() time.Duration {
	d, err := time.ParseDuration(c.CMS.Timeout)
	if err != nil || d <= 0 {
		return 20 * time.Second
	}
	return d
}

// GetBuildTimeout returns the per-build timeout; zero means unbounded.
func (c *Config) GetBuildTimeout() time.Duration {
	if strings.TrimSpace(c.Build.Timeout) == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Build.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// GetProbeTimeout returns the deploy preflight probe timeout.
func (c *Config) GetProbeTimeout() time.Duration {
	d, err := time.ParseDuration(c.Deploy.ProbeTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// CMSEndpoint returns the query API base URL.
func (c *Config) CMSEndpoint() string {
	if c.CMS.BaseURL != "" {
		return strings.TrimRight(c.CMS.BaseURL, "/")
	}
	if c.CMS.ProjectID == "" {
		return ""
	}
	host := "api.sanity.io"
	if c.CMS.UseCDN {
		host = "apicdn.sanity.io"
	}
	return fmt.Sprintf("https://%s.%s", c.CMS.ProjectID, host)
}

// Platform returns overrides for a deployment platform (zero value if none).
func (c *Config) Platform(name string) PlatformConfig {
	if c.Deploy.Platforms == nil {
		return PlatformConfig{}
	}
	return c.Deploy.Platforms[name]
}

// IsHexColor reports whether s is a #RRGGBB color.
func IsHexColor(s string) bool {
	return hexColor.MatchString(s)
}

// SharesOutputDir reports whether every tenant build writes to the same
// output directory.
func (b BuildConfig) SharesOutputDir() bool {
	return !strings.Contains(b.OutputDir, "{domain}")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Build.Command) == "" {
		return fmt.Errorf("build.command is required")
	}
	if strings.TrimSpace(c.Build.BuildsDir) == "" {
		return fmt.Errorf("build.builds_dir is required")
	}
	if strings.TrimSpace(c.Build.OutputDir) == "" {
		return fmt.Errorf("build.output_dir is required")
	}
	if strings.TrimSpace(c.Build.DomainEnv) == "" {
		return fmt.Errorf("build.domain_env is required")
	}
	if c.Build.MaxParallel < 0 {
		return fmt.Errorf("build.max_parallel must be >= 0, got %d", c.Build.MaxParallel)
	}
	if c.Build.SharesOutputDir() && c.Build.MaxParallel != 1 {
		return fmt.Errorf("build.output_dir %q has no {domain} placeholder; set build.max_parallel: 1 so tenant builds do not overwrite each other", c.Build.OutputDir)
	}
	if !IsHexColor(c.Tenants.DefaultMainColor) {
		return fmt.Errorf("tenants.default_main_color %q is not a #RRGGBB color", c.Tenants.DefaultMainColor)
	}
	if !IsHexColor(c.Tenants.DefaultSecondaryColor) {
		return fmt.Errorf("tenants.default_secondary_color %q is not a #RRGGBB color", c.Tenants.DefaultSecondaryColor)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid logging format: %s (valid: text, json)", c.Logging.Format)
	}
	return nil
}
