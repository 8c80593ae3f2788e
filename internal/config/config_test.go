package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"SANITY_PROJECT_ID", "SANITY_DATASET", "SANITY_API_TOKEN", "SITECTL_CMS_URL", "SITECTL_BUILDS_DIR", "SITECTL_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Build.Command != "npm" {
		t.Errorf("expected Command=npm, got %s", cfg.Build.Command)
	}
	if cfg.Build.BuildsDir != "builds" {
		t.Errorf("expected BuildsDir=builds, got %s", cfg.Build.BuildsDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "sitectl.yaml")

	cfg := DefaultConfig()
	cfg.CMS.ProjectID = "abc123"
	cfg.Tenants.FallbackDomains = []string{"a.org", "b.org"}
	cfg.Build.MaxParallel = 3

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "abc123", loaded.CMS.ProjectID)
	assert.Equal(t, []string{"a.org", "b.org"}, loaded.Tenants.FallbackDomains)
	assert.Equal(t, 3, loaded.Build.MaxParallel)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Build, cfg.Build)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "sitectl.yaml")
	data := "cms:\n  project_id: xyz\nbuild:\n  builds_dir: out/builds\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "xyz", cfg.CMS.ProjectID)
	assert.Equal(t, "production", cfg.CMS.Dataset)
	assert.Equal(t, "out/builds", cfg.Build.BuildsDir)
	assert.Equal(t, "npm", cfg.Build.Command)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sitectl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cms: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("sanity credentials", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SANITY_PROJECT_ID", "proj")
		t.Setenv("SANITY_API_TOKEN", "tok")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "proj", cfg.CMS.ProjectID)
		assert.Equal(t, "tok", cfg.CMS.Token)
		assert.Equal(t, "production", cfg.CMS.Dataset)
	})

	t.Run("builds dir and log level", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SITECTL_BUILDS_DIR", "/tmp/builds")
		t.Setenv("SITECTL_LOG_LEVEL", "debug")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/builds", cfg.Build.BuildsDir)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty command", func(c *Config) { c.Build.Command = " " }},
		{"empty builds dir", func(c *Config) { c.Build.BuildsDir = "" }},
		{"negative parallel", func(c *Config) { c.Build.MaxParallel = -1 }},
		{"bad main color", func(c *Config) { c.Tenants.DefaultMainColor = "blue" }},
		{"bad secondary color", func(c *Config) { c.Tenants.DefaultSecondaryColor = "#12345" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"shared output dir in parallel", func(c *Config) { c.Build.OutputDir = "out" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_ValidateSharedOutputDir(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Build.SharesOutputDir())

	cfg.Build.OutputDir = "dist"
	assert.True(t, cfg.Build.SharesOutputDir())
	assert.ErrorContains(t, cfg.Validate(), "{domain}")

	cfg.Build.MaxParallel = 1
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 20*time.Second, cfg.GetCMSTimeout())
	assert.Equal(t, time.Duration(0), cfg.GetBuildTimeout())
	assert.Equal(t, 15*time.Second, cfg.GetProbeTimeout())

	cfg.Build.Timeout = "10m"
	assert.Equal(t, 10*time.Minute, cfg.GetBuildTimeout())

	cfg.Build.Timeout = "garbage"
	assert.Equal(t, time.Duration(0), cfg.GetBuildTimeout())
}

func TestCMSEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "", cfg.CMSEndpoint())

	cfg.CMS.ProjectID = "p1"
	assert.Equal(t, "https://p1.api.sanity.io", cfg.CMSEndpoint())

	cfg.CMS.UseCDN = true
	assert.Equal(t, "https://p1.apicdn.sanity.io", cfg.CMSEndpoint())

	cfg.CMS.BaseURL = "http://localhost:9999/"
	assert.Equal(t, "http://localhost:9999", cfg.CMSEndpoint())
}

func TestIsHexColor(t *testing.T) {
	assert.True(t, IsHexColor("#A1b2C3"))
	assert.False(t, IsHexColor("not-a-color"))
	assert.False(t, IsHexColor("#abc"))
	assert.False(t, IsHexColor("A1B2C3"))
	assert.False(t, IsHexColor("#A1B2C3 "))
}
