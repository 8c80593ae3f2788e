// Package build produces one tenant's static site: it runs the site
// generator with a tenant-scoped environment, then replaces
// builds/<domain>/ with the fresh output and a deployment-info stamp.
package build

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// InfoFile is the stamp written into every artifact directory.
	InfoFile = "deployment-info.json"

	// SiteDir holds the generated site inside the artifact directory.
	SiteDir = "site"
)

// DeploymentInfo is the advisory metadata stamped onto an artifact.
type DeploymentInfo struct {
	Domain       string            `json:"domain"`
	BuildDate    string            `json:"buildDate"`
	BuildID      string            `json:"buildId"`
	ToolVersions map[string]string `json:"toolVersions"`
	Plan         map[string]bool   `json:"plan,omitempty"`
}

// Artifact is a completed per-tenant build.
type Artifact struct {
	Domain string         `json:"domain"`
	Dir    string         `json:"dir"`
	Site   string         `json:"site"`
	Info   DeploymentInfo `json:"info"`
}

// Failure reports a generator run that did not succeed.
// No artifact is written when a build fails.
type Failure struct {
	Domain   string
	ExitCode int
	Output   string
	Reason   string
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("build failed for %s (exit code %d)", f.Domain, f.ExitCode)
	if f.Reason != "" {
		msg += ": " + f.Reason
	}
	return msg
}

// ArtifactDir returns builds/<domain> under buildsDir.
func ArtifactDir(buildsDir, domain string) string {
	return filepath.Join(buildsDir, domain)
}

// Locate returns the artifact for domain if its site directory exists.
func Locate(buildsDir, domain string) (*Artifact, error) {
	if err := ValidateDomain(domain); err != nil {
		return nil, err
	}
	dir := ArtifactDir(buildsDir, domain)
	site := filepath.Join(dir, SiteDir)
	info, err := os.Stat(site)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no build artifact for %s at %s", domain, dir)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("artifact site path %s is not a directory", site)
	}
	return &Artifact{Domain: domain, Dir: dir, Site: site}, nil
}

// ValidateDomain rejects domains that would escape the builds directory.
func ValidateDomain(domain string) error {
	switch {
	case strings.TrimSpace(domain) == "":
		return fmt.Errorf("domain is required")
	case domain == "." || domain == "..":
		return fmt.Errorf("invalid domain %q", domain)
	case strings.ContainsAny(domain, `/\`) || strings.ContainsRune(domain, 0):
		return fmt.Errorf("invalid domain %q: must be a bare hostname", domain)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// CopyPath copies a file or directory tree from src to dst.
func CopyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst, info.Mode())
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if d.Type()&fs.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, fi.Mode())
	})
}

func copyFile(src, dst string, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
