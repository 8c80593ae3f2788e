// Package deploy uploads a built tenant artifact to a static hosting
// platform through that platform's CLI, after credential and connectivity
// preflight checks.
package deploy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Environment is the deployment target environment.
type Environment string

const (
	Production Environment = "production"
	Preview    Environment = "preview"
)

// ParseEnvironment parses s; empty means production.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "production", "prod":
		return Production, nil
	case "preview":
		return Preview, nil
	}
	return "", fmt.Errorf("unknown environment %q (want production or preview)", s)
}

// Credential is an environment variable a platform requires.
type Credential struct {
	Env  string
	Hint string
}

// Invocation carries what a platform needs to build CLI arguments.
// Token is used for the API probe only; CLIs read credentials from their
// environment so secrets never appear in argv.
type Invocation struct {
	Project     string
	Dir         string
	Environment Environment
	Branch      string
	Token       string
}

// Platform describes one static hosting provider.
type Platform struct {
	Name        string
	CLI         string
	Install     string
	LoginHint   string
	Scopes      string
	Credentials []Credential

	// TokenEnv is the credential used as the API bearer token.
	TokenEnv string

	// APIBaseURL and ProbePath form the connectivity probe.
	APIBaseURL string
	ProbePath  string

	DefaultBranch string

	LoginArgs  func(inv Invocation) []string
	CreateArgs func(inv Invocation) []string
	DeployArgs func(inv Invocation) []string

	// Files are written into the site directory before upload.
	Files map[string]string

	URLPattern *regexp.Regexp
}

const redirectsFile = `# Added by sitectl at deploy time.
/home    /    301
/index   /    301
`

const headersFile = `# Added by sitectl at deploy time.
/*
  X-Frame-Options: DENY
  X-Content-Type-Options: nosniff
  Referrer-Policy: strict-origin-when-cross-origin
/_next/static/*
  Cache-Control: public, max-age=31536000, immutable
/images/*
  Cache-Control: public, max-age=86400
`

const vercelFile = `{
  "cleanUrls": true,
  "trailingSlash": false,
  "redirects": [
    { "source": "/home", "destination": "/", "permanent": true },
    { "source": "/index", "destination": "/", "permanent": true }
  ],
  "headers": [
    {
      "source": "/(.*)",
      "headers": [
        { "key": "X-Frame-Options", "value": "DENY" },
        { "key": "X-Content-Type-Options", "value": "nosniff" },
        { "key": "Referrer-Policy", "value": "strict-origin-when-cross-origin" }
      ]
    },
    {
      "source": "/_next/static/(.*)",
      "headers": [
        { "key": "Cache-Control", "value": "public, max-age=31536000, immutable" }
      ]
    }
  ]
}
`

// Platforms returns the built-in platform definitions keyed by name.
func Platforms() map[string]Platform {
	return map[string]Platform{
		"cloudflare": {
			Name:      "cloudflare",
			CLI:       "wrangler",
			Install:   "npm install -g wrangler",
			LoginHint: "wrangler login",
			Scopes:    "Account > Cloudflare Pages > Edit",
			Credentials: []Credential{
				{Env: "CLOUDFLARE_API_TOKEN", Hint: "create one at https://dash.cloudflare.com/profile/api-tokens"},
				{Env: "CLOUDFLARE_ACCOUNT_ID", Hint: "shown on the Workers & Pages overview page"},
			},
			TokenEnv:      "CLOUDFLARE_API_TOKEN",
			APIBaseURL:    "https://api.cloudflare.com",
			ProbePath:     "/client/v4/user/tokens/verify",
			DefaultBranch: "main",
			LoginArgs:     func(Invocation) []string { return []string{"whoami"} },
			CreateArgs: func(inv Invocation) []string {
				return []string{"pages", "project", "create", inv.Project, "--production-branch", inv.Branch}
			},
			DeployArgs: func(inv Invocation) []string {
				branch := inv.Branch
				if inv.Environment == Preview {
					branch = "preview"
				}
				return []string{"pages", "deploy", inv.Dir, "--project-name", inv.Project, "--branch", branch}
			},
			Files:      map[string]string{"_redirects": redirectsFile, "_headers": headersFile},
			URLPattern: regexp.MustCompile(`https://[A-Za-z0-9.-]+\.pages\.dev\S*`),
		},
		"netlify": {
			Name:      "netlify",
			CLI:       "netlify",
			Install:   "npm install -g netlify-cli",
			LoginHint: "netlify login",
			Scopes:    "a personal access token for a team member with deploy rights",
			Credentials: []Credential{
				{Env: "NETLIFY_AUTH_TOKEN", Hint: "create one under User settings > Applications"},
			},
			TokenEnv:   "NETLIFY_AUTH_TOKEN",
			APIBaseURL: "https://api.netlify.com",
			ProbePath:  "/api/v1/user",
			LoginArgs:  func(Invocation) []string { return []string{"status"} },
			CreateArgs: func(inv Invocation) []string {
				return []string{"sites:create", "--name", inv.Project, "--disable-linking"}
			},
			DeployArgs: func(inv Invocation) []string {
				args := []string{"deploy", "--dir", inv.Dir, "--site", inv.Project}
				if inv.Environment == Production {
					args = append(args, "--prod")
				}
				return args
			},
			Files:      map[string]string{"_redirects": redirectsFile, "_headers": headersFile},
			URLPattern: regexp.MustCompile(`https://[A-Za-z0-9.-]+\.netlify\.app\S*`),
		},
		"vercel": {
			Name:      "vercel",
			CLI:       "vercel",
			Install:   "npm install -g vercel",
			LoginHint: "vercel login",
			Scopes:    "a token scoped to the team that owns the project",
			Credentials: []Credential{
				{Env: "VERCEL_TOKEN", Hint: "create one at https://vercel.com/account/tokens"},
			},
			TokenEnv:   "VERCEL_TOKEN",
			APIBaseURL: "https://api.vercel.com",
			ProbePath:  "/v2/user",
			LoginArgs:  func(Invocation) []string { return []string{"whoami"} },
			CreateArgs: func(inv Invocation) []string {
				return []string{"project", "add", inv.Project}
			},
			DeployArgs: func(inv Invocation) []string {
				args := []string{"deploy", inv.Dir, "--yes", "--name", inv.Project}
				if inv.Environment == Production {
					args = append(args, "--prod")
				}
				return args
			},
			Files:      map[string]string{"vercel.json": vercelFile},
			URLPattern: regexp.MustCompile(`https://[A-Za-z0-9.-]+\.vercel\.app\S*`),
		},
	}
}

// PlatformNames returns the supported platform names, sorted.
func PlatformNames() []string {
	names := make([]string, 0, 3)
	for name := range Platforms() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProjectName derives the hosting project name from a domain.
func ProjectName(prefix, domain string) string {
	name := strings.ToLower(prefix + strings.ReplaceAll(domain, ".", "-"))
	return strings.Trim(name, "-")
}
