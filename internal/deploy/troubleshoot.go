package deploy

import (
	"errors"
	"fmt"
	"strings"
)

// Troubleshooting returns a markdown checklist for a failed deployment.
func Troubleshooting(p Platform, domain string, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Deploying %s to %s failed\n\n", domain, p.Name)
	fmt.Fprintf(&b, "> %v\n\n", err)
	b.WriteString("## Checklist\n\n")

	var pre *PreflightError
	var fail *Failure
	switch {
	case errors.As(err, &pre) && len(pre.Missing) > 0:
		for _, c := range p.Credentials {
			fmt.Fprintf(&b, "- [ ] Export `%s` (%s)\n", c.Env, c.Hint)
		}
	case errors.As(err, &fail) && fail.Stage == StageArtifact:
		fmt.Fprintf(&b, "- [ ] Build the site first: `sitectl build %s`\n", domain)
	}

	fmt.Fprintf(&b, "- [ ] The `%s` CLI is installed and on PATH (`%s`)\n", p.CLI, p.Install)
	fmt.Fprintf(&b, "- [ ] You are logged in (`%s`), or the token variables are exported\n", p.LoginHint)
	fmt.Fprintf(&b, "- [ ] The token has the right permissions: %s\n", p.Scopes)
	fmt.Fprintf(&b, "- [ ] %s is reachable from this machine\n", p.APIBaseURL)

	if errors.As(err, &fail) && strings.TrimSpace(fail.Output) != "" {
		b.WriteString("\n## CLI output\n\n```\n")
		b.WriteString(tailLines(fail.Output, 20))
		b.WriteString("\n```\n")
	}
	return b.String()
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
