package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"campaignsites/internal/tenant"
)

var discoverValidate bool

var discoverCmd = &cobra.Command{
	Use:   "discover-domains",
	Short: "List the tenant domains known to the content store",
	Long: `Queries the content store for every campaign with a domain and prints
the domains ordered by title. If the store cannot be reached, the
fallback list is printed instead and a warning is logged.

With --validate, each tenant record is checked for missing or malformed
fields and the command exits non-zero if any record is invalid.`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverValidate, "validate", false, "Check tenant records for completeness")
}

type discoverOutput struct {
	Domains []string              `json:"domains"`
	Source  string                `json:"source"`
	Count   int                   `json:"count"`
	Reports []tenant.RecordReport `json:"reports,omitempty"`
	Invalid int                   `json:"invalid,omitempty"`
	Warning string                `json:"warning,omitempty"`
}

func runDiscover(cmd *cobra.Command, args []string) error {
	repo, err := newRepository(appConfig)
	if err != nil {
		return &configError{err: err}
	}
	registry := newRegistry(appConfig, repo)

	out := discoverOutput{
		Domains: registry.Discover(cmd.Context()),
		Source:  "cms",
	}
	out.Count = len(out.Domains)
	if registry.UsedFallback() {
		out.Source = "fallback"
		if e := registry.Err(); e != nil {
			out.Warning = e.Error()
		}
	}

	if discoverValidate {
		if registry.UsedFallback() {
			return fmt.Errorf("cannot validate records: content store unavailable: %s", out.Warning)
		}
		out.Reports, out.Invalid = tenant.ValidateRecords(registry.Records(cmd.Context()))
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		printDiscover(out)
	}

	if out.Invalid > 0 {
		return &exitError{
			code: 1,
			msg:  fmt.Sprintf("%d of %d tenant records are invalid", out.Invalid, out.Count),
			hint: "fix the listed fields in the content store; invalid colors fall back to defaults but missing domains cannot be built",
		}
	}
	return nil
}

func printDiscover(out discoverOutput) {
	styles := stylesFor(os.Stdout)
	if !discoverValidate {
		for _, d := range out.Domains {
			printf("%s\n", d)
		}
		if out.Source == "fallback" {
			fmt.Fprintln(os.Stderr, styles.Warning.Render("warning: content store unavailable, printed the fallback list"))
		}
		return
	}

	for _, rep := range out.Reports {
		if rep.Valid() {
			printf("%s  %s\n", styles.Success.Render("OK  "), rep.Domain)
			continue
		}
		name := rep.Domain
		if name == "" {
			name = rep.Title
		}
		printf("%s  %s\n", styles.Error.Render("FAIL"), name)
		for _, p := range rep.Problems {
			printf("      %s\n", styles.Muted.Render(p))
		}
	}
	printf("\n%d records, %d invalid\n", len(out.Reports), out.Invalid)
}
