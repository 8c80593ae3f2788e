package tenant

import (
	"fmt"
	"sort"
	"strings"

	"campaignsites/internal/config"
)

// RecordReport lists the completeness problems of one tenant record.
type RecordReport struct {
	Domain   string   `json:"domain"`
	Title    string   `json:"title"`
	Problems []string `json:"problems,omitempty"`
}

// Valid reports whether the record had no problems.
func (r RecordReport) Valid() bool {
	return len(r.Problems) == 0
}

// ValidateRecord checks a record for required fields and well-formed values.
func ValidateRecord(rec Record) RecordReport {
	rep := RecordReport{Domain: rec.Domain, Title: rec.Title}
	add := func(format string, args ...interface{}) {
		rep.Problems = append(rep.Problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(rec.Title) == "" {
		add("missing title")
	}
	domain := strings.TrimSpace(rec.Domain)
	switch {
	case domain == "":
		add("missing domain")
	case strings.ContainsAny(domain, " /:") || !strings.Contains(domain, "."):
		add("domain %q is not a bare hostname", domain)
	}
	if strings.TrimSpace(rec.Location) == "" {
		add("missing location")
	}
	if rec.MainColor == "" {
		add("missing mainColor")
	} else if !config.IsHexColor(rec.MainColor) {
		add("mainColor %q is not a #RRGGBB color", rec.MainColor)
	}
	if rec.SecondaryColor != "" && !config.IsHexColor(rec.SecondaryColor) {
		add("secondaryColor %q is not a #RRGGBB color", rec.SecondaryColor)
	}
	socials := rec.Socials.All()
	for _, network := range sortedKeys(socials) {
		if raw := socials[network]; !isHTTPURL(raw) {
			add("socials.%s %q is not an absolute http(s) URL", network, raw)
		}
	}
	return rep
}

// ValidateRecords validates every record and returns the reports plus the
// number of invalid records.
func ValidateRecords(records []Record) ([]RecordReport, int) {
	reports := make([]RecordReport, 0, len(records))
	invalid := 0
	for _, rec := range records {
		rep := ValidateRecord(rec)
		if !rep.Valid() {
			invalid++
		}
		reports = append(reports, rep)
	}
	return reports, invalid
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
