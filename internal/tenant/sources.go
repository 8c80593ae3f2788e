package tenant

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source is one step in a configuration fallback chain.
// Lookup returns ok=false when the source has no record for the domain.
type Source interface {
	Name() string
	Lookup(ctx context.Context, domain string) (Record, bool, error)
}

// RemoteSource looks tenants up in the content store.
type RemoteSource struct {
	Repo Repository
}

func (s RemoteSource) Name() string { return "cms" }

func (s RemoteSource) Lookup(ctx context.Context, domain string) (Record, bool, error) {
	if s.Repo == nil {
		return Record{}, false, fmt.Errorf("content store not configured")
	}
	rec, err := s.Repo.FetchTenantByDomain(ctx, domain)
	if err != nil {
		return Record{}, false, err
	}
	if rec == nil {
		return Record{}, false, nil
	}
	return *rec, true, nil
}

//go:embed known_tenants.yaml
var embeddedTable []byte

// Table is a static table of known tenants keyed by domain.
type Table struct {
	records map[string]Record
	domains []string
}

type tableFile struct {
	Tenants []Record `yaml:"tenants"`
}

// LoadTable reads a tenant table from path, or the embedded table when path is empty.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return ParseTable(embeddedTable)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable parses a YAML tenant table.
func ParseTable(data []byte) (*Table, error) {
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse tenant table: %w", err)
	}
	t := &Table{records: make(map[string]Record)}
	for _, rec := range tf.Tenants {
		d := strings.TrimSpace(rec.Domain)
		if d == "" {
			continue
		}
		rec.Domain = d
		if _, dup := t.records[d]; !dup {
			t.domains = append(t.domains, d)
		}
		t.records[d] = rec
	}
	return t, nil
}

// Domains returns the table's domains in file order.
func (t *Table) Domains() []string {
	out := make([]string, len(t.domains))
	copy(out, t.domains)
	return out
}

func (t *Table) Name() string { return "local-table" }

func (t *Table) Lookup(_ context.Context, domain string) (Record, bool, error) {
	if t == nil {
		return Record{}, false, nil
	}
	rec, ok := t.records[domain]
	return rec, ok, nil
}

// DefaultSource always answers with a fixed record re-keyed to the requested domain.
type DefaultSource struct {
	Record Record
}

func (s DefaultSource) Name() string { return "default" }

func (s DefaultSource) Lookup(_ context.Context, domain string) (Record, bool, error) {
	rec := s.Record
	rec.ID = ""
	rec.Domain = domain
	return rec, true, nil
}
