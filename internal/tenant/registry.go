package tenant

import (
	"context"
	"sort"
	"strings"
	"sync"

	"campaignsites/internal/logging"
)

// DefaultFallbackDomains is used when the content store cannot be queried
// and no fallback list is configured.
var DefaultFallbackDomains = []string{
	"vamosjuntos.org",
	"frenteciudadano.org",
	"unidosporlaciudad.org",
}

// Registry discovers tenants once per instance and serves the cached list.
// Construct one per process and pass it to consumers; Reset clears the cache.
type Registry struct {
	repo     Repository
	fallback []string

	mu           sync.Mutex
	loaded       bool
	domains      []string
	records      []Record
	usedFallback bool
	lastErr      error
}

// NewRegistry creates a registry backed by repo. An empty fallback selects
// DefaultFallbackDomains.
func NewRegistry(repo Repository, fallback []string) *Registry {
	if len(fallback) == 0 {
		fallback = DefaultFallbackDomains
	}
	fb := make([]string, len(fallback))
	copy(fb, fallback)
	return &Registry{repo: repo, fallback: fb}
}

// Discover returns the known tenant domains ordered by title.
// The first call queries the repository; later calls return the cached list.
// On query failure or an empty result the fallback list is returned.
func (r *Registry) Discover(ctx context.Context) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		r.load(ctx)
	}
	out := make([]string, len(r.domains))
	copy(out, r.domains)
	return out
}

// Records returns the tenant records behind the last discovery. It is empty
// when the fallback list was used.
func (r *Registry) Records(ctx context.Context) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		r.load(ctx)
	}
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// UsedFallback reports whether discovery fell back to the hardcoded list.
func (r *Registry) UsedFallback() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usedFallback
}

// Err returns the repository error that triggered the fallback, if any.
func (r *Registry) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Reset drops the cached discovery result.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = false
	r.domains = nil
	r.records = nil
	r.usedFallback = false
	r.lastErr = nil
}

// load must be called with r.mu held.
func (r *Registry) load(ctx context.Context) {
	r.loaded = true

	records, err := r.query(ctx)
	if err != nil || len(records) == 0 {
		if err != nil {
			logging.RegistryWarn("Tenant discovery failed, using fallback list: %v", err)
		} else {
			logging.RegistryWarn("Content store returned no tenants, using fallback list")
		}
		r.lastErr = err
		r.usedFallback = true
		r.records = nil
		r.domains = make([]string, len(r.fallback))
		copy(r.domains, r.fallback)
		logging.Registry("Fallback domains: %s", strings.Join(r.domains, ", "))
		return
	}

	r.records = records
	r.domains = make([]string, 0, len(records))
	for _, rec := range records {
		r.domains = append(r.domains, rec.Domain)
		logging.Registry("Discovered tenant: %s (%s) - %s", rec.Title, rec.Domain, rec.Location)
	}
	logging.Registry("Discovered %d tenants", len(r.domains))
}

func (r *Registry) query(ctx context.Context) ([]Record, error) {
	if r.repo == nil {
		return nil, nil
	}
	all, err := r.repo.FetchTenants(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	records := make([]Record, 0, len(all))
	for _, rec := range all {
		rec.Domain = strings.TrimSpace(rec.Domain)
		if rec.Domain == "" || seen[rec.Domain] {
			continue
		}
		seen[rec.Domain] = true
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Title < records[j].Title
	})
	return records, nil
}
