package cms

import (
	"context"
	"sort"
	"strings"
	"sync"

	"campaignsites/internal/tenant"
)

// MemoryClient is an in-process content store used for tests and offline runs.
type MemoryClient struct {
	mu      sync.RWMutex
	records []tenant.Record
	counts  map[string]map[tenant.Category]int
	err     error
}

// NewMemoryClient creates a store holding records.
func NewMemoryClient(records ...tenant.Record) *MemoryClient {
	m := &MemoryClient{counts: make(map[string]map[tenant.Category]int)}
	m.records = append(m.records, records...)
	return m
}

// SetCount sets the number of items of category for tenantID.
func (m *MemoryClient) SetCount(tenantID string, category tenant.Category, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[tenantID] == nil {
		m.counts[tenantID] = make(map[tenant.Category]int)
	}
	m.counts[tenantID][category] = n
}

// FailWith makes every subsequent call return err (nil clears it).
func (m *MemoryClient) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemoryClient) FetchTenants(ctx context.Context) ([]tenant.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]tenant.Record, 0, len(m.records))
	for _, r := range m.records {
		if strings.TrimSpace(r.Domain) != "" {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *MemoryClient) FetchTenantByDomain(ctx context.Context, domain string) (*tenant.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, r := range m.records {
		if r.Domain == domain {
			rec := r
			return &rec, nil
		}
	}
	return nil, nil
}

func (m *MemoryClient) CountContent(ctx context.Context, tenantID string, category tenant.Category) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return 0, m.err
	}
	return m.counts[tenantID][category], nil
}
