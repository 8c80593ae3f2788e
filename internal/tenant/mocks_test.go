package tenant

import (
	"context"
	"sync"
)

// fakeRepo is an in-memory Repository that counts calls.
type fakeRepo struct {
	mu          sync.Mutex
	records     []Record
	counts      map[string]map[Category]int
	fetchErr    error
	lookupErr   error
	fetchCalls  int
	lookupCalls int
}

func (f *fakeRepo) FetchTenants(ctx context.Context) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeRepo) FetchTenantByDomain(ctx context.Context, domain string) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupCalls++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, r := range f.records {
		if r.Domain == domain {
			rec := r
			return &rec, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) CountContent(ctx context.Context, tenantID string, category Category) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[tenantID][category], nil
}

func boolPtr(b bool) *bool { return &b }
