// Package visibility decides which content categories get static pages.
// A category is generated only when its flag is on and it has content.
package visibility

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"campaignsites/internal/logging"
	"campaignsites/internal/tenant"
)

// Counts holds the number of content items per category for one tenant.
type Counts map[tenant.Category]int

// ShouldGenerate reports whether pages for category should be generated.
func ShouldGenerate(cfg *tenant.Config, counts Counts, category tenant.Category) bool {
	if cfg == nil {
		return false
	}
	return cfg.Flags.Enabled(category) && counts[category] > 0
}

// Counter counts content items; tenant.Repository satisfies it.
type Counter interface {
	CountContent(ctx context.Context, tenantID string, category tenant.Category) (int, error)
}

// Decision is the gate outcome for one category.
type Decision struct {
	Category tenant.Category `json:"category"`
	Label    string          `json:"label"`
	Enabled  bool            `json:"enabled"`
	Count    int             `json:"count"`
	Generate bool            `json:"generate"`
}

// Plan is the set of gate decisions for one tenant, in navigation order.
type Plan struct {
	Domain    string     `json:"domain"`
	Decisions []Decision `json:"decisions"`
}

// Generate reports the decision for category.
func (p Plan) Generate(category tenant.Category) bool {
	for _, d := range p.Decisions {
		if d.Category == category {
			return d.Generate
		}
	}
	return false
}

// Map returns category -> generate.
func (p Plan) Map() map[string]bool {
	out := make(map[string]bool, len(p.Decisions))
	for _, d := range p.Decisions {
		out[string(d.Category)] = d.Generate
	}
	return out
}

// BuildPlan counts content for every enabled category concurrently and
// applies the gate. Disabled categories are not queried.
// A tenant without an ID (a synthesized preview config) has no content.
func BuildPlan(ctx context.Context, counter Counter, cfg *tenant.Config) (Plan, error) {
	if cfg == nil {
		return Plan{}, fmt.Errorf("nil tenant config")
	}

	counts := make(Counts, len(tenant.Categories))
	if cfg.ID != "" && counter != nil {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		for _, c := range tenant.Categories {
			if !cfg.Flags.Enabled(c) {
				continue
			}
			g.Go(func() error {
				n, err := counter.CountContent(gctx, cfg.ID, c)
				if err != nil {
					return fmt.Errorf("count %s: %w", c, err)
				}
				mu.Lock()
				counts[c] = n
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Plan{}, err
		}
	}

	return Evaluate(cfg, counts), nil
}

// Evaluate applies the gate to known counts.
func Evaluate(cfg *tenant.Config, counts Counts) Plan {
	plan := Plan{Domain: cfg.Domain}
	for _, c := range tenant.Categories {
		d := Decision{
			Category: c,
			Label:    cfg.Labels.For(c),
			Enabled:  cfg.Flags.Enabled(c),
			Count:    counts[c],
			Generate: ShouldGenerate(cfg, counts, c),
		}
		logging.VisibilityDebug("%s/%s: enabled=%v count=%d generate=%v", cfg.Domain, c, d.Enabled, d.Count, d.Generate)
		plan.Decisions = append(plan.Decisions, d)
	}
	return plan
}
