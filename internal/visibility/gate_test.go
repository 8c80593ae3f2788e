package visibility

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignsites/internal/tenant"
)

func configWith(flag bool) *tenant.Config {
	return &tenant.Config{
		ID:     "t1",
		Domain: "a.org",
		Flags:  tenant.Flags{Proposals: flag, News: flag, Events: flag, CustomPages: flag},
		Labels: tenant.Labels{Proposals: "P", News: "N", Events: "E", CustomPages: "C"},
	}
}

func TestShouldGenerate_TruthTable(t *testing.T) {
	for _, c := range tenant.Categories {
		for _, flag := range []bool{false, true} {
			for _, count := range []int{0, 1, 42} {
				t.Run(fmt.Sprintf("%s/flag=%v/count=%d", c, flag, count), func(t *testing.T) {
					got := ShouldGenerate(configWith(flag), Counts{c: count}, c)
					want := flag && count > 0
					assert.Equal(t, want, got)
				})
			}
		}
	}
}

func TestShouldGenerate_NilConfigAndMissingCount(t *testing.T) {
	assert.False(t, ShouldGenerate(nil, Counts{tenant.News: 3}, tenant.News))
	assert.False(t, ShouldGenerate(configWith(true), nil, tenant.News))
}

type countFunc func(ctx context.Context, id string, c tenant.Category) (int, error)

func (f countFunc) CountContent(ctx context.Context, id string, c tenant.Category) (int, error) {
	return f(ctx, id, c)
}

func TestBuildPlan_QueriesOnlyEnabledCategories(t *testing.T) {
	var calls int32
	counter := countFunc(func(_ context.Context, id string, c tenant.Category) (int, error) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "t1", id)
		if c == tenant.News {
			return 5, nil
		}
		return 0, nil
	})

	cfg := configWith(true)
	cfg.Flags.Events = false

	plan, err := BuildPlan(context.Background(), counter, cfg)
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.True(t, plan.Generate(tenant.News))
	assert.False(t, plan.Generate(tenant.Proposals))
	assert.False(t, plan.Generate(tenant.Events))
	assert.Equal(t, map[string]bool{"proposals": false, "news": true, "events": false, "customPages": false}, plan.Map())
	require.Len(t, plan.Decisions, 4)
	assert.Equal(t, "N", plan.Decisions[1].Label)
}

func TestBuildPlan_NoIDMeansNoContent(t *testing.T) {
	cfg := configWith(true)
	cfg.ID = ""
	counter := countFunc(func(context.Context, string, tenant.Category) (int, error) {
		t.Fatal("counter must not be called")
		return 0, nil
	})

	plan, err := BuildPlan(context.Background(), counter, cfg)
	require.NoError(t, err)
	for _, c := range tenant.Categories {
		assert.False(t, plan.Generate(c))
	}
}

func TestBuildPlan_PropagatesCountErrors(t *testing.T) {
	counter := countFunc(func(_ context.Context, _ string, c tenant.Category) (int, error) {
		if c == tenant.Events {
			return 0, errors.New("rate limited")
		}
		return 1, nil
	})

	_, err := BuildPlan(context.Background(), counter, configWith(true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}
