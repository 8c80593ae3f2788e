package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"campaignsites/internal/config"
	"campaignsites/internal/logging"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logging.Use(zap.New(core), nil)
	t.Cleanup(func() { logging.Use(zap.NewNop(), nil) })
	return logs
}

func TestMerge_PartialRecordIsTotal(t *testing.T) {
	d := BuiltinDefaults()
	partials := []Record{
		{Domain: "a.org", Title: "A"},
		{Domain: "b.org", Title: "B", Features: &FeatureRecord{News: boolPtr(false)}},
		{Domain: "c.org", Title: "C", Navigation: &NavigationRecord{Events: "Agenda"}},
		{Domain: "d.org", Title: "D", Features: &FeatureRecord{}, Navigation: &NavigationRecord{}},
	}

	for _, rec := range partials {
		cfg := Merge(rec, d)
		for _, c := range Categories {
			assert.NotEmpty(t, cfg.Labels.For(c), "%s label for %s", rec.Domain, c)
		}
		assert.NotEmpty(t, cfg.MainColor)
		assert.NotEmpty(t, cfg.SecondaryColor)
		assert.NotNil(t, cfg.Socials)
	}
}

func TestMerge_RemoteWinsPerField(t *testing.T) {
	d := BuiltinDefaults()
	rec := Record{
		Domain: "x.org",
		Title:  "X",
		Features: &FeatureRecord{
			News:        boolPtr(false),
			CustomPages: boolPtr(true),
		},
		Navigation: &NavigationRecord{Proposals: "Our Plan"},
	}

	cfg := Merge(rec, d)

	want := Flags{Proposals: true, News: false, Events: true, CustomPages: true}
	if diff := cmp.Diff(want, cfg.Flags); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Our Plan", cfg.Labels.Proposals)
	assert.Equal(t, d.Labels.News, cfg.Labels.News)
	assert.Empty(t, cfg.Warnings)
}

func TestMerge_InvalidColorFallsBackWithWarning(t *testing.T) {
	d := BuiltinDefaults()
	cfg := Merge(Record{Domain: "x.org", Title: "X", MainColor: "not-a-color", SecondaryColor: "#00FF00"}, d)

	assert.Equal(t, d.MainColor, cfg.MainColor)
	assert.Equal(t, "#00FF00", cfg.SecondaryColor)
	require.Len(t, cfg.Warnings, 1)
	assert.Equal(t, "mainColor", cfg.Warnings[0].Field)
	assert.Equal(t, "not-a-color", cfg.Warnings[0].Value)
}

func TestMerge_DropsBadSocials(t *testing.T) {
	cfg := Merge(Record{
		Domain: "x.org",
		Title:  "X",
		Socials: Socials{
			Twitter:   "https://twitter.com/x",
			Instagram: "instagram.com/x",
		},
	}, BuiltinDefaults())

	assert.Equal(t, map[string]string{"twitter": "https://twitter.com/x"}, cfg.Socials)
	require.Len(t, cfg.Warnings, 1)
	assert.Equal(t, "socials.instagram", cfg.Warnings[0].Field)
}

func TestResolve_BuildMode(t *testing.T) {
	repo := &fakeRepo{records: []Record{{ID: "t1", Domain: "a.org", Title: "A", MainColor: "#112233"}}}
	r := NewResolver(repo, nil, BuiltinDefaults())

	cfg, err := r.Resolve(context.Background(), "a.org", ModeBuild)
	require.NoError(t, err)
	assert.Equal(t, "t1", cfg.ID)
	assert.Equal(t, "#112233", cfg.MainColor)
	assert.Equal(t, "cms", cfg.Source)

	_, err = r.Resolve(context.Background(), "missing.org", ModeBuild)
	var unknown *UnknownDomainError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing.org", unknown.Domain)
	assert.Equal(t, []string{"cms"}, unknown.Tried)
}

func TestResolve_BuildModeSurfacesRemoteErrors(t *testing.T) {
	repo := &fakeRepo{lookupErr: errors.New("401 unauthorized")}
	r := NewResolver(repo, mustTable(t), BuiltinDefaults())

	_, err := r.Resolve(context.Background(), "vamosjuntos.org", ModeBuild)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401 unauthorized")
	var unknown *UnknownDomainError
	assert.False(t, errors.As(err, &unknown))
}

func TestResolve_PreviewFallbackChain(t *testing.T) {
	logs := observeLogs(t)
	repo := &fakeRepo{lookupErr: errors.New("network down")}
	r := NewResolver(repo, mustTable(t), BuiltinDefaults())

	names := []string{}
	for _, s := range r.Sources(ModePreview) {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"cms", "local-table", "default"}, names)

	cfg, err := r.Resolve(context.Background(), "frenteciudadano.org", ModePreview)
	require.NoError(t, err)
	assert.Equal(t, "local-table", cfg.Source)
	assert.Equal(t, "Frente Ciudadano", cfg.Title)
	assert.False(t, cfg.Flags.Events)
	assert.Equal(t, 1, logs.FilterMessageSnippet("network down").Len())

	cfg, err = r.Resolve(context.Background(), "brand-new.org", ModePreview)
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Source)
	assert.Equal(t, "brand-new.org", cfg.Domain)
	assert.Empty(t, cfg.ID)
}

func TestResolve_ColorWarningIsLogged(t *testing.T) {
	logs := observeLogs(t)
	repo := &fakeRepo{records: []Record{{Domain: "a.org", Title: "A", MainColor: "not-a-color"}}}
	r := NewResolver(repo, nil, BuiltinDefaults())

	cfg, err := r.Resolve(context.Background(), "a.org", ModeBuild)
	require.NoError(t, err)
	assert.Equal(t, BuiltinDefaults().MainColor, cfg.MainColor)

	warned := logs.FilterLevelExact(zapcore.WarnLevel).FilterMessageSnippet("mainColor")
	assert.Equal(t, 1, warned.Len())
}

func TestResolve_EmptyDomain(t *testing.T) {
	r := NewResolver(&fakeRepo{}, nil, BuiltinDefaults())
	_, err := r.Resolve(context.Background(), "  ", ModePreview)
	var unknown *UnknownDomainError
	assert.ErrorAs(t, err, &unknown)
}

func TestResolve_CustomChain(t *testing.T) {
	table, err := ParseTable([]byte("tenants:\n  - title: Local\n    domain: local.org\n"))
	require.NoError(t, err)

	r := NewResolverWithSources(BuiltinDefaults(), []Source{table}, nil)
	cfg, err := r.Resolve(context.Background(), "local.org", ModeBuild)
	require.NoError(t, err)
	assert.Equal(t, "Local", cfg.Title)

	_, err = r.Resolve(context.Background(), "local.org", ModePreview)
	assert.Error(t, err)
}

func TestLoadTable_Embedded(t *testing.T) {
	table := mustTable(t)
	assert.Equal(t, DefaultFallbackDomains, table.Domains())

	rec, ok, err := table.Lookup(context.Background(), "unidosporlaciudad.org")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Our Plan", rec.Navigation.Proposals)
}

func TestDefaultsFromConfig_RepairsBadColors(t *testing.T) {
	d := DefaultsFromConfig(config.TenantsConfig{DefaultMainColor: "red", DefaultSecondaryColor: "#ABCDEF"})
	assert.Equal(t, "#1D4ED8", d.MainColor)
	assert.Equal(t, "#ABCDEF", d.SecondaryColor)
	assert.Equal(t, "Proposals", d.Labels.Proposals)
	assert.True(t, d.Flags.Proposals)
	assert.False(t, d.Flags.CustomPages)
}

func TestParseCategory(t *testing.T) {
	for in, want := range map[string]Category{
		"proposals":    Proposals,
		"News":         News,
		"event":        Events,
		"custom-pages": CustomPages,
		"customPages":  CustomPages,
	} {
		got, err := ParseCategory(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseCategory("videos")
	assert.Error(t, err)
}

func mustTable(t *testing.T) *Table {
	t.Helper()
	table, err := LoadTable("")
	require.NoError(t, err)
	return table
}
