package tenant

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"campaignsites/internal/config"
	"campaignsites/internal/logging"
)

// Mode selects the fallback chain used by the Resolver.
type Mode int

const (
	// ModeBuild consults the content store only; a miss is fatal.
	ModeBuild Mode = iota
	// ModePreview falls back to the local table, then the default tenant.
	ModePreview
)

func (m Mode) String() string {
	if m == ModePreview {
		return "preview"
	}
	return "build"
}

// Defaults fills gaps left by partial records.
type Defaults struct {
	MainColor      string
	SecondaryColor string
	Flags          Flags
	Labels         Labels

	// Tenant is the last-resort record for preview contexts.
	Tenant Record
}

// BuiltinDefaults returns the defaults used when no configuration overrides them.
func BuiltinDefaults() Defaults {
	return DefaultsFromConfig(config.DefaultConfig().Tenants)
}

// DefaultsFromConfig derives resolver defaults from the tenants config section.
func DefaultsFromConfig(tc config.TenantsConfig) Defaults {
	d := Defaults{
		MainColor:      tc.DefaultMainColor,
		SecondaryColor: tc.DefaultSecondaryColor,
		Flags: Flags{
			Proposals:   true,
			News:        true,
			Events:      true,
			CustomPages: false,
		},
		Labels: Labels{
			Proposals:   orDefault(tc.Labels.Proposals, "Proposals"),
			News:        orDefault(tc.Labels.News, "News"),
			Events:      orDefault(tc.Labels.Events, "Events"),
			CustomPages: orDefault(tc.Labels.CustomPages, "More"),
		},
	}
	if !config.IsHexColor(d.MainColor) {
		d.MainColor = "#1D4ED8"
	}
	if !config.IsHexColor(d.SecondaryColor) {
		d.SecondaryColor = "#F59E0B"
	}
	d.Tenant = Record{
		Title:    "Campaign Site",
		Location: "",
	}
	return d
}

// Resolver turns a domain into a total Config by walking an ordered list of sources.
type Resolver struct {
	defaults Defaults
	chains   map[Mode][]Source
}

// NewResolver wires the standard chains: build = [cms],
// preview = [cms, local table, default tenant].
func NewResolver(repo Repository, table *Table, defaults Defaults) *Resolver {
	remote := RemoteSource{Repo: repo}
	preview := []Source{remote}
	if table != nil {
		preview = append(preview, table)
	}
	preview = append(preview, DefaultSource{Record: defaults.Tenant})
	return NewResolverWithSources(defaults, []Source{remote}, preview)
}

// NewResolverWithSources builds a resolver with explicit chains.
func NewResolverWithSources(defaults Defaults, build, preview []Source) *Resolver {
	return &Resolver{
		defaults: defaults,
		chains: map[Mode][]Source{
			ModeBuild:   build,
			ModePreview: preview,
		},
	}
}

// Sources returns the chain consulted for mode, in order.
func (r *Resolver) Sources(mode Mode) []Source {
	chain := r.chains[mode]
	out := make([]Source, len(chain))
	copy(out, chain)
	return out
}

// Defaults returns the resolver's defaults.
func (r *Resolver) Defaults() Defaults {
	return r.defaults
}

// Resolve returns the total configuration for domain.
//
// In build mode a source error is returned as-is and a miss across the chain
// is an *UnknownDomainError. In preview mode source errors are logged and the
// next source is tried.
func (r *Resolver) Resolve(ctx context.Context, domain string, mode Mode) (*Config, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, &UnknownDomainError{Domain: domain}
	}

	var tried []string
	for _, src := range r.chains[mode] {
		tried = append(tried, src.Name())
		rec, ok, err := src.Lookup(ctx, domain)
		if err != nil {
			if mode == ModeBuild {
				return nil, fmt.Errorf("resolve %s via %s: %w", domain, src.Name(), err)
			}
			logging.TenantWarn("Source %s failed for %s, trying next: %v", src.Name(), domain, err)
			continue
		}
		if !ok {
			logging.TenantDebug("Source %s has no record for %s", src.Name(), domain)
			continue
		}

		cfg := Merge(rec, r.defaults)
		cfg.Domain = domain
		cfg.Source = src.Name()
		for _, w := range cfg.Warnings {
			logging.TenantWarn("Validation warning: %s", w)
		}
		logging.TenantDebug("Resolved %s from %s (%s mode)", domain, src.Name(), mode)
		return cfg, nil
	}

	return nil, &UnknownDomainError{Domain: domain, Tried: tried}
}

// Merge overlays rec onto d field by field. Invalid fields are replaced by
// defaults and reported as warnings.
func Merge(rec Record, d Defaults) *Config {
	domain := strings.TrimSpace(rec.Domain)
	cfg := &Config{
		ID:        rec.ID,
		Domain:    domain,
		Title:     strings.TrimSpace(rec.Title),
		Location:  strings.TrimSpace(rec.Location),
		Logo:      rec.Logo,
		HeroImage: rec.HeroImage,
		Flags:     d.Flags,
		Labels:    d.Labels,
		Socials:   map[string]string{},
	}

	warn := func(field, value, msg string) {
		cfg.Warnings = append(cfg.Warnings, ValidationWarning{Domain: domain, Field: field, Value: value, Message: msg})
	}

	if cfg.Title == "" {
		if d.Tenant.Title != "" {
			cfg.Title = d.Tenant.Title
		} else {
			cfg.Title = domain
		}
		warn("title", "", "missing, using default")
	}

	cfg.MainColor = pickColor(rec.MainColor, d.MainColor, "mainColor", warn)
	cfg.SecondaryColor = pickColor(rec.SecondaryColor, d.SecondaryColor, "secondaryColor", warn)

	socials := rec.Socials.All()
	for _, network := range sortedKeys(socials) {
		raw := socials[network]
		if !isHTTPURL(raw) {
			warn("socials."+network, raw, "not an absolute http(s) URL, dropped")
			continue
		}
		cfg.Socials[network] = raw
	}

	if f := rec.Features; f != nil {
		overlayBool(&cfg.Flags.Proposals, f.Proposals)
		overlayBool(&cfg.Flags.News, f.News)
		overlayBool(&cfg.Flags.Events, f.Events)
		overlayBool(&cfg.Flags.CustomPages, f.CustomPages)
	}

	if n := rec.Navigation; n != nil {
		overlayString(&cfg.Labels.Proposals, n.Proposals)
		overlayString(&cfg.Labels.News, n.News)
		overlayString(&cfg.Labels.Events, n.Events)
		overlayString(&cfg.Labels.CustomPages, n.CustomPages)
	}

	return cfg
}

func pickColor(value, fallback, field string, warn func(field, value, msg string)) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return fallback
	}
	if !config.IsHexColor(v) {
		warn(field, value, "not a #RRGGBB color, using default "+fallback)
		return fallback
	}
	return v
}

func overlayBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func overlayString(dst *string, v string) {
	if s := strings.TrimSpace(v); s != "" {
		*dst = s
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
