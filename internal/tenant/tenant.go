// Package tenant models campaign sites and resolves them into total,
// build-ready configurations.
//
// A Record is what a source returns: any field may be missing. A Config is
// what the rest of sitectl consumes: every flag and label has a value.
package tenant

import (
	"context"
	"fmt"
	"strings"
)

// Category is a content category a tenant may publish.
type Category string

const (
	Proposals   Category = "proposals"
	News        Category = "news"
	Events      Category = "events"
	CustomPages Category = "customPages"
)

// Categories lists every content category in navigation order.
var Categories = []Category{Proposals, News, Events, CustomPages}

// ParseCategory accepts the canonical name or a few common spellings.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "proposals", "proposal":
		return Proposals, nil
	case "news", "newspost", "posts":
		return News, nil
	case "events", "event":
		return Events, nil
	case "custompages", "custom-pages", "custom_pages", "pages":
		return CustomPages, nil
	}
	return "", fmt.Errorf("unknown content category %q", s)
}

// Socials holds optional social-media profile URLs.
type Socials struct {
	Twitter   string `json:"twitter,omitempty" yaml:"twitter,omitempty"`
	Facebook  string `json:"facebook,omitempty" yaml:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty" yaml:"instagram,omitempty"`
	YouTube   string `json:"youtube,omitempty" yaml:"youtube,omitempty"`
	TikTok    string `json:"tiktok,omitempty" yaml:"tiktok,omitempty"`
}

// All returns the populated social URLs keyed by network.
func (s Socials) All() map[string]string {
	out := make(map[string]string)
	for k, v := range map[string]string{
		"twitter":   s.Twitter,
		"facebook":  s.Facebook,
		"instagram": s.Instagram,
		"youtube":   s.YouTube,
		"tiktok":    s.TikTok,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// FeatureRecord is the possibly-partial feature flag set from a source.
// A nil field means the source did not say.
type FeatureRecord struct {
	Proposals   *bool `json:"proposals,omitempty" yaml:"proposals,omitempty"`
	News        *bool `json:"news,omitempty" yaml:"news,omitempty"`
	Events      *bool `json:"events,omitempty" yaml:"events,omitempty"`
	CustomPages *bool `json:"customPages,omitempty" yaml:"custom_pages,omitempty"`
}

// NavigationRecord is the possibly-partial navigation label set from a source.
// An empty string means the source did not say.
type NavigationRecord struct {
	Proposals   string `json:"proposals,omitempty" yaml:"proposals,omitempty"`
	News        string `json:"news,omitempty" yaml:"news,omitempty"`
	Events      string `json:"events,omitempty" yaml:"events,omitempty"`
	CustomPages string `json:"customPages,omitempty" yaml:"custom_pages,omitempty"`
}

// Record is a tenant as stored in a configuration source.
type Record struct {
	ID             string            `json:"_id,omitempty" yaml:"id,omitempty"`
	Title          string            `json:"title" yaml:"title"`
	Domain         string            `json:"domain" yaml:"domain"`
	Location       string            `json:"location,omitempty" yaml:"location,omitempty"`
	MainColor      string            `json:"mainColor,omitempty" yaml:"main_color,omitempty"`
	SecondaryColor string            `json:"secondaryColor,omitempty" yaml:"secondary_color,omitempty"`
	Socials        Socials           `json:"socials,omitempty" yaml:"socials,omitempty"`
	Logo           string            `json:"logo,omitempty" yaml:"logo,omitempty"`
	HeroImage      string            `json:"heroImage,omitempty" yaml:"hero_image,omitempty"`
	Features       *FeatureRecord    `json:"features,omitempty" yaml:"features,omitempty"`
	Navigation     *NavigationRecord `json:"navigation,omitempty" yaml:"navigation,omitempty"`
}

// Flags is the total feature flag set.
type Flags struct {
	Proposals   bool `json:"proposals"`
	News        bool `json:"news"`
	Events      bool `json:"events"`
	CustomPages bool `json:"customPages"`
}

// Enabled reports the flag for a category.
func (f Flags) Enabled(c Category) bool {
	switch c {
	case Proposals:
		return f.Proposals
	case News:
		return f.News
	case Events:
		return f.Events
	case CustomPages:
		return f.CustomPages
	}
	return false
}

// Labels is the total navigation label set.
type Labels struct {
	Proposals   string `json:"proposals"`
	News        string `json:"news"`
	Events      string `json:"events"`
	CustomPages string `json:"customPages"`
}

// For returns the label for a category.
func (l Labels) For(c Category) string {
	switch c {
	case Proposals:
		return l.Proposals
	case News:
		return l.News
	case Events:
		return l.Events
	case CustomPages:
		return l.CustomPages
	}
	return ""
}

// Config is a resolved tenant configuration. Every field the page generator
// branches on is populated.
type Config struct {
	ID             string            `json:"id,omitempty"`
	Domain         string            `json:"domain"`
	Title          string            `json:"title"`
	Location       string            `json:"location"`
	MainColor      string            `json:"mainColor"`
	SecondaryColor string            `json:"secondaryColor"`
	Socials        map[string]string `json:"socials"`
	Logo           string            `json:"logo,omitempty"`
	HeroImage      string            `json:"heroImage,omitempty"`
	Flags          Flags             `json:"flags"`
	Labels         Labels            `json:"labels"`

	// Source names the configuration source that supplied the record.
	Source string `json:"source"`

	// Warnings are the validation problems recovered during resolution.
	Warnings []ValidationWarning `json:"warnings,omitempty"`
}

// Repository is the read interface of the remote content store.
type Repository interface {
	FetchTenants(ctx context.Context) ([]Record, error)
	FetchTenantByDomain(ctx context.Context, domain string) (*Record, error)
	CountContent(ctx context.Context, tenantID string, category Category) (int, error)
}

// UnknownDomainError reports a domain no configuration source could resolve.
type UnknownDomainError struct {
	Domain string
	Tried  []string
}

func (e *UnknownDomainError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("unknown domain %q", e.Domain)
	}
	return fmt.Sprintf("unknown domain %q (tried: %s)", e.Domain, strings.Join(e.Tried, ", "))
}

// ValidationWarning is a recovered problem with one field of a record.
type ValidationWarning struct {
	Domain  string `json:"domain"`
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (w ValidationWarning) String() string {
	if w.Value != "" {
		return fmt.Sprintf("%s: %s %q: %s", w.Domain, w.Field, w.Value, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Domain, w.Field, w.Message)
}
