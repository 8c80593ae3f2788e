// Package cms is the read-only client for the headless content store.
// It speaks the Sanity-style HTTP query API:
//
//	GET {base}/v{apiVersion}/data/query/{dataset}?query=<GROQ>&$param=<json>
//
// and maps campaign documents to tenant.Record values.
package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"campaignsites/internal/logging"
	"campaignsites/internal/tenant"
)

// DocumentTypes maps content categories to document types in the store.
var DocumentTypes = map[tenant.Category]string{
	tenant.Proposals:   "proposal",
	tenant.News:        "newsPost",
	tenant.Events:      "event",
	tenant.CustomPages: "customPage",
}

const tenantProjection = `{
  _id, title, domain, location, mainColor, secondaryColor, socials,
  "logo": logo.asset._ref,
  "heroImage": heroImage.asset._ref,
  features, navigation
}`

const (
	queryAllTenants   = `*[_type == "campaign" && defined(domain) && domain != ""] | order(title asc) ` + tenantProjection
	queryTenantDomain = `*[_type == "campaign" && domain == $domain][0] ` + tenantProjection
	queryCount        = `count(*[_type == $type && campaign._ref == $tenant])`
)

// Options configures an HTTPClient.
type Options struct {
	BaseURL    string // e.g. https://<project>.api.sanity.io
	Dataset    string
	APIVersion string
	Token      string
	Timeout    time.Duration
	Retries    int
}

// HTTPClient queries the content store over HTTP.
type HTTPClient struct {
	http    *resty.Client
	dataset string
	version string
}

type queryResponse struct {
	Result json.RawMessage `json:"result"`
	Ms     int             `json:"ms"`
}

type queryError struct {
	Error struct {
		Description string `json:"description"`
		Type        string `json:"type"`
	} `json:"error"`
	Message string `json:"message"`
}

func (e *queryError) text() string {
	if e.Error.Description != "" {
		return e.Error.Description
	}
	return e.Message
}

// NewHTTPClient creates a client for the query API.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("content store URL not configured (set cms.project_id or SANITY_PROJECT_ID)")
	}
	if opts.Dataset == "" {
		opts.Dataset = "production"
	}
	if opts.APIVersion == "" {
		opts.APIVersion = "2024-01-01"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept", "application/json")
	if opts.Token != "" {
		client.SetAuthToken(opts.Token)
	}

	return &HTTPClient{
		http:    client,
		dataset: opts.Dataset,
		version: strings.TrimPrefix(opts.APIVersion, "v"),
	}, nil
}

// FetchTenants returns every campaign with a non-empty domain, ordered by title.
func (c *HTTPClient) FetchTenants(ctx context.Context) ([]tenant.Record, error) {
	var records []tenant.Record
	if err := c.query(ctx, queryAllTenants, nil, &records); err != nil {
		return nil, fmt.Errorf("fetch tenants: %w", err)
	}
	logging.CMSDebug("Fetched %d tenant records", len(records))
	return records, nil
}

// FetchTenantByDomain returns the campaign for domain, or nil if none exists.
func (c *HTTPClient) FetchTenantByDomain(ctx context.Context, domain string) (*tenant.Record, error) {
	var rec *tenant.Record
	if err := c.query(ctx, queryTenantDomain, map[string]string{"domain": domain}, &rec); err != nil {
		return nil, fmt.Errorf("fetch tenant %s: %w", domain, err)
	}
	if rec == nil {
		logging.CMSDebug("No tenant record for %s", domain)
	}
	return rec, nil
}

// CountContent counts the documents of a category referencing the tenant.
func (c *HTTPClient) CountContent(ctx context.Context, tenantID string, category tenant.Category) (int, error) {
	docType, ok := DocumentTypes[category]
	if !ok {
		return 0, fmt.Errorf("no document type for category %q", category)
	}
	var n int
	params := map[string]string{"type": docType, "tenant": tenantID}
	if err := c.query(ctx, queryCount, params, &n); err != nil {
		return 0, fmt.Errorf("count %s for %s: %w", category, tenantID, err)
	}
	return n, nil
}

// Ping runs a trivial query to check connectivity and credentials.
func (c *HTTPClient) Ping(ctx context.Context) error {
	var n int
	return c.query(ctx, `count(*[_type == "campaign"][0...1])`, nil, &n)
}

func (c *HTTPClient) query(ctx context.Context, groq string, params map[string]string, out interface{}) error {
	timer := logging.StartTimer(logging.CategoryCMS, "content query")
	defer timer.Stop()

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("query", groq).
		SetResult(&queryResponse{}).
		SetError(&queryError{})
	for k, v := range params {
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}
		req.SetQueryParam("$"+k, string(encoded))
	}

	resp, err := req.Get(fmt.Sprintf("/v%s/data/query/%s", c.version, c.dataset))
	if err != nil {
		logging.CMSError("Content query failed: %v", err)
		return err
	}
	if resp.IsError() {
		msg := resp.Status()
		if qe, ok := resp.Error().(*queryError); ok && qe.text() != "" {
			msg = fmt.Sprintf("%s: %s", resp.Status(), qe.text())
		}
		logging.CMSError("Content query rejected: %s", msg)
		return fmt.Errorf("content store returned %s", msg)
	}

	qr, ok := resp.Result().(*queryResponse)
	if !ok || len(qr.Result) == 0 {
		return fmt.Errorf("content store returned an empty response")
	}
	if err := json.Unmarshal(qr.Result, out); err != nil {
		return fmt.Errorf("failed to decode query result: %w", err)
	}
	logging.CMSDebug("Query answered in %dms", qr.Ms)
	return nil
}
