// Package rest implements [symbols.Searcher] against the symbol-search
// service's JSON API.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/voxboard/voxboard/pkg/provider/symbols"
)

// Compile-time interface assertion.
var _ symbols.Searcher = (*Provider)(nil)

const (
	searchEndpoint = "/api/symbols/search"

	// defaultTimeout bounds each lookup so a stalled service degrades to a
	// missing thumbnail instead of a hang.
	defaultTimeout = 10 * time.Second
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Defaults to 10 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements [symbols.Searcher] backed by the symbol-search REST API.
// All methods are safe for concurrent use.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Provider targeting the symbol service at baseURL.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("symbols: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// searchResponse is the JSON body returned by the search endpoint.
type searchResponse struct {
	Symbols []symbols.Symbol `json:"symbols"`
}

// Search implements [symbols.Searcher].
func (p *Provider) Search(ctx context.Context, query string, keywords []string, limit int) ([]symbols.Symbol, error) {
	if limit <= 0 {
		limit = 1
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	if len(keywords) > 0 {
		kw, err := json.Marshal(keywords)
		if err != nil {
			return nil, fmt.Errorf("symbols: encode keywords: %w", err)
		}
		q.Set("keywords", string(kw))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+searchEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("symbols: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("symbols: search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("symbols: service returned unexpected status %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("symbols: decode response: %w", err)
	}
	return sr.Symbols, nil
}
