// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources queries bibliographic APIs (CrossRef, PubMed, arXiv) for
// bioelectrochemical-systems papers and adds new records to the catalog.
package sources

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/bes-catalog/internal/httputil"
	"github.com/pdiddy/bes-catalog/internal/metrics"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

// Source searches one bibliographic API.
type Source interface {
	Name() string
	Search(ctx context.Context, q Query) ([]types.Paper, error)
}

// Query holds the search parameters sent to every source.
type Query struct {
	Text string

	// FromYear and ToYear bound the publication year. Zero means open.
	FromYear int
	ToYear   int

	// MaxResults caps records per source. Zero uses the fetch config.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Text) == ""
}

const (
	defaultMaxResults = 50
	defaultUserAgent  = "bes-catalog/0.1"
	maxBodyBytes      = 10 << 20
)

// client is the HTTP plumbing shared by every source: one limiter per
// source spaces requests RequestDelay apart, and 429/503 responses are
// retried with backoff.
type client struct {
	name       string
	http       *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxResults int
	metrics    *metrics.Metrics
}

func newClient(name string, cfg types.FetchConfig, m *metrics.Metrics) client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}

	return client{
		name:       name,
		http:       &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		userAgent:  ua,
		maxResults: maxResults,
		metrics:    m,
	}
}

func (c client) limitFor(q Query) int {
	if q.MaxResults > 0 {
		return q.MaxResults
	}
	return c.maxResults
}

// get fetches url and returns the body of a 200 response.
func (c client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := httputil.DoWithRetry(ctx, c.http, req, 0)
	if err != nil {
		c.metrics.SourceRequest(c.name, "error")
		return nil, fmt.Errorf("%s request: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.SourceRequest(c.name, "error")
		return nil, fmt.Errorf("reading %s response: %w", c.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.metrics.SourceRequest(c.name, fmt.Sprintf("http_%d", resp.StatusCode))
		return nil, fmt.Errorf("%s returned HTTP %d: %s", c.name, resp.StatusCode, truncate(string(body), 200))
	}
	c.metrics.SourceRequest(c.name, "ok")
	return body, nil
}

// New returns the source with the given name.
func New(name string, cfg types.FetchConfig, m *metrics.Metrics) (Source, error) {
	switch name {
	case types.SourceCrossRef:
		return NewCrossRef(cfg, m), nil
	case types.SourcePubMed:
		return NewPubMed(cfg, m), nil
	case types.SourceArxiv:
		return NewArxiv(cfg, m), nil
	default:
		return nil, fmt.Errorf("unknown source %q", name)
	}
}

// FromConfig returns the sources listed in cfg.Sources, in order. An empty
// list enables all three.
func FromConfig(cfg types.FetchConfig, m *metrics.Metrics) ([]Source, error) {
	names := cfg.Sources
	if len(names) == 0 {
		names = []string{types.SourceCrossRef, types.SourcePubMed, types.SourceArxiv}
	}
	out := make([]Source, 0, len(names))
	for _, n := range names {
		s, err := New(strings.ToLower(strings.TrimSpace(n)), cfg, m)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

var (
	inlineTagPattern = regexp.MustCompile(`</?(?:jats:|mml:)?(?:sup|sub|i|b|italic|bold|em|strong|sc)\b[^>]*>`)
	tagPattern       = regexp.MustCompile(`<[^>]+>`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// cleanText strips markup (JATS, inline HTML), unescapes entities and
// collapses whitespace. Inline tags are removed without a gap so that
// "m<sup>2</sup>" reads "m2".
func cleanText(s string) string {
	s = inlineTagPattern.ReplaceAllString(s, "")
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
