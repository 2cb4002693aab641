// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/bes-catalog/internal/metrics"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

// crossrefAPIBase is the CrossRef works endpoint. Declared as a var so
// tests can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org/works"

// CrossRef queries the CrossRef REST API.
type CrossRef struct {
	client
	mailto string
}

// NewCrossRef returns a CrossRef source. cfg.CrossRefMailto, when set, is
// sent so requests use the polite pool.
func NewCrossRef(cfg types.FetchConfig, m *metrics.Metrics) *CrossRef {
	return &CrossRef{client: newClient(types.SourceCrossRef, cfg, m), mailto: cfg.CrossRefMailto}
}

// Name returns the source identifier.
func (c *CrossRef) Name() string { return types.SourceCrossRef }

// Search returns journal articles matching q. Records without a title are
// dropped; JATS markup in abstracts is stripped.
func (c *CrossRef) Search(ctx context.Context, q Query) ([]types.Paper, error) {
	if q.IsEmpty() {
		return nil, fmt.Errorf("empty CrossRef query")
	}

	v := url.Values{}
	v.Set("query", q.Text)
	v.Set("rows", strconv.Itoa(c.limitFor(q)))
	v.Set("select", "DOI,title,abstract,author,container-title,issued,subject,URL")

	filters := []string{"type:journal-article"}
	if q.FromYear > 0 {
		filters = append(filters, fmt.Sprintf("from-pub-date:%d", q.FromYear))
	}
	if q.ToYear > 0 {
		filters = append(filters, fmt.Sprintf("until-pub-date:%d", q.ToYear))
	}
	v.Set("filter", strings.Join(filters, ","))
	if c.mailto != "" {
		v.Set("mailto", c.mailto)
	}

	body, err := c.get(ctx, crossrefAPIBase+"?"+v.Encode())
	if err != nil {
		return nil, err
	}

	var resp crossrefResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing CrossRef response: %w", err)
	}

	var papers []types.Paper
	for _, it := range resp.Message.Items {
		if p, ok := it.paper(); ok {
			papers = append(papers, p)
		}
	}
	return papers, nil
}

// CrossRef JSON structures.
type crossrefResponse struct {
	Message struct {
		Items []crossrefItem `json:"items"`
	} `json:"message"`
}

type crossrefItem struct {
	DOI            string           `json:"DOI"`
	Title          []string         `json:"title"`
	Abstract       string           `json:"abstract"`
	Author         []crossrefAuthor `json:"author"`
	ContainerTitle []string         `json:"container-title"`
	Issued         struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"issued"`
	Subject []string `json:"subject"`
	URL     string   `json:"URL"`
}

type crossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

func (it crossrefItem) paper() (types.Paper, bool) {
	if len(it.Title) == 0 || cleanText(it.Title[0]) == "" {
		return types.Paper{}, false
	}

	p := types.Paper{
		DOI:       strings.ToLower(strings.TrimSpace(it.DOI)),
		Title:     cleanText(it.Title[0]),
		Abstract:  jatsAbstract(it.Abstract),
		Keywords:  strings.Join(it.Subject, "; "),
		Source:    types.SourceCrossRef,
		SourceURL: it.URL,
	}
	if len(it.ContainerTitle) > 0 {
		p.Journal = cleanText(it.ContainerTitle[0])
	}
	if len(it.Issued.DateParts) > 0 && len(it.Issued.DateParts[0]) > 0 {
		p.Year = it.Issued.DateParts[0][0]
	}
	for _, a := range it.Author {
		name := strings.TrimSpace(strings.TrimSpace(a.Given) + " " + strings.TrimSpace(a.Family))
		if name == "" {
			name = strings.TrimSpace(a.Name)
		}
		if name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	return p, true
}

// jatsAbstract strips JATS markup and the leading "Abstract" heading
// CrossRef abstracts usually carry.
func jatsAbstract(s string) string {
	s = cleanText(s)
	if rest, ok := strings.CutPrefix(s, "Abstract "); ok {
		return rest
	}
	return s
}
