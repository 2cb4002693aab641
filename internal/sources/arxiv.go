// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/pdiddy/bes-catalog/internal/metrics"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// Arxiv queries the arXiv Atom API.
type Arxiv struct {
	client
}

// NewArxiv returns an arXiv source.
func NewArxiv(cfg types.FetchConfig, m *metrics.Metrics) *Arxiv {
	return &Arxiv{client: newClient(types.SourceArxiv, cfg, m)}
}

// Name returns the source identifier.
func (b *Arxiv) Name() string { return types.SourceArxiv }

// Search queries arXiv and returns entries whose publication year falls in
// the query bounds. arXiv has no server-side year filter.
func (b *Arxiv) Search(ctx context.Context, q Query) ([]types.Paper, error) {
	sq := buildArxivQuery(q.Text)
	if sq == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}

	u := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		arxivAPIBase, sq, b.limitFor(q))

	body, err := b.get(ctx, u)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var papers []types.Paper
	for _, it := range feed.Items {
		p, ok := arxivPaper(it)
		if !ok {
			continue
		}
		if (q.FromYear > 0 && p.Year < q.FromYear) || (q.ToYear > 0 && p.Year > q.ToYear) {
			continue
		}
		papers = append(papers, p)
	}
	return papers, nil
}

func arxivPaper(it *gofeed.Item) (types.Paper, bool) {
	title := cleanText(it.Title)
	if title == "" || (extractArxivID(it.GUID) == "" && extractArxivID(it.Link) == "") {
		return types.Paper{}, false
	}

	p := types.Paper{
		Title:     title,
		Abstract:  cleanText(it.Description),
		Journal:   "arXiv",
		Keywords:  strings.Join(it.Categories, "; "),
		Source:    types.SourceArxiv,
		SourceURL: it.Link,
		DOI:       arxivExtension(it, "doi"),
	}
	if journal := arxivExtension(it, "journal_ref"); journal != "" {
		p.Journal = journal
	}
	if it.PublishedParsed != nil {
		p.Year = it.PublishedParsed.Year()
	}
	for _, a := range it.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	return p, true
}

// arxivExtension returns the first value of an arxiv: namespaced element.
func arxivExtension(it *gofeed.Item, name string) string {
	ext, ok := it.Extensions["arxiv"]
	if !ok {
		return ""
	}
	for _, e := range ext[name] {
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return ""
}

// buildArxivQuery turns free text into an all-fields search_query value.
func buildArxivQuery(text string) string {
	var terms []string
	for _, t := range strings.Fields(text) {
		terms = append(terms, url.QueryEscape(t))
	}
	if len(terms) == 0 {
		return ""
	}
	return "all:" + strings.Join(terms, "+AND+all:")
}

// extractArxivID pulls the arXiv ID from an entry URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" is "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
