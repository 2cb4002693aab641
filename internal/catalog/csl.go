// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bes-catalog/pkg/types"
)

// FormatCSL selects CSL-YAML output for reference managers and Pandoc.
const FormatCSL = "csl"

// CSLItem is one bibliographic entry in CSL-YAML form.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
	Keyword        string    `yaml:"keyword,omitempty"`
}

// CSLName is a person's name in CSL form.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate is a date in CSL date-parts form.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// ExportCSL writes papers with a keep recommendation (or every paper when
// all is set) to w as a CSL-YAML list.
func (s *Store) ExportCSL(ctx context.Context, w io.Writer, all bool) error {
	papers, err := s.exportPapers(ctx)
	if err != nil {
		return err
	}

	items := make([]CSLItem, 0, len(papers))
	for _, p := range papers {
		if !all && (p.Relevance == nil || p.Relevance.Recommendation != types.RecommendKeep) {
			continue
		}
		items = append(items, toCSLItem(p))
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("marshaling CSL: %w", err)
	}
	return enc.Close()
}

func toCSLItem(p types.Paper) CSLItem {
	item := CSLItem{
		ID:             p.ID,
		Type:           "article-journal",
		Title:          p.Title,
		ContainerTitle: p.Journal,
		Abstract:       p.Abstract,
		DOI:            p.DOI,
		URL:            p.SourceURL,
		Keyword:        p.Keywords,
	}
	if p.Source == types.SourceArxiv && p.Journal == "" {
		item.Type = "article"
	}
	for _, a := range p.Authors {
		if n := parseAuthorName(a); n != (CSLName{}) {
			item.Author = append(item.Author, n)
		}
	}
	if p.Year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{p.Year}}}
	}
	return item
}

// parseAuthorName splits a full name on its last space into given and
// family parts. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{Given: name[:idx], Family: name[idx+1:]}
}
