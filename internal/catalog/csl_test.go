// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"bytes"
	"context"
	"testing"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bes-catalog/pkg/types"
)

func TestToCSLItem(t *testing.T) {
	p := *samplePaper("Carbon cloth anodes in microbial fuel cells", "10.1016/j.biortech.2021.1")
	p.ID = "paper-1"
	p.SourceURL = "https://doi.org/10.1016/j.biortech.2021.1"

	item := toCSLItem(p)

	if item.Type != "article-journal" {
		t.Errorf("Type = %q, want article-journal", item.Type)
	}
	if item.ContainerTitle != "Bioresource Technology" {
		t.Errorf("ContainerTitle = %q", item.ContainerTitle)
	}
	if item.DOI != p.DOI {
		t.Errorf("DOI = %q, want %q", item.DOI, p.DOI)
	}
	if item.Keyword != "microbial fuel cell; anode" {
		t.Errorf("Keyword = %q", item.Keyword)
	}
	if item.Issued == nil || item.Issued.DateParts[0][0] != 2021 {
		t.Errorf("Issued = %+v, want year 2021", item.Issued)
	}
	if len(item.Author) != 2 || item.Author[0].Family != "Author" || item.Author[0].Given != "A." {
		t.Errorf("Author = %+v", item.Author)
	}
}

func TestToCSLItemArxivPreprint(t *testing.T) {
	p := types.Paper{ID: "x", Title: "Preprint", Source: types.SourceArxiv}

	item := toCSLItem(p)

	if item.Type != "article" {
		t.Errorf("Type = %q, want article", item.Type)
	}
	if item.Issued != nil {
		t.Errorf("Issued = %+v, want nil without a year", item.Issued)
	}
}

func TestParseAuthorName(t *testing.T) {
	tests := []struct {
		in   string
		want CSLName
	}{
		{"Bruce E. Logan", CSLName{Given: "Bruce E.", Family: "Logan"}},
		{"  Logan  ", CSLName{Literal: "Logan"}},
		{"Derek  R.   Lovley", CSLName{Given: "Derek R.", Family: "Lovley"}},
		{"", CSLName{}},
	}
	for _, tt := range tests {
		if got := parseAuthorName(tt.in); got != tt.want {
			t.Errorf("parseAuthorName(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestExportCSLFiltersByRecommendation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	kept := mustCreate(t, s, samplePaper("Kept paper", "10.1/keep"))
	removed := mustCreate(t, s, samplePaper("Removed paper", "10.1/remove"))
	mustCreate(t, s, samplePaper("Unscored paper", "10.1/unscored"))

	if err := s.SaveRelevance(ctx, kept.ID, &types.RelevanceScore{Overall: 80, Recommendation: types.RecommendKeep}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRelevance(ctx, removed.ID, &types.RelevanceScore{Overall: 5, Recommendation: types.RecommendRemove}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := s.ExportCSL(ctx, &buf, false); err != nil {
		t.Fatal(err)
	}
	var items []CSLItem
	if err := yaml.Unmarshal(buf.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Title != "Kept paper" {
		t.Fatalf("kept-only export = %+v", items)
	}

	buf.Reset()
	if err := s.ExportCSL(ctx, &buf, true); err != nil {
		t.Fatal(err)
	}
	items = nil
	if err := yaml.Unmarshal(buf.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("full export has %d items, want 3", len(items))
	}
}
