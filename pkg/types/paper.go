// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the bes-catalog
// research-paper catalog: the ResearchPaper record, the extraction
// engine's ExtractedParameterSet, ValidationResult and RelevanceScore,
// and per-component configuration.
package types

import "time"

// Paper source identifiers.
const (
	SourceCrossRef = "crossref"
	SourcePubMed   = "pubmed"
	SourceArxiv    = "arxiv"
	SourceManual   = "manual"
)

// Paper is one ResearchPaper record in the catalog.
type Paper struct {
	// ID is a UUID assigned by the catalog on creation.
	ID string `json:"id" yaml:"id"`

	// DOI is the bare DOI (no https://doi.org/ prefix). Unique when set.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	Title    string   `json:"title" yaml:"title"`
	Abstract string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Authors  []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Journal  string   `json:"journal,omitempty" yaml:"journal,omitempty"`
	Year     int      `json:"year,omitempty" yaml:"year,omitempty"`

	// Keywords, OrganismTypes and SystemType are free-text metadata fields
	// read by the relevance scorer.
	Keywords      string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	OrganismTypes string `json:"organism_types,omitempty" yaml:"organism_types,omitempty"`
	SystemType    string `json:"system_type,omitempty" yaml:"system_type,omitempty"`

	// Source identifies where the record came from (crossref, pubmed, arxiv, manual).
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`

	ExtractedParameters *ExtractedParameterSet `json:"extracted_parameters,omitempty" yaml:"extracted_parameters,omitempty"`
	Validation          *ValidationResult      `json:"validation,omitempty" yaml:"validation,omitempty"`
	Relevance           *RelevanceScore        `json:"relevance,omitempty" yaml:"relevance,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Text returns the extraction input for this paper.
func (p Paper) Text() PaperText {
	t := PaperText{Title: p.Title}
	if p.Abstract != "" {
		abstract := p.Abstract
		t.Abstract = &abstract
	}
	return t
}

// ScoreInput returns the relevance scorer input for this paper.
func (p Paper) ScoreInput() ScoreInput {
	return ScoreInput{
		Title:         p.Title,
		Abstract:      p.Abstract,
		Keywords:      p.Keywords,
		OrganismTypes: p.OrganismTypes,
		SystemType:    p.SystemType,
	}
}
