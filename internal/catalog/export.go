// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bes-catalog/pkg/types"
)

// Export formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// ExportYAML writes every paper, in insertion order, to w as a YAML list.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer) error {
	papers, err := s.exportPapers(ctx)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(papers); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes every paper, in insertion order, to w as a JSON array.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer) error {
	papers, err := s.exportPapers(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(papers); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

func (s *Store) exportPapers(ctx context.Context) ([]types.Paper, error) {
	papers, err := s.Papers(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	if papers == nil {
		papers = []types.Paper{}
	}
	return papers, nil
}

// ImportSummary holds counts from an Import.
type ImportSummary struct {
	Imported int
	Skipped  int
}

// Import reads a list of papers in the given format and creates each one
// that is not already in the catalog by DOI or normalized title. Stored
// results carried by the records are kept.
func (s *Store) Import(ctx context.Context, r io.Reader, format string) (ImportSummary, error) {
	var papers []types.Paper
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&papers); err != nil {
			return ImportSummary{}, fmt.Errorf("parsing JSON: %w", err)
		}
	case FormatYAML, "yml", "":
		if err := yaml.NewDecoder(r).Decode(&papers); err != nil && !errors.Is(err, io.EOF) {
			return ImportSummary{}, fmt.Errorf("parsing YAML: %w", err)
		}
	default:
		return ImportSummary{}, fmt.Errorf("unsupported import format %q", format)
	}

	var summary ImportSummary
	for i := range papers {
		p := &papers[i]
		exists, err := s.Exists(ctx, p.DOI, p.Title)
		if err != nil {
			return summary, err
		}
		if exists {
			summary.Skipped++
			continue
		}
		if err := s.Create(ctx, p); err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				summary.Skipped++
				continue
			}
			return summary, fmt.Errorf("importing %q: %w", p.Title, err)
		}
		summary.Imported++
	}
	return summary, nil
}
