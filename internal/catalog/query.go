// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/bes-catalog/pkg/types"
)

// ListOptions holds filters and paging for List. Zero values mean no filter.
type ListOptions struct {
	// Query is a full-text search over title, abstract and keywords. Every
	// word must match.
	Query string

	SystemType     string
	Source         string
	Recommendation types.Recommendation
	Year           int

	// MinPowerDensity keeps papers whose canonical power density (mW/m²) is
	// at least this value.
	MinPowerDensity float64

	// HasExtraction keeps papers with (true) or without (false) a stored
	// extraction. Nil disables the filter.
	HasExtraction *bool

	// Limit caps the page size. Zero uses the store default.
	Limit  int
	Offset int
}

// List returns one page of papers matching opts and the total number of
// matches. Full-text results are ranked by FTS relevance, other queries
// are ordered newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]types.Paper, int, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = s.maxResults
	}

	var (
		where  strings.Builder
		args   []any
		useFTS = ftsQuery(opts.Query) != ""
	)

	where.WriteString(` WHERE 1=1`)
	if useFTS {
		where.WriteString(` AND papers_fts MATCH ?`)
		args = append(args, ftsQuery(opts.Query))
	}
	if opts.SystemType != "" {
		where.WriteString(` AND p.system_type = ?`)
		args = append(args, opts.SystemType)
	}
	if opts.Source != "" {
		where.WriteString(` AND p.source = ?`)
		args = append(args, opts.Source)
	}
	if opts.Recommendation != "" {
		where.WriteString(` AND p.recommendation = ?`)
		args = append(args, string(opts.Recommendation))
	}
	if opts.Year != 0 {
		where.WriteString(` AND p.year = ?`)
		args = append(args, opts.Year)
	}
	if opts.MinPowerDensity > 0 {
		where.WriteString(` AND p.power_density >= ?`)
		args = append(args, opts.MinPowerDensity)
	}
	if opts.HasExtraction != nil {
		if *opts.HasExtraction {
			where.WriteString(` AND p.extracted_parameters IS NOT NULL`)
		} else {
			where.WriteString(` AND p.extracted_parameters IS NULL`)
		}
	}

	from := ` FROM papers p`
	if useFTS {
		from = ` FROM papers_fts JOIN papers p ON p.rowid = papers_fts.rowid`
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*)`+from+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting papers: %w", err)
	}

	var qb strings.Builder
	qb.WriteString(`SELECT ` + qualified(paperColumns) + from + where.String())
	if useFTS {
		qb.WriteString(` ORDER BY papers_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY p.created_at DESC, p.rowid DESC`)
	}
	qb.WriteString(` LIMIT ? OFFSET ?`)
	args = append(args, limit, max(opts.Offset, 0))

	papers, err := s.query(ctx, qb.String(), args...)
	if err != nil {
		return nil, 0, err
	}
	return papers, total, nil
}

// ftsQuery turns free text into an FTS5 expression that ANDs each word as
// a quoted string, so punctuation in user input cannot break the syntax.
func ftsQuery(q string) string {
	var terms []string
	for _, w := range strings.Fields(q) {
		w = strings.ReplaceAll(w, `"`, "")
		if w == "" {
			continue
		}
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " ")
}

// qualified prefixes each column in a comma-separated list with "p.".
func qualified(cols string) string {
	parts := strings.Split(cols, ",")
	for i, c := range parts {
		parts[i] = "p." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}
