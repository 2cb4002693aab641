// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/pdiddy/bes-catalog/internal/catalog"
	"github.com/pdiddy/bes-catalog/internal/metrics"
	"github.com/pdiddy/bes-catalog/internal/quality"
	"github.com/pdiddy/bes-catalog/internal/score"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

// Catalog is the slice of the catalog store Fetch needs.
type Catalog interface {
	Exists(ctx context.Context, doi, title string) (bool, error)
	Create(ctx context.Context, p *types.Paper) error
}

// Options controls a fetch run.
type Options struct {
	Query Query

	// DropIrrelevant skips papers the relevance scorer recommends removing
	// instead of storing them with that recommendation.
	DropIrrelevant bool
}

// Summary holds counts from a fetch run.
type Summary struct {
	Added      int
	Duplicates int
	Irrelevant int
	Failed     int
	// SourceErrors holds "source: error" for each source that failed.
	SourceErrors []string
}

// Total returns the number of records seen across sources.
func (s Summary) Total() int {
	return s.Added + s.Duplicates + s.Irrelevant + s.Failed
}

// HasFailures reports whether any source or insert failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0 || len(s.SourceErrors) > 0
}

// Fetch queries each source in order and adds papers not already in the
// catalog. Duplicates are detected by DOI or normalized title, both within
// the run and against stored papers. New papers are scored before insert.
// A failing source is reported and the run continues with the next one.
func Fetch(ctx context.Context, cat Catalog, srcs []Source, opts Options, m *metrics.Metrics, w io.Writer) (Summary, error) {
	if opts.Query.IsEmpty() {
		return Summary{}, fmt.Errorf("query is empty")
	}
	if len(srcs) == 0 {
		return Summary{}, fmt.Errorf("no sources configured")
	}
	log := zerolog.Ctx(ctx).With().Str("component", "fetch").Logger()

	var summary Summary
	seen := make(map[string]bool)

	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		papers, err := src.Search(ctx, opts.Query)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			log.Warn().Err(err).Str("source", src.Name()).Msg("source failed")
			fmt.Fprintf(w, "warning: source %s failed: %v\n", src.Name(), err)
			summary.SourceErrors = append(summary.SourceErrors, fmt.Sprintf("%s: %v", src.Name(), err))
			continue
		}
		log.Info().Str("source", src.Name()).Int("results", len(papers)).Msg("source searched")

		for i := range papers {
			p := &papers[i]
			keys := dedupKeys(*p)
			if anySeen(seen, keys) {
				summary.Duplicates++
				m.Paper("fetch", "duplicate")
				continue
			}
			markSeen(seen, keys)

			exists, err := cat.Exists(ctx, p.DOI, p.Title)
			if err != nil {
				return summary, fmt.Errorf("checking catalog: %w", err)
			}
			if exists {
				summary.Duplicates++
				m.Paper("fetch", "duplicate")
				continue
			}

			rel := score.Score(p.ScoreInput())
			if opts.DropIrrelevant && rel.Recommendation == types.RecommendRemove {
				summary.Irrelevant++
				m.Paper("fetch", "irrelevant")
				fmt.Fprintf(w, "skipped %s (relevance %.1f)\n", p.Title, rel.Overall)
				continue
			}
			p.Relevance = &rel

			if err := cat.Create(ctx, p); err != nil {
				if errors.Is(err, catalog.ErrAlreadyExists) {
					summary.Duplicates++
					m.Paper("fetch", "duplicate")
					continue
				}
				log.Error().Err(err).Str("title", p.Title).Msg("adding paper")
				fmt.Fprintf(w, "failed  %s: %v\n", p.Title, err)
				summary.Failed++
				m.Paper("fetch", "failed")
				continue
			}
			summary.Added++
			m.Paper("fetch", "added")
			fmt.Fprintf(w, "added   %s [%s] %s\n", p.ID, src.Name(), p.Title)
		}
	}
	return summary, nil
}

func dedupKeys(p types.Paper) []string {
	var keys []string
	if d := quality.NormalizeDOI(p.DOI); d != "" {
		keys = append(keys, "doi:"+d)
	}
	if t := quality.NormalizeTitle(p.Title); t != "" {
		keys = append(keys, "title:"+t)
	}
	return keys
}

func anySeen(seen map[string]bool, keys []string) bool {
	for _, k := range keys {
		if seen[k] {
			return true
		}
	}
	return false
}

func markSeen(seen map[string]bool, keys []string) {
	for _, k := range keys {
		seen[k] = true
	}
}
