// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/pdiddy/bes-catalog/internal/metrics"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

// Store is the slice of the catalog the scoring batch needs.
type Store interface {
	Papers(ctx context.Context, limit int) ([]types.Paper, error)
	SaveRelevance(ctx context.Context, id string, r *types.RelevanceScore) error
}

// Summary counts recommendations from a scoring batch.
type Summary struct {
	Keep   int
	Remove int
	Review int
	Failed int
}

// Total returns the number of papers processed.
func (s Summary) Total() int {
	return s.Keep + s.Remove + s.Review + s.Failed
}

// HasFailures reports whether any score could not be saved.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Run scores up to limit papers (0 means all) and saves each score.
func Run(ctx context.Context, store Store, limit int, m *metrics.Metrics, w io.Writer) (Summary, error) {
	log := zerolog.Ctx(ctx).With().Str("component", "score").Logger()

	papers, err := store.Papers(ctx, limit)
	if err != nil {
		return Summary{}, fmt.Errorf("loading papers: %w", err)
	}

	var summary Summary
	for _, p := range papers {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		r := Score(p.ScoreInput())
		if err := store.SaveRelevance(ctx, p.ID, &r); err != nil {
			log.Error().Err(err).Str("paper", p.ID).Msg("saving relevance")
			fmt.Fprintf(w, "failed  %s: %v\n", p.ID, err)
			m.Paper("score", "failed")
			summary.Failed++
			continue
		}

		switch r.Recommendation {
		case types.RecommendKeep:
			summary.Keep++
		case types.RecommendRemove:
			summary.Remove++
			fmt.Fprintf(w, "remove  %s (%.1f) %s\n", p.ID, r.Overall, p.Title)
		default:
			summary.Review++
			fmt.Fprintf(w, "review  %s (%.1f) %s\n", p.ID, r.Overall, p.Title)
		}
		m.Paper("score", string(r.Recommendation))
	}

	log.Info().Int("keep", summary.Keep).Int("remove", summary.Remove).Int("review", summary.Review).Msg("scoring finished")
	return summary, nil
}
