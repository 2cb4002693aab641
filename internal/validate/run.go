// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/pdiddy/bes-catalog/internal/metrics"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

// Store is the slice of the catalog the validation batch needs.
type Store interface {
	Extracted(ctx context.Context, limit int) ([]types.Paper, error)
	SaveValidation(ctx context.Context, id string, v *types.ValidationResult) error
}

// Summary holds counts from a validation batch.
type Summary struct {
	Valid   int
	Invalid int
	Failed  int
}

// Total returns the number of papers processed.
func (s Summary) Total() int {
	return s.Valid + s.Invalid + s.Failed
}

// HasFailures reports whether any paper could not be saved.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Run re-validates up to limit stored extractions (0 means all) and saves
// each result. A failed save is counted and the batch continues.
func Run(ctx context.Context, store Store, limit int, m *metrics.Metrics, w io.Writer) (Summary, error) {
	log := zerolog.Ctx(ctx).With().Str("component", "validate").Logger()

	papers, err := store.Extracted(ctx, limit)
	if err != nil {
		return Summary{}, fmt.Errorf("loading extracted papers: %w", err)
	}

	var summary Summary
	for _, p := range papers {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if p.ExtractedParameters == nil {
			continue
		}

		res := Validate(*p.ExtractedParameters)
		if err := store.SaveValidation(ctx, p.ID, &res); err != nil {
			log.Error().Err(err).Str("paper", p.ID).Msg("saving validation")
			fmt.Fprintf(w, "failed  %s: %v\n", p.ID, err)
			m.Paper("validate", "failed")
			summary.Failed++
			continue
		}

		if res.IsValid {
			summary.Valid++
			m.Paper("validate", "valid")
		} else {
			summary.Invalid++
			m.Paper("validate", "invalid")
			fmt.Fprintf(w, "invalid %s: %d critical, %d major, %d minor\n", p.ID,
				res.CountBySeverity(types.SeverityCritical),
				res.CountBySeverity(types.SeverityMajor),
				res.CountBySeverity(types.SeverityMinor))
		}
	}
	return summary, nil
}
