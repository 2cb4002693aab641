// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/bes-catalog/internal/metrics"
	"github.com/pdiddy/bes-catalog/internal/validate"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

const defaultWorkers = 4

// Backend turns one paper's text into a parameter set. The regex engine
// and the LLM client both satisfy it so the batch runner can use either.
type Backend interface {
	Name() string
	Extract(ctx context.Context, p types.PaperText) (types.ExtractedParameterSet, error)
}

// RegexBackend adapts an Engine to Backend. It never fails.
type RegexBackend struct {
	Engine *Engine
}

// Name returns "regex".
func (RegexBackend) Name() string { return string(types.BackendRegex) }

// Extract runs the engine, or the default engine when none is set.
func (b RegexBackend) Extract(_ context.Context, p types.PaperText) (types.ExtractedParameterSet, error) {
	e := b.Engine
	if e == nil {
		e = Default()
	}
	return e.Extract(p), nil
}

// Store is the slice of the catalog the extraction batch needs.
type Store interface {
	// Pending returns up to limit papers with an abstract and no
	// extraction, or every paper with an abstract when force is set.
	Pending(ctx context.Context, limit int, force bool) ([]types.Paper, error)
	SaveExtraction(ctx context.Context, id string, set *types.ExtractedParameterSet, v *types.ValidationResult) error
}

// BatchSummary holds counts from a batch extraction run.
type BatchSummary struct {
	Extracted int
	Skipped   int
	Failed    int
}

// Total returns the number of papers processed.
func (s BatchSummary) Total() int {
	return s.Extracted + s.Skipped + s.Failed
}

// HasFailures reports whether any papers failed.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

type result struct {
	paper    types.Paper
	set      types.ExtractedParameterSet
	err      error
	duration time.Duration
}

// Run extracts parameters for pending papers in a pool of cfg.Workers
// goroutines, validates each set and saves results one at a time. Papers
// that yield no parameters are skipped without a write. A backend or save
// failure is counted and the batch continues.
func Run(ctx context.Context, store Store, backend Backend, cfg types.ExtractionConfig, m *metrics.Metrics, w io.Writer) (BatchSummary, error) {
	log := zerolog.Ctx(ctx).With().Str("component", "extract").Str("backend", backend.Name()).Logger()

	papers, err := store.Pending(ctx, cfg.Limit, cfg.Force)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("loading pending papers: %w", err)
	}
	log.Info().Int("papers", len(papers)).Msg("starting extraction")

	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	maxRetries := cfg.LLM.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	jobs := make(chan types.Paper)
	results := make(chan result)

	var g errgroup.Group
	g.Go(func() error {
		defer close(jobs)
		for _, p := range papers {
			select {
			case jobs <- p:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for p := range jobs {
				start := time.Now()
				set, err := callWithRetry(ctx, backend, p.Text(), maxRetries)
				results <- result{paper: p, set: set, err: err, duration: time.Since(start)}
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	var summary BatchSummary
	for r := range results {
		id := r.paper.ID
		if r.err != nil {
			log.Error().Err(r.err).Str("paper", id).Msg("extraction failed")
			fmt.Fprintf(w, "failed  %s: %v\n", id, r.err)
			m.Paper("extract", "failed")
			summary.Failed++
			continue
		}

		leaves := Leaves(r.set)
		m.Extraction(backend.Name(), r.duration, leaves)
		if r.set.IsEmpty() {
			fmt.Fprintf(w, "skipped %s (no parameters)\n", id)
			m.Paper("extract", "skipped")
			summary.Skipped++
			continue
		}

		v := validate.Validate(r.set)
		if err := store.SaveExtraction(ctx, id, &r.set, &v); err != nil {
			log.Error().Err(err).Str("paper", id).Msg("saving extraction")
			fmt.Fprintf(w, "failed  %s: write error: %v\n", id, err)
			m.Paper("extract", "failed")
			summary.Failed++
			continue
		}

		fmt.Fprintf(w, "extracted %s (%d parameters, %d categories)\n", id, leaves, r.set.CategoryCount())
		m.Paper("extract", "extracted")
		summary.Extracted++
	}

	log.Info().
		Int("extracted", summary.Extracted).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("extraction finished")
	return summary, ctx.Err()
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls the backend with exponential backoff.
func callWithRetry(ctx context.Context, backend Backend, p types.PaperText, maxRetries int) (types.ExtractedParameterSet, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return types.ExtractedParameterSet{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		set, err := backend.Extract(ctx, p)
		if err == nil {
			return set, nil
		}
		lastErr = err
	}
	return types.ExtractedParameterSet{}, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}
