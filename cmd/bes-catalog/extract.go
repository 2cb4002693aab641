// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bes-catalog/internal/extract"
	"github.com/pdiddy/bes-catalog/internal/score"
	"github.com/pdiddy/bes-catalog/internal/validate"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract experimental parameters from stored abstracts",
	Long: `Extract runs the parameter extractor over every paper that has an abstract
and no stored extraction, validates each result and saves both. Use --force
to re-extract papers that already carry parameters.

The regex backend is deterministic and needs no network. The llm backend
sends each abstract to a local Ollama server and normalizes its answer.`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := appConfig.Extraction
	if cmd.Flags().Changed("backend") {
		b, _ := cmd.Flags().GetString("backend")
		cfg.Backend = types.ExtractionBackend(b)
	}
	if cmd.Flags().Changed("limit") {
		cfg.Limit, _ = cmd.Flags().GetInt("limit")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if force, _ := cmd.Flags().GetBool("force"); force {
		cfg.Force = true
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}

	cat, err := openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	summary, err := extract.Run(cmd.Context(), cat, backend, cfg, nil, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\n%d extracted, %d without parameters, %d failed\n",
		summary.Extracted, summary.Skipped, summary.Failed)
	if summary.HasFailures() {
		return fmt.Errorf("%d paper(s) failed extraction", summary.Failed)
	}
	return nil
}

func newBackend(cfg types.ExtractionConfig) (extract.Backend, error) {
	switch cfg.Backend {
	case types.BackendRegex, "":
		return extract.RegexBackend{}, nil
	case types.BackendLLM:
		return extract.NewOllamaBackend(cfg.LLM), nil
	default:
		return nil, fmt.Errorf("unknown extraction backend %q (want regex or llm)", cfg.Backend)
	}
}

// --- text subcommand ---

var extractTextCmd = &cobra.Command{
	Use:   "text [abstract]",
	Short: "Extract parameters from an abstract without touching the catalog",
	Long: `Text runs the regex extractor, the validator and the relevance scorer over
one abstract and prints the combined result as JSON. The abstract is taken
from the arguments, or from stdin when none are given.`,
	RunE: runExtractText,
}

type extractTextOutput struct {
	Parameters types.ExtractedParameterSet `json:"parameters"`
	Validation types.ValidationResult      `json:"validation"`
	Relevance  types.RelevanceScore        `json:"relevance"`
}

func runExtractText(cmd *cobra.Command, args []string) error {
	abstract := strings.Join(args, " ")
	if abstract == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		abstract = string(data)
	}
	title, _ := cmd.Flags().GetString("title")
	if strings.TrimSpace(title) == "" && strings.TrimSpace(abstract) == "" {
		return fmt.Errorf("title or abstract required")
	}

	p := types.Paper{Title: title, Abstract: strings.TrimSpace(abstract)}
	set := extract.Extract(p.Text())
	out := extractTextOutput{
		Parameters: set,
		Validation: validate.Validate(set),
		Relevance:  score.Score(p.ScoreInput()),
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func init() {
	extractCmd.Flags().String("backend", string(types.BackendRegex), "extraction backend: regex or llm")
	extractCmd.Flags().Int("limit", 0, "maximum papers to process (0 = all)")
	extractCmd.Flags().Int("workers", 4, "concurrent extraction workers")
	extractCmd.Flags().Bool("force", false, "re-extract papers that already have parameters")

	extractTextCmd.Flags().String("title", "", "paper title")

	extractCmd.AddCommand(extractTextCmd)
	rootCmd.AddCommand(extractCmd)
}
