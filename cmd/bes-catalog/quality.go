// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bes-catalog/internal/quality"
)

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Report catalog data quality and duplicate records",
	Long: `Quality checks every stored paper for missing or malformed metadata,
summarizes extraction coverage and relevance recommendations, and lists
groups of papers that share a DOI or normalized title.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		papers, err := cat.Papers(cmd.Context(), 0)
		if err != nil {
			return err
		}
		summary := quality.Summarize(papers, time.Now())

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}
		quality.FormatSummary(summary, os.Stdout)
		return nil
	},
}

func init() {
	qualityCmd.Flags().Bool("json", false, "output the report as JSON")

	rootCmd.AddCommand(qualityCmd)
}
