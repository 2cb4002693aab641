// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bes-catalog/internal/score"
	"github.com/pdiddy/bes-catalog/internal/validate"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute relevance scores for stored papers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit := appConfig.Scoring.Limit
		if cmd.Flags().Changed("limit") {
			limit, _ = cmd.Flags().GetInt("limit")
		}

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		summary, err := score.Run(cmd.Context(), cat, limit, nil, os.Stdout)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "\n%d keep, %d review, %d remove, %d failed\n",
			summary.Keep, summary.Review, summary.Remove, summary.Failed)
		if summary.HasFailures() {
			return fmt.Errorf("%d score(s) could not be saved", summary.Failed)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Re-validate stored parameter extractions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		summary, err := validate.Run(cmd.Context(), cat, limit, nil, os.Stdout)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "\n%d valid, %d invalid, %d failed\n",
			summary.Valid, summary.Invalid, summary.Failed)
		if summary.HasFailures() {
			return fmt.Errorf("%d validation(s) could not be saved", summary.Failed)
		}
		return nil
	},
}

func init() {
	scoreCmd.Flags().Int("limit", 0, "maximum papers to score (0 = all)")
	validateCmd.Flags().Int("limit", 0, "maximum papers to validate (0 = all)")

	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(validateCmd)
}
