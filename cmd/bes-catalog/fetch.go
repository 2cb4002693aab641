// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bes-catalog/internal/sources"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [query...]",
	Short: "Fetch papers from CrossRef, PubMed and arXiv into the catalog",
	Long: `Fetch searches the configured bibliographic sources and adds papers that
are not already in the catalog by DOI or normalized title. Each new paper is
scored for relevance on insert.

Queries come from the positional arguments or from a YAML query file:

  queries:
    - text: microbial fuel cell power density
      from_year: 2015
    - text: microbial electrolysis cell hydrogen`,
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	queries, err := fetchQueries(cmd, args)
	if err != nil {
		return err
	}

	cfg := appConfig.Fetch
	if names, _ := cmd.Flags().GetStringSlice("sources"); len(names) > 0 {
		cfg.Sources = names
	}
	if cmd.Flags().Changed("max-results") {
		cfg.MaxResults, _ = cmd.Flags().GetInt("max-results")
	}
	srcs, err := sources.FromConfig(cfg, nil)
	if err != nil {
		return err
	}

	cat, err := openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	dropIrrelevant, _ := cmd.Flags().GetBool("drop-irrelevant")

	var total sources.Summary
	for _, q := range queries {
		fmt.Fprintf(os.Stdout, "query: %s\n", q.Text)
		summary, err := sources.Fetch(cmd.Context(), cat, srcs, sources.Options{
			Query:          q,
			DropIrrelevant: dropIrrelevant,
		}, nil, os.Stdout)
		if err != nil {
			return err
		}
		total.Added += summary.Added
		total.Duplicates += summary.Duplicates
		total.Irrelevant += summary.Irrelevant
		total.Failed += summary.Failed
		total.SourceErrors = append(total.SourceErrors, summary.SourceErrors...)
	}

	fmt.Fprintf(os.Stdout, "\n%d added, %d duplicate(s), %d irrelevant, %d failed\n",
		total.Added, total.Duplicates, total.Irrelevant, total.Failed)
	if total.HasFailures() {
		return fmt.Errorf("fetch finished with %d failed insert(s) and %d source error(s)",
			total.Failed, len(total.SourceErrors))
	}
	return nil
}

func fetchQueries(cmd *cobra.Command, args []string) ([]sources.Query, error) {
	queryFile, _ := cmd.Flags().GetString("query-file")
	if queryFile != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("use either query arguments or --query-file, not both")
		}
		return sources.ReadQueryFile(queryFile)
	}

	fromYear, _ := cmd.Flags().GetInt("from-year")
	toYear, _ := cmd.Flags().GetInt("to-year")
	q, err := sources.QueryParams{
		Text:     strings.Join(args, " "),
		FromYear: fromYear,
		ToYear:   toYear,
	}.ToQuery()
	if err != nil {
		return nil, fmt.Errorf("query required: provide search terms or --query-file (%w)", err)
	}
	return []sources.Query{q}, nil
}

func init() {
	fetchCmd.Flags().String("query-file", "", "YAML file of saved queries")
	fetchCmd.Flags().Int("from-year", 0, "earliest publication year")
	fetchCmd.Flags().Int("to-year", 0, "latest publication year")
	fetchCmd.Flags().Int("max-results", 0, "maximum records requested per source")
	fetchCmd.Flags().StringSlice("sources", nil, "sources to query (crossref, pubmed, arxiv)")
	fetchCmd.Flags().Bool("drop-irrelevant", false, "skip papers the relevance scorer recommends removing")

	rootCmd.AddCommand(fetchCmd)
}
