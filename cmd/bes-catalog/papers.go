// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bes-catalog/internal/catalog"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "Browse and manage the paper catalog",
	Long: `Papers lists, shows, deletes, imports and exports catalog records. List
supports full-text search over titles, abstracts and keywords combined with
structured filters.`,
}

// --- list subcommand ---

var papersListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List papers with optional full-text search and filters",
	RunE:  runPapersList,
}

func runPapersList(cmd *cobra.Command, args []string) error {
	opts, err := listOptsFromFlags(cmd, args)
	if err != nil {
		return err
	}

	cat, err := openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	papers, total, err := cat.List(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(papers)
	}
	return formatPaperTable(os.Stdout, papers, total)
}

func listOptsFromFlags(cmd *cobra.Command, args []string) (catalog.ListOptions, error) {
	systemType, _ := cmd.Flags().GetString("system-type")
	source, _ := cmd.Flags().GetString("source")
	rec, _ := cmd.Flags().GetString("recommendation")
	year, _ := cmd.Flags().GetInt("year")
	minPower, _ := cmd.Flags().GetFloat64("min-power-density")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	opts := catalog.ListOptions{
		Query:           strings.Join(args, " "),
		SystemType:      systemType,
		Source:          source,
		Recommendation:  types.Recommendation(rec),
		Year:            year,
		MinPowerDensity: minPower,
		Limit:           limit,
		Offset:          offset,
	}

	switch opts.Recommendation {
	case "", types.RecommendKeep, types.RecommendReview, types.RecommendRemove:
	default:
		return opts, fmt.Errorf("unknown recommendation %q: use keep, review or remove", rec)
	}

	if cmd.Flags().Changed("extracted") {
		v, _ := cmd.Flags().GetBool("extracted")
		opts.HasExtraction = &v
	}
	return opts, nil
}

func formatPaperTable(w io.Writer, papers []types.Paper, total int) error {
	if len(papers) == 0 {
		fmt.Fprintln(w, "No papers found.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-4s  %-5s  %-6s  %-14s  %s\n",
		"ID", "Year", "Type", "Score", "Power", "Title")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for _, p := range papers {
		scoreCol, power := "-", "-"
		if p.Relevance != nil {
			scoreCol = fmt.Sprintf("%.0f", p.Relevance.Overall)
		}
		if p.ExtractedParameters != nil {
			if m, ok := p.ExtractedParameters.Measurement("performanceMetrics.powerDensity"); ok {
				power = fmt.Sprintf("%.0f %s", m.Value, m.Unit)
			}
		}
		year := "-"
		if p.Year > 0 {
			year = fmt.Sprint(p.Year)
		}
		fmt.Fprintf(w, "%-36s  %-4s  %-5s  %-6s  %-14s  %s\n",
			p.ID, year, p.SystemType, scoreCol, power, truncate(p.Title, 60))
	}

	fmt.Fprintf(w, "\n%d of %d paper(s)\n", len(papers), total)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// --- get subcommand ---

var papersGetCmd = &cobra.Command{
	Use:   "get <id-or-doi>",
	Short: "Show one paper as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		p, err := cat.Get(cmd.Context(), args[0])
		if err != nil && strings.HasPrefix(args[0], "10.") {
			p, err = cat.FindByDOI(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

// --- delete subcommand ---

var papersDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete papers from the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		var failed int
		for _, id := range args {
			if err := cat.Delete(cmd.Context(), id); err != nil {
				fmt.Fprintf(os.Stdout, "failed  %s: %v\n", id, err)
				failed++
				continue
			}
			fmt.Fprintf(os.Stdout, "deleted %s\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d paper(s) could not be deleted", failed)
		}
		return nil
	},
}

// --- import subcommand ---

var papersImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import papers from a YAML or JSON export",
	Long: `Import reads a list of papers previously written by export and adds
those not already present by DOI or normalized title. The format follows the
file extension unless --format is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if format == "" {
			format = strings.TrimPrefix(strings.ToLower(filepath.Ext(args[0])), ".")
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		summary, err := cat.Import(cmd.Context(), f, format)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d imported, %d skipped\n", summary.Imported, summary.Skipped)
		return nil
	},
}

// --- export subcommand ---

var papersExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog to YAML, JSON or CSL-YAML",
	Long: `Export writes every paper to stdout or --output. The csl format writes a
CSL-YAML bibliography of papers recommended to keep, or of every paper with
--all, for use with Pandoc and reference managers.`,
	Args: cobra.NoArgs,
	RunE: runPapersExport,
}

func runPapersExport(cmd *cobra.Command, args []string) (err error) {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	all, _ := cmd.Flags().GetBool("all")

	cat, err := openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	switch format {
	case catalog.FormatYAML, "":
		err = cat.ExportYAML(cmd.Context(), w)
	case catalog.FormatJSON:
		err = cat.ExportJSON(cmd.Context(), w)
	case catalog.FormatCSL:
		err = cat.ExportCSL(cmd.Context(), w, all)
	default:
		return fmt.Errorf("unsupported format %q: use yaml, json or csl", format)
	}
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(os.Stderr, "Exported to %s\n", output)
	}
	return nil
}

func init() {
	papersListCmd.Flags().String("system-type", "", "filter by system type (MFC, MEC, ...)")
	papersListCmd.Flags().String("source", "", "filter by source (crossref, pubmed, arxiv, manual)")
	papersListCmd.Flags().String("recommendation", "", "filter by recommendation (keep, review, remove)")
	papersListCmd.Flags().Int("year", 0, "filter by publication year")
	papersListCmd.Flags().Float64("min-power-density", 0, "minimum power density in mW/m²")
	papersListCmd.Flags().Bool("extracted", false, "only papers with (true) or without (false) extracted parameters")
	papersListCmd.Flags().Int("limit", 0, "maximum results (default from catalog.max_results)")
	papersListCmd.Flags().Int("offset", 0, "number of results to skip")
	papersListCmd.Flags().Bool("json", false, "output results as JSON")

	papersImportCmd.Flags().String("format", "", "input format: yaml or json (default from file extension)")

	papersExportCmd.Flags().String("format", "yaml", "output format: yaml, json or csl")
	papersExportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
	papersExportCmd.Flags().Bool("all", false, "with --format csl, include papers not recommended to keep")

	papersCmd.AddCommand(papersListCmd)
	papersCmd.AddCommand(papersGetCmd)
	papersCmd.AddCommand(papersDeleteCmd)
	papersCmd.AddCommand(papersImportCmd)
	papersCmd.AddCommand(papersExportCmd)
	rootCmd.AddCommand(papersCmd)
}
