// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quality reports on the health of catalog records: duplicate
// papers, incomplete bibliographic metadata and extraction anomalies.
package quality

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pdiddy/bes-catalog/pkg/types"
)

// NormalizeTitle returns a lowercased, punctuation-stripped version of the title.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// NormalizeDOI lowercases a DOI and strips resolver prefixes. It returns ""
// when s does not contain a 10.xxxx/ DOI.
func NormalizeDOI(s string) string {
	d := strings.ToLower(strings.TrimSpace(s))
	for _, p := range doiPrefixes {
		d = strings.TrimPrefix(d, p)
	}
	start := strings.Index(d, "10.")
	if start < 0 {
		return ""
	}
	d = strings.TrimRight(d[start:], ".,;")
	if !strings.Contains(d, "/") {
		return ""
	}
	return d
}

// DuplicateGroup is a set of papers judged to be one work. Papers[0] is
// the earliest record and is treated as canonical.
type DuplicateGroup struct {
	Reason string        `json:"reason" yaml:"reason"` // doi or title
	Key    string        `json:"key" yaml:"key"`
	Papers []types.Paper `json:"papers" yaml:"papers"`
}

// Canonical returns the record to keep.
func (g DuplicateGroup) Canonical() types.Paper { return g.Papers[0] }

// FindDuplicates groups papers that share a normalized DOI or, failing
// that, a normalized title. Papers are considered in input order so the
// first occurrence becomes canonical. Only groups with two or more papers
// are returned.
func FindDuplicates(papers []types.Paper) []DuplicateGroup {
	seen := make(map[string]int) // dedup key → index in groups
	var groups []DuplicateGroup

	for _, p := range papers {
		doiKey := ""
		if d := NormalizeDOI(p.DOI); d != "" {
			doiKey = "doi:" + d
		}
		titleKey := ""
		if t := NormalizeTitle(p.Title); t != "" {
			titleKey = "title:" + t
		}

		idx, ok := -1, false
		if doiKey != "" {
			idx, ok = seen[doiKey]
		}
		if !ok && titleKey != "" {
			idx, ok = seen[titleKey]
		}

		if ok {
			groups[idx].Papers = append(groups[idx].Papers, p)
		} else {
			idx = len(groups)
			g := DuplicateGroup{Reason: "title", Key: strings.TrimPrefix(titleKey, "title:"), Papers: []types.Paper{p}}
			if doiKey != "" {
				g.Reason, g.Key = "doi", strings.TrimPrefix(doiKey, "doi:")
			}
			groups = append(groups, g)
		}

		if doiKey != "" {
			if _, taken := seen[doiKey]; !taken {
				seen[doiKey] = idx
			}
		}
		if titleKey != "" {
			if _, taken := seen[titleKey]; !taken {
				seen[titleKey] = idx
			}
		}
	}

	var out []DuplicateGroup
	for _, g := range groups {
		if len(g.Papers) > 1 {
			out = append(out, g)
		}
	}
	return out
}

// Severity levels for record issues.
const (
	High   = "high"
	Medium = "medium"
	Low    = "low"
)

// Issue is one problem found in a record.
type Issue struct {
	Type     string `json:"type" yaml:"type"`
	Severity string `json:"severity" yaml:"severity"`
	Field    string `json:"field,omitempty" yaml:"field,omitempty"`
	Message  string `json:"message" yaml:"message"`
}

// Report is the assessment of one paper.
type Report struct {
	PaperID string `json:"paper_id" yaml:"paper_id"`
	// Completeness is 0–100, weighted by field.
	Completeness float64 `json:"completeness" yaml:"completeness"`
	Issues       []Issue `json:"issues" yaml:"issues"`
}

const (
	minAbstractLen  = 200
	fullAbstractLen = 1000
	earliestYear    = 1900
)

// Assess scores one record's metadata completeness and lists anomalies.
// now bounds the plausible publication year.
func Assess(p types.Paper, now time.Time) Report {
	r := Report{PaperID: p.ID, Issues: []Issue{}}
	add := func(typ, sev, field, msg string) {
		r.Issues = append(r.Issues, Issue{Type: typ, Severity: sev, Field: field, Message: msg})
	}

	title := strings.TrimSpace(p.Title)
	abstract := strings.TrimSpace(p.Abstract)

	if title != "" {
		r.Completeness += 15
		if isShouting(title) {
			add("formatting", Low, "title", "title is all upper case")
		}
	} else {
		add("missing_field", High, "title", "title is empty")
	}

	// Abstract credit scales with length up to fullAbstractLen.
	n := len(abstract)
	r.Completeness += 30 * min(1, float64(n)/fullAbstractLen)
	switch {
	case n == 0:
		add("missing_field", High, "abstract", "abstract is empty; parameters cannot be extracted")
	case n < minAbstractLen:
		add("short_abstract", Medium, "abstract", fmt.Sprintf("abstract has only %d characters", n))
	}

	if len(p.Authors) > 0 {
		r.Completeness += 10
	} else {
		add("missing_field", Low, "authors", "no authors recorded")
	}
	if NormalizeDOI(p.DOI) != "" {
		r.Completeness += 15
	} else if p.DOI != "" {
		add("invalid_doi", Medium, "doi", fmt.Sprintf("%q is not a DOI", p.DOI))
	} else {
		add("missing_field", Medium, "doi", "no DOI recorded")
	}

	switch {
	case p.Year == 0:
		add("missing_field", Low, "year", "no publication year")
	case p.Year < earliestYear || p.Year > now.Year()+1:
		add("implausible_year", Medium, "year", fmt.Sprintf("publication year %d is implausible", p.Year))
	default:
		r.Completeness += 10
	}

	if strings.TrimSpace(p.Journal) != "" {
		r.Completeness += 10
	}
	if strings.TrimSpace(p.Keywords) != "" {
		r.Completeness += 10
	}

	if p.ExtractedParameters != nil && abstract == "" {
		add("orphan_extraction", Medium, "extracted_parameters", "extracted parameters present without an abstract")
	}
	if p.Validation != nil && !p.Validation.IsValid {
		add("invalid_extraction", High, "validation",
			fmt.Sprintf("extraction has %d critical violations", p.Validation.CountBySeverity(types.SeverityCritical)))
	}

	r.Completeness = math.Round(r.Completeness*10) / 10
	return r
}

func isShouting(s string) bool {
	letters, upper := 0, 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 10 && upper == letters
}

// Summary aggregates reports across a catalog.
type Summary struct {
	Papers           int              `json:"papers" yaml:"papers"`
	WithAbstract     int              `json:"with_abstract" yaml:"with_abstract"`
	WithExtraction   int              `json:"with_extraction" yaml:"with_extraction"`
	ValidExtractions int              `json:"valid_extractions" yaml:"valid_extractions"`
	MeanCompleteness float64          `json:"mean_completeness" yaml:"mean_completeness"`
	IssueCounts      map[string]int   `json:"issue_counts" yaml:"issue_counts"`
	Duplicates       []DuplicateGroup `json:"duplicates" yaml:"duplicates"`
	Reports          []Report         `json:"reports,omitempty" yaml:"reports,omitempty"`
	Recommendations  map[string]int   `json:"recommendations" yaml:"recommendations"`
}

// Summarize assesses every paper and finds duplicates. Reports are kept
// only for papers with at least one high-severity issue.
func Summarize(papers []types.Paper, now time.Time) Summary {
	s := Summary{
		Papers:          len(papers),
		IssueCounts:     make(map[string]int),
		Recommendations: make(map[string]int),
		Duplicates:      FindDuplicates(papers),
	}

	var total float64
	for _, p := range papers {
		r := Assess(p, now)
		total += r.Completeness

		high := false
		for _, is := range r.Issues {
			s.IssueCounts[is.Type]++
			high = high || is.Severity == High
		}
		if high {
			s.Reports = append(s.Reports, r)
		}

		if strings.TrimSpace(p.Abstract) != "" {
			s.WithAbstract++
		}
		if p.ExtractedParameters != nil {
			s.WithExtraction++
			if p.Validation != nil && p.Validation.IsValid {
				s.ValidExtractions++
			}
		}
		if p.Relevance != nil {
			s.Recommendations[string(p.Relevance.Recommendation)]++
		}
	}
	if len(papers) > 0 {
		s.MeanCompleteness = math.Round(total/float64(len(papers))*10) / 10
	}
	return s
}

// FormatSummary writes a human-readable quality report.
func FormatSummary(s Summary, w io.Writer) {
	fmt.Fprintf(w, "Papers:             %d\n", s.Papers)
	fmt.Fprintf(w, "With abstract:      %d\n", s.WithAbstract)
	fmt.Fprintf(w, "With extraction:    %d (%d valid)\n", s.WithExtraction, s.ValidExtractions)
	fmt.Fprintf(w, "Mean completeness:  %.1f\n", s.MeanCompleteness)

	if len(s.Recommendations) > 0 {
		fmt.Fprintf(w, "Recommendations:    keep %d, review %d, remove %d\n",
			s.Recommendations[string(types.RecommendKeep)],
			s.Recommendations[string(types.RecommendReview)],
			s.Recommendations[string(types.RecommendRemove)])
	}

	if len(s.IssueCounts) > 0 {
		fmt.Fprintln(w, "\nIssues:")
		kinds := make([]string, 0, len(s.IssueCounts))
		for k := range s.IssueCounts {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "  %-20s %d\n", k, s.IssueCounts[k])
		}
	}

	if len(s.Duplicates) > 0 {
		fmt.Fprintf(w, "\nDuplicate groups: %d\n", len(s.Duplicates))
		for _, g := range s.Duplicates {
			fmt.Fprintf(w, "  [%s] %s\n", g.Reason, g.Key)
			for i, p := range g.Papers {
				marker := " "
				if i == 0 {
					marker = "*"
				}
				fmt.Fprintf(w, "    %s %s  %s\n", marker, p.ID, p.Title)
			}
		}
	}
}
