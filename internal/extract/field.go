// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract pulls structured parameters out of paper titles and
// abstracts. Field applies one field's patterns; Extract assembles every
// field into an ExtractedParameterSet. Both are pure and safe for
// concurrent use. Run drives batch extraction over the catalog with either
// the regex engine or a local LLM backend.
package extract

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/bes-catalog/internal/patterns"
	"github.com/pdiddy/bes-catalog/internal/units"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

// FieldValue is one extracted leaf. Exactly one of Measurement, Text or
// List is meaningful, selected by Kind.
type FieldValue struct {
	Kind        patterns.Kind
	Measurement types.Measurement
	Text        string
	List        []string
}

// Engine extracts parameters using one compiled pattern catalog.
type Engine struct {
	catalog *patterns.Catalog
}

// New returns an engine over c.
func New(c *patterns.Catalog) *Engine {
	return &Engine{catalog: c}
}

var defaultEngine = sync.OnceValue(func() *Engine {
	return New(patterns.Default())
})

// Default returns the engine over the embedded catalog.
func Default() *Engine { return defaultEngine() }

// Field extracts one field from text using the embedded catalog.
func Field(text, name string) (FieldValue, bool) {
	return defaultEngine().Field(text, name)
}

// Field extracts the named field (bare name or dotted path) from text.
// An unknown field name, a text with no match, or a match whose number
// cannot be parsed all report false.
func (e *Engine) Field(text, name string) (FieldValue, bool) {
	f, ok := e.catalog.Field(name)
	if !ok {
		return FieldValue{}, false
	}
	return extractField(text, f)
}

func extractField(text string, f *patterns.Field) (FieldValue, bool) {
	switch f.Kind {
	case patterns.KindMeasurement:
		return measurementField(text, f)
	case patterns.KindList:
		return listField(text, f)
	default:
		return textField(text, f)
	}
}

// measurementField returns the first matching pattern's value. Later
// patterns are not consulted once one matches, even if the match cannot be
// parsed.
func measurementField(text string, f *patterns.Field) (FieldValue, bool) {
	for _, p := range f.Patterns {
		m := p.Regexp().FindStringSubmatch(text)
		if m == nil {
			continue
		}

		var (
			value float64
			unit  string
		)
		if p.Value != nil {
			value, unit = *p.Value, p.Unit
		} else {
			v, err := parseNumber(group(m, 1))
			if err != nil {
				return FieldValue{}, false
			}
			value, unit = v, group(m, 2)
		}
		if unit == "" {
			unit = f.Unit
		}

		value, unit = units.Normalize(value, unit, f.Quantity)
		return FieldValue{
			Kind: patterns.KindMeasurement,
			Measurement: types.Measurement{
				Value:      value,
				Unit:       unit,
				Conditions: group(m, 3),
			},
		}, true
	}
	return FieldValue{}, false
}

func textField(text string, f *patterns.Field) (FieldValue, bool) {
	for _, p := range f.Patterns {
		m := p.Regexp().FindStringSubmatch(text)
		if m == nil {
			continue
		}
		s := clean(f, p, matchValue(p, m))
		if s == "" {
			return FieldValue{}, false
		}
		return FieldValue{Kind: patterns.KindText, Text: s}, true
	}
	return FieldValue{}, false
}

// listField collects every match of every pattern in pattern order,
// dropping case-insensitive duplicates and items whose words are a strict
// prefix of another item ("Geobacter" beside "Geobacter sulfurreducens").
func listField(text string, f *patterns.Field) (FieldValue, bool) {
	var items []string
	seen := make(map[string]bool)
	for _, p := range f.Patterns {
		for _, m := range p.Regexp().FindAllStringSubmatch(text, -1) {
			s := clean(f, p, matchValue(p, m))
			key := strings.ToLower(s)
			if s == "" || seen[key] {
				continue
			}
			seen[key] = true
			items = append(items, s)
		}
	}

	items = dropPrefixes(items)
	if len(items) == 0 {
		return FieldValue{}, false
	}
	return FieldValue{Kind: patterns.KindList, List: items}, true
}

func matchValue(p *patterns.Pattern, m []string) string {
	if p.Token != "" {
		return p.Token
	}
	if s := group(m, 1); s != "" {
		return s
	}
	return strings.TrimSpace(m[0])
}

// clean collapses whitespace, trims trailing stopwords, then applies the
// field's alias table or, failing that, its style. Tokens pass through
// unchanged.
func clean(f *patterns.Field, p *patterns.Pattern, s string) string {
	if p.Token != "" {
		return p.Token
	}

	words := strings.Fields(s)
	for len(words) > 1 && f.IsStopword(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	s = strings.Join(words, " ")

	if alias, ok := f.Aliases[strings.ToLower(s)]; ok {
		return alias
	}

	switch f.StyleFor(p) {
	case patterns.StyleLower:
		return strings.ToLower(s)
	case patterns.StyleBinomial:
		return binomial(words)
	default:
		return s
	}
}

// binomial writes an organism name as Genus species.
func binomial(words []string) string {
	out := make([]string, len(words))
	for i, w := range words {
		w = strings.ToLower(w)
		if i == 0 {
			r, size := utf8.DecodeRuneInString(w)
			w = string(unicode.ToUpper(r)) + w[size:]
		}
		out[i] = w
	}
	return strings.Join(out, " ")
}

func dropPrefixes(items []string) []string {
	var out []string
	for i, a := range items {
		subsumed := false
		for j, b := range items {
			if i != j && isWordPrefix(a, b) {
				subsumed = true
				break
			}
		}
		if !subsumed {
			out = append(out, a)
		}
	}
	return out
}

// isWordPrefix reports whether a's words are a strict prefix of b's.
func isWordPrefix(a, b string) bool {
	aw, bw := strings.Fields(strings.ToLower(a)), strings.Fields(strings.ToLower(b))
	if len(aw) >= len(bw) {
		return false
	}
	for i := range aw {
		if aw[i] != bw[i] {
			return false
		}
	}
	return true
}

func group(m []string, i int) string {
	if i < len(m) {
		return strings.TrimSpace(m[i])
	}
	return ""
}

// parseNumber parses a captured number, accepting thousands separators.
func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrRange
	}
	return v, nil
}
