// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// QueryFile lists saved fetch queries so a recurring harvest can be rerun
// without retyping them.
type QueryFile struct {
	Queries []QueryParams `yaml:"queries"`
}

// QueryParams stores one query in serializable form.
type QueryParams struct {
	Text       string `yaml:"text"`
	FromYear   int    `yaml:"from_year,omitempty"`
	ToYear     int    `yaml:"to_year,omitempty"`
	MaxResults int    `yaml:"max_results,omitempty"`
}

// ToQuery converts stored params into a Query.
func (p QueryParams) ToQuery() (Query, error) {
	q := Query{
		Text:       strings.TrimSpace(p.Text),
		FromYear:   p.FromYear,
		ToYear:     p.ToYear,
		MaxResults: p.MaxResults,
	}
	if q.IsEmpty() {
		return q, fmt.Errorf("query text is empty")
	}
	if q.FromYear > 0 && q.ToYear > 0 && q.FromYear > q.ToYear {
		return q, fmt.Errorf("from_year %d is after to_year %d", q.FromYear, q.ToYear)
	}
	return q, nil
}

// ReadQueryFile loads and validates the queries in a YAML query file.
func ReadQueryFile(path string) ([]Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	if len(qf.Queries) == 0 {
		return nil, fmt.Errorf("query file %s has no queries", path)
	}

	out := make([]Query, 0, len(qf.Queries))
	for i, p := range qf.Queries {
		q, err := p.ToQuery()
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i+1, err)
		}
		out = append(out, q)
	}
	return out, nil
}

// WriteQueryFile saves queries to a YAML file.
func WriteQueryFile(path string, queries []Query) error {
	qf := QueryFile{Queries: make([]QueryParams, len(queries))}
	for i, q := range queries {
		qf.Queries[i] = QueryParams{Text: q.Text, FromYear: q.FromYear, ToYear: q.ToYear, MaxResults: q.MaxResults}
	}
	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
