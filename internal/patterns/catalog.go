// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package patterns holds the catalog of regular expressions used to find
// parameters in paper abstracts. The catalog is data: an embedded YAML
// table mapping each field to its category, kind, physical quantity and
// ordered list of alternative patterns. It is parsed and compiled once and
// is safe for concurrent use afterwards.
package patterns

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bes-catalog/internal/units"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Kind is the shape of a field's value.
type Kind string

const (
	KindMeasurement Kind = "measurement"
	KindText        Kind = "text"
	KindList        Kind = "list"
)

// Style controls how a matched string is rewritten before it is returned.
type Style string

const (
	StyleAsIs     Style = ""
	StyleLower    Style = "lower"
	StyleBinomial Style = "binomial"
)

// Pattern is one alternative for a field. Group 1 captures the value (or a
// categorical token), group 2 the unit and group 3 an optional qualifier.
// Value and Unit replace the captures for qualitative anchors such as
// "room temperature". Token replaces the matched text for enum fields.
type Pattern struct {
	Regex string   `yaml:"regex"`
	Value *float64 `yaml:"value,omitempty"`
	Unit  string   `yaml:"unit,omitempty"`
	Token string   `yaml:"token,omitempty"`
	Style *Style   `yaml:"style,omitempty"`

	re *regexp.Regexp
}

// Regexp returns the compiled expression.
func (p *Pattern) Regexp() *regexp.Regexp { return p.re }

// Field describes one leaf of an ExtractedParameterSet.
type Field struct {
	Name     string         `yaml:"name"`
	Category string         `yaml:"category"`
	Kind     Kind           `yaml:"kind"`
	Quantity units.Quantity `yaml:"quantity,omitempty"`

	// Unit is assumed when a measurement pattern captures no unit.
	Unit string `yaml:"unit,omitempty"`

	Style Style `yaml:"style,omitempty"`

	// Aliases maps a lower-cased match to its canonical spelling.
	Aliases map[string]string `yaml:"aliases,omitempty"`

	// Stopwords are trailing words trimmed from a match ("Geobacter was").
	Stopwords []string `yaml:"stopwords,omitempty"`

	Patterns []*Pattern `yaml:"patterns"`

	stop map[string]bool
}

// Path returns the dotted JSON path of the field, e.g.
// "performanceMetrics.powerDensity".
func (f *Field) Path() string { return f.Category + "." + f.Name }

// StyleFor returns the style to apply to a match of p.
func (f *Field) StyleFor(p *Pattern) Style {
	if p.Style != nil {
		return *p.Style
	}
	return f.Style
}

// IsStopword reports whether w is one of the field's trailing stopwords.
func (f *Field) IsStopword(w string) bool { return f.stop[strings.ToLower(w)] }

// Catalog is a compiled, read-only pattern table.
type Catalog struct {
	fields []*Field
	index  map[string]*Field
}

// Fields returns the fields in catalog order.
func (c *Catalog) Fields() []*Field { return c.fields }

// Field looks a field up by bare name ("temperature") or dotted path
// ("environmental.temperature").
func (c *Catalog) Field(name string) (*Field, bool) {
	f, ok := c.index[name]
	return f, ok
}

// Categories returns the distinct categories in catalog order.
func (c *Catalog) Categories() []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range c.fields {
		if !seen[f.Category] {
			seen[f.Category] = true
			out = append(out, f.Category)
		}
	}
	return out
}

type catalogFile struct {
	Macros map[string]string `yaml:"macros"`
	Fields []*Field          `yaml:"fields"`
}

// Load parses and compiles a YAML catalog. Macros are substituted into
// regexes as {{name}} before compilation, and every regex is compiled
// case-insensitively.
func Load(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing pattern catalog: %w", err)
	}

	pairs := make([]string, 0, 2*len(file.Macros))
	for name, body := range file.Macros {
		pairs = append(pairs, "{{"+name+"}}", body)
	}
	expand := strings.NewReplacer(pairs...)

	c := &Catalog{index: make(map[string]*Field)}
	for _, f := range file.Fields {
		if err := compileField(f, expand); err != nil {
			return nil, err
		}
		if _, dup := c.index[f.Name]; dup {
			return nil, fmt.Errorf("field %s: duplicate name", f.Name)
		}
		c.fields = append(c.fields, f)
		c.index[f.Name] = f
		c.index[f.Path()] = f
	}
	return c, nil
}

func compileField(f *Field, expand *strings.Replacer) error {
	if f.Name == "" || f.Category == "" {
		return fmt.Errorf("field %q: name and category are required", f.Name)
	}
	switch f.Kind {
	case KindMeasurement:
		if !units.Known(f.Quantity) {
			return fmt.Errorf("field %s: unknown quantity %q", f.Name, f.Quantity)
		}
	case KindText, KindList:
	default:
		return fmt.Errorf("field %s: unknown kind %q", f.Name, f.Kind)
	}
	if len(f.Patterns) == 0 {
		return fmt.Errorf("field %s: no patterns", f.Name)
	}

	f.stop = make(map[string]bool, len(f.Stopwords))
	for _, w := range f.Stopwords {
		f.stop[strings.ToLower(w)] = true
	}
	lowered := make(map[string]string, len(f.Aliases))
	for k, v := range f.Aliases {
		lowered[strings.ToLower(k)] = v
	}
	f.Aliases = lowered

	for i, p := range f.Patterns {
		src := expand.Replace(p.Regex)
		if strings.Contains(src, "{{") {
			return fmt.Errorf("field %s pattern %d: undefined macro in %q", f.Name, i, p.Regex)
		}
		re, err := regexp.Compile("(?i)" + src)
		if err != nil {
			return fmt.Errorf("field %s pattern %d: %w", f.Name, i, err)
		}
		if f.Kind == KindMeasurement && p.Value == nil && re.NumSubexp() < 1 {
			return fmt.Errorf("field %s pattern %d: measurement pattern needs a value group or a fixed value", f.Name, i)
		}
		p.re = re
	}
	return nil
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the embedded catalog. It panics if the embedded YAML does
// not compile, which the package tests rule out.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(defaultCatalog)
		if err != nil {
			panic(err)
		}
		defaultCat = c
	})
	return defaultCat
}
