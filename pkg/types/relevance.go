// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Recommendation is the scorer's verdict on whether a paper belongs in the catalog.
type Recommendation string

const (
	RecommendKeep   Recommendation = "keep"
	RecommendRemove Recommendation = "remove"
	RecommendReview Recommendation = "review"
)

// ScoreInput carries the text fields the relevance scorer reads. Any field
// may be empty.
type ScoreInput struct {
	Title         string `json:"title"`
	Abstract      string `json:"abstract"`
	Keywords      string `json:"keywords"`
	OrganismTypes string `json:"organism_types"`
	SystemType    string `json:"system_type"`
}

// ScoreBreakdown holds the weighted sub-scores that make up Overall.
type ScoreBreakdown struct {
	MicrobialScore   float64 `json:"microbial_score" yaml:"microbial_score"`
	AlgaeScore       float64 `json:"algae_score" yaml:"algae_score"`
	SystemScore      float64 `json:"system_score" yaml:"system_score"`
	KeywordDensity   float64 `json:"keyword_density" yaml:"keyword_density"`
	ExclusionPenalty float64 `json:"exclusion_penalty" yaml:"exclusion_penalty"`
}

// ScoreCategories flags the biological character of a paper.
type ScoreCategories struct {
	IsMicrobial           bool `json:"is_microbial" yaml:"is_microbial"`
	IsAlgae               bool `json:"is_algae" yaml:"is_algae"`
	IsBioelectrochemical  bool `json:"is_bioelectrochemical" yaml:"is_bioelectrochemical"`
	IsPurelyNonBiological bool `json:"is_purely_non_biological" yaml:"is_purely_non_biological"`
}

// AnyBiological reports whether any biological category is set.
func (c ScoreCategories) AnyBiological() bool {
	return c.IsMicrobial || c.IsAlgae || c.IsBioelectrochemical
}

// RelevanceScore is the output of the relevance scorer. Overall is in [0, 100].
type RelevanceScore struct {
	Overall          float64         `json:"overall" yaml:"overall"`
	Breakdown        ScoreBreakdown  `json:"breakdown" yaml:"breakdown"`
	Categories       ScoreCategories `json:"categories" yaml:"categories"`
	MatchedKeywords  []string        `json:"matched_keywords" yaml:"matched_keywords"`
	ExcludedKeywords []string        `json:"excluded_keywords" yaml:"excluded_keywords"`
	Recommendation   Recommendation  `json:"recommendation" yaml:"recommendation"`
}
