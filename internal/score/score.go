// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package score rates how relevant a paper is to a bioelectrochemical
// systems catalog. Scoring is a fixed weighted sum over keyword hits; it
// reads only its input and the static term tables below.
package score

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdiddy/bes-catalog/pkg/types"
)

// Per-hit weights. Each sub-score is capped at 100.
const (
	microbialWeight = 20
	algaeWeight     = 25
	systemWeight    = 15
	systemTypeBonus = 30
	keywordWeight   = 10
	exclusionWeight = 15
	maxExclusion    = 50
	subScoreCap     = 100
	keepThreshold   = 30
	removeThreshold = 10
	categoryMinHits = 2
)

var microbialTerms = []string{
	"microbial", "microorganism", "microbe", "bacteria", "bacterium", "bacterial",
	"biofilm", "exoelectrogen", "exoelectrogenic", "electroactive", "electrogenic",
	"anaerobic sludge", "activated sludge", "mixed culture", "consortium", "consortia",
	"inoculum", "geobacter", "shewanella", "pseudomonas", "desulfovibrio", "clostridium",
	"methanogen", "archaea",
}

var algaeTerms = []string{
	"algae", "algal", "microalgae", "microalgal", "chlorella", "spirulina",
	"arthrospira", "scenedesmus", "chlamydomonas", "cyanobacteria", "cyanobacterial",
	"synechocystis", "diatom", "photosynthetic", "phototrophic", "photobioreactor",
	"biophotovoltaic",
}

var systemTerms = []string{
	"microbial fuel cell", "microbial electrolysis cell", "microbial desalination cell",
	"microbial electrosynthesis", "bioelectrochemical", "bioelectrochemistry",
	"bioanode", "biocathode", "electromethanogenesis", "extracellular electron transfer",
	"MFC", "MEC", "MDC", "BES",
}

var exclusionTerms = []string{
	"solar panel", "photovoltaic", "perovskite", "lithium-ion", "lithium ion",
	"solid oxide fuel cell", "hydrogen fuel cell", "direct methanol fuel cell",
	"proton exchange membrane fuel cell", "supercapacitor", "redox flow battery",
	"semiconductor", "thermoelectric", "wind turbine",
}

var contextModifiers = []string{
	"bio-inspired", "bioinspired", "biohybrid", "bio-hybrid", "biological",
	"living", "biocompatible", "whole-cell",
}

// bioelectrochemicalTypes are systemType values that earn the bonus.
var bioelectrochemicalTypes = map[string]bool{
	"MFC": true, "MEC": true, "MDC": true, "MES": true, "BES": true,
	"MICROBIAL FUEL CELL": true, "MICROBIAL ELECTROLYSIS CELL": true,
	"MICROBIAL DESALINATION CELL": true, "MICROBIAL ELECTROSYNTHESIS": true,
	"BIOELECTROCHEMICAL SYSTEM": true,
}

// term is one compiled keyword.
type term struct {
	word string
	re   *regexp.Regexp
}

// compile builds whole-word matchers. Lower-case terms match any case and
// an optional plural; all-caps acronyms match only as written.
func compile(words []string) []term {
	out := make([]term, len(words))
	for i, w := range words {
		src := regexp.QuoteMeta(w)
		src = strings.ReplaceAll(src, " ", `[\s-]+`)
		if isAcronym(w) {
			src = `\b` + src + `s?\b`
		} else {
			src = `(?i)\b` + src + `(?:s|es)?\b`
		}
		out[i] = term{word: w, re: regexp.MustCompile(src)}
	}
	return out
}

func isAcronym(w string) bool {
	for _, r := range w {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

var (
	microbial = compile(microbialTerms)
	algae     = compile(algaeTerms)
	system    = compile(systemTerms)
	exclusion = compile(exclusionTerms)
	modifiers = compile(contextModifiers)
)

// hits counts every occurrence of every term in text and records which
// terms matched, in table order.
func hits(text string, terms []term, matched *[]string) int {
	n := 0
	for _, t := range terms {
		c := len(t.re.FindAllStringIndex(text, -1))
		if c > 0 && matched != nil {
			*matched = appendUnique(*matched, t.word)
		}
		n += c
	}
	return n
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}

func capped(n, weight int) float64 {
	return math.Min(subScoreCap, float64(n*weight))
}

// Score rates one paper. Title and abstract supply the keyword hits;
// keywords and organism types supply keyword density; a bioelectrochemical
// systemType adds a fixed bonus to the system sub-score.
func Score(in types.ScoreInput) types.RelevanceScore {
	text := in.Title + "\n" + in.Abstract
	meta := in.Keywords + "\n" + in.OrganismTypes

	matched := []string{}
	excluded := []string{}

	microbialHits := hits(text, microbial, &matched)
	algaeHits := hits(text, algae, &matched)
	systemHits := hits(text, system, &matched)
	exclusionHits := hits(text, exclusion, &excluded)
	modifierHits := hits(text, modifiers, nil)

	metaHits := hits(meta, microbial, nil) + hits(meta, algae, nil) + hits(meta, system, nil)

	systemTypeBES := bioelectrochemicalTypes[strings.ToUpper(strings.TrimSpace(in.SystemType))]

	b := types.ScoreBreakdown{
		MicrobialScore: capped(microbialHits, microbialWeight),
		AlgaeScore:     capped(algaeHits, algaeWeight),
		KeywordDensity: capped(metaHits, keywordWeight),
	}
	systemPoints := systemHits * systemWeight
	if systemTypeBES {
		systemPoints += systemTypeBonus
	}
	b.SystemScore = math.Min(subScoreCap, float64(systemPoints))

	if modifierHits == 0 {
		b.ExclusionPenalty = math.Min(maxExclusion, float64(exclusionHits*exclusionWeight))
	}

	overall := 0.4*b.MicrobialScore + 0.3*b.AlgaeScore + 0.2*b.SystemScore + 0.1*b.KeywordDensity - b.ExclusionPenalty
	overall = math.Round(math.Max(0, math.Min(100, overall))*10) / 10

	bio := microbialHits > 0 || algaeHits > 0
	c := types.ScoreCategories{
		IsMicrobial:           microbialHits >= categoryMinHits,
		IsAlgae:               algaeHits >= categoryMinHits,
		IsBioelectrochemical:  (systemHits > 0 || systemTypeBES) && bio,
		IsPurelyNonBiological: exclusionHits > 0 && !bio && modifierHits == 0,
	}

	return types.RelevanceScore{
		Overall:          overall,
		Breakdown:        b,
		Categories:       c,
		MatchedKeywords:  matched,
		ExcludedKeywords: excluded,
		Recommendation:   recommend(overall, c),
	}
}

func recommend(overall float64, c types.ScoreCategories) types.Recommendation {
	switch {
	case overall >= keepThreshold || c.AnyBiological():
		return types.RecommendKeep
	case overall < removeThreshold || c.IsPurelyNonBiological:
		return types.RecommendRemove
	default:
		return types.RecommendReview
	}
}
