// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Severity grades a validation violation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// ViolationType names the rule family that produced a violation.
type ViolationType string

const (
	ViolationRange        ViolationType = "range"
	ViolationRelationship ViolationType = "relationship"
)

// Violation is a failed range or relationship check.
type Violation struct {
	Type      ViolationType `json:"type" yaml:"type"`
	Severity  Severity      `json:"severity" yaml:"severity"`
	Parameter string        `json:"parameter" yaml:"parameter"`
	Message   string        `json:"message" yaml:"message"`
	// Rule is the relationship check name; empty for range violations.
	Rule string `json:"rule,omitempty" yaml:"rule,omitempty"`
}

// WarningType names the check that produced a warning.
type WarningType string

const (
	WarningMissingParameter   WarningType = "missing_parameter"
	WarningUnusualCombination WarningType = "unusual_combination"
)

// Warning is a non-fatal notice: a missing expected parameter or a
// plausible but suspicious combination of values.
type Warning struct {
	Type      WarningType `json:"type" yaml:"type"`
	Parameter string      `json:"parameter" yaml:"parameter"`
	Message   string      `json:"message" yaml:"message"`
	Impact    string      `json:"impact" yaml:"impact"`
}

// ValidationResult is derived from one ExtractedParameterSet.
// IsValid is true iff no violation has critical severity.
type ValidationResult struct {
	IsValid              bool        `json:"is_valid" yaml:"is_valid"`
	Violations           []Violation `json:"violations" yaml:"violations"`
	Warnings             []Warning   `json:"warnings" yaml:"warnings"`
	ConsistencyScore     float64     `json:"consistency_score" yaml:"consistency_score"`
	PhysicalPlausibility float64     `json:"physical_plausibility" yaml:"physical_plausibility"`
	ConfidenceScore      float64     `json:"confidence_score" yaml:"confidence_score"`
}

// CountBySeverity returns the number of violations with severity sev.
func (r ValidationResult) CountBySeverity(sev Severity) int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == sev {
			n++
		}
	}
	return n
}
