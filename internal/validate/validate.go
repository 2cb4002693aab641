// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate checks an ExtractedParameterSet for physically
// implausible values. Problems are reported as data in a ValidationResult,
// never as errors. A set is valid unless a violation is critical.
package validate

import (
	"fmt"
	"math"
	"strings"

	"github.com/pdiddy/bes-catalog/pkg/types"
)

// Parameter paths referenced by the rules.
const (
	pathTemperature      = "environmental.temperature"
	pathSystemType       = "reactorConfiguration.systemType"
	pathElectrodeSpacing = "reactorConfiguration.electrodeSpacing"
	pathAnodeMaterial    = "electrodeSpecifications.anodeMaterial"
	pathAnodeArea        = "electrodeSpecifications.anodeArea"
	pathOrganisms        = "biologicalParameters.organisms"
	pathBiofilm          = "biologicalParameters.biofilmThickness"
	pathPowerDensity     = "performanceMetrics.powerDensity"
	pathCurrentDensity   = "performanceMetrics.currentDensity"
	pathCurrent          = "performanceMetrics.current"
	pathVoltage          = "performanceMetrics.operatingVoltage"
	pathCE               = "performanceMetrics.coulombicEfficiency"
	pathVE               = "performanceMetrics.voltageEfficiency"
	pathEE               = "performanceMetrics.energyEfficiency"
	pathCOD              = "performanceMetrics.codRemoval"
	pathExternalR        = "operationalParameters.externalResistance"
)

// Consistency penalties.
const (
	penaltyCritical = 0.30
	penaltyMajor    = 0.15
	penaltyMinor    = 0.05
	penaltyWarning  = 0.02
)

// Range is the plausible span of one parameter in its canonical unit.
type Range struct {
	Path string
	Min  float64
	Max  float64
	Unit string
}

// Ranges is the static range table, in report order.
var Ranges = []Range{
	{pathTemperature, 0, 80, "°C"},
	{"environmental.pH", 2, 12, "pH"},
	{"environmental.conductivity", 0.05, 200, "mS/cm"},
	{"reactorConfiguration.volume", 0.01, 1e7, "mL"},
	{pathElectrodeSpacing, 0.05, 50, "cm"},
	{pathAnodeArea, 0.01, 1e5, "cm²"},
	{"electrodeSpecifications.cathodeArea", 0.01, 1e5, "cm²"},
	{"biologicalParameters.substrateConcentration", 1, 1e5, "mg/L"},
	{pathBiofilm, 0.1, 1000, "µm"},
	{pathPowerDensity, 0.001, 10000, "mW/m²"},
	{"performanceMetrics.volumetricPowerDensity", 0.001, 2000, "W/m³"},
	{pathCurrentDensity, 0.01, 50000, "mA/m²"},
	{pathCurrent, 0.0001, 1000, "mA"},
	{"performanceMetrics.openCircuitVoltage", 50, 1200, "mV"},
	{pathVoltage, 1, 1100, "mV"},
	{pathCE, 0, 100, "%"},
	{pathVE, 0, 100, "%"},
	{pathEE, 0, 100, "%"},
	{pathCOD, 0, 100, "%"},
	{"operationalParameters.hydraulicRetentionTime", 0.1, 2000, "h"},
	{pathExternalR, 1, 1e6, "Ω"},
	{"operationalParameters.flowRate", 0.001, 1e4, "mL/min"},
	{"operationalParameters.operationDuration", 0.1, 20000, "h"},
	{"electrochemicalData.internalResistance", 0.1, 1e5, "Ω"},
	{"electrochemicalData.chargeTransferResistance", 0.01, 1e5, "Ω"},
}

// Expected lists the paths whose absence is reported as a high-impact warning.
var Expected = []string{
	pathPowerDensity,
	pathAnodeMaterial,
	pathOrganisms,
	pathSystemType,
	pathTemperature,
}

// Validate checks set against the range table, the relationship rules, the
// expected-parameter list and the unusual-combination list.
func Validate(set types.ExtractedParameterSet) types.ValidationResult {
	flat := set.Flatten()
	values := set.Measurements()
	res := types.ValidationResult{
		Violations: []types.Violation{},
		Warnings:   []types.Warning{},
	}

	checked, inRange := 0, 0
	for _, r := range Ranges {
		m, ok := values[r.Path]
		if !ok || m.Unit != r.Unit {
			continue
		}
		checked++
		if v, bad := checkRange(r, m.Value); bad {
			res.Violations = append(res.Violations, v)
			continue
		}
		inRange++
	}

	for _, rule := range relationships {
		if v, bad := rule.check(set, values); bad {
			v.Type = types.ViolationRelationship
			v.Rule = rule.name
			res.Violations = append(res.Violations, v)
		}
	}

	present := 0
	for _, path := range Expected {
		if _, ok := flat[path]; ok {
			present++
			continue
		}
		res.Warnings = append(res.Warnings, types.Warning{
			Type:      types.WarningMissingParameter,
			Parameter: path,
			Message:   fmt.Sprintf("expected parameter %s was not extracted", path),
			Impact:    "high",
		})
	}

	for _, c := range combinations {
		if w, hit := c(values); hit {
			res.Warnings = append(res.Warnings, w)
		}
	}

	res.IsValid = res.CountBySeverity(types.SeverityCritical) == 0

	consistency := 1.0
	for _, v := range res.Violations {
		consistency -= penalty(v.Severity)
	}
	consistency -= penaltyWarning * float64(len(res.Warnings))
	res.ConsistencyScore = round(math.Max(0, consistency))

	res.PhysicalPlausibility = 1
	if checked > 0 {
		res.PhysicalPlausibility = round(float64(inRange) / float64(checked))
	}

	completeness := float64(present) / float64(len(Expected))
	res.ConfidenceScore = round(0.5*completeness + 0.5*res.ConsistencyScore)
	return res
}

// checkRange grades how far v falls outside r, measured in range widths.
func checkRange(r Range, v float64) (types.Violation, bool) {
	var outside float64
	switch {
	case v < r.Min:
		outside = r.Min - v
	case v > r.Max:
		outside = v - r.Max
	default:
		return types.Violation{}, false
	}

	sev := types.SeverityMinor
	switch ratio := outside / (r.Max - r.Min); {
	case ratio > 1:
		sev = types.SeverityCritical
	case ratio > 0.5:
		sev = types.SeverityMajor
	}

	return types.Violation{
		Type:      types.ViolationRange,
		Severity:  sev,
		Parameter: r.Path,
		Message:   fmt.Sprintf("%s = %g %s is outside the plausible range %g–%g %s", r.Path, v, r.Unit, r.Min, r.Max, r.Unit),
	}, true
}

func penalty(s types.Severity) float64 {
	switch s {
	case types.SeverityCritical:
		return penaltyCritical
	case types.SeverityMajor:
		return penaltyMajor
	default:
		return penaltyMinor
	}
}

func round(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// measurement returns the value at path when it is present in unit.
func measurement(values map[string]types.Measurement, path, unit string) (float64, bool) {
	m, ok := values[path]
	if !ok || m.Unit != unit {
		return 0, false
	}
	return m.Value, true
}

// relationship is a named physical-consistency rule. A rule whose inputs
// are not all present passes.
type relationship struct {
	name  string
	check func(set types.ExtractedParameterSet, values map[string]types.Measurement) (types.Violation, bool)
}

var relationships = []relationship{
	{"ohms-law", checkOhmsLaw},
	{"power-vi", checkPowerVI},
	{"efficiency-composition", checkEfficiency},
	{"biofilm-vs-spacing", checkBiofilmSpacing},
	{"temperature-vs-organism", checkOrganismTemperature},
}

// checkOhmsLaw compares the operating voltage with I·R over the external
// resistor. mA × Ω gives mV.
func checkOhmsLaw(_ types.ExtractedParameterSet, values map[string]types.Measurement) (types.Violation, bool) {
	v, ok1 := measurement(values, pathVoltage, "mV")
	i, ok2 := measurement(values, pathCurrent, "mA")
	r, ok3 := measurement(values, pathExternalR, "Ω")
	if !ok1 || !ok2 || !ok3 || v <= 0 {
		return types.Violation{}, false
	}
	expected := i * r
	if math.Abs(v-expected)/v <= 0.25 {
		return types.Violation{}, false
	}
	return types.Violation{
		Severity:  types.SeverityMajor,
		Parameter: pathVoltage,
		Message:   fmt.Sprintf("operating voltage %g mV disagrees with I·R = %g mV", v, expected),
	}, true
}

// checkPowerVI compares the reported power density with V·I over the anode
// area. mV × mA gives µW; area is converted from cm² to m².
func checkPowerVI(_ types.ExtractedParameterSet, values map[string]types.Measurement) (types.Violation, bool) {
	p, ok1 := measurement(values, pathPowerDensity, "mW/m²")
	v, ok2 := measurement(values, pathVoltage, "mV")
	i, ok3 := measurement(values, pathCurrent, "mA")
	a, ok4 := measurement(values, pathAnodeArea, "cm²")
	if !ok1 || !ok2 || !ok3 || !ok4 || p <= 0 || a <= 0 {
		return types.Violation{}, false
	}
	expected := (v * i / 1000) / (a / 1e4)
	if math.Abs(p-expected)/p <= 0.5 {
		return types.Violation{}, false
	}
	return types.Violation{
		Severity:  types.SeverityMajor,
		Parameter: pathPowerDensity,
		Message:   fmt.Sprintf("power density %g mW/m² disagrees with V·I/A = %.4g mW/m²", p, expected),
	}, true
}

// checkEfficiency requires energy efficiency ≈ coulombic × voltage efficiency.
func checkEfficiency(_ types.ExtractedParameterSet, values map[string]types.Measurement) (types.Violation, bool) {
	ce, ok1 := measurement(values, pathCE, "%")
	ve, ok2 := measurement(values, pathVE, "%")
	ee, ok3 := measurement(values, pathEE, "%")
	if !ok1 || !ok2 || !ok3 {
		return types.Violation{}, false
	}
	expected := ce * ve / 100
	if math.Abs(ee-expected) <= 10 {
		return types.Violation{}, false
	}
	return types.Violation{
		Severity:  types.SeverityMajor,
		Parameter: pathEE,
		Message:   fmt.Sprintf("energy efficiency %g%% disagrees with CE×VE = %.3g%%", ee, expected),
	}, true
}

// checkBiofilmSpacing rejects a biofilm thicker than the anode-cathode gap.
func checkBiofilmSpacing(_ types.ExtractedParameterSet, values map[string]types.Measurement) (types.Violation, bool) {
	thickness, ok1 := measurement(values, pathBiofilm, "µm")
	spacing, ok2 := measurement(values, pathElectrodeSpacing, "cm")
	if !ok1 || !ok2 {
		return types.Violation{}, false
	}
	if thickness < spacing*1e4 {
		return types.Violation{}, false
	}
	return types.Violation{
		Severity:  types.SeverityCritical,
		Parameter: pathBiofilm,
		Message:   fmt.Sprintf("biofilm thickness %g µm exceeds electrode spacing %g cm", thickness, spacing),
	}, true
}

// Tolerance is the growth temperature span of a genus in °C.
type Tolerance struct {
	Min, Max float64
}

// OrganismTolerance maps lower-case genus names to growth temperature spans.
var OrganismTolerance = map[string]Tolerance{
	"geobacter":        {10, 45},
	"shewanella":       {4, 40},
	"pseudomonas":      {4, 42},
	"escherichia":      {8, 48},
	"clostridium":      {10, 65},
	"desulfovibrio":    {10, 45},
	"rhodopseudomonas": {15, 40},
	"klebsiella":       {10, 45},
	"bacillus":         {5, 60},
	"thermincola":      {40, 75},
	"chlorella":        {5, 40},
	"scenedesmus":      {10, 40},
	"chlamydomonas":    {10, 35},
	"spirulina":        {20, 45},
	"arthrospira":      {20, 45},
	"synechocystis":    {15, 40},
	"synechococcus":    {15, 45},
}

func checkOrganismTemperature(set types.ExtractedParameterSet, values map[string]types.Measurement) (types.Violation, bool) {
	temp, ok := measurement(values, pathTemperature, "°C")
	if !ok || set.BiologicalParameters == nil {
		return types.Violation{}, false
	}
	for _, org := range set.BiologicalParameters.Organisms {
		genus := strings.ToLower(strings.Fields(org + " ")[0])
		tol, known := OrganismTolerance[genus]
		if !known || (temp >= tol.Min && temp <= tol.Max) {
			continue
		}
		return types.Violation{
			Severity:  types.SeverityMajor,
			Parameter: pathOrganisms,
			Message:   fmt.Sprintf("%s does not grow at %g °C (tolerates %g–%g °C)", org, temp, tol.Min, tol.Max),
		}, true
	}
	return types.Violation{}, false
}

// combinations are plausible but suspicious pairings; they only warn.
var combinations = []func(map[string]types.Measurement) (types.Warning, bool){
	func(values map[string]types.Measurement) (types.Warning, bool) {
		p, ok1 := measurement(values, pathPowerDensity, "mW/m²")
		v, ok2 := measurement(values, pathVoltage, "mV")
		if !ok1 || !ok2 || p <= 5000 || v >= 100 {
			return types.Warning{}, false
		}
		return unusual(pathPowerDensity, fmt.Sprintf("very high power density (%g mW/m²) at very low voltage (%g mV)", p, v)), true
	},
	func(values map[string]types.Measurement) (types.Warning, bool) {
		ce, ok1 := measurement(values, pathCE, "%")
		cod, ok2 := measurement(values, pathCOD, "%")
		if !ok1 || !ok2 || ce <= 90 || cod >= 20 {
			return types.Warning{}, false
		}
		return unusual(pathCE, fmt.Sprintf("coulombic efficiency %g%% with only %g%% COD removal", ce, cod)), true
	},
	func(values map[string]types.Measurement) (types.Warning, bool) {
		cd, ok1 := measurement(values, pathCurrentDensity, "mA/m²")
		p, ok2 := measurement(values, pathPowerDensity, "mW/m²")
		if !ok1 || !ok2 || cd <= 10000 || p >= 10 {
			return types.Warning{}, false
		}
		return unusual(pathCurrentDensity, fmt.Sprintf("high current density (%g mA/m²) with negligible power (%g mW/m²)", cd, p)), true
	},
}

func unusual(path, msg string) types.Warning {
	return types.Warning{
		Type:      types.WarningUnusualCombination,
		Parameter: path,
		Message:   msg,
		Impact:    "medium",
	}
}
