// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"strings"

	"github.com/pdiddy/bes-catalog/internal/patterns"
	"github.com/pdiddy/bes-catalog/internal/units"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

// Extract runs every catalog field over the paper's title and abstract
// using the embedded catalog.
func Extract(p types.PaperText) types.ExtractedParameterSet {
	return defaultEngine().Extract(p)
}

// Extract runs every catalog field over the paper's title and abstract.
// Categories with no extracted field are left nil.
func (e *Engine) Extract(p types.PaperText) types.ExtractedParameterSet {
	text := p.Text()

	var set types.ExtractedParameterSet
	for _, f := range e.catalog.Fields() {
		v, ok := extractField(text, f)
		if !ok {
			continue
		}
		if assign, ok := assigners[f.Path()]; ok {
			assign(&set, v)
		}
	}
	return set
}

// NormalizeSet rebuilds a set produced outside the regex engine so that it
// obeys the same rules: numeric leaves in canonical units, blank strings
// and empty lists dropped, empty categories nil.
func (e *Engine) NormalizeSet(in types.ExtractedParameterSet) types.ExtractedParameterSet {
	flat := in.Flatten()

	var out types.ExtractedParameterSet
	for _, f := range e.catalog.Fields() {
		assign, ok := assigners[f.Path()]
		if !ok {
			continue
		}

		var v FieldValue
		switch x := flat[f.Path()].(type) {
		case types.Measurement:
			if f.Kind != patterns.KindMeasurement {
				continue
			}
			value, unit := units.Normalize(x.Value, x.Unit, f.Quantity)
			v = FieldValue{Kind: patterns.KindMeasurement, Measurement: types.Measurement{
				Value:      value,
				Unit:       unit,
				Conditions: strings.TrimSpace(x.Conditions),
			}}
		case string:
			s := strings.TrimSpace(x)
			if s == "" {
				continue
			}
			// Map free-form enum spellings ("microbial fuel cell") onto tokens.
			if tv, ok := textField(s, f); ok {
				s = tv.Text
			}
			v = FieldValue{Kind: patterns.KindText, Text: s}
		case []string:
			list := normalizeList(x)
			if len(list) == 0 {
				continue
			}
			v = FieldValue{Kind: patterns.KindList, List: list}
		default:
			continue
		}
		assign(&out, v)
	}
	return out
}

func normalizeList(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range in {
		s = strings.Join(strings.Fields(s), " ")
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return dropPrefixes(out)
}

// Leaves counts the populated leaves of a set.
func Leaves(s types.ExtractedParameterSet) int {
	return len(s.Flatten())
}

func (v FieldValue) measurement() *types.Measurement {
	m := v.Measurement
	return &m
}

// Category accessors allocate on first use so untouched categories stay nil.

func environmental(s *types.ExtractedParameterSet) *types.EnvironmentalConditions {
	if s.Environmental == nil {
		s.Environmental = &types.EnvironmentalConditions{}
	}
	return s.Environmental
}

func reactor(s *types.ExtractedParameterSet) *types.ReactorConfiguration {
	if s.ReactorConfiguration == nil {
		s.ReactorConfiguration = &types.ReactorConfiguration{}
	}
	return s.ReactorConfiguration
}

func electrode(s *types.ExtractedParameterSet) *types.ElectrodeSpecifications {
	if s.ElectrodeSpecifications == nil {
		s.ElectrodeSpecifications = &types.ElectrodeSpecifications{}
	}
	return s.ElectrodeSpecifications
}

func biological(s *types.ExtractedParameterSet) *types.BiologicalParameters {
	if s.BiologicalParameters == nil {
		s.BiologicalParameters = &types.BiologicalParameters{}
	}
	return s.BiologicalParameters
}

func performance(s *types.ExtractedParameterSet) *types.PerformanceMetrics {
	if s.PerformanceMetrics == nil {
		s.PerformanceMetrics = &types.PerformanceMetrics{}
	}
	return s.PerformanceMetrics
}

func operational(s *types.ExtractedParameterSet) *types.OperationalParameters {
	if s.OperationalParameters == nil {
		s.OperationalParameters = &types.OperationalParameters{}
	}
	return s.OperationalParameters
}

func electrochemical(s *types.ExtractedParameterSet) *types.ElectrochemicalData {
	if s.ElectrochemicalData == nil {
		s.ElectrochemicalData = &types.ElectrochemicalData{}
	}
	return s.ElectrochemicalData
}

type assigner func(*types.ExtractedParameterSet, FieldValue)

// assigners maps each dotted path to the struct field it populates.
var assigners = map[string]assigner{
	"environmental.temperature":  func(s *types.ExtractedParameterSet, v FieldValue) { environmental(s).Temperature = v.measurement() },
	"environmental.pH":           func(s *types.ExtractedParameterSet, v FieldValue) { environmental(s).PH = v.measurement() },
	"environmental.conductivity": func(s *types.ExtractedParameterSet, v FieldValue) { environmental(s).Conductivity = v.measurement() },

	"reactorConfiguration.systemType":       func(s *types.ExtractedParameterSet, v FieldValue) { reactor(s).SystemType = v.Text },
	"reactorConfiguration.design":           func(s *types.ExtractedParameterSet, v FieldValue) { reactor(s).Design = v.Text },
	"reactorConfiguration.volume":           func(s *types.ExtractedParameterSet, v FieldValue) { reactor(s).Volume = v.measurement() },
	"reactorConfiguration.membraneType":     func(s *types.ExtractedParameterSet, v FieldValue) { reactor(s).MembraneType = v.Text },
	"reactorConfiguration.electrodeSpacing": func(s *types.ExtractedParameterSet, v FieldValue) { reactor(s).ElectrodeSpacing = v.measurement() },

	"electrodeSpecifications.anodeMaterial":        func(s *types.ExtractedParameterSet, v FieldValue) { electrode(s).AnodeMaterial = v.Text },
	"electrodeSpecifications.cathodeMaterial":      func(s *types.ExtractedParameterSet, v FieldValue) { electrode(s).CathodeMaterial = v.Text },
	"electrodeSpecifications.anodeArea":            func(s *types.ExtractedParameterSet, v FieldValue) { electrode(s).AnodeArea = v.measurement() },
	"electrodeSpecifications.cathodeArea":          func(s *types.ExtractedParameterSet, v FieldValue) { electrode(s).CathodeArea = v.measurement() },
	"electrodeSpecifications.surfaceModifications": func(s *types.ExtractedParameterSet, v FieldValue) { electrode(s).SurfaceModifications = v.List },
	"electrodeSpecifications.catalyst":             func(s *types.ExtractedParameterSet, v FieldValue) { electrode(s).Catalyst = v.Text },

	"biologicalParameters.organisms":      func(s *types.ExtractedParameterSet, v FieldValue) { biological(s).Organisms = v.List },
	"biologicalParameters.inoculumSource": func(s *types.ExtractedParameterSet, v FieldValue) { biological(s).InoculumSource = v.Text },
	"biologicalParameters.substrate":      func(s *types.ExtractedParameterSet, v FieldValue) { biological(s).Substrate = v.Text },
	"biologicalParameters.substrateConcentration": func(s *types.ExtractedParameterSet, v FieldValue) {
		biological(s).SubstrateConcentration = v.measurement()
	},
	"biologicalParameters.biofilmThickness": func(s *types.ExtractedParameterSet, v FieldValue) { biological(s).BiofilmThickness = v.measurement() },

	"performanceMetrics.powerDensity": func(s *types.ExtractedParameterSet, v FieldValue) { performance(s).PowerDensity = v.measurement() },
	"performanceMetrics.volumetricPowerDensity": func(s *types.ExtractedParameterSet, v FieldValue) {
		performance(s).VolumetricPowerDensity = v.measurement()
	},
	"performanceMetrics.currentDensity": func(s *types.ExtractedParameterSet, v FieldValue) { performance(s).CurrentDensity = v.measurement() },
	"performanceMetrics.current":        func(s *types.ExtractedParameterSet, v FieldValue) { performance(s).Current = v.measurement() },
	"performanceMetrics.openCircuitVoltage": func(s *types.ExtractedParameterSet, v FieldValue) {
		performance(s).OpenCircuitVoltage = v.measurement()
	},
	"performanceMetrics.operatingVoltage": func(s *types.ExtractedParameterSet, v FieldValue) { performance(s).OperatingVoltage = v.measurement() },
	"performanceMetrics.coulombicEfficiency": func(s *types.ExtractedParameterSet, v FieldValue) {
		performance(s).CoulombicEfficiency = v.measurement()
	},
	"performanceMetrics.voltageEfficiency": func(s *types.ExtractedParameterSet, v FieldValue) { performance(s).VoltageEfficiency = v.measurement() },
	"performanceMetrics.energyEfficiency":  func(s *types.ExtractedParameterSet, v FieldValue) { performance(s).EnergyEfficiency = v.measurement() },
	"performanceMetrics.codRemoval":        func(s *types.ExtractedParameterSet, v FieldValue) { performance(s).CODRemoval = v.measurement() },

	"operationalParameters.hydraulicRetentionTime": func(s *types.ExtractedParameterSet, v FieldValue) {
		operational(s).HydraulicRetentionTime = v.measurement()
	},
	"operationalParameters.externalResistance": func(s *types.ExtractedParameterSet, v FieldValue) {
		operational(s).ExternalResistance = v.measurement()
	},
	"operationalParameters.operationMode":     func(s *types.ExtractedParameterSet, v FieldValue) { operational(s).OperationMode = v.Text },
	"operationalParameters.flowRate":          func(s *types.ExtractedParameterSet, v FieldValue) { operational(s).FlowRate = v.measurement() },
	"operationalParameters.operationDuration": func(s *types.ExtractedParameterSet, v FieldValue) { operational(s).OperationDuration = v.measurement() },

	"electrochemicalData.internalResistance": func(s *types.ExtractedParameterSet, v FieldValue) {
		electrochemical(s).InternalResistance = v.measurement()
	},
	"electrochemicalData.chargeTransferResistance": func(s *types.ExtractedParameterSet, v FieldValue) {
		electrochemical(s).ChargeTransferResistance = v.measurement()
	},
	"electrochemicalData.techniques": func(s *types.ExtractedParameterSet, v FieldValue) { electrochemical(s).Techniques = v.List },
}
