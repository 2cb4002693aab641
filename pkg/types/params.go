// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Measurement is a numeric leaf of an ExtractedParameterSet. Unit is the
// canonical unit for the field's quantity unless the source text used a
// unit spelling the normalizer does not recognize, in which case the
// original spelling is kept.
type Measurement struct {
	Value      float64 `json:"value" yaml:"value"`
	Unit       string  `json:"unit" yaml:"unit"`
	Conditions string  `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// PaperText is the input to one extraction call. A nil Abstract is treated
// as the empty string.
type PaperText struct {
	Title    string  `json:"title" yaml:"title"`
	Abstract *string `json:"abstract" yaml:"abstract"`
}

// Text returns the title and abstract joined as a single blob, title first.
func (p PaperText) Text() string {
	if p.Abstract == nil || *p.Abstract == "" {
		return p.Title
	}
	return p.Title + "\n" + *p.Abstract
}

// EnvironmentalConditions holds the conditions the reactor was operated under.
type EnvironmentalConditions struct {
	Temperature  *Measurement `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	PH           *Measurement `json:"pH,omitempty" yaml:"pH,omitempty"`
	Conductivity *Measurement `json:"conductivity,omitempty" yaml:"conductivity,omitempty"`
}

// ReactorConfiguration describes the bioelectrochemical reactor.
type ReactorConfiguration struct {
	// SystemType is one of MFC, MEC, MDC, MES or BES.
	SystemType       string       `json:"systemType,omitempty" yaml:"systemType,omitempty"`
	Design           string       `json:"design,omitempty" yaml:"design,omitempty"`
	Volume           *Measurement `json:"volume,omitempty" yaml:"volume,omitempty"`
	MembraneType     string       `json:"membraneType,omitempty" yaml:"membraneType,omitempty"`
	ElectrodeSpacing *Measurement `json:"electrodeSpacing,omitempty" yaml:"electrodeSpacing,omitempty"`
}

// ElectrodeSpecifications describes anode and cathode construction.
type ElectrodeSpecifications struct {
	AnodeMaterial        string       `json:"anodeMaterial,omitempty" yaml:"anodeMaterial,omitempty"`
	CathodeMaterial      string       `json:"cathodeMaterial,omitempty" yaml:"cathodeMaterial,omitempty"`
	AnodeArea            *Measurement `json:"anodeArea,omitempty" yaml:"anodeArea,omitempty"`
	CathodeArea          *Measurement `json:"cathodeArea,omitempty" yaml:"cathodeArea,omitempty"`
	SurfaceModifications []string     `json:"surfaceModifications,omitempty" yaml:"surfaceModifications,omitempty"`
	Catalyst             string       `json:"catalyst,omitempty" yaml:"catalyst,omitempty"`
}

// BiologicalParameters describes the microbial side of the system.
type BiologicalParameters struct {
	Organisms              []string     `json:"organisms,omitempty" yaml:"organisms,omitempty"`
	InoculumSource         string       `json:"inoculumSource,omitempty" yaml:"inoculumSource,omitempty"`
	Substrate              string       `json:"substrate,omitempty" yaml:"substrate,omitempty"`
	SubstrateConcentration *Measurement `json:"substrateConcentration,omitempty" yaml:"substrateConcentration,omitempty"`
	BiofilmThickness       *Measurement `json:"biofilmThickness,omitempty" yaml:"biofilmThickness,omitempty"`
}

// PerformanceMetrics holds reported reactor output.
type PerformanceMetrics struct {
	PowerDensity           *Measurement `json:"powerDensity,omitempty" yaml:"powerDensity,omitempty"`
	VolumetricPowerDensity *Measurement `json:"volumetricPowerDensity,omitempty" yaml:"volumetricPowerDensity,omitempty"`
	CurrentDensity         *Measurement `json:"currentDensity,omitempty" yaml:"currentDensity,omitempty"`
	Current                *Measurement `json:"current,omitempty" yaml:"current,omitempty"`
	OpenCircuitVoltage     *Measurement `json:"openCircuitVoltage,omitempty" yaml:"openCircuitVoltage,omitempty"`
	OperatingVoltage       *Measurement `json:"operatingVoltage,omitempty" yaml:"operatingVoltage,omitempty"`
	CoulombicEfficiency    *Measurement `json:"coulombicEfficiency,omitempty" yaml:"coulombicEfficiency,omitempty"`
	VoltageEfficiency      *Measurement `json:"voltageEfficiency,omitempty" yaml:"voltageEfficiency,omitempty"`
	EnergyEfficiency       *Measurement `json:"energyEfficiency,omitempty" yaml:"energyEfficiency,omitempty"`
	CODRemoval             *Measurement `json:"codRemoval,omitempty" yaml:"codRemoval,omitempty"`
}

// OperationalParameters describes how the reactor was run.
type OperationalParameters struct {
	HydraulicRetentionTime *Measurement `json:"hydraulicRetentionTime,omitempty" yaml:"hydraulicRetentionTime,omitempty"`
	ExternalResistance     *Measurement `json:"externalResistance,omitempty" yaml:"externalResistance,omitempty"`
	// OperationMode is one of batch, fed-batch or continuous.
	OperationMode     string       `json:"operationMode,omitempty" yaml:"operationMode,omitempty"`
	FlowRate          *Measurement `json:"flowRate,omitempty" yaml:"flowRate,omitempty"`
	OperationDuration *Measurement `json:"operationDuration,omitempty" yaml:"operationDuration,omitempty"`
}

// ElectrochemicalData holds characterization results.
type ElectrochemicalData struct {
	InternalResistance       *Measurement `json:"internalResistance,omitempty" yaml:"internalResistance,omitempty"`
	ChargeTransferResistance *Measurement `json:"chargeTransferResistance,omitempty" yaml:"chargeTransferResistance,omitempty"`
	Techniques               []string     `json:"techniques,omitempty" yaml:"techniques,omitempty"`
}

// ExtractedParameterSet is the result of one extraction run over one
// paper. A nil category means nothing was found for it; callers test
// presence rather than emptiness.
type ExtractedParameterSet struct {
	Environmental           *EnvironmentalConditions `json:"environmental,omitempty" yaml:"environmental,omitempty"`
	ReactorConfiguration    *ReactorConfiguration    `json:"reactorConfiguration,omitempty" yaml:"reactorConfiguration,omitempty"`
	ElectrodeSpecifications *ElectrodeSpecifications `json:"electrodeSpecifications,omitempty" yaml:"electrodeSpecifications,omitempty"`
	BiologicalParameters    *BiologicalParameters    `json:"biologicalParameters,omitempty" yaml:"biologicalParameters,omitempty"`
	PerformanceMetrics      *PerformanceMetrics      `json:"performanceMetrics,omitempty" yaml:"performanceMetrics,omitempty"`
	OperationalParameters   *OperationalParameters   `json:"operationalParameters,omitempty" yaml:"operationalParameters,omitempty"`
	ElectrochemicalData     *ElectrochemicalData     `json:"electrochemicalData,omitempty" yaml:"electrochemicalData,omitempty"`
}

// IsEmpty reports whether no category was populated.
func (s ExtractedParameterSet) IsEmpty() bool {
	return s.Environmental == nil && s.ReactorConfiguration == nil &&
		s.ElectrodeSpecifications == nil && s.BiologicalParameters == nil &&
		s.PerformanceMetrics == nil && s.OperationalParameters == nil &&
		s.ElectrochemicalData == nil
}

// CategoryCount returns the number of populated categories.
func (s ExtractedParameterSet) CategoryCount() int {
	n := 0
	for _, present := range []bool{
		s.Environmental != nil, s.ReactorConfiguration != nil,
		s.ElectrodeSpecifications != nil, s.BiologicalParameters != nil,
		s.PerformanceMetrics != nil, s.OperationalParameters != nil,
		s.ElectrochemicalData != nil,
	} {
		if present {
			n++
		}
	}
	return n
}

// Measurement returns the numeric leaf at a dotted path such as
// "performanceMetrics.powerDensity".
func (s ExtractedParameterSet) Measurement(path string) (Measurement, bool) {
	m, ok := s.Measurements()[path]
	return m, ok
}

// Has reports whether any leaf, numeric or not, is present at path.
func (s ExtractedParameterSet) Has(path string) bool {
	_, ok := s.Flatten()[path]
	return ok
}

// Measurements returns every present numeric leaf keyed by dotted path.
func (s ExtractedParameterSet) Measurements() map[string]Measurement {
	out := make(map[string]Measurement)
	for path, v := range s.Flatten() {
		if m, ok := v.(Measurement); ok {
			out[path] = m
		}
	}
	return out
}

// Flatten returns every present leaf keyed by dotted JSON path. Values are
// Measurement, string or []string.
func (s ExtractedParameterSet) Flatten() map[string]any {
	f := flattener{out: make(map[string]any)}

	if e := s.Environmental; e != nil {
		f.measurement("environmental.temperature", e.Temperature)
		f.measurement("environmental.pH", e.PH)
		f.measurement("environmental.conductivity", e.Conductivity)
	}
	if r := s.ReactorConfiguration; r != nil {
		f.text("reactorConfiguration.systemType", r.SystemType)
		f.text("reactorConfiguration.design", r.Design)
		f.measurement("reactorConfiguration.volume", r.Volume)
		f.text("reactorConfiguration.membraneType", r.MembraneType)
		f.measurement("reactorConfiguration.electrodeSpacing", r.ElectrodeSpacing)
	}
	if e := s.ElectrodeSpecifications; e != nil {
		f.text("electrodeSpecifications.anodeMaterial", e.AnodeMaterial)
		f.text("electrodeSpecifications.cathodeMaterial", e.CathodeMaterial)
		f.measurement("electrodeSpecifications.anodeArea", e.AnodeArea)
		f.measurement("electrodeSpecifications.cathodeArea", e.CathodeArea)
		f.list("electrodeSpecifications.surfaceModifications", e.SurfaceModifications)
		f.text("electrodeSpecifications.catalyst", e.Catalyst)
	}
	if b := s.BiologicalParameters; b != nil {
		f.list("biologicalParameters.organisms", b.Organisms)
		f.text("biologicalParameters.inoculumSource", b.InoculumSource)
		f.text("biologicalParameters.substrate", b.Substrate)
		f.measurement("biologicalParameters.substrateConcentration", b.SubstrateConcentration)
		f.measurement("biologicalParameters.biofilmThickness", b.BiofilmThickness)
	}
	if p := s.PerformanceMetrics; p != nil {
		f.measurement("performanceMetrics.powerDensity", p.PowerDensity)
		f.measurement("performanceMetrics.volumetricPowerDensity", p.VolumetricPowerDensity)
		f.measurement("performanceMetrics.currentDensity", p.CurrentDensity)
		f.measurement("performanceMetrics.current", p.Current)
		f.measurement("performanceMetrics.openCircuitVoltage", p.OpenCircuitVoltage)
		f.measurement("performanceMetrics.operatingVoltage", p.OperatingVoltage)
		f.measurement("performanceMetrics.coulombicEfficiency", p.CoulombicEfficiency)
		f.measurement("performanceMetrics.voltageEfficiency", p.VoltageEfficiency)
		f.measurement("performanceMetrics.energyEfficiency", p.EnergyEfficiency)
		f.measurement("performanceMetrics.codRemoval", p.CODRemoval)
	}
	if o := s.OperationalParameters; o != nil {
		f.measurement("operationalParameters.hydraulicRetentionTime", o.HydraulicRetentionTime)
		f.measurement("operationalParameters.externalResistance", o.ExternalResistance)
		f.text("operationalParameters.operationMode", o.OperationMode)
		f.measurement("operationalParameters.flowRate", o.FlowRate)
		f.measurement("operationalParameters.operationDuration", o.OperationDuration)
	}
	if e := s.ElectrochemicalData; e != nil {
		f.measurement("electrochemicalData.internalResistance", e.InternalResistance)
		f.measurement("electrochemicalData.chargeTransferResistance", e.ChargeTransferResistance)
		f.list("electrochemicalData.techniques", e.Techniques)
	}

	return f.out
}

type flattener struct {
	out map[string]any
}

func (f flattener) measurement(path string, m *Measurement) {
	if m != nil {
		f.out[path] = *m
	}
}

func (f flattener) text(path, v string) {
	if v != "" {
		f.out[path] = v
	}
}

func (f flattener) list(path string, v []string) {
	if len(v) > 0 {
		f.out[path] = v
	}
}
