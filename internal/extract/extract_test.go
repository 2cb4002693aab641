// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bes-catalog/internal/patterns"
	"github.com/pdiddy/bes-catalog/internal/units"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	backoffBase = time.Millisecond
	os.Exit(m.Run())
}

const exampleSentence = "Power density of 1500 mW/m² was achieved at pH 7.0 and 30°C using Geobacter sulfurreducens on carbon cloth anodes."

const mfcAbstract = "A single-chamber air-cathode MFC (28 mL) with a Nafion membrane was operated in fed-batch mode at 25 °C " +
	"with an external resistance of 1000 Ω. The coulombic efficiency was 35% and COD removal reached 85%. " +
	"Shewanella oneidensis MR-1 and Geobacter spp. were enriched from anaerobic sludge. " +
	"EIS and cyclic voltammetry revealed an internal resistance of 120 Ω."

func text(title, abstract string) types.PaperText {
	return types.PaperText{Title: title, Abstract: &abstract}
}

func TestExtract_ExampleScenario(t *testing.T) {
	set := Extract(types.PaperText{Title: exampleSentence})

	pd, ok := set.Measurement("performanceMetrics.powerDensity")
	require.True(t, ok)
	assert.Equal(t, types.Measurement{Value: 1500, Unit: "mW/m²"}, pd)

	ph, ok := set.Measurement("environmental.pH")
	require.True(t, ok)
	assert.Equal(t, 7.0, ph.Value)

	temp, ok := set.Measurement("environmental.temperature")
	require.True(t, ok)
	assert.Equal(t, types.Measurement{Value: 30, Unit: "°C"}, temp)

	require.NotNil(t, set.BiologicalParameters)
	assert.Contains(t, set.BiologicalParameters.Organisms, "Geobacter sulfurreducens")
	require.NotNil(t, set.ElectrodeSpecifications)
	assert.Equal(t, "carbon cloth", set.ElectrodeSpecifications.AnodeMaterial)
}

func TestExtract_UnitConversion(t *testing.T) {
	set := Extract(types.PaperText{Title: "achieved 1.5 W/m²"})

	pd, ok := set.Measurement("performanceMetrics.powerDensity")
	require.True(t, ok)
	assert.Equal(t, types.Measurement{Value: 1500, Unit: "mW/m²"}, pd)
	assert.Equal(t, 1, set.CategoryCount())
}

func TestExtract_AbsenceOnNoMatch(t *testing.T) {
	set := Extract(types.PaperText{Title: "Unrelated topic about birds"})

	assert.True(t, set.IsEmpty())
	assert.Equal(t, 0, set.CategoryCount())

	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestExtract_FirstMatchWins(t *testing.T) {
	// The "power density" pattern is listed before the bare-unit pattern,
	// so it wins even though the bare unit appears earlier in the text.
	set := Extract(types.PaperText{Title: "A peak of 900 mW/m² was seen; the power density reached 1200 mW/m²"})

	pd, ok := set.Measurement("performanceMetrics.powerDensity")
	require.True(t, ok)
	assert.Equal(t, 1200.0, pd.Value)
}

func TestExtract_Idempotent(t *testing.T) {
	in := text("Enhanced power generation in MFCs", mfcAbstract)

	a, err := json.Marshal(Extract(in))
	require.NoError(t, err)
	b, err := json.Marshal(Extract(in))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExtract_UnitInvariant(t *testing.T) {
	inputs := []string{
		exampleSentence,
		mfcAbstract,
		"current density of 2.5 A/m2 and maximum power of 0.8 W m-2 at 303 K",
		"HRT of 2 days, 500 mg/L acetate, 0.2 g/L COD, flow rate 0.5 mL/min, biofilm 45 μm thick",
	}

	c := patterns.Default()
	for _, in := range inputs {
		set := Extract(types.PaperText{Title: in})
		for path, m := range set.Measurements() {
			f, ok := c.Field(path)
			require.True(t, ok, path)
			assert.Equal(t, units.Canonical(f.Quantity), m.Unit, "%s in %q", path, in)
		}
	}
}

func TestExtract_UnitSpellingsNormalize(t *testing.T) {
	tests := []struct {
		text  string
		path  string
		value float64
		unit  string
	}{
		{"power density of 250 mWm-2", "performanceMetrics.powerDensity", 250, "mW/m²"},
		{"power density of 2.5 nW/cm2", "performanceMetrics.powerDensity", 0.025, "mW/m²"},
		{"power density of 0.4 kW/m2", "performanceMetrics.powerDensity", 400000, "mW/m²"},
		{"power density of 12 µW cm⁻²", "performanceMetrics.powerDensity", 120, "mW/m²"},
		{"power density of 1.2 W·m⁻²", "performanceMetrics.powerDensity", 1200, "mW/m²"},
		{"volumetric power density of 30 W/m³", "performanceMetrics.volumetricPowerDensity", 30, "W/m³"},
		{"volumetric power density of 2 kW m-3", "performanceMetrics.volumetricPowerDensity", 2000, "W/m³"},
		{"volumetric power density of 150 mWL-1", "performanceMetrics.volumetricPowerDensity", 150, "W/m³"},
		{"volumetric power density of 0.5 mW/cm3", "performanceMetrics.volumetricPowerDensity", 500, "W/m³"},
		{"current density of 1.2 Am-2", "performanceMetrics.currentDensity", 1200, "mA/m²"},
		{"current density of 40 µA/cm²", "performanceMetrics.currentDensity", 400, "mA/m²"},
		{"current density of 900 nA cm-2", "performanceMetrics.currentDensity", 9, "mA/m²"},
		{"current of 0.6 mA was produced", "performanceMetrics.current", 0.6, "mA"},
		{"current of 250 nA was produced", "performanceMetrics.current", 0.00025, "mA"},
		{"open circuit voltage of 0.78 V.", "performanceMetrics.openCircuitVoltage", 780, "mV"},
		{"operating voltage of 450 µV.", "performanceMetrics.operatingVoltage", 0.45, "mV"},
		{"working volume of 28 ml.", "reactorConfiguration.volume", 28, "mL"},
		{"working volume of 0.5 dm³.", "reactorConfiguration.volume", 500, "mL"},
		{"working volume of 250 µL.", "reactorConfiguration.volume", 0.25, "mL"},
		{"anode area of 7 cm²", "electrodeSpecifications.anodeArea", 7, "cm²"},
		{"anode area of 0.01 m^2", "electrodeSpecifications.anodeArea", 100, "cm²"},
		{"electrode spacing of 20 MM.", "reactorConfiguration.electrodeSpacing", 2, "cm"},
		{"electrode spacing of 500 um.", "reactorConfiguration.electrodeSpacing", 0.05, "cm"},
		{"biofilm thickness of 40 μm", "biologicalParameters.biofilmThickness", 40, "µm"},
		{"biofilm thickness of 800 nm", "biologicalParameters.biofilmThickness", 0.8, "µm"},
		{"external resistance of 2 MOhms", "operationalParameters.externalResistance", 2e6, "Ω"},
		{"external resistance of 1 kohms", "operationalParameters.externalResistance", 1000, "Ω"},
		{"external resistance of 500 mohm", "operationalParameters.externalResistance", 0.5, "Ω"},
		{"internal resistance of 120 OHMS", "electrochemicalData.internalResistance", 120, "Ω"},
		{"internal resistance of 3 KΩ", "electrochemicalData.internalResistance", 3000, "Ω"},
		{"HRT of 12 hrs.", "operationalParameters.hydraulicRetentionTime", 12, "h"},
		{"HRT of 90 minutes.", "operationalParameters.hydraulicRetentionTime", 1.5, "h"},
		{"HRT of 2 Days.", "operationalParameters.hydraulicRetentionTime", 48, "h"},
		{"flow rate of 0.5 mL min-1", "operationalParameters.flowRate", 0.5, "mL/min"},
		{"flow rate of 30 µL/h", "operationalParameters.flowRate", 0.0005, "mL/min"},
		{"flow rate of 1.44 L d−1", "operationalParameters.flowRate", 1, "mL/min"},
		{"acetate 2 kg COD/m3", "biologicalParameters.substrateConcentration", 2000, "mg/L"},
		{"acetate 1.5 g COD L-1", "biologicalParameters.substrateConcentration", 1500, "mg/L"},
		{"acetate 800 mgCOD·L⁻¹", "biologicalParameters.substrateConcentration", 800, "mg/L"},
		{"acetate 500 µg/L", "biologicalParameters.substrateConcentration", 0.5, "mg/L"},
		{"acetate 300 g m-3", "biologicalParameters.substrateConcentration", 300, "mg/L"},
		{"conductivity of 1.2 S/m", "environmental.conductivity", 12, "mS/cm"},
		{"conductivity of 1500 µS·cm⁻¹", "environmental.conductivity", 1.5, "mS/cm"},
		{"operated at 86 °F.", "environmental.temperature", 30, "°C"},
		{"operated at 30 degree celsius.", "environmental.temperature", 30, "°C"},
		{"operated at 30 ℃.", "environmental.temperature", 30, "°C"},
		{"temperature of 303 K", "environmental.temperature", 29.85, "°C"},
	}

	c := patterns.Default()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			set := Extract(types.PaperText{Title: tt.text})

			m, ok := set.Measurement(tt.path)
			require.True(t, ok, "no %s", tt.path)
			assert.InDelta(t, tt.value, m.Value, 1e-9)
			assert.Equal(t, tt.unit, m.Unit)

			for path, m := range set.Measurements() {
				f, ok := c.Field(path)
				require.True(t, ok, path)
				assert.Equal(t, units.Canonical(f.Quantity), m.Unit, path)
			}
		})
	}
}

func TestExtract_SystemTypeMES(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Cells were grown in 50 mM MES buffer at pH 6.", ""},
		{"MES-buffered medium was used with a bioelectrochemical system.", "BES"},
		{"Acetate was produced by microbial electrosynthesis from CO2.", "MES"},
		{"Two MES reactors were operated for 60 days.", "MES"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			v, ok := Field(tt.text, "systemType")
			if tt.want == "" {
				assert.False(t, ok, "got %q", v.Text)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, v.Text)
		})
	}
}

func TestExtract_FullAbstract(t *testing.T) {
	set := Extract(text("Enhanced power generation in single-chamber MFCs", mfcAbstract))

	require.NotNil(t, set.ReactorConfiguration)
	assert.Equal(t, "MFC", set.ReactorConfiguration.SystemType)
	assert.Equal(t, "single-chamber", set.ReactorConfiguration.Design)
	assert.Equal(t, "Nafion", set.ReactorConfiguration.MembraneType)

	require.NotNil(t, set.OperationalParameters)
	assert.Equal(t, "fed-batch", set.OperationalParameters.OperationMode)
	assert.Equal(t, &types.Measurement{Value: 1000, Unit: "Ω"}, set.OperationalParameters.ExternalResistance)

	require.NotNil(t, set.PerformanceMetrics)
	assert.Equal(t, 35.0, set.PerformanceMetrics.CoulombicEfficiency.Value)
	assert.Equal(t, 85.0, set.PerformanceMetrics.CODRemoval.Value)

	require.NotNil(t, set.BiologicalParameters)
	assert.Equal(t, []string{"Shewanella oneidensis", "Geobacter spp."}, set.BiologicalParameters.Organisms)

	require.NotNil(t, set.ElectrochemicalData)
	assert.Equal(t, 120.0, set.ElectrochemicalData.InternalResistance.Value)
	assert.ElementsMatch(t, []string{"cyclic voltammetry", "electrochemical impedance spectroscopy"}, set.ElectrochemicalData.Techniques)
}

func TestExtract_ConvertsSourceUnits(t *testing.T) {
	set := Extract(types.PaperText{Title: "current density of 2.5 A/m2 and maximum power of 0.8 W m-2 at 303 K"})

	pd, ok := set.Measurement("performanceMetrics.powerDensity")
	require.True(t, ok)
	assert.InDelta(t, 800, pd.Value, 1e-9)
	assert.Equal(t, "mW/m²", pd.Unit)
	assert.Equal(t, "at 303 K", pd.Conditions)

	cd, ok := set.Measurement("performanceMetrics.currentDensity")
	require.True(t, ok)
	assert.InDelta(t, 2500, cd.Value, 1e-9)
	assert.Equal(t, "mA/m²", cd.Unit)

	temp, ok := set.Measurement("environmental.temperature")
	require.True(t, ok)
	assert.InDelta(t, 29.85, temp.Value, 1e-9)
	assert.Equal(t, "°C", temp.Unit)
}

func TestExtract_NilAbstract(t *testing.T) {
	withNil := Extract(types.PaperText{Title: exampleSentence})
	withEmpty := Extract(text(exampleSentence, ""))
	assert.Equal(t, withNil, withEmpty)
}

func TestExtract_Concurrent(t *testing.T) {
	want := Extract(text("MFC study", mfcAbstract))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, Extract(text("MFC study", mfcAbstract)))
		}()
	}
	wg.Wait()
}

func TestField(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		field string
		want  FieldValue
		found bool
	}{
		{
			name:  "measurement by bare name",
			text:  "reached 1.5 W/m²",
			field: "powerDensity",
			want:  FieldValue{Kind: patterns.KindMeasurement, Measurement: types.Measurement{Value: 1500, Unit: "mW/m²"}},
			found: true,
		},
		{
			name:  "measurement by path",
			text:  "at pH 6.8",
			field: "environmental.pH",
			want:  FieldValue{Kind: patterns.KindMeasurement, Measurement: types.Measurement{Value: 6.8, Unit: "pH"}},
			found: true,
		},
		{
			name:  "fixed value anchor",
			text:  "operated at room temperature",
			field: "temperature",
			want:  FieldValue{Kind: patterns.KindMeasurement, Measurement: types.Measurement{Value: 25, Unit: "°C"}},
			found: true,
		},
		{
			name:  "enum token",
			text:  "a microbial electrolysis cell (MEC)",
			field: "systemType",
			want:  FieldValue{Kind: patterns.KindText, Text: "MEC"},
			found: true,
		},
		{
			name:  "list",
			text:  "Geobacter sulfurreducens and Shewanella oneidensis",
			field: "organisms",
			want:  FieldValue{Kind: patterns.KindList, List: []string{"Geobacter sulfurreducens", "Shewanella oneidensis"}},
			found: true,
		},
		{
			name:  "no match",
			text:  "Unrelated topic about birds",
			field: "powerDensity",
		},
		{
			name:  "unknown field",
			text:  exampleSentence,
			field: "colour",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Field(tt.text, tt.field)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

const testCatalog = `
fields:
  - name: powerDensity
    category: performanceMetrics
    kind: measurement
    quantity: power-density
    patterns:
      - regex: 'first\s+([0-9.]+)\s*(mW/m2)'
      - regex: 'second\s+([0-9]+)\s*(mW/m2)'
  - name: organisms
    category: biologicalParameters
    kind: list
    style: binomial
    patterns:
      - regex: '\b(geobacter\s+\w+)'
      - regex: '\b(geobacter)\b'
`

func TestEngine_CustomCatalog(t *testing.T) {
	c, err := patterns.Load([]byte(testCatalog))
	require.NoError(t, err)
	e := New(c)

	t.Run("first pattern wins over later match", func(t *testing.T) {
		v, ok := e.Field("second 900 mW/m2 then first 1200 mW/m2", "powerDensity")
		require.True(t, ok)
		assert.Equal(t, 1200.0, v.Measurement.Value)
	})

	t.Run("unparseable capture is absent", func(t *testing.T) {
		// "1.2.3" matches the first pattern but is not a number; the
		// second pattern is not consulted.
		_, ok := e.Field("first 1.2.3 mW/m2 and second 900 mW/m2", "powerDensity")
		assert.False(t, ok)
	})

	t.Run("list drops word prefixes and duplicates", func(t *testing.T) {
		v, ok := e.Field("GEOBACTER SULFURREDUCENS, geobacter sulfurreducens and Geobacter", "organisms")
		require.True(t, ok)
		assert.Equal(t, []string{"Geobacter sulfurreducens"}, v.List)
	})

	t.Run("extract builds only matched categories", func(t *testing.T) {
		set := e.Extract(types.PaperText{Title: "first 2 mW/m2"})
		assert.NotNil(t, set.PerformanceMetrics)
		assert.Nil(t, set.BiologicalParameters)
		assert.Equal(t, 1, set.CategoryCount())
	})
}

func TestAssigners_CoverCatalog(t *testing.T) {
	for _, f := range patterns.Default().Fields() {
		_, ok := assigners[f.Path()]
		assert.True(t, ok, "no assigner for %s", f.Path())
	}
	assert.Len(t, assigners, len(patterns.Default().Fields()))
}

func TestNormalizeSet(t *testing.T) {
	in := types.ExtractedParameterSet{
		Environmental: &types.EnvironmentalConditions{
			Temperature: &types.Measurement{Value: 308.15, Unit: "K"},
		},
		ReactorConfiguration: &types.ReactorConfiguration{
			SystemType: " microbial fuel cell ",
			Design:     "",
		},
		BiologicalParameters: &types.BiologicalParameters{
			Organisms: []string{"Geobacter", "Geobacter  sulfurreducens", "geobacter sulfurreducens", " "},
		},
		PerformanceMetrics: &types.PerformanceMetrics{
			PowerDensity: &types.Measurement{Value: 1.5, Unit: "W/m2"},
		},
		OperationalParameters: &types.OperationalParameters{},
	}

	out := Default().NormalizeSet(in)

	require.NotNil(t, out.Environmental)
	assert.InDelta(t, 35, out.Environmental.Temperature.Value, 1e-9)
	assert.Equal(t, "°C", out.Environmental.Temperature.Unit)
	assert.Equal(t, "MFC", out.ReactorConfiguration.SystemType)
	assert.Empty(t, out.ReactorConfiguration.Design)
	assert.Equal(t, []string{"Geobacter sulfurreducens"}, out.BiologicalParameters.Organisms)
	assert.Equal(t, &types.Measurement{Value: 1500, Unit: "mW/m²"}, out.PerformanceMetrics.PowerDensity)
	assert.Nil(t, out.OperationalParameters, "empty category is dropped")
}

// --- batch runner ---

type fakeStore struct {
	mu      sync.Mutex
	papers  []types.Paper
	saved   map[string]*types.ExtractedParameterSet
	checks  map[string]*types.ValidationResult
	failIDs map[string]bool
	force   bool
}

func (f *fakeStore) Pending(_ context.Context, limit int, force bool) ([]types.Paper, error) {
	f.force = force
	if limit > 0 && limit < len(f.papers) {
		return f.papers[:limit], nil
	}
	return f.papers, nil
}

func (f *fakeStore) SaveExtraction(_ context.Context, id string, set *types.ExtractedParameterSet, v *types.ValidationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[id] {
		return errors.New("database is locked")
	}
	if f.saved == nil {
		f.saved = make(map[string]*types.ExtractedParameterSet)
		f.checks = make(map[string]*types.ValidationResult)
	}
	f.saved[id] = set
	f.checks[id] = v
	return nil
}

// failNTimesBackend fails the first N calls, then delegates to the regex engine.
type failNTimesBackend struct {
	mu        sync.Mutex
	failures  int
	callCount int
}

func (f *failNTimesBackend) Name() string { return "flaky" }

func (f *failNTimesBackend) Extract(ctx context.Context, p types.PaperText) (types.ExtractedParameterSet, error) {
	f.mu.Lock()
	f.callCount++
	n := f.callCount
	f.mu.Unlock()
	if n <= f.failures {
		return types.ExtractedParameterSet{}, errors.New("transient error")
	}
	return RegexBackend{}.Extract(ctx, p)
}

func TestRun(t *testing.T) {
	store := &fakeStore{
		papers: []types.Paper{
			{ID: "p1", Title: exampleSentence},
			{ID: "p2", Title: "Unrelated topic about birds"},
			{ID: "p3", Title: "MFC study", Abstract: mfcAbstract},
			{ID: "p4", Title: "achieved 1.5 W/m²"},
		},
		failIDs: map[string]bool{"p4": true},
	}

	var out bytes.Buffer
	summary, err := Run(context.Background(), store, RegexBackend{}, types.ExtractionConfig{Workers: 3, Force: true}, nil, &out)
	require.NoError(t, err)

	assert.Equal(t, BatchSummary{Extracted: 2, Skipped: 1, Failed: 1}, summary)
	assert.Equal(t, 4, summary.Total())
	assert.True(t, summary.HasFailures())
	assert.True(t, store.force)

	require.Contains(t, store.saved, "p1")
	assert.Equal(t, 1500.0, store.saved["p1"].PerformanceMetrics.PowerDensity.Value)
	require.Contains(t, store.checks, "p1")
	assert.True(t, store.checks["p1"].IsValid)
	assert.NotContains(t, store.saved, "p2")

	assert.Contains(t, out.String(), "skipped p2")
	assert.Contains(t, out.String(), "failed  p4")
}

func TestRun_RetriesBackend(t *testing.T) {
	store := &fakeStore{papers: []types.Paper{{ID: "p1", Title: exampleSentence}}}
	backend := &failNTimesBackend{failures: 2}

	cfg := types.ExtractionConfig{Workers: 1, LLM: types.LLMConfig{MaxRetries: 3}}
	summary, err := Run(context.Background(), store, backend, cfg, nil, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Extracted)
	assert.Equal(t, 3, backend.callCount)
}

func TestRun_ExhaustedRetriesFail(t *testing.T) {
	store := &fakeStore{papers: []types.Paper{{ID: "p1", Title: exampleSentence}}}
	backend := &failNTimesBackend{failures: 10}

	cfg := types.ExtractionConfig{Workers: 1, LLM: types.LLMConfig{MaxRetries: 2}}
	summary, err := Run(context.Background(), store, backend, cfg, nil, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, backend.callCount)
	assert.Empty(t, store.saved)
}

func TestCallWithRetry_ContextCancelled(t *testing.T) {
	old := backoffBase
	backoffBase = time.Second
	defer func() { backoffBase = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := callWithRetry(ctx, &failNTimesBackend{failures: 10}, types.PaperText{}, 3)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
