// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package units converts physical quantities reported in abstracts to one
// canonical unit per quantity kind. Conversion is lenient: an unrecognized
// unit spelling is returned unchanged together with its value.
package units

import (
	"regexp"
	"strconv"
	"strings"
)

// Quantity identifies a kind of physical quantity.
type Quantity string

const (
	PowerDensity           Quantity = "power-density"
	VolumetricPowerDensity Quantity = "volumetric-power-density"
	CurrentDensity         Quantity = "current-density"
	Current                Quantity = "current"
	Voltage                Quantity = "voltage"
	Volume                 Quantity = "volume"
	Area                   Quantity = "area"
	Resistance             Quantity = "resistance"
	Temperature            Quantity = "temperature"
	Length                 Quantity = "length"
	Thickness              Quantity = "thickness"
	Time                   Quantity = "time"
	FlowRate               Quantity = "flow-rate"
	Concentration          Quantity = "concentration"
	Conductivity           Quantity = "conductivity"
	Percent                Quantity = "percent"
	PH                     Quantity = "pH"
)

// conversion maps a source value to the canonical unit: v*factor + offset.
type conversion struct {
	factor float64
	offset float64
}

func scale(f float64) conversion { return conversion{factor: f} }

var fahrenheit = conversion{factor: 5.0 / 9.0, offset: -32 * 5.0 / 9.0}

// table describes one quantity: its canonical unit and the accepted source
// spellings, keyed by canonicalKey form.
type table struct {
	canonical string
	from      map[string]conversion
}

// ratios builds every num/den spelling. Numerator factors are in the
// canonical numerator unit; denominator factors convert "per den" into
// "per canonical denominator".
func ratios(num, den map[string]float64) map[string]conversion {
	m := make(map[string]conversion, len(num)*len(den))
	for n, nf := range num {
		for d, df := range den {
			m[n+"/"+d] = scale(nf * df)
		}
	}
	return m
}

// withCOD adds "gCOD" style spellings for every mass prefix.
func withCOD(mass map[string]float64) map[string]float64 {
	m := make(map[string]float64, 2*len(mass))
	for k, f := range mass {
		m[k] = f
		m[k+"COD"] = f
	}
	return m
}

var (
	perSquareMetre = map[string]float64{"m2": 1, "cm2": 1e4}
	perCubicMetre  = map[string]float64{"m3": 1, "L": 1e3, "cm3": 1e6}
	perMinute      = map[string]float64{"min": 1, "h": 1.0 / 60, "d": 1.0 / 1440, "day": 1.0 / 1440}
	perLitre       = map[string]float64{"L": 1, "m3": 1e-3}
	perCentimetre  = map[string]float64{"cm": 1, "m": 0.01}
)

var tables = map[Quantity]table{
	PowerDensity: {canonical: "mW/m²", from: ratios(
		map[string]float64{"kW": 1e6, "W": 1e3, "mW": 1, "uW": 1e-3, "nW": 1e-6},
		perSquareMetre,
	)},
	VolumetricPowerDensity: {canonical: "W/m³", from: ratios(
		map[string]float64{"kW": 1e3, "W": 1, "mW": 1e-3},
		perCubicMetre,
	)},
	CurrentDensity: {canonical: "mA/m²", from: ratios(
		map[string]float64{"A": 1e3, "mA": 1, "uA": 1e-3, "nA": 1e-6},
		perSquareMetre,
	)},
	Current: {canonical: "mA", from: map[string]conversion{
		"mA": scale(1),
		"A":  scale(1e3),
		"uA": scale(1e-3),
		"nA": scale(1e-6),
	}},
	Voltage: {canonical: "mV", from: map[string]conversion{
		"mV": scale(1),
		"V":  scale(1e3),
		"uV": scale(1e-3),
	}},
	Volume: {canonical: "mL", from: map[string]conversion{
		"mL":  scale(1),
		"L":   scale(1e3),
		"uL":  scale(1e-3),
		"cm3": scale(1),
		"dm3": scale(1e3),
		"m3":  scale(1e6),
	}},
	Area: {canonical: "cm²", from: map[string]conversion{
		"cm2": scale(1),
		"mm2": scale(0.01),
		"m2":  scale(1e4),
	}},
	// Word spellings ("kOhms") reach this table as symbols; see canonicalKey.
	Resistance: {canonical: "Ω", from: map[string]conversion{
		"Ω":  scale(1),
		"kΩ": scale(1e3),
		"MΩ": scale(1e6),
		"mΩ": scale(1e-3),
	}},
	Temperature: {canonical: "°C", from: map[string]conversion{
		"°C": scale(1),
		"C":  scale(1),
		"K":  {factor: 1, offset: -273.15},
		"°F": fahrenheit,
		"F":  fahrenheit,
	}},
	Length: {canonical: "cm", from: map[string]conversion{
		"cm": scale(1),
		"mm": scale(0.1),
		"m":  scale(100),
		"um": scale(1e-4),
	}},
	Thickness: {canonical: "µm", from: map[string]conversion{
		"um": scale(1),
		"nm": scale(1e-3),
		"mm": scale(1e3),
		"cm": scale(1e4),
	}},
	Time: {canonical: "h", from: map[string]conversion{
		"h":       scale(1),
		"hr":      scale(1),
		"hrs":     scale(1),
		"hour":    scale(1),
		"hours":   scale(1),
		"min":     scale(1.0 / 60),
		"mins":    scale(1.0 / 60),
		"minute":  scale(1.0 / 60),
		"minutes": scale(1.0 / 60),
		"d":       scale(24),
		"day":     scale(24),
		"days":    scale(24),
		"week":    scale(168),
		"weeks":   scale(168),
		"month":   scale(720),
		"months":  scale(720),
	}},
	FlowRate: {canonical: "mL/min", from: ratios(
		map[string]float64{"mL": 1, "uL": 1e-3, "L": 1e3},
		perMinute,
	)},
	Concentration: {canonical: "mg/L", from: ratios(
		withCOD(map[string]float64{"kg": 1e6, "g": 1e3, "mg": 1, "ug": 1e-3}),
		perLitre,
	)},
	Conductivity: {canonical: "mS/cm", from: ratios(
		map[string]float64{"S": 1e3, "mS": 1, "uS": 1e-3},
		perCentimetre,
	)},
	Percent: {canonical: "%", from: map[string]conversion{
		"%": scale(1),
	}},
	PH: {canonical: "pH", from: map[string]conversion{
		"pH": scale(1),
	}},
}

// Canonical returns the canonical unit for q, or "" for an unknown quantity.
func Canonical(q Quantity) string {
	return tables[q].canonical
}

// Known reports whether q is a supported quantity.
func Known(q Quantity) bool {
	_, ok := tables[q]
	return ok
}

// Normalize converts value from unit to the canonical unit of q. An empty
// unit is taken to already be canonical. An unrecognized unit, or an
// unknown quantity, returns value and unit unchanged.
func Normalize(value float64, unit string, q Quantity) (float64, string) {
	t, ok := tables[q]
	if !ok {
		return value, unit
	}
	if strings.TrimSpace(unit) == "" || unit == t.canonical {
		return value, t.canonical
	}
	c, ok := t.lookup(canonicalKey(unit))
	if !ok {
		return value, unit
	}
	return round(value*c.factor + c.offset), t.canonical
}

// round drops the binary noise conversion leaves behind (303 K is 29.85 °C,
// not 29.850000000000023) by keeping significantDigits digits.
func round(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', significantDigits, 64), 64)
	if err != nil {
		return v
	}
	return r
}

const significantDigits = 12

// lookup finds key exactly, then case-insensitively when exactly one entry
// matches. The second pass lets "MW/M2" resolve while keeping mΩ and MΩ apart.
func (t table) lookup(key string) (conversion, bool) {
	if c, ok := t.from[key]; ok {
		return c, true
	}
	var (
		found conversion
		n     int
	)
	for k, c := range t.from {
		if strings.EqualFold(k, key) {
			found = c
			n++
		}
	}
	return found, n == 1
}

// negativeExponent matches "Wm-2", "mgCODL-1" and "mLmin-1" once spaces
// are gone. The denominator is the shortest known unit before the exponent.
var negativeExponent = regexp.MustCompile(`^(.+?)[*.]?((?i:cm|mm|m|l|min|h|day|d))-([0-9])$`)

// ohmWord matches resistance units spelled as words, keeping the prefix case
// so that mohm and Mohm stay apart.
var ohmWord = regexp.MustCompile(`^([kKmM]?)(?i:ohms?)$`)

var keyReplacer = strings.NewReplacer(
	"\u00b5", "u", // micro sign
	"\u03bc", "u", // Greek small mu
	"\u2126", "\u03a9", // ohm sign
	"\u2103", "°C",
	"\u00ba", "°",
	"²", "2",
	"³", "3",
	"^", "",
	"\u00b9", "1",
	"\u207b", "-",
	"\u2212", "-",
	"\u2013", "-",
	"\u00b7", " ",
	"\u22c5", " ",
)

// temperatureWords maps spelled-out temperature units to their symbols.
var temperatureWords = map[string]string{
	"degc":              "°C",
	"degreec":           "°C",
	"degreesc":          "°C",
	"celsius":           "°C",
	"degreecelsius":     "°C",
	"degreescelsius":    "°C",
	"degf":              "°F",
	"degreef":           "°F",
	"degreefahrenheit":  "°F",
	"degreesf":          "°F",
	"fahrenheit":        "°F",
	"degreesfahrenheit": "°F",
	"kelvin":            "K",
}

// canonicalKey reduces a unit spelling to table key form.
func canonicalKey(unit string) string {
	s := strings.Join(strings.Fields(keyReplacer.Replace(unit)), "")
	if m := negativeExponent.FindStringSubmatch(s); m != nil {
		s = m[1] + "/" + m[2]
		if m[3] != "1" {
			s += m[3]
		}
	}
	if m := ohmWord.FindStringSubmatch(s); m != nil {
		return m[1] + "Ω"
	}
	if sym, ok := temperatureWords[strings.ToLower(strings.TrimSuffix(s, "."))]; ok {
		return sym
	}
	if rest, ok := strings.CutPrefix(s, "°"); ok && rest != "" {
		return "°" + strings.ToUpper(rest)
	}
	return s
}
