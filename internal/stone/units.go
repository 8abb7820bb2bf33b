package stone

import (
	"strconv"
	"strings"
)

// Unit coercion mirrors ctwrap-style configs: a property may be written as
// a bare number (already in base units) or as a "VALUE UNIT" string.
// Coercion converts the string form to a base-unit float64 for the fixed
// key set below. Unknown units and unrelated keys are left untouched.

// nodeUnitKeys maps unit-bearing property keys to their base dimension.
var nodeUnitKeys = map[string]string{
	"temperature":    "temperature",
	"pressure":       "pressure",
	"mass":           "mass",
	"volume":         "volume",
	"flow_rate":      "massflow",
	"mass_flow_rate": "massflow",
	"time_constant":  "time",
	"residence_time": "time",
}

// simulationUnitKeys are coerced inside the simulation section.
var simulationUnitKeys = map[string]string{
	"dt":       "time",
	"end_time": "time",
	"max_time": "time",
}

// unitFactors lists, per dimension, the supported unit spellings and the
// multiplicative factor to base units. Temperature is special-cased for
// the Celsius offset.
var unitFactors = map[string]map[string]float64{
	"pressure": {"Pa": 1, "kPa": 1e3, "MPa": 1e6, "bar": 1e5, "mbar": 1e2, "atm": 101325},
	"time":     {"s": 1, "ms": 1e-3, "us": 1e-6, "min": 60, "h": 3600},
	"mass":     {"kg": 1, "g": 1e-3, "mg": 1e-6},
	"massflow": {"kg/s": 1, "g/s": 1e-3, "kg/min": 1.0 / 60, "kg/h": 1.0 / 3600},
	"volume":   {"m3": 1, "m^3": 1, "m**3": 1, "L": 1e-3, "l": 1e-3, "cm3": 1e-6, "cm^3": 1e-6},
}

func coerceUnits(cfg *Config) {
	for i := range cfg.Nodes {
		coerceProperties(cfg.Nodes[i].Properties, nodeUnitKeys)
	}
	for i := range cfg.Connections {
		coerceProperties(cfg.Connections[i].Properties, nodeUnitKeys)
	}
	if cfg.Simulation != nil {
		coerceProperties(cfg.Simulation, simulationUnitKeys)
	}
}

func coerceProperties(props map[string]any, keys map[string]string) {
	for key, dim := range keys {
		raw, ok := props[key]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		if v, ok := parseQuantity(s, dim); ok {
			props[key] = v
		}
	}
}

// parseQuantity parses a "VALUE UNIT" string and converts it to the base
// unit of the given dimension. Returns false when the string does not
// parse or the unit is not recognized, leaving the caller's value as-is.
func parseQuantity(s, dim string) (float64, bool) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return 0, false
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	if len(fields) == 1 {
		// Bare numeric string: already in base units.
		return value, true
	}
	unit := strings.Join(fields[1:], "")

	if dim == "temperature" {
		switch unit {
		case "K":
			return value, true
		case "degC", "°C", "C":
			return value + 273.15, true
		}
		return 0, false
	}
	factor, ok := unitFactors[dim][unit]
	if !ok {
		return 0, false
	}
	return value * factor, true
}
