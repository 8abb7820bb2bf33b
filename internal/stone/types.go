// Package stone loads, normalizes, and validates STONE YAML network
// descriptions.
//
// The STONE standard writes components with their type as a key:
//
//	nodes:
//	  - id: psr
//	    IdealGasReactor:
//	      temperature: 1200
//
// Normalization rewrites every such entry into the internal
// {id, type, properties} form before validation. Validation runs the
// embedded CUE schema over the raw document first, then Go-side checks
// for uniqueness and reference integrity, then unit coercion for the
// small fixed set of unit-bearing keys.
package stone

// Config is a normalized STONE network description.
type Config struct {
	Metadata   map[string]any
	Phases     Phases
	Mechanisms map[string]MechanismSpec
	Groups     map[string]Group
	Simulation map[string]any
	Nodes      []Node
	Connections []Connection
}

// Phases carries the network-wide phase settings. Only the gas phase is
// meaningful to staged execution: its mechanism is the default for groups
// that do not declare one.
type Phases struct {
	Gas GasPhase
}

// GasPhase is the gas entry of the phases section.
type GasPhase struct {
	Mechanism string
}

// MechanismSpec declares the species set a mechanism name stands for.
type MechanismSpec struct {
	Species []string
}

// Group is one entry of the top-level groups table. Each group becomes one
// stage of the staged solve.
type Group struct {
	Mechanism string
	// Solve is "advance_to_steady_state" (default) or "advance".
	Solve string
	// AdvanceTime is the advance duration [s], used only when Solve is
	// "advance".
	AdvanceTime float64
}

// Node is a reactor (or reservoir) in the network.
type Node struct {
	ID   string
	Type string
	// Group is the stage assignment; empty means the node is excluded from
	// staged execution.
	Group      string
	Properties map[string]any
	Metadata   map[string]any
}

// Connection is a flow device between two nodes.
type Connection struct {
	ID         string
	Type       string
	Source     string
	Target     string
	Properties map[string]any
	// MechanismSwitch is present on connections that cross between groups
	// with different mechanisms; its tolerances parameterize the species
	// remapping.
	MechanismSwitch *SwitchTolerances
	Metadata        map[string]any
}

// SwitchTolerances parameterize a mechanism switch. HTol is an enthalpy
// tolerance consumed by engine-supplied switchers; XTol is a mole-fraction
// tolerance. The built-in species-map switcher keeps them for its callers
// but does not act on them.
type SwitchTolerances struct {
	HTol float64
	XTol float64
}

// DefaultSwitchTolerances are applied when an inter-stage connection needs
// a mechanism switch but carries no mechanism_switch block.
var DefaultSwitchTolerances = SwitchTolerances{HTol: 1e-4, XTol: 1e-4}

// FloatProperty returns the named property as a float64 when it is any
// numeric YAML scalar.
func FloatProperty(props map[string]any, key string) (float64, bool) {
	v, ok := props[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// StringProperty returns the named property as a string.
func StringProperty(props map[string]any, key string) (string, bool) {
	v, ok := props[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
