package mech

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Composition maps species name to a fraction (mole or mass, depending on
// which State field holds it). Species absent from the map are at zero
// within the mechanism that owns the composition; species outside the
// mechanism's species set are a different thing entirely and are
// represented as NaN by the trajectory views, never as zero.
type Composition map[string]float64

// ParseComposition parses a Cantera-style composition string such as
// "CH4:1, O2:2, N2:7.52" into a Composition. Entries are separated by
// commas, species and value by a colon. Whitespace around either is
// ignored.
func ParseComposition(s string) (Composition, error) {
	comp := Composition{}
	if strings.TrimSpace(s) == "" {
		return comp, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sp, val, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("malformed composition entry %q: want SPECIES:VALUE", part)
		}
		sp = strings.TrimSpace(sp)
		if sp == "" {
			return nil, fmt.Errorf("malformed composition entry %q: empty species name", part)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed composition entry %q: %w", part, err)
		}
		if x < 0 {
			return nil, fmt.Errorf("composition entry %q: negative fraction", part)
		}
		comp[sp] += x
	}
	return comp, nil
}

// Sum returns the total of all fractions.
func (c Composition) Sum() float64 {
	var total float64
	for _, v := range c {
		total += v
	}
	return total
}

// Normalized returns a copy scaled so the fractions sum to 1. A zero-sum
// composition is returned unchanged (there is nothing to scale).
func (c Composition) Normalized() Composition {
	total := c.Sum()
	out := make(Composition, len(c))
	for sp, v := range c {
		if total > 0 {
			out[sp] = v / total
		} else {
			out[sp] = v
		}
	}
	return out
}

// Clone returns a deep copy.
func (c Composition) Clone() Composition {
	if c == nil {
		return nil
	}
	out := make(Composition, len(c))
	for sp, v := range c {
		out[sp] = v
	}
	return out
}

// Species returns the species names in ascending order. Used where a
// deterministic iteration order matters (logging, serialization).
func (c Composition) Species() []string {
	names := make([]string, 0, len(c))
	for sp := range c {
		names = append(names, sp)
	}
	sort.Strings(names)
	return names
}

// State is a thermodynamic state: temperature [K], pressure [Pa], and
// composition as mole fractions (X) and mass fractions (Y).
//
// States are passed by value between stages; Clone the compositions when
// storing one so no two stages ever alias the same maps.
type State struct {
	Temperature float64
	Pressure    float64
	X           Composition
	Y           Composition
}

// Clone returns a State whose compositions are deep copies.
func (s State) Clone() State {
	return State{
		Temperature: s.Temperature,
		Pressure:    s.Pressure,
		X:           s.X.Clone(),
		Y:           s.Y.Clone(),
	}
}

func (s State) String() string {
	return fmt.Sprintf("State(T=%.1f K, P=%.0f Pa, %d species)", s.Temperature, s.Pressure, len(s.X))
}
