// Package mech models kinetic mechanisms as named species sets and the
// thermodynamic states that move between them.
//
// A real chemistry engine owns reaction kinetics; this package only knows
// which species a mechanism governs, which is all the staged orchestration
// needs to partition composition space and to remap state across a
// mechanism switch.
package mech

import (
	"fmt"
	"sort"
)

// Mechanism is a named chemical species set.
//
// Species order is the declaration order from the config; it is preserved
// because exported tables list species columns in first-seen order.
type Mechanism struct {
	Name    string
	Species []string
}

// HasSpecies reports whether the mechanism governs the named species.
func (m Mechanism) HasSpecies(name string) bool {
	for _, sp := range m.Species {
		if sp == name {
			return true
		}
	}
	return false
}

// SameSpeciesSet reports whether two mechanisms govern the same species,
// ignoring declaration order. Two stages whose mechanisms satisfy this need
// no mechanism switch between them.
func (m Mechanism) SameSpeciesSet(other Mechanism) bool {
	if len(m.Species) != len(other.Species) {
		return false
	}
	a := append([]string(nil), m.Species...)
	b := append([]string(nil), other.Species...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Resolver turns a mechanism name from the config into a Mechanism.
//
// The production resolver is backed by the config's mechanisms table; tests
// use MapResolver.
type Resolver interface {
	Resolve(name string) (Mechanism, error)
}

// UnknownMechanismError reports a mechanism name with no declaration.
type UnknownMechanismError struct {
	Name string
}

func (e *UnknownMechanismError) Error() string {
	return fmt.Sprintf("unknown mechanism %q: not declared in the mechanisms table", e.Name)
}

// MapResolver resolves mechanisms from an in-memory name -> species table.
type MapResolver map[string][]string

// Resolve implements Resolver.
func (r MapResolver) Resolve(name string) (Mechanism, error) {
	species, ok := r[name]
	if !ok {
		return Mechanism{}, &UnknownMechanismError{Name: name}
	}
	return Mechanism{Name: name, Species: append([]string(nil), species...)}, nil
}
