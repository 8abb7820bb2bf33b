package solver

import (
	"github.com/kilnworks/kiln/internal/mech"
	"github.com/kilnworks/kiln/internal/stone"
)

// Losses records the mole fraction of each species dropped by a mechanism
// switch, keyed by species name.
type Losses map[string]float64

// Total returns the summed dropped mole fraction.
func (l Losses) Total() float64 {
	var total float64
	for _, v := range l {
		total += v
	}
	return total
}

// Switcher remaps a thermodynamic state into a different mechanism's
// composition space. Real engines supply switchers that re-equilibrate
// against the target kinetics; the built-in SpeciesMapSwitcher maps by
// species name only.
type Switcher interface {
	Switch(state mech.State, target mech.Mechanism, tol stone.SwitchTolerances) (mech.State, Losses, error)
}

// SpeciesMapSwitcher remaps composition by species name: species absent
// from the target mechanism are dropped and recorded as losses, the
// remainder is renormalized to unit sum, and temperature and pressure are
// carried through unchanged.
//
// The tolerances are accepted for interface compatibility; name mapping
// has no use for an enthalpy tolerance, and losses are recorded exactly so
// they always account for the dropped fraction.
type SpeciesMapSwitcher struct{}

// Switch implements Switcher.
func (SpeciesMapSwitcher) Switch(state mech.State, target mech.Mechanism, _ stone.SwitchTolerances) (mech.State, Losses, error) {
	losses := Losses{}
	keptX := mech.Composition{}
	for sp, x := range state.X {
		if target.HasSpecies(sp) {
			keptX[sp] = x
		} else if x != 0 {
			losses[sp] = x
		}
	}
	keptY := mech.Composition{}
	for sp, y := range state.Y {
		if target.HasSpecies(sp) {
			keptY[sp] = y
		}
	}

	out := mech.State{
		Temperature: state.Temperature,
		Pressure:    state.Pressure,
		X:           keptX.Normalized(),
		Y:           keptY.Normalized(),
	}
	if len(losses) == 0 {
		return out, nil, nil
	}
	return out, losses, nil
}
