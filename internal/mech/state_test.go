package mech

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseComposition verifies the Cantera-style syntax, whitespace
// tolerance, and repeated-species accumulation.
func TestParseComposition(t *testing.T) {
	comp, err := ParseComposition("CH4:1, O2:2,  N2 : 7.52")
	require.NoError(t, err)
	assert.Equal(t, Composition{"CH4": 1, "O2": 2, "N2": 7.52}, comp)

	comp, err = ParseComposition("N2:0.5, N2:0.5")
	require.NoError(t, err)
	assert.Equal(t, 1.0, comp["N2"])
}

// TestParseComposition_Empty verifies empty input gives an empty map.
func TestParseComposition_Empty(t *testing.T) {
	comp, err := ParseComposition("  ")
	require.NoError(t, err)
	assert.Empty(t, comp)
}

// TestParseComposition_Malformed verifies the error cases.
func TestParseComposition_Malformed(t *testing.T) {
	cases := []string{"CH4", ":1", "CH4:one", "CH4:-0.5"}
	for _, in := range cases {
		_, err := ParseComposition(in)
		assert.Error(t, err, "input %q", in)
	}
}

// TestNormalized verifies scaling to unit sum and the zero-sum guard.
func TestNormalized(t *testing.T) {
	comp := Composition{"CH4": 1, "O2": 3}
	n := comp.Normalized()
	assert.InDelta(t, 0.25, n["CH4"], 1e-12)
	assert.InDelta(t, 0.75, n["O2"], 1e-12)
	assert.Equal(t, 1.0, comp["CH4"], "input untouched")

	zero := Composition{"N2": 0}
	assert.Equal(t, 0.0, zero.Normalized()["N2"])
}

// TestStateClone verifies compositions do not alias after Clone.
func TestStateClone(t *testing.T) {
	s := State{Temperature: 1000, Pressure: 101325, X: Composition{"N2": 1}, Y: Composition{"N2": 1}}
	c := s.Clone()
	c.X["N2"] = 0.5
	assert.Equal(t, 1.0, s.X["N2"])
}

// TestCompositionSpecies verifies deterministic ordering.
func TestCompositionSpecies(t *testing.T) {
	comp := Composition{"O2": 1, "CH4": 1, "N2": 1}
	assert.Equal(t, []string{"CH4", "N2", "O2"}, comp.Species())
}
