// Package trajectory assembles per-stage solve results into one continuous
// Lagrangian record, as if following a fluid parcel through the staged
// network.
//
// Species handling is the subtle part: each segment lives in its own
// mechanism's composition space. Where a view asks for a species a
// segment's mechanism does not govern, the entries are NaN — "this stage
// cannot say" — which is deliberately distinct from 0 ("present in the
// mechanism, none of it here").
package trajectory

import (
	"fmt"
	"math"

	"github.com/kilnworks/kiln/internal/mech"
)

// StateRecord is one reactor visit: the node's final state plus the
// cumulative residence time at that point within its segment.
type StateRecord struct {
	NodeID string
	// Time is the cumulative residence time within the segment [s],
	// starting at the first node's residence. NaN when the segment carries
	// no time axis at all.
	Time        float64
	Temperature float64
	Pressure    float64
	X           mech.Composition
	Y           mech.Composition
}

// Segment is one stage's contribution to the trajectory. Segments are
// immutable once appended; the trajectory only concatenates them for read
// access.
type Segment struct {
	StageID   string
	Mechanism mech.Mechanism
	States    []StateRecord

	// TOffset is the cumulative time at the start of this segment [s].
	TOffset float64

	// MappingLosses records species mole fraction dropped by the mechanism
	// switch that fed this segment, keyed by species name. Nil when no
	// switch preceded it.
	MappingLosses map[string]float64
}

// lastTime returns the segment's final local time, or 0 when the segment
// is empty or carries no time axis.
func (s *Segment) lastTime() float64 {
	if len(s.States) == 0 {
		return 0
	}
	t := s.States[len(s.States)-1].Time
	if math.IsNaN(t) {
		return 0
	}
	return t
}

// VizNetwork is the inspection-only cross-stage network assembled after a
// staged solve: every grouped node with its converged state, and every
// original connection restored (inter-stage ones included). It is never
// solved.
type VizNetwork struct {
	Nodes       []VizNode
	Connections []VizConnection
}

// VizNode is a node of the visualization network.
type VizNode struct {
	ID      string
	StageID string
	State   mech.State
}

// VizConnection is a connection of the visualization network.
type VizConnection struct {
	ID         string
	Kind       string
	Source     string
	Target     string
	InterStage bool
	Properties map[string]any
}

// Lagrangian is the concatenation of per-stage segments into a single
// record with a common cumulative time base.
type Lagrangian struct {
	Segments []Segment

	// VizNetwork is set after a successful staged solve when assembly was
	// requested; nil otherwise (including on partial trajectories).
	VizNetwork *VizNetwork
}

// New returns an empty trajectory.
func New() *Lagrangian {
	return &Lagrangian{}
}

// AddSegment appends one stage's states. The segment's time offset is the
// previous segment's offset plus its final local time (0 for the first
// segment, or when the previous segment had no time axis).
func (l *Lagrangian) AddSegment(stageID string, m mech.Mechanism, states []StateRecord, mappingLosses map[string]float64) {
	offset := 0.0
	if n := len(l.Segments); n > 0 {
		prev := &l.Segments[n-1]
		offset = prev.TOffset + prev.lastTime()
	}
	l.Segments = append(l.Segments, Segment{
		StageID:       stageID,
		Mechanism:     m,
		States:        states,
		TOffset:       offset,
		MappingLosses: mappingLosses,
	})
}

// Len returns the total number of reactor visits across all segments.
func (l *Lagrangian) Len() int {
	n := 0
	for _, seg := range l.Segments {
		n += len(seg.States)
	}
	return n
}

// Times returns the cumulative time axis: each record's segment-local time
// plus its segment's offset. NaN entries stay NaN.
func (l *Lagrangian) Times() []float64 {
	out := make([]float64, 0, l.Len())
	for _, seg := range l.Segments {
		for _, st := range seg.States {
			out = append(out, seg.TOffset+st.Time)
		}
	}
	return out
}

// Temperature returns the temperature [K] along the full trajectory.
func (l *Lagrangian) Temperature() []float64 {
	out := make([]float64, 0, l.Len())
	for _, seg := range l.Segments {
		for _, st := range seg.States {
			out = append(out, st.Temperature)
		}
	}
	return out
}

// Pressure returns the pressure [Pa] along the full trajectory.
func (l *Lagrangian) Pressure() []float64 {
	out := make([]float64, 0, l.Len())
	for _, seg := range l.Segments {
		for _, st := range seg.States {
			out = append(out, st.Pressure)
		}
	}
	return out
}

// MoleFraction returns the mole fraction of one species along the full
// trajectory. Entries are NaN for segments whose mechanism does not govern
// the species.
func (l *Lagrangian) MoleFraction(species string) []float64 {
	return l.fraction(species, func(st StateRecord) mech.Composition { return st.X })
}

// MassFraction returns the mass fraction of one species along the full
// trajectory, NaN where the segment's mechanism lacks it.
func (l *Lagrangian) MassFraction(species string) []float64 {
	return l.fraction(species, func(st StateRecord) mech.Composition { return st.Y })
}

func (l *Lagrangian) fraction(species string, pick func(StateRecord) mech.Composition) []float64 {
	out := make([]float64, 0, l.Len())
	for _, seg := range l.Segments {
		governed := seg.Mechanism.HasSpecies(species)
		for _, st := range seg.States {
			if !governed {
				out = append(out, math.NaN())
				continue
			}
			// Absent map entry within a governing mechanism is a true
			// zero, not a missing value.
			out = append(out, pick(st)[species])
		}
	}
	return out
}

// SpeciesUnion returns every species appearing in any segment's mechanism,
// in first-seen order.
func (l *Lagrangian) SpeciesUnion() []string {
	seen := make(map[string]bool)
	var union []string
	for _, seg := range l.Segments {
		for _, sp := range seg.Mechanism.Species {
			if !seen[sp] {
				seen[sp] = true
				union = append(union, sp)
			}
		}
	}
	return union
}

func (l *Lagrangian) String() string {
	ids := make([]string, 0, len(l.Segments))
	for _, seg := range l.Segments {
		ids = append(ids, seg.StageID)
	}
	return fmt.Sprintf("LagrangianTrajectory(stages=%v, points=%d)", ids, l.Len())
}
