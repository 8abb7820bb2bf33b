package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnworks/kiln/internal/mech"
	"github.com/kilnworks/kiln/internal/trajectory"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "kiln.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTrajectory() *trajectory.Lagrangian {
	full := mech.Mechanism{Name: "full", Species: []string{"CH4", "O2", "N2"}}
	reduced := mech.Mechanism{Name: "reduced", Species: []string{"N2"}}

	traj := trajectory.New()
	traj.AddSegment("stage_a", full, []trajectory.StateRecord{
		{NodeID: "r_a", Time: 0.002, Temperature: 1950, Pressure: 101325,
			X: mech.Composition{"CH4": 0.2, "O2": 0.3, "N2": 0.5},
			Y: mech.Composition{"CH4": 0.1, "O2": 0.35, "N2": 0.55}},
	}, nil)
	traj.AddSegment("stage_b", reduced, []trajectory.StateRecord{
		{NodeID: "r_b", Time: math.NaN(), Temperature: 1950, Pressure: 101325,
			X: mech.Composition{"N2": 1}, Y: mech.Composition{"N2": 1}},
	}, map[string]float64{"CH4": 0.2, "O2": 0.3})
	return traj
}

func TestOpen_Pragmas(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiln.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	assert.NoError(t, s2.Close())
}

// TestSaveLoad_RoundTrip verifies a trajectory survives the archive
// unchanged, including the NaN time sentinel and per-segment losses.
func TestSaveLoad_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := RunRecord{
		ID:         NewRunID(),
		CreatedAt:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		ConfigPath: "plant.yaml",
		Status:     "completed",
	}
	require.NoError(t, s.SaveRun(ctx, run, sampleTrajectory()))

	got, err := s.LoadTrajectory(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got.Segments, 2)

	segA := got.Segments[0]
	assert.Equal(t, "stage_a", segA.StageID)
	assert.Equal(t, "full", segA.Mechanism.Name)
	assert.Equal(t, []string{"CH4", "O2", "N2"}, segA.Mechanism.Species)
	assert.Nil(t, segA.MappingLosses)
	require.Len(t, segA.States, 1)
	assert.Equal(t, 0.002, segA.States[0].Time)
	assert.Equal(t, 0.2, segA.States[0].X["CH4"])

	segB := got.Segments[1]
	assert.InDelta(t, 0.002, segB.TOffset, 1e-12)
	assert.Equal(t, map[string]float64{"CH4": 0.2, "O2": 0.3}, segB.MappingLosses)
	require.Len(t, segB.States, 1)
	assert.True(t, math.IsNaN(segB.States[0].Time), "NULL time column restores the NaN sentinel")
}

func TestSaveRun_FailedRunKeepsPartialTrajectory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	traj := trajectory.New()
	traj.AddSegment("s1", mech.Mechanism{Name: "full", Species: []string{"N2"}}, []trajectory.StateRecord{
		{NodeID: "n1", Time: 0.001, Temperature: 900, Pressure: 101325,
			X: mech.Composition{"N2": 1}, Y: mech.Composition{"N2": 1}},
	}, nil)

	run := RunRecord{
		ID: NewRunID(), CreatedAt: time.Now(), ConfigPath: "plant.yaml",
		Status: "failed", Error: `stage "s2" failed: numerical divergence`,
	}
	require.NoError(t, s.SaveRun(ctx, run, traj))

	rec, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", rec.Status)
	assert.Contains(t, rec.Error, "s2")

	got, err := s.LoadTrajectory(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, got.Segments, 1)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := RunRecord{ID: NewRunID(), CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), ConfigPath: "a.yaml", Status: "completed"}
	newer := RunRecord{ID: NewRunID(), CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), ConfigPath: "b.yaml", Status: "completed"}
	require.NoError(t, s.SaveRun(ctx, older, trajectory.New()))
	require.NoError(t, s.SaveRun(ctx, newer, trajectory.New()))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)
}

func TestGetRun_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), "no-such-run")
	assert.True(t, IsNotFound(err))

	_, err = s.LoadTrajectory(context.Background(), "no-such-run")
	assert.True(t, IsNotFound(err))
}

func TestDeleteRun_Cascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := RunRecord{ID: NewRunID(), CreatedAt: time.Now(), ConfigPath: "plant.yaml", Status: "completed"}
	require.NoError(t, s.SaveRun(ctx, run, sampleTrajectory()))
	require.NoError(t, s.DeleteRun(ctx, run.ID))

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM states").Scan(&count))
	assert.Zero(t, count, "states cascade with their run")

	err := s.DeleteRun(ctx, run.ID)
	assert.True(t, IsNotFound(err))
}
