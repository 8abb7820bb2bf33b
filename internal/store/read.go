package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilnworks/kiln/internal/mech"
	"github.com/kilnworks/kiln/internal/trajectory"
)

// NotFoundError reports an unknown run id.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("run %q not found", e.RunID)
}

// IsNotFound reports whether err is a run lookup miss.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// GetRun returns the metadata row of one run.
func (s *Store) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	var run RunRecord
	var createdAt string
	var runErr sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, config_path, status, error
		FROM runs WHERE id = ?
	`, runID).Scan(&run.ID, &createdAt, &run.ConfigPath, &run.Status, &runErr)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, &NotFoundError{RunID: runID}
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run: %w", err)
	}
	run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run: parse created_at: %w", err)
	}
	run.Error = runErr.String
	return run, nil
}

// ListRuns returns every archived run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, config_path, status, error
		FROM runs ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		var createdAt string
		var runErr sql.NullString
		if err := rows.Scan(&run.ID, &createdAt, &run.ConfigPath, &run.Status, &runErr); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("list runs: parse created_at: %w", err)
		}
		run.Error = runErr.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LoadTrajectory reconstructs a run's trajectory, segments and states in
// their stored order. NULL time columns come back as NaN.
func (s *Store) LoadTrajectory(ctx context.Context, runID string) (*trajectory.Lagrangian, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	segRows, err := s.db.QueryContext(ctx, `
		SELECT id, stage_id, mechanism, species, t_offset, mapping_losses
		FROM segments WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("load trajectory: segments: %w", err)
	}
	defer segRows.Close()

	traj := trajectory.New()
	var segIDs []int64
	for segRows.Next() {
		var (
			segID       int64
			seg         trajectory.Segment
			speciesJSON string
			lossesJSON  sql.NullString
		)
		if err := segRows.Scan(&segID, &seg.StageID, &seg.Mechanism.Name, &speciesJSON, &seg.TOffset, &lossesJSON); err != nil {
			return nil, fmt.Errorf("load trajectory: scan segment: %w", err)
		}
		if err := json.Unmarshal([]byte(speciesJSON), &seg.Mechanism.Species); err != nil {
			return nil, fmt.Errorf("load trajectory: species of %q: %w", seg.StageID, err)
		}
		if lossesJSON.Valid {
			if err := json.Unmarshal([]byte(lossesJSON.String), &seg.MappingLosses); err != nil {
				return nil, fmt.Errorf("load trajectory: losses of %q: %w", seg.StageID, err)
			}
		}
		traj.Segments = append(traj.Segments, seg)
		segIDs = append(segIDs, segID)
	}
	if err := segRows.Err(); err != nil {
		return nil, fmt.Errorf("load trajectory: %w", err)
	}

	for i, segID := range segIDs {
		states, err := s.loadStates(ctx, segID)
		if err != nil {
			return nil, fmt.Errorf("load trajectory: states of %q: %w", traj.Segments[i].StageID, err)
		}
		traj.Segments[i].States = states
	}
	return traj, nil
}

func (s *Store) loadStates(ctx context.Context, segID int64) ([]trajectory.StateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, t, temperature, pressure, x, y
		FROM states WHERE segment_id = ? ORDER BY position
	`, segID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []trajectory.StateRecord
	for rows.Next() {
		var (
			st           trajectory.StateRecord
			t            sql.NullFloat64
			xJSON, yJSON string
		)
		if err := rows.Scan(&st.NodeID, &t, &st.Temperature, &st.Pressure, &xJSON, &yJSON); err != nil {
			return nil, err
		}
		st.Time = math.NaN()
		if t.Valid {
			st.Time = t.Float64
		}
		st.X = mech.Composition{}
		if err := json.Unmarshal([]byte(xJSON), &st.X); err != nil {
			return nil, err
		}
		st.Y = mech.Composition{}
		if err := json.Unmarshal([]byte(yJSON), &st.Y); err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}
