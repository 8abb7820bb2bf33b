package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kilnworks/kiln/internal/trajectory"
)

// RunRecord is the metadata row of one archived staged solve.
type RunRecord struct {
	ID         string
	CreatedAt  time.Time
	ConfigPath string
	// Status is "completed" or "failed". Failed runs still carry the
	// partial trajectory produced before the failure.
	Status string
	// Error holds the failure message for failed runs, empty otherwise.
	Error string
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// SaveRun archives a run with its full trajectory in one transaction.
// Segment and state ordering is preserved via explicit position columns,
// so a load reproduces the exact execution order.
func (s *Store) SaveRun(ctx context.Context, run RunRecord, traj *trajectory.Lagrangian) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var runErr sql.NullString
	if run.Error != "" {
		runErr = sql.NullString{String: run.Error, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, config_path, status, error)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.CreatedAt.UTC().Format(time.RFC3339Nano), run.ConfigPath, run.Status, runErr)
	if err != nil {
		return fmt.Errorf("save run: insert run: %w", err)
	}

	for segPos, seg := range traj.Segments {
		speciesJSON, err := json.Marshal(seg.Mechanism.Species)
		if err != nil {
			return fmt.Errorf("save run: marshal species: %w", err)
		}
		var lossesJSON sql.NullString
		if seg.MappingLosses != nil {
			b, err := json.Marshal(seg.MappingLosses)
			if err != nil {
				return fmt.Errorf("save run: marshal mapping losses: %w", err)
			}
			lossesJSON = sql.NullString{String: string(b), Valid: true}
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO segments (run_id, position, stage_id, mechanism, species, t_offset, mapping_losses)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.ID, segPos, seg.StageID, seg.Mechanism.Name, string(speciesJSON), seg.TOffset, lossesJSON)
		if err != nil {
			return fmt.Errorf("save run: insert segment %q: %w", seg.StageID, err)
		}
		segID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("save run: segment id: %w", err)
		}

		for stPos, st := range seg.States {
			xJSON, err := json.Marshal(st.X)
			if err != nil {
				return fmt.Errorf("save run: marshal mole fractions: %w", err)
			}
			yJSON, err := json.Marshal(st.Y)
			if err != nil {
				return fmt.Errorf("save run: marshal mass fractions: %w", err)
			}
			var t sql.NullFloat64
			if !math.IsNaN(st.Time) {
				t = sql.NullFloat64{Float64: st.Time, Valid: true}
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO states (segment_id, position, node_id, t, temperature, pressure, x, y)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, segID, stPos, st.NodeID, t, st.Temperature, st.Pressure, string(xJSON), string(yJSON))
			if err != nil {
				return fmt.Errorf("save run: insert state %q: %w", st.NodeID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run: commit: %w", err)
	}
	return nil
}

// DeleteRun removes a run and, via foreign keys, its segments and states.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run: rows affected: %w", err)
	}
	if n == 0 {
		return &NotFoundError{RunID: runID}
	}
	return nil
}
