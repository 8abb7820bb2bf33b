package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kilnworks/kiln/internal/mech"
	"github.com/kilnworks/kiln/internal/observability"
	"github.com/kilnworks/kiln/internal/solver"
	"github.com/kilnworks/kiln/internal/stage"
	"github.com/kilnworks/kiln/internal/stone"
	"github.com/kilnworks/kiln/internal/store"
	"github.com/kilnworks/kiln/internal/trajectory"
)

// RunSummary is the JSON payload of the run command.
type RunSummary struct {
	RunID  string `json:"run_id,omitempty"`
	Status string `json:"status"`
	Stages int    `json:"stages"`
	Points int    `json:"points"`
	CSV    string `json:"csv,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		engine  string
		dbPath  string
		csvPath string
		network bool
	)

	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Solve a staged reactor network",
		Long: `Execute a STONE network stage by stage and concatenate the results
into one Lagrangian trajectory.

The built-in capability carries declared and seeded states through each
stage without chemistry; kinetic engines plug in through the solver API.
A failed stage still archives and exports the partial trajectory.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if engine != "inert" {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown engine %q: only \"inert\" is built in", engine))
			}
			return runSolve(rootOpts, args[0], dbPath, csvPath, network, cmd)
		},
	}

	cmd.Flags().StringVar(&engine, "engine", "inert", "solve capability to use")
	cmd.Flags().StringVar(&dbPath, "db", "", "archive the run in a SQLite database at this path")
	cmd.Flags().StringVar(&csvPath, "csv", "", "export the trajectory as CSV to this path")
	cmd.Flags().BoolVar(&network, "network", false, "assemble the cross-stage visualization network")

	return cmd
}

func runSolve(opts *RootOptions, configPath, dbPath, csvPath string, network bool, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := cmd.Context()

	cfg, err := stone.Load(configPath)
	if err != nil {
		_ = formatter.Error("LOAD_ERROR", err.Error(), nil)
		return WrapExitError(ExitFailure, "run", err)
	}

	plan, err := stage.BuildStageGraph(cfg)
	if err != nil {
		_ = formatter.Error("PLAN_ERROR", err.Error(), nil)
		return WrapExitError(ExitFailure, "run", err)
	}

	metrics, err := observability.NewSolverMetrics(prometheus.NewRegistry())
	if err != nil {
		return WrapExitError(ExitCommandError, "run: metrics", err)
	}

	traj, solveErr := solver.SolveStaged(ctx, plan, cfg, solver.Options{
		Capability:  solver.Inert{},
		Resolver:    resolverFromConfig(cfg),
		Switcher:    solver.SpeciesMapSwitcher{},
		Logger:      slog.Default(),
		Metrics:     metrics,
		AssembleViz: network,
		Progress: func(stageID string, done, total int) {
			formatter.VerboseLog("stage %d/%d solved: %s", done, total, stageID)
		},
	})

	summary := RunSummary{Status: "completed"}
	if traj != nil {
		summary.Stages = len(traj.Segments)
		summary.Points = traj.Len()
	}
	if solveErr != nil {
		summary.Status = "failed"
		summary.Error = solveErr.Error()
	}

	if dbPath != "" && traj != nil {
		runID, err := archiveRun(ctx, dbPath, configPath, summary.Status, summary.Error, traj)
		if err != nil {
			_ = formatter.Error("STORE_ERROR", err.Error(), nil)
			return WrapExitError(ExitCommandError, "run", err)
		}
		summary.RunID = runID
	}

	if csvPath != "" && traj != nil {
		if err := traj.ExportCSV(csvPath); err != nil {
			_ = formatter.Error("EXPORT_ERROR", err.Error(), nil)
			return WrapExitError(ExitCommandError, "run", err)
		}
		summary.CSV = csvPath
	}

	if solveErr != nil {
		_ = formatter.Error("SOLVE_ERROR", solveErr.Error(), summary)
		return WrapExitError(ExitFailure, "run", solveErr)
	}

	if formatter.Format == "json" {
		return formatter.Success(summary)
	}
	fmt.Fprintf(formatter.Writer, "✓ Solved %d stage(s), %d trajectory point(s)\n", summary.Stages, summary.Points)
	if summary.RunID != "" {
		fmt.Fprintf(formatter.Writer, "  archived as run %s\n", summary.RunID)
	}
	if summary.CSV != "" {
		fmt.Fprintf(formatter.Writer, "  exported to %s\n", summary.CSV)
	}
	return nil
}

// resolverFromConfig builds a mechanism resolver from the config's
// mechanisms table.
func resolverFromConfig(cfg *stone.Config) mech.Resolver {
	r := mech.MapResolver{}
	for name, spec := range cfg.Mechanisms {
		r[name] = spec.Species
	}
	return r
}

func archiveRun(ctx context.Context, dbPath, configPath, status, errMsg string, traj *trajectory.Lagrangian) (string, error) {
	s, err := store.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer s.Close()

	run := store.RunRecord{
		ID:         store.NewRunID(),
		CreatedAt:  time.Now(),
		ConfigPath: configPath,
		Status:     status,
		Error:      errMsg,
	}
	if err := s.SaveRun(ctx, run, traj); err != nil {
		return "", err
	}
	return run.ID, nil
}
