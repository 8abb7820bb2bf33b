package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilnworks/kiln/internal/store"
)

// RunListing is the JSON payload of export without a run id.
type RunListing struct {
	Runs []RunEntry `json:"runs"`
}

// RunEntry is one archived run in a listing.
type RunEntry struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Config    string `json:"config"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "export [run-id]",
		Short: "Export an archived trajectory as CSV",
		Long: `Export an archived run's trajectory from the SQLite archive as CSV.
Without a run id, lists the archived runs instead.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runExport(rootOpts, dbPath, runID, outPath, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "kiln.db", "SQLite archive to read")
	cmd.Flags().StringVar(&outPath, "out", "", "CSV output path (required with a run id)")

	return cmd
}

func runExport(opts *RootOptions, dbPath, runID, outPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := cmd.Context()

	s, err := store.Open(dbPath)
	if err != nil {
		_ = formatter.Error("STORE_ERROR", err.Error(), nil)
		return WrapExitError(ExitCommandError, "export", err)
	}
	defer s.Close()

	if runID == "" {
		runs, err := s.ListRuns(ctx)
		if err != nil {
			_ = formatter.Error("STORE_ERROR", err.Error(), nil)
			return WrapExitError(ExitCommandError, "export", err)
		}
		return outputRunListing(formatter, runs)
	}

	if outPath == "" {
		return NewExitError(ExitCommandError, "export: --out is required when exporting a run")
	}

	traj, err := s.LoadTrajectory(ctx, runID)
	if err != nil {
		if store.IsNotFound(err) {
			_ = formatter.Error("RUN_NOT_FOUND", err.Error(), nil)
			return WrapExitError(ExitCommandError, "export", err)
		}
		_ = formatter.Error("STORE_ERROR", err.Error(), nil)
		return WrapExitError(ExitCommandError, "export", err)
	}

	if err := traj.ExportCSV(outPath); err != nil {
		_ = formatter.Error("EXPORT_ERROR", err.Error(), nil)
		return WrapExitError(ExitCommandError, "export", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{"run_id": runID, "csv": outPath, "points": traj.Len()})
	}
	fmt.Fprintf(formatter.Writer, "✓ Exported run %s (%d point(s)) to %s\n", runID, traj.Len(), outPath)
	return nil
}

func outputRunListing(formatter *OutputFormatter, runs []store.RunRecord) error {
	listing := RunListing{}
	for _, r := range runs {
		listing.Runs = append(listing.Runs, RunEntry{
			ID:        r.ID,
			CreatedAt: r.CreatedAt.Format("2006-01-02 15:04:05"),
			Config:    r.ConfigPath,
			Status:    r.Status,
			Error:     r.Error,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(listing)
	}

	if len(listing.Runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No archived runs")
		return nil
	}
	for _, r := range listing.Runs {
		fmt.Fprintf(formatter.Writer, "%s  %s  %-9s  %s\n", r.ID, r.CreatedAt, r.Status, r.Config)
	}
	return nil
}
