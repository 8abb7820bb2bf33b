package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// archiveFixtureRun solves the fixture network into a fresh archive and
// returns the database path and run id.
func archiveFixtureRun(t *testing.T) (dbPath, runID string) {
	t.Helper()
	path := writeConfig(t, twoStageYAML)
	dbPath = filepath.Join(t.TempDir(), "kiln.db")

	out, _, err := execKiln(t, "--format", "json", "run", path, "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Data RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Data.RunID)
	return dbPath, resp.Data.RunID
}

func TestExport_ListRuns(t *testing.T) {
	dbPath, runID := archiveFixtureRun(t)

	out, _, err := execKiln(t, "export", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, runID)
	assert.Contains(t, out, "completed")
}

func TestExport_RunToCSV(t *testing.T) {
	dbPath, runID := archiveFixtureRun(t)
	outPath := filepath.Join(t.TempDir(), "traj.csv")

	out, _, err := execKiln(t, "export", "--db", dbPath, runID, "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Exported run")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "stage,t,T,P,X_CH4,X_O2,X_N2,Y_CH4,Y_O2,Y_N2", lines[0])
}

func TestExport_RequiresOutFlag(t *testing.T) {
	dbPath, runID := archiveFixtureRun(t)

	_, _, err := execKiln(t, "export", "--db", dbPath, runID)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExport_UnknownRun(t *testing.T) {
	dbPath, _ := archiveFixtureRun(t)

	out, _, err := execKiln(t, "export", "--db", dbPath, "no-such-run", "--out", filepath.Join(t.TempDir(), "x.csv"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "RUN_NOT_FOUND")
}
