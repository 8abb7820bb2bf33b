package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const twoStageYAML = `
metadata:
  title: two stage demo
phases:
  gas:
    mechanism: full
mechanisms:
  full:
    species: [CH4, O2, N2]
  reduced:
    species: [N2]
groups:
  stage_a:
    mechanism: full
    solve: advance_to_steady_state
  stage_b:
    mechanism: reduced
    solve: advance
    advance_time: 0.002
nodes:
  - id: r_a
    group: stage_a
    IdealGasReactor:
      temperature: 1200
      pressure: 101325
      composition: "CH4:1, O2:2, N2:7.52"
      residence_time: 0.001
  - id: r_b
    IdealGasReactor:
      group: stage_b
      temperature: 900
      pressure: 101325
      composition: "N2:1"
      residence_time: 0.002
connections:
  - id: a_to_b
    MassFlowController:
      mass_flow_rate: 1.0e-4
    source: r_a
    target: r_b
    mechanism_switch:
      htol: 1.0e-3
      xtol: 1.0e-5
`

// writeConfig drops the fixture config into a temp dir and returns its path.
func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "network.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

// execKiln runs the CLI with the given args and returns captured output.
func execKiln(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}
