package cli

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_TextGolden(t *testing.T) {
	path := writeConfig(t, twoStageYAML)

	out, _, err := execKiln(t, "plan", path)
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "plan_two_stage", []byte(out))
}

func TestPlan_JSON(t *testing.T) {
	path := writeConfig(t, twoStageYAML)

	out, _, err := execKiln(t, "--format", "json", "plan", path)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   PlanResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	require.Len(t, resp.Data.Stages, 2)
	assert.Equal(t, "stage_a", resp.Data.Stages[0].ID)
	assert.Equal(t, "advance_to_steady_state", resp.Data.Stages[0].Directive)
	assert.Equal(t, []string{"r_a"}, resp.Data.Stages[0].Nodes)
	assert.Equal(t, "stage_b", resp.Data.Stages[1].ID)

	require.Len(t, resp.Data.Connections, 1)
	assert.True(t, resp.Data.Connections[0].Switched)
}

func TestPlan_CycleIsFailure(t *testing.T) {
	cyclic := `
phases:
  gas:
    mechanism: full
mechanisms:
  full:
    species: [N2]
groups:
  stage_a:
    mechanism: full
  stage_b:
    mechanism: full
nodes:
  - id: r_a
    group: stage_a
    IdealGasReactor:
      composition: "N2:1"
  - id: r_b
    group: stage_b
    IdealGasReactor:
      composition: "N2:1"
connections:
  - id: fwd
    MassFlowController: {}
    source: r_a
    target: r_b
  - id: back
    MassFlowController: {}
    source: r_b
    target: r_a
`
	path := writeConfig(t, cyclic)

	out, _, err := execKiln(t, "plan", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "STAGE_CYCLE")
}
