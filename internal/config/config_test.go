package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/kinesim/internal/core/agent"
	"github.com/zeusync/kinesim/internal/core/geometry"
	"github.com/zeusync/kinesim/internal/core/simulation"
)

const sample = `
log:
  level: debug
  format: json
agent:
  radius: 10
  max_speed: 5
sensors:
  count: 8
  max_vision: 120
simulation:
  ticks: 250
  control_every: 2
  tick_rate: 50ms
controller:
  kind: avoid
  cruise: 3
  turn: 2
  threshold: 40
runner:
  workers: 3
  timeout: 2s
world:
  polygons:
    - [[0, 0], [400, 0], [400, 300], [0, 300]]
    - [[180, 130], [220, 130], [200, 170]]
  starts:
    - [50, 50]
    - [350, 250]
`

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	m, err := c.BuildWorld()
	require.NoError(t, err)
	starts := m.StartPoints()
	require.Len(t, starts, 1)
	assert.Equal(t, geometry.Pt(400, 300), starts[0])
}

func TestParseOverlaysDefaults(t *testing.T) {
	c, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 250, c.Simulation.Ticks)
	assert.Equal(t, 50*time.Millisecond, c.Simulation.TickRate)
	assert.Equal(t, 2*time.Second, c.Runner.Timeout)
	assert.Equal(t, 3, c.Runner.Workers)
	// untouched sections keep their defaults
	assert.Equal(t, Default().Score, c.Score)
	assert.Equal(t, Default().Stream, c.Stream)

	ac := c.AgentConfig()
	assert.Equal(t, 8, ac.Sensors.Count)
	assert.Equal(t, 10.0, ac.Radius)

	m, err := c.BuildWorld()
	require.NoError(t, err)
	assert.Len(t, m.Walls(), 7)
	assert.Len(t, m.StartPoints(), 2)

	ctrl, err := c.NewController()
	require.NoError(t, err)
	assert.Equal(t, simulation.Avoider{Cruise: 3, Turn: 2, Threshold: 40}, ctrl)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader("agent:\n  raduis: 3\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEmptyDocumentGivesDefaults(t *testing.T) {
	c, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestValidateReportsEverySection(t *testing.T) {
	c := Default()
	c.Agent.Radius = 0
	c.Simulation.Ticks = 0
	c.Controller.Kind = "joystick"

	err := c.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, agent.ErrInvalidConfig)
	assert.ErrorIs(t, err, simulation.ErrInvalidConfig)
	assert.ErrorIs(t, err, ErrUnknownController)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kinesim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "avoid", c.Controller.Kind)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScriptedController(t *testing.T) {
	c, err := Parse(strings.NewReader(`
controller:
  kind: scripted
  script:
    - {tick: 0, left: 1, right: 1}
    - {tick: 10, left: -1, right: 1}
`))
	require.NoError(t, err)
	ctrl, err := c.NewController()
	require.NoError(t, err)
	assert.Equal(t, "scripted", ctrl.Name())
}

func TestBundledConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs", "kinesim.yaml"))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	m, err := c.BuildWorld()
	require.NoError(t, err)
	assert.Len(t, m.Walls(), 11)
	assert.Len(t, m.StartPoints(), 3)
}
