package simulation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/kinesim/internal/core/agent"
	"github.com/zeusync/kinesim/internal/core/collision"
	"github.com/zeusync/kinesim/internal/core/events/bus"
	"github.com/zeusync/kinesim/internal/core/geometry"
	"github.com/zeusync/kinesim/internal/core/observability/log"
	"github.com/zeusync/kinesim/internal/core/sensors"
	"github.com/zeusync/kinesim/internal/core/world"
)

func agentConfig() agent.Config {
	return agent.Config{
		Radius:   10,
		MaxSpeed: 10,
		Sensors:  sensors.Config{Count: 8, MaxVision: 100},
	}
}

func newAgent(t *testing.T, m *world.Map, start geometry.Point, heading float64) *agent.Agent {
	t.Helper()
	a, err := agent.New(agentConfig(), m, start, heading)
	require.NoError(t, err)
	return a
}

func wallMap(t *testing.T) *world.Map {
	t.Helper()
	m, err := world.FromPolygons([][]geometry.Point{{geometry.Pt(20, -50), geometry.Pt(20, 50)}}, nil)
	require.NoError(t, err)
	return m
}

func TestRunAgainstWall(t *testing.T) {
	a := newAgent(t, wallMap(t), geometry.Pt(0, 0), 0)
	cfg := Config{Ticks: 10, ControlEvery: 1}

	res, err := Run(context.Background(), a, Constant{Left: 5, Right: 5}, cfg, WithLogger(log.Nop()))
	require.NoError(t, err)

	assert.Equal(t, 10, res.Ticks)
	require.Len(t, res.Trace, 11)
	for _, s := range res.Trace {
		assert.LessOrEqual(t, s.Position.X, 10+collision.Tolerance)
	}
	assert.InDelta(t, 10, res.Trace[len(res.Trace)-1].Position.X, 1e-9)
	assert.InDelta(t, 10, res.Distance, 1e-9)
	assert.Equal(t, 9, res.Collisions)
	assert.Equal(t, "constant", res.Controller)
}

func TestRunPublishesEvents(t *testing.T) {
	b := bus.New()
	var ticks, hits int
	var finished *Result
	_, err := b.Subscribe(EventTick, func(e bus.Event) error {
		frame := e.Data().(TickFrame)
		assert.Equal(t, "ep-1", frame.Episode)
		ticks++
		return nil
	})
	require.NoError(t, err)
	_, err = b.Subscribe(EventCollision, func(bus.Event) error { hits++; return nil })
	require.NoError(t, err)
	_, err = b.Subscribe(EventEpisodeFinished, func(e bus.Event) error {
		finished = e.Data().(*Result)
		return errors.New("ignored")
	})
	require.NoError(t, err)

	a := newAgent(t, wallMap(t), geometry.Pt(0, 0), 0)
	res, err := Run(context.Background(), a, Constant{Left: 5, Right: 5}, Config{Ticks: 5, ControlEvery: 1},
		WithBus(b), WithEpisode("ep-1"), WithLogger(log.Nop()))
	require.NoError(t, err)

	assert.Equal(t, 5, ticks)
	assert.Equal(t, 4, hits)
	assert.Same(t, res, finished)
}

func TestRunStopsOnCancel(t *testing.T) {
	m, err := world.Box(1000, 1000)
	require.NoError(t, err)
	a := newAgent(t, m, geometry.Pt(500, 500), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, a, Constant{Left: 1, Right: 2}, Config{Ticks: 100, ControlEvery: 1}, WithLogger(log.Nop()))
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Zero(t, res.Ticks)
}

func TestRealtimeHonoursDeadline(t *testing.T) {
	m, err := world.Box(1000, 1000)
	require.NoError(t, err)
	a := newAgent(t, m, geometry.Pt(500, 500), 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	cfg := Config{Ticks: 1000, ControlEvery: 1, TickRate: 10 * time.Millisecond, Realtime: true}
	res, err := Run(ctx, a, Constant{Left: 1, Right: 1}, cfg, WithLogger(log.Nop()))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, res.Ticks, 1000)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.ErrorIs(t, Config{Ticks: 0, ControlEvery: 1}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{Ticks: 1, ControlEvery: 0}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{Ticks: 1, ControlEvery: 1, Realtime: true}.Validate(), ErrInvalidConfig)
}

func TestScriptedController(t *testing.T) {
	ctrl := NewScripted([]Waypoint{
		{Tick: 5, Left: 2, Right: 2},
		{Tick: 0, Left: 1, Right: 3},
	})

	obs := agent.Observation{Tick: 0}
	assert.Equal(t, Command{Left: 1, Right: 3}, ctrl.Control(obs))

	obs = agent.Observation{Tick: 7, State: agent.State{Left: 1, Right: 3}}
	assert.Equal(t, Command{Left: 1, Right: -1}, ctrl.Control(obs))

	empty := NewScripted(nil)
	obs = agent.Observation{State: agent.State{Left: 2, Right: -1}}
	assert.Equal(t, Command{Left: -2, Right: 1}, empty.Control(obs))
}

func TestAvoiderSteersAway(t *testing.T) {
	ctrl := Avoider{Cruise: 4, Turn: 2, Threshold: 50}

	clear := agent.Observation{Readings: []sensors.Reading{{Angle: 0}, {Angle: math.Pi / 4}}}
	assert.Equal(t, Command{Left: 4, Right: 4}, ctrl.Control(clear))

	left := agent.Observation{Readings: []sensors.Reading{
		{Angle: math.Pi / 4, Hit: true, Distance: 25},
		{Angle: math.Pi, Hit: true, Distance: 1},
	}}
	cmd := ctrl.Control(left)
	assert.Equal(t, 4.0, cmd.Left)
	assert.InDelta(t, 3, cmd.Right, 1e-12)

	right := agent.Observation{Readings: []sensors.Reading{
		{Angle: 7 * math.Pi / 4, Hit: true, Distance: 0},
	}}
	cmd = ctrl.Control(right)
	assert.InDelta(t, 2, cmd.Left, 1e-12)
	assert.Equal(t, 4.0, cmd.Right)
}

func TestAvoiderExploresBox(t *testing.T) {
	m, err := world.Box(400, 400)
	require.NoError(t, err)
	a := newAgent(t, m, geometry.Pt(200, 200), 0.3)

	res, err := Run(context.Background(), a, Avoider{Cruise: 4, Turn: 6, Threshold: 60},
		Config{Ticks: 500, ControlEvery: 1}, WithLogger(log.Nop()))
	require.NoError(t, err)

	r := collision.NewResolver(10)
	for _, s := range res.Trace {
		require.True(t, r.Clear(m, s.Position), "tick %d", s.Tick)
	}
	assert.Greater(t, res.Distance, 100.0)
}

func TestEvaluate(t *testing.T) {
	res := &Result{
		Radius: 10,
		Trace: []Sample{
			{Position: geometry.Pt(0, 0)},
			{Position: geometry.Pt(5, 0)},
			{Position: geometry.Pt(15, 0)},
			{Position: geometry.Pt(15, 15)},
			{Position: geometry.Pt(0, 15)},
		},
		Collisions: 2,
		Clearance:  0.5,
	}

	s := Evaluate(res, Weights{Coverage: 1, Area: 0.01, Collision: 1, Clearance: 2})
	assert.Equal(t, 4, s.Cells)
	assert.InDelta(t, 225, s.Area, 1e-9)
	assert.InDelta(t, 4+2.25-2+1, s.Total, 1e-9)
}
