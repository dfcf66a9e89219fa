package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/kinesim/internal/core/agent"
	"github.com/zeusync/kinesim/internal/core/geometry"
	"github.com/zeusync/kinesim/internal/core/observability/log"
	"github.com/zeusync/kinesim/internal/core/sensors"
	"github.com/zeusync/kinesim/internal/core/simulation"
	"github.com/zeusync/kinesim/internal/core/world"
	"github.com/zeusync/kinesim/internal/runner"
	"github.com/zeusync/kinesim/internal/stream"
)

var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrUnknownController = errors.New("unknown controller")
)

// Config is the whole simulator configuration, one section per subsystem.
type Config struct {
	Log        LogConfig          `yaml:"log"`
	Agent      agent.Config       `yaml:"agent"`
	Sensors    sensors.Config     `yaml:"sensors"`
	Simulation simulation.Config  `yaml:"simulation"`
	Controller ControllerConfig   `yaml:"controller"`
	Score      simulation.Weights `yaml:"score"`
	Runner     runner.Config      `yaml:"runner"`
	Sweep      runner.SweepSpec   `yaml:"sweep"`
	World      WorldConfig        `yaml:"world"`
	Stream     stream.Config      `yaml:"stream"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Vec is a point written as a two-element YAML sequence.
type Vec [2]float64

func (v Vec) Point() geometry.Point { return geometry.Pt(v[0], v[1]) }

// WorldConfig describes the arena. Without polygons a Width x Height box is used.
type WorldConfig struct {
	Width    float64 `yaml:"width"`
	Height   float64 `yaml:"height"`
	Polygons [][]Vec `yaml:"polygons"`
	Starts   []Vec   `yaml:"starts"`
	Heading  float64 `yaml:"heading"`
}

// ControllerConfig selects and tunes the controller used by single runs.
type ControllerConfig struct {
	Kind      string                `yaml:"kind"`
	Left      float64               `yaml:"left"`
	Right     float64               `yaml:"right"`
	Cruise    float64               `yaml:"cruise"`
	Turn      float64               `yaml:"turn"`
	Threshold float64               `yaml:"threshold"`
	Script    []simulation.Waypoint `yaml:"script"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:        LogConfig{Level: "info", Format: "console"},
		Agent:      agent.Config{Radius: 20, MaxSpeed: 8},
		Sensors:    sensors.Config{Count: 12, MaxVision: 150},
		Simulation: simulation.DefaultConfig(),
		Controller: ControllerConfig{Kind: "constant", Left: 3, Right: 3, Cruise: 4, Turn: 6, Threshold: 80},
		Score:      simulation.DefaultWeights(),
		Runner:     runner.DefaultConfig(),
		Sweep:      runner.SweepSpec{Min: -4, Max: 4, Step: 2, SkipStill: true},
		World:      WorldConfig{Width: 800, Height: 600},
		Stream:     stream.DefaultConfig(),
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML from r over the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return c, nil
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	if err := c.AgentConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Simulation.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Runner.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Sweep.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Stream.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.World.validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.NewController(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log format %q is not json or console", c.Log.Format))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// AgentConfig returns the agent section with the sensor section attached.
func (c Config) AgentConfig() agent.Config {
	a := c.Agent
	a.Sensors = c.Sensors
	return a
}

// Logger builds the process logger described by the log section.
func (c Config) Logger() *log.Logger {
	format := log.FormatJSON
	if strings.EqualFold(c.Log.Format, "console") {
		format = log.FormatConsole
	}
	return log.NewWithFormat(log.ParseLevel(c.Log.Level), format)
}

func (w WorldConfig) validate() error {
	if len(w.Polygons) == 0 && (w.Width <= 0 || w.Height <= 0) {
		return fmt.Errorf("world: width and height must be positive without polygons")
	}
	return nil
}

// BuildWorld creates the map described by the world section.
func (c Config) BuildWorld() (*world.Map, error) {
	starts := make([]geometry.Point, len(c.World.Starts))
	for i, s := range c.World.Starts {
		starts[i] = s.Point()
	}

	if len(c.World.Polygons) == 0 {
		if err := c.World.validate(); err != nil {
			return nil, err
		}
		if len(starts) == 0 {
			return world.Box(c.World.Width, c.World.Height)
		}
		return world.FromPolygons(boxPolygon(c.World.Width, c.World.Height), starts)
	}

	polys := make([][]geometry.Point, len(c.World.Polygons))
	for i, poly := range c.World.Polygons {
		polys[i] = make([]geometry.Point, len(poly))
		for j, v := range poly {
			polys[i][j] = v.Point()
		}
	}
	return world.FromPolygons(polys, starts)
}

func boxPolygon(w, h float64) [][]geometry.Point {
	return [][]geometry.Point{{geometry.Pt(0, 0), geometry.Pt(w, 0), geometry.Pt(w, h), geometry.Pt(0, h)}}
}

// NewController builds the controller selected by the controller section.
func (c Config) NewController() (simulation.Controller, error) {
	cc := c.Controller
	switch strings.ToLower(cc.Kind) {
	case "", "constant":
		return simulation.Constant{Left: cc.Left, Right: cc.Right}, nil
	case "avoid", "avoider":
		if cc.Threshold <= 0 {
			return nil, fmt.Errorf("controller: avoid threshold must be positive, got %v", cc.Threshold)
		}
		return simulation.Avoider{Cruise: cc.Cruise, Turn: cc.Turn, Threshold: cc.Threshold}, nil
	case "scripted", "script":
		return simulation.NewScripted(cc.Script), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownController, cc.Kind)
	}
}
