package agent

import (
	"errors"
	"fmt"
	"math"

	"github.com/zeusync/kinesim/internal/core/collision"
	"github.com/zeusync/kinesim/internal/core/geometry"
	"github.com/zeusync/kinesim/internal/core/motion"
	"github.com/zeusync/kinesim/internal/core/sensors"
	"github.com/zeusync/kinesim/internal/core/world"
)

var (
	ErrInvalidConfig = errors.New("invalid agent configuration")
	ErrStartBlocked  = errors.New("start position overlaps a wall")
)

// Config describes the robot body. A zero Wheelbase defaults to the diameter.
type Config struct {
	Radius    float64        `yaml:"radius"`
	Wheelbase float64        `yaml:"wheelbase"`
	MaxSpeed  float64        `yaml:"max_speed"`
	Sensors   sensors.Config `yaml:"-"`
}

func (c Config) Validate() error {
	if c.Radius <= 0 {
		return fmt.Errorf("%w: radius must be positive, got %v", ErrInvalidConfig, c.Radius)
	}
	if c.Wheelbase < 0 {
		return fmt.Errorf("%w: wheelbase must not be negative, got %v", ErrInvalidConfig, c.Wheelbase)
	}
	if c.MaxSpeed <= 0 {
		return fmt.Errorf("%w: max_speed must be positive, got %v", ErrInvalidConfig, c.MaxSpeed)
	}
	if err := c.Sensors.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) wheelbase() float64 {
	if c.Wheelbase == 0 {
		return 2 * c.Radius
	}
	return c.Wheelbase
}

// State is a snapshot of the agent pose and drive.
type State struct {
	Position    geometry.Point `json:"position"`
	Heading     float64        `json:"heading"`
	Left        float64        `json:"vl"`
	Right       float64        `json:"vr"`
	TurnRadius  float64        `json:"turn_radius"`
	AngularRate float64        `json:"angular_rate"`
}

// Observation is what a controller gets to see.
type Observation struct {
	Tick     int
	State    State
	Readings []sensors.Reading
	// Collided is true if the last update touched a wall.
	Collided bool
}

// Step is the outcome of one Update.
type Step struct {
	Tick     int
	Moved    bool
	Proposed geometry.Point
	State    State
	Mode     collision.Mode
	Contacts []collision.Contact
	Readings []sensors.Reading
}

// Agent is a single robot in a map. It is not safe for concurrent use; run
// one agent per goroutine.
type Agent struct {
	cfg      Config
	world    *world.Map
	drive    *motion.Model
	sense    *sensors.Model
	resolver *collision.Resolver

	pos      geometry.Point
	heading  float64
	tick     int
	readings []sensors.Reading
	collided bool
	hits     int
}

// New places an agent at start facing heading.
func New(cfg Config, w *world.Map, start geometry.Point, heading float64) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sense, err := sensors.New(cfg.Sensors, cfg.Radius)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	a := &Agent{
		cfg:      cfg,
		world:    w,
		drive:    motion.New(cfg.wheelbase()),
		sense:    sense,
		resolver: collision.NewResolver(cfg.Radius),
		pos:      start,
		heading:  geometry.NormalizeAngle(heading),
		readings: make([]sensors.Reading, sense.Count()),
	}
	if !a.resolver.Clear(w, start) {
		return nil, fmt.Errorf("%w: (%.3f, %.3f)", ErrStartBlocked, start.X, start.Y)
	}
	a.sense.ScanInto(a.readings, w, a.pos, a.heading)
	return a, nil
}

func (a *Agent) Config() Config   { return a.cfg }
func (a *Agent) World() *world.Map { return a.world }

// Command adds increments to the wheel speeds, clamping each to ±MaxSpeed.
func (a *Agent) Command(dl, dr float64) {
	vl, vr := a.drive.Speeds()
	a.SetSpeeds(vl+dl, vr+dr)
}

// SetSpeeds overrides the wheel speeds, clamped to ±MaxSpeed.
func (a *Agent) SetSpeeds(vl, vr float64) {
	a.drive.SetSpeeds(a.clamp(vl), a.clamp(vr))
}

// Stop zeroes both wheels.
func (a *Agent) Stop() { a.drive.Reset() }

func (a *Agent) clamp(v float64) float64 {
	return math.Max(-a.cfg.MaxSpeed, math.Min(a.cfg.MaxSpeed, v))
}

// Update advances the agent by one tick: kinematics, then collision
// resolution, then a fresh sensor scan. With both wheels stopped nothing
// changes apart from the tick counter.
func (a *Agent) Update() Step {
	a.tick++
	proposed, heading, moved := a.drive.Step(a.pos, a.heading)
	if !moved {
		a.collided = false
		return Step{Tick: a.tick, Proposed: a.pos, State: a.State(), Readings: a.Readings()}
	}

	res := a.resolver.Resolve(a.world, a.pos, proposed)
	a.pos = res.Position
	a.heading = heading
	a.collided = res.Collided()
	if a.collided {
		a.hits++
	}
	a.sense.ScanInto(a.readings, a.world, a.pos, a.heading)

	return Step{
		Tick:     a.tick,
		Moved:    true,
		Proposed: proposed,
		State:    a.State(),
		Mode:     res.Mode,
		Contacts: res.Contacts,
		Readings: a.Readings(),
	}
}

// State returns the current pose and drive.
func (a *Agent) State() State {
	vl, vr := a.drive.Speeds()
	return State{
		Position:    a.pos,
		Heading:     a.heading,
		Left:        vl,
		Right:       vr,
		TurnRadius:  a.drive.TurnRadius(),
		AngularRate: a.drive.AngularRate(),
	}
}

// Readings returns a copy of the latest sensor scan.
func (a *Agent) Readings() []sensors.Reading {
	return append([]sensors.Reading(nil), a.readings...)
}

// Observe returns the controller view of the agent.
func (a *Agent) Observe() Observation {
	return Observation{
		Tick:     a.tick,
		State:    a.State(),
		Readings: a.Readings(),
		Collided: a.collided,
	}
}

// Collisions counts the updates that touched a wall.
func (a *Agent) Collisions() int { return a.hits }

// Tick returns the number of updates performed.
func (a *Agent) Tick() int { return a.tick }

// Sensors exposes the ray model, e.g. to draw the rays.
func (a *Agent) Sensors() *sensors.Model { return a.sense }
