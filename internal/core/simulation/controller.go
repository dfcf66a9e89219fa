package simulation

import (
	"math"
	"sort"

	"github.com/zeusync/kinesim/internal/core/agent"
	"github.com/zeusync/kinesim/internal/core/geometry"
)

// Command holds wheel speed increments added to the current speeds.
type Command struct {
	Left  float64 `json:"dl"`
	Right float64 `json:"dr"`
}

// Controller decides the wheel increments from what the agent observes.
// Controllers keep no state shared between episodes; the runner builds one
// per job.
type Controller interface {
	Name() string
	Control(obs agent.Observation) Command
}

// towards returns the increments that bring the current speeds to (vl, vr).
func towards(s agent.State, vl, vr float64) Command {
	return Command{Left: vl - s.Left, Right: vr - s.Right}
}

// Constant drives both wheels at fixed speeds.
type Constant struct {
	Left, Right float64
}

func (c Constant) Name() string { return "constant" }

func (c Constant) Control(obs agent.Observation) Command {
	return towards(obs.State, c.Left, c.Right)
}

// Waypoint sets absolute wheel speeds from Tick on.
type Waypoint struct {
	Tick  int     `yaml:"tick"`
	Left  float64 `yaml:"left"`
	Right float64 `yaml:"right"`
}

// Scripted replays a list of waypoints. Before the first waypoint the wheels
// are held at zero.
type Scripted struct {
	waypoints []Waypoint
}

func NewScripted(waypoints []Waypoint) *Scripted {
	wp := append([]Waypoint(nil), waypoints...)
	sort.SliceStable(wp, func(i, j int) bool { return wp[i].Tick < wp[j].Tick })
	return &Scripted{waypoints: wp}
}

func (s *Scripted) Name() string { return "scripted" }

func (s *Scripted) Control(obs agent.Observation) Command {
	i := sort.Search(len(s.waypoints), func(i int) bool { return s.waypoints[i].Tick > obs.Tick }) - 1
	if i < 0 {
		return towards(obs.State, 0, 0)
	}
	return towards(obs.State, s.waypoints[i].Left, s.waypoints[i].Right)
}

// Avoider cruises straight and steers away from the nearest wall seen within
// Threshold by the forward-facing rays.
type Avoider struct {
	Cruise    float64
	Turn      float64
	Threshold float64
}

func (a Avoider) Name() string { return "avoid" }

func (a Avoider) Control(obs agent.Observation) Command {
	nearest := math.Inf(1)
	side := 0.0
	for _, r := range obs.Readings {
		rel := geometry.NormalizeAngle(r.Angle)
		if math.Abs(rel) > math.Pi/2 {
			continue
		}
		if d, ok := r.Value(); ok && d < a.Threshold && d < nearest {
			nearest, side = d, rel
		}
	}
	if math.IsInf(nearest, 1) {
		return towards(obs.State, a.Cruise, a.Cruise)
	}

	slow := a.Cruise - a.Turn*(1-nearest/a.Threshold)
	if side > 0 {
		// obstacle on the left: turn right
		return towards(obs.State, a.Cruise, slow)
	}
	return towards(obs.State, slow, a.Cruise)
}
