package sensors

import (
	"errors"
	"fmt"
	"math"

	"github.com/zeusync/kinesim/internal/core/geometry"
	"github.com/zeusync/kinesim/internal/core/world"
)

var ErrInvalidConfig = errors.New("invalid sensor configuration")

// Config describes the ray fan mounted on the agent.
type Config struct {
	Count     int     `yaml:"count"`
	MaxVision float64 `yaml:"max_vision"`
}

// Validate checks the ray fan parameters.
func (c Config) Validate() error {
	if c.Count <= 0 {
		return fmt.Errorf("%w: count must be positive, got %d", ErrInvalidConfig, c.Count)
	}
	if c.MaxVision <= 0 {
		return fmt.Errorf("%w: max_vision must be positive, got %v", ErrInvalidConfig, c.MaxVision)
	}
	return nil
}

// Reading is the measurement of one ray. Hit is false when no wall lies within
// range, in which case Distance and Point carry no meaning.
type Reading struct {
	Angle    float64        `json:"angle"`
	Hit      bool           `json:"hit"`
	Distance float64        `json:"distance"`
	Point    geometry.Point `json:"point"`
	Wall     int            `json:"wall"`
}

// Value returns the measured distance and whether a wall was seen.
func (r Reading) Value() (float64, bool) { return r.Distance, r.Hit }

// Or returns the distance, or fallback when nothing was seen.
func (r Reading) Or(fallback float64) float64 {
	if !r.Hit {
		return fallback
	}
	return r.Distance
}

// Model casts Count rays evenly spaced around the agent. Each ray starts on the
// agent's rim and extends MaxVision beyond it.
type Model struct {
	cfg    Config
	radius float64
	step   float64
}

// New creates a sensor model for an agent of the given radius.
func New(cfg Config, radius float64) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{cfg: cfg, radius: radius, step: 2 * math.Pi / float64(cfg.Count)}, nil
}

func (m *Model) Count() int         { return m.cfg.Count }
func (m *Model) MaxVision() float64 { return m.cfg.MaxVision }

// Offset returns the angle of ray i relative to the heading.
func (m *Model) Offset(i int) float64 { return float64(i) * m.step }

// Ray returns the segment covered by ray i.
func (m *Model) Ray(i int, pos geometry.Point, heading float64) geometry.Segment {
	dir := geometry.FromPolar(heading + m.Offset(i))
	return geometry.Segment{
		A: pos.Add(dir.Mul(m.radius)),
		B: pos.Add(dir.Mul(m.radius + m.cfg.MaxVision)),
	}
}

// Rays returns every ray segment for the given pose.
func (m *Model) Rays(pos geometry.Point, heading float64) []geometry.Segment {
	out := make([]geometry.Segment, m.cfg.Count)
	for i := range out {
		out[i] = m.Ray(i, pos, heading)
	}
	return out
}

// Scan measures every ray against the map and keeps the nearest hit per ray.
func (m *Model) Scan(w *world.Map, pos geometry.Point, heading float64) []Reading {
	out := make([]Reading, m.cfg.Count)
	m.ScanInto(out, w, pos, heading)
	return out
}

// ScanInto is Scan writing into a caller-provided slice of length Count.
func (m *Model) ScanInto(out []Reading, w *world.Map, pos geometry.Point, heading float64) {
	for i := range out[:m.cfg.Count] {
		ray := m.Ray(i, pos, heading)
		reading := Reading{Angle: m.Offset(i)}

		best := math.Inf(1)
		for _, wall := range w.QuerySegment(ray) {
			p, ok := geometry.SegmentIntersection(ray, wall.Segment)
			if !ok {
				continue
			}
			d := geometry.Distance(ray.A, p)
			if d < best {
				best = d
				reading.Hit = true
				reading.Distance = math.Min(d, m.cfg.MaxVision)
				reading.Point = p
				reading.Wall = wall.Index
			}
		}
		out[i] = reading
	}
}
