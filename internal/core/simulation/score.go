package simulation

import (
	"math"

	"github.com/zeusync/kinesim/internal/core/geometry"
)

// Weights scale the terms of Score.
type Weights struct {
	Coverage  float64 `yaml:"coverage"`
	Area      float64 `yaml:"area"`
	Collision float64 `yaml:"collision"`
	Clearance float64 `yaml:"clearance"`
}

func DefaultWeights() Weights {
	return Weights{
		Coverage:  1,
		Area:      0.001,
		Collision: 0.5,
		Clearance: 10,
	}
}

// Score breaks an episode fitness down into its terms.
type Score struct {
	// Cells is the number of distinct grid cells (side = agent radius) visited.
	Cells int `json:"cells"`
	// Area enclosed by the closed trace.
	Area       float64 `json:"area"`
	Collisions int     `json:"collisions"`
	Clearance  float64 `json:"clearance"`
	Total      float64 `json:"total"`
}

type cell struct{ x, y int64 }

// Evaluate scores a finished episode. Exploring new cells, sweeping a large
// area and keeping distance from walls raise the total; every tick spent
// touching a wall lowers it.
func Evaluate(res *Result, w Weights) Score {
	s := Score{Collisions: res.Collisions, Clearance: res.Clearance}

	size := res.Radius
	if size <= 0 {
		size = 1
	}
	visited := make(map[cell]struct{}, len(res.Trace))
	for _, sample := range res.Trace {
		visited[cell{
			x: int64(math.Floor(sample.Position.X / size)),
			y: int64(math.Floor(sample.Position.Y / size)),
		}] = struct{}{}
	}
	s.Cells = len(visited)
	s.Area = geometry.TrapezoidArea(res.Path())

	s.Total = w.Coverage*float64(s.Cells) +
		w.Area*s.Area -
		w.Collision*float64(s.Collisions) +
		w.Clearance*s.Clearance
	return s
}
