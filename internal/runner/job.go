package runner

import (
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/zeusync/kinesim/internal/core/geometry"
	"github.com/zeusync/kinesim/internal/core/simulation"
	"github.com/zeusync/kinesim/internal/core/world"
)

var (
	ErrInvalidSweep = errors.New("invalid sweep")
	ErrNoJobs       = errors.New("no jobs to run")
)

// jobNamespace scopes the name-based job ids.
var jobNamespace = uuid.MustParse("8f0e7c1a-53d4-4b7e-9a43-2f1c6f0d9b11")

// Job is one episode of a batch. NewController is called once per run so
// that stateful controllers are never shared between episodes.
type Job struct {
	ID            string
	Index         int
	Start         geometry.Point
	Heading       float64
	Seed          uint64
	Label         string
	NewController func() simulation.Controller
}

// SweepSpec describes a grid of constant wheel speeds tried from every start
// point of a map.
type SweepSpec struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
	// Heading is the initial heading. With RandomHeading set, each job derives
	// its heading from its seed instead.
	Heading       float64 `yaml:"heading"`
	RandomHeading bool    `yaml:"random_heading"`
	// SkipStill leaves out the (0, 0) pair.
	SkipStill bool `yaml:"skip_still"`
}

func (s SweepSpec) Validate() error {
	if s.Step <= 0 {
		return fmt.Errorf("%w: step must be positive, got %v", ErrInvalidSweep, s.Step)
	}
	if s.Max < s.Min {
		return fmt.Errorf("%w: max %v is below min %v", ErrInvalidSweep, s.Max, s.Min)
	}
	return nil
}

func (s SweepSpec) values() []float64 {
	n := int(math.Floor((s.Max-s.Min)/s.Step+geometry.Epsilon)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = s.Min + float64(i)*s.Step
	}
	return out
}

// Sweep builds one job per start point and (left, right) speed pair. Job ids
// and seeds depend only on the map and the job parameters, so the same sweep
// always produces the same jobs.
func Sweep(w *world.Map, spec SweepSpec) ([]Job, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	starts := w.StartPoints()
	if len(starts) == 0 {
		return nil, world.ErrNoStartPoints
	}

	speeds := spec.values()
	jobs := make([]Job, 0, len(starts)*len(speeds)*len(speeds))
	for si, start := range starts {
		for _, vl := range speeds {
			for _, vr := range speeds {
				if spec.SkipStill && vl == 0 && vr == 0 {
					continue
				}
				vl, vr := vl, vr
				key := fmt.Sprintf("%016x/%d/%g/%g", w.Fingerprint(), si, vl, vr)
				id := uuid.NewSHA1(jobNamespace, []byte(key)).String()
				seed := xxhash.Sum64String(key)

				heading := spec.Heading
				if spec.RandomHeading {
					heading = headingFromSeed(seed)
				}
				jobs = append(jobs, Job{
					ID:      id,
					Index:   len(jobs),
					Start:   start,
					Heading: heading,
					Seed:    seed,
					Label:   fmt.Sprintf("start=%d vl=%g vr=%g", si, vl, vr),
					NewController: func() simulation.Controller {
						return simulation.Constant{Left: vl, Right: vr}
					},
				})
			}
		}
	}
	return jobs, nil
}

func headingFromSeed(seed uint64) float64 {
	return geometry.NormalizeAngle(float64(seed%3600) / 3600 * 2 * math.Pi)
}
