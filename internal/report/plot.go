package report

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/zeusync/kinesim/internal/core/geometry"
	"github.com/zeusync/kinesim/internal/core/simulation"
	"github.com/zeusync/kinesim/internal/core/world"
)

var ErrEmptyTrace = errors.New("trace is empty")

var (
	wallColor      = color.RGBA{40, 40, 40, 255}
	pathColor      = color.RGBA{0, 80, 255, 255}
	startColor     = color.RGBA{0, 140, 0, 255}
	collisionColor = color.RGBA{220, 0, 0, 255}
)

// Trajectory builds a plot of the map walls, its start points and the traced path.
// Positions where the agent touched a wall are marked.
func Trajectory(w *world.Map, res *simulation.Result) (*plot.Plot, error) {
	if res == nil || len(res.Trace) == 0 {
		return nil, ErrEmptyTrace
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s)", res.Episode, res.Controller)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(plotter.NewGrid())

	lo, hi := w.Bounds()
	pad := 0.05 * (hi.X - lo.X + hi.Y - lo.Y) / 2
	p.X.Min, p.X.Max = lo.X-pad, hi.X+pad
	p.Y.Min, p.Y.Max = lo.Y-pad, hi.Y+pad

	for _, wall := range w.Walls() {
		line, err := plotter.NewLine(plotter.XYs{{X: wall.A.X, Y: wall.A.Y}, {X: wall.B.X, Y: wall.B.Y}})
		if err != nil {
			return nil, fmt.Errorf("wall %d: %w", wall.Index, err)
		}
		line.Color = wallColor
		line.Width = vg.Points(2)
		p.Add(line)
	}

	path, err := plotter.NewLine(toXYs(res.Path()))
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	path.Color = pathColor
	path.Width = vg.Points(1.2)
	p.Add(path)
	p.Legend.Add("path", path)

	if starts := w.StartPoints(); len(starts) > 0 {
		sc, err := plotter.NewScatter(toXYs(starts))
		if err != nil {
			return nil, fmt.Errorf("start points: %w", err)
		}
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Color = startColor
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add("start", sc)
	}

	var hits []geometry.Point
	for _, s := range res.Trace {
		if s.Collided {
			hits = append(hits, s.Position)
		}
	}
	if len(hits) > 0 {
		sc, err := plotter.NewScatter(toXYs(hits))
		if err != nil {
			return nil, fmt.Errorf("collisions: %w", err)
		}
		sc.GlyphStyle.Shape = draw.CrossGlyph{}
		sc.GlyphStyle.Color = collisionColor
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add("contact", sc)
	}
	return p, nil
}

// SaveTrajectory renders Trajectory to file; the format follows the extension.
func SaveTrajectory(file string, w *world.Map, res *simulation.Result) error {
	p, err := Trajectory(w, res)
	if err != nil {
		return err
	}
	return p.Save(6*vg.Inch, 6*vg.Inch, file)
}

func toXYs(points []geometry.Point) plotter.XYs {
	xy := make(plotter.XYs, len(points))
	for i, pt := range points {
		xy[i].X = pt.X
		xy[i].Y = pt.Y
	}
	return xy
}
