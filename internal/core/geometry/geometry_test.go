package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAngle(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{5 * math.Pi, math.Pi},
		{-math.Pi / 4, -math.Pi / 4},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, NormalizeAngle(c.in), 1e-12, "angle %v", c.in)
	}
}

func TestSegmentIntersection(t *testing.T) {
	cases := []struct {
		name string
		p, q Segment
		ok   bool
		want Point
	}{
		{"cross", Seg(0, 0, 10, 10), Seg(0, 10, 10, 0), true, Pt(5, 5)},
		{"touching end", Seg(0, 0, 10, 0), Seg(10, -5, 10, 5), true, Pt(10, 0)},
		{"disjoint", Seg(0, 0, 1, 0), Seg(5, -1, 5, 1), false, Point{}},
		{"parallel", Seg(0, 0, 10, 0), Seg(0, 1, 10, 1), false, Point{}},
		{"collinear", Seg(0, 0, 10, 0), Seg(5, 0, 15, 0), false, Point{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := SegmentIntersection(c.p, c.q)
			require.Equal(t, c.ok, ok)
			if ok {
				assert.InDelta(t, c.want.X, got.X, 1e-9)
				assert.InDelta(t, c.want.Y, got.Y, 1e-9)
			}
		})
	}
}

func TestClosestPoint(t *testing.T) {
	wall := Seg(20, -50, 20, 50)

	contact, dist, ratio := ClosestPoint(wall, Pt(0, 0))
	assert.InDelta(t, 20, contact.X, 1e-9)
	assert.InDelta(t, 0, contact.Y, 1e-9)
	assert.InDelta(t, 20, dist, 1e-9)
	assert.InDelta(t, 0.5, ratio, 1e-9)

	// beyond the B end the contact clamps to the endpoint
	contact, dist, ratio = ClosestPoint(Seg(0, 0, 10, 0), Pt(15, 0))
	assert.Equal(t, Pt(10, 0), contact)
	assert.InDelta(t, 5, dist, 1e-9)
	assert.Equal(t, 1.0, ratio)

	contact, dist, _ = ClosestPoint(Seg(0, 0, 10, 0), Pt(-3, 4))
	assert.Equal(t, Pt(0, 0), contact)
	assert.InDelta(t, 5, dist, 1e-9)

	// point sitting on an endpoint
	contact, dist, _ = ClosestPoint(Seg(0, 0, 10, 0), Pt(0, 0))
	assert.Equal(t, Pt(0, 0), contact)
	assert.Zero(t, dist)
}

func TestCircleIntersections(t *testing.T) {
	pts := CircleIntersections(Pt(0, 0), 5, Pt(8, 0), 5)
	require.Len(t, pts, 2)
	for _, p := range pts {
		assert.InDelta(t, 5, Distance(p, Pt(0, 0)), 1e-9)
		assert.InDelta(t, 5, Distance(p, Pt(8, 0)), 1e-9)
		assert.InDelta(t, 4, p.X, 1e-9)
		assert.InDelta(t, 3, math.Abs(p.Y), 1e-9)
	}

	assert.Len(t, CircleIntersections(Pt(0, 0), 5, Pt(10, 0), 5), 1)
	assert.Empty(t, CircleIntersections(Pt(0, 0), 5, Pt(11, 0), 5))
	assert.Empty(t, CircleIntersections(Pt(0, 0), 5, Pt(0, 0), 5))
}

func TestTrapezoidArea(t *testing.T) {
	square := []Point{Pt(0, 0), Pt(10, 0), Pt(10, 10), Pt(0, 10)}
	assert.InDelta(t, 100, TrapezoidArea(square), 1e-9)

	// orientation does not matter
	reversed := []Point{Pt(0, 10), Pt(10, 10), Pt(10, 0), Pt(0, 0)}
	assert.InDelta(t, 100, TrapezoidArea(reversed), 1e-9)

	assert.Zero(t, TrapezoidArea([]Point{Pt(0, 0), Pt(1, 1)}))
}

func TestSegmentSideAndNormal(t *testing.T) {
	s := Seg(0, 0, 10, 0)
	assert.Greater(t, s.Side(Pt(5, 1)), 0.0)
	assert.Less(t, s.Side(Pt(5, -1)), 0.0)
	assert.Zero(t, s.Side(Pt(20, 0)))

	n := s.Normal()
	assert.InDelta(t, 0, n.X, 1e-12)
	assert.InDelta(t, 1, n.Y, 1e-12)

	assert.InDelta(t, 20, PathLength([]Point{Pt(0, 0), Pt(10, 0), Pt(10, 10)}), 1e-12)
}
