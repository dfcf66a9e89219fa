package geometry

import (
	"math"

	"github.com/golang/geo/r2"
)

// Epsilon is the tolerance used for geometric comparisons.
const Epsilon = 1e-9

// Point is a 2D point / vector value.
type Point = r2.Point

// Pt is a shortcut for building a Point.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// FromPolar returns the unit vector pointing at angle (radians).
func FromPolar(angle float64) Point {
	return Point{X: math.Cos(angle), Y: math.Sin(angle)}
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 { return a.Sub(b).Norm() }

// Lerp interpolates linearly between a (t=0) and b (t=1).
func Lerp(a, b Point, t float64) Point {
	return Point{X: (1-t)*a.X + t*b.X, Y: (1-t)*a.Y + t*b.Y}
}

// NormalizeAngle maps an angle to (-π, π].
func NormalizeAngle(theta float64) float64 {
	theta = math.Remainder(theta, 2*math.Pi)
	if theta <= -math.Pi {
		theta += 2 * math.Pi
	}
	return theta
}

// NearlyEqual compares two floats with an absolute tolerance.
func NearlyEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

// Segment is a straight line between A and B.
type Segment struct {
	A, B Point
}

// Seg is a shortcut for building a Segment.
func Seg(ax, ay, bx, by float64) Segment {
	return Segment{A: Pt(ax, ay), B: Pt(bx, by)}
}

func (s Segment) Length() float64 { return Distance(s.A, s.B) }

// Direction is the (non-normalized) vector from A to B.
func (s Segment) Direction() Point { return s.B.Sub(s.A) }

// Normal is the left-hand unit normal of the segment. Zero for degenerate segments.
func (s Segment) Normal() Point {
	d := s.Direction()
	if d.Norm() < Epsilon {
		return Point{}
	}
	return d.Ortho().Normalize()
}

// Side reports on which side of the supporting line p lies:
// > 0 left of A→B, < 0 right of it, 0 on the line.
func (s Segment) Side(p Point) float64 {
	return s.Direction().Cross(p.Sub(s.A))
}

// Midpoint of the segment.
func (s Segment) Midpoint() Point { return Lerp(s.A, s.B, 0.5) }

// SegmentIntersection returns the single intersection point of p and q.
// Parallel and collinear segments never report a point.
func SegmentIntersection(p, q Segment) (Point, bool) {
	r := p.Direction()
	s := q.Direction()
	rxs := r.Cross(s)
	if math.Abs(rxs) < Epsilon {
		return Point{}, false
	}

	qp := q.A.Sub(p.A)
	t := qp.Cross(s) / rxs
	u := qp.Cross(r) / rxs
	if t < -Epsilon || t > 1+Epsilon || u < -Epsilon || u > 1+Epsilon {
		return Point{}, false
	}
	return p.A.Add(r.Mul(t)), true
}

// ClosestPoint returns the point of seg closest to p, its distance to p and the
// projection ratio along the segment (0 at A, 1 at B).
//
// The foot of the perpendicular is found from the triangle (p, A, B): the law of
// cosines gives the angle at A, the adjacent side gives the distance along the
// wall, and the contact is interpolated from the ratio. The ratio is clamped so the
// result always lies on the segment.
func ClosestPoint(seg Segment, p Point) (Point, float64, float64) {
	wall := seg.Length()
	if wall < Epsilon {
		return seg.A, Distance(seg.A, p), 0
	}

	side1 := Distance(p, seg.A)
	if side1 < Epsilon {
		return seg.A, 0, 0
	}
	side2 := Distance(p, seg.B)

	cosAlpha := (side1*side1 + wall*wall - side2*side2) / (2 * side1 * wall)
	cosAlpha = math.Max(-1, math.Min(1, cosAlpha))

	ratio := cosAlpha * side1 / wall
	ratio = math.Max(0, math.Min(1, ratio))

	contact := Lerp(seg.A, seg.B, ratio)
	return contact, Distance(contact, p), ratio
}

// CircleIntersections returns the intersection points of two circles.
// Concentric or separated circles yield no points; tangent circles yield one.
func CircleIntersections(c1 Point, r1 float64, c2 Point, r2 float64) []Point {
	d := Distance(c1, c2)
	if d < Epsilon || d > r1+r2+Epsilon || d < math.Abs(r1-r2)-Epsilon {
		return nil
	}

	a := (r1*r1 - r2*r2 + d*d) / (2 * d)
	h2 := r1*r1 - a*a
	dir := c2.Sub(c1).Mul(1 / d)
	mid := c1.Add(dir.Mul(a))
	if h2 <= Epsilon {
		return []Point{mid}
	}

	h := math.Sqrt(h2)
	off := dir.Ortho().Mul(h)
	return []Point{mid.Add(off), mid.Sub(off)}
}

// TrapezoidArea integrates the traced path with the trapezoidal rule and returns
// the absolute enclosed area. The path is implicitly closed.
func TrapezoidArea(path []Point) float64 {
	if len(path) < 3 {
		return 0
	}
	var sum float64
	for i := range path {
		a := path[i]
		b := path[(i+1)%len(path)]
		sum += (b.X - a.X) * (b.Y + a.Y) / 2
	}
	return math.Abs(sum)
}

// PathLength returns the cumulated length of a polyline.
func PathLength(path []Point) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += Distance(path[i-1], path[i])
	}
	return total
}
