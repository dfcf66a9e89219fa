package world

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/dhconnelly/rtreego"

	"github.com/zeusync/kinesim/internal/core/geometry"
)

var (
	ErrEmptyMap       = errors.New("map has no walls")
	ErrInvalidPolygon = errors.New("invalid polygon")
	ErrNoStartPoints  = errors.New("map has no start points")
)

// boundsPad widens wall bounding boxes so axis-aligned walls keep a non-zero
// extent in the R-tree.
const boundsPad = 1e-3

// Wall is one edge of a map polygon.
type Wall struct {
	Index   int
	Polygon int
	geometry.Segment

	bounds rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (w *Wall) Bounds() rtreego.Rect { return w.bounds }

// Map is a static set of walls plus the valid agent start points.
// A Map is immutable once built and safe for concurrent readers.
type Map struct {
	walls       []Wall
	starts      []geometry.Point
	tree        *rtreego.Rtree
	min, max    geometry.Point
	fingerprint uint64
}

// FromPolygons builds a map from closed polygons. The last vertex of every
// polygon is joined back to the first one.
func FromPolygons(polygons [][]geometry.Point, starts []geometry.Point) (*Map, error) {
	m := &Map{
		starts: append([]geometry.Point(nil), starts...),
		min:    geometry.Pt(math.Inf(1), math.Inf(1)),
		max:    geometry.Pt(math.Inf(-1), math.Inf(-1)),
	}

	for pi, poly := range polygons {
		if len(poly) < 2 {
			return nil, fmt.Errorf("%w: polygon %d has %d vertices", ErrInvalidPolygon, pi, len(poly))
		}
		n := len(poly)
		if n == 2 {
			// a single segment is not closed onto itself
			n = 1
		}
		for i := 0; i < n; i++ {
			a, b := poly[i], poly[(i+1)%len(poly)]
			if geometry.Distance(a, b) < geometry.Epsilon {
				return nil, fmt.Errorf("%w: polygon %d has a zero-length edge at vertex %d", ErrInvalidPolygon, pi, i)
			}
			m.walls = append(m.walls, Wall{Index: len(m.walls), Polygon: pi, Segment: geometry.Segment{A: a, B: b}})
		}
	}

	if len(m.walls) == 0 {
		return nil, ErrEmptyMap
	}

	m.tree = rtreego.NewTree(2, 4, 16)
	for i := range m.walls {
		w := &m.walls[i]
		lo, hi := segmentBox(w.Segment)
		rect, err := boxRect(lo, hi)
		if err != nil {
			return nil, fmt.Errorf("wall %d bounds: %w", i, err)
		}
		w.bounds = rect
		m.tree.Insert(w)

		m.min = geometry.Pt(math.Min(m.min.X, lo.X), math.Min(m.min.Y, lo.Y))
		m.max = geometry.Pt(math.Max(m.max.X, hi.X), math.Max(m.max.Y, hi.Y))
	}

	m.fingerprint = fingerprint(m.walls, m.starts)
	return m, nil
}

// Box returns a rectangular arena with its lower-left corner at the origin and a
// single start point in its center.
func Box(width, height float64) (*Map, error) {
	return FromPolygons(
		[][]geometry.Point{{
			geometry.Pt(0, 0),
			geometry.Pt(width, 0),
			geometry.Pt(width, height),
			geometry.Pt(0, height),
		}},
		[]geometry.Point{geometry.Pt(width/2, height/2)},
	)
}

// Walls returns the walls in index order. The slice must not be modified.
func (m *Map) Walls() []Wall { return m.walls }

// StartPoints returns a copy of the start points.
func (m *Map) StartPoints() []geometry.Point {
	return append([]geometry.Point(nil), m.starts...)
}

// StartPoint returns the i-th start point, wrapping around the list.
func (m *Map) StartPoint(i int) (geometry.Point, error) {
	if len(m.starts) == 0 {
		return geometry.Point{}, ErrNoStartPoints
	}
	i %= len(m.starts)
	if i < 0 {
		i += len(m.starts)
	}
	return m.starts[i], nil
}

// Bounds returns the axis-aligned box containing every wall.
func (m *Map) Bounds() (geometry.Point, geometry.Point) { return m.min, m.max }

// Fingerprint identifies the map geometry.
func (m *Map) Fingerprint() uint64 { return m.fingerprint }

// Query returns, in index order, the walls whose bounding box intersects the box
// spanned by a and b.
func (m *Map) Query(a, b geometry.Point) []*Wall {
	lo := geometry.Pt(math.Min(a.X, b.X), math.Min(a.Y, b.Y))
	hi := geometry.Pt(math.Max(a.X, b.X), math.Max(a.Y, b.Y))
	rect, err := boxRect(lo, hi)
	if err != nil {
		return m.all()
	}

	found := m.tree.SearchIntersect(rect)
	out := make([]*Wall, 0, len(found))
	for _, s := range found {
		out = append(out, s.(*Wall))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// QuerySegment returns the walls that may intersect s.
func (m *Map) QuerySegment(s geometry.Segment) []*Wall { return m.Query(s.A, s.B) }

// QueryCircle returns the walls that may touch the circle.
func (m *Map) QueryCircle(center geometry.Point, radius float64) []*Wall {
	r := geometry.Pt(radius, radius)
	return m.Query(center.Sub(r), center.Add(r))
}

func (m *Map) all() []*Wall {
	out := make([]*Wall, len(m.walls))
	for i := range m.walls {
		out[i] = &m.walls[i]
	}
	return out
}

func segmentBox(s geometry.Segment) (geometry.Point, geometry.Point) {
	return geometry.Pt(math.Min(s.A.X, s.B.X), math.Min(s.A.Y, s.B.Y)),
		geometry.Pt(math.Max(s.A.X, s.B.X), math.Max(s.A.Y, s.B.Y))
}

func boxRect(lo, hi geometry.Point) (rtreego.Rect, error) {
	return rtreego.NewRect(
		rtreego.Point{lo.X - boundsPad, lo.Y - boundsPad},
		[]float64{hi.X - lo.X + 2*boundsPad, hi.Y - lo.Y + 2*boundsPad},
	)
}

func fingerprint(walls []Wall, starts []geometry.Point) uint64 {
	d := xxhash.New()
	var buf [8]byte
	put := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
	for _, w := range walls {
		put(w.A.X)
		put(w.A.Y)
		put(w.B.X)
		put(w.B.Y)
	}
	for _, s := range starts {
		put(s.X)
		put(s.Y)
	}
	return d.Sum64()
}
