package collision

import (
	"math"
	"sort"

	"github.com/zeusync/kinesim/internal/core/geometry"
	"github.com/zeusync/kinesim/internal/core/world"
)

// Tolerance is the penetration accepted after resolution.
const Tolerance = 1e-6

const (
	defaultPasses = 8
	bisectSteps   = 40
)

// Contact describes the agent circle touching or overlapping a wall.
type Contact struct {
	Wall     int              `json:"wall"`
	Segment  geometry.Segment `json:"-"`
	Point    geometry.Point   `json:"point"`
	Distance float64          `json:"distance"`
	Depth    float64          `json:"depth"`
	Ratio    float64          `json:"-"`
}

func (c Contact) atEndpoint() bool { return c.Ratio <= 0 || c.Ratio >= 1 }

// Mode tells how a proposed move was resolved.
type Mode uint8

const (
	ModeFree Mode = iota
	ModeSlide
	ModeCorner
	ModeBlocked
)

func (m Mode) String() string {
	switch m {
	case ModeFree:
		return "free"
	case ModeSlide:
		return "slide"
	case ModeCorner:
		return "corner"
	case ModeBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of Resolver.Resolve.
type Resolution struct {
	Position geometry.Point
	// Contacts found at the uncorrected proposal, deepest first.
	Contacts []Contact
	Mode     Mode
}

// Collided reports whether the proposal touched at least one wall.
func (r Resolution) Collided() bool { return len(r.Contacts) > 0 }

// Detect returns every wall within radius of center, deepest first.
func Detect(w *world.Map, center geometry.Point, radius float64) []Contact {
	var out []Contact
	for _, wall := range w.QueryCircle(center, radius) {
		p, d, ratio := geometry.ClosestPoint(wall.Segment, center)
		if d > radius {
			continue
		}
		out = append(out, Contact{
			Wall:     wall.Index,
			Segment:  wall.Segment,
			Point:    p,
			Distance: d,
			Depth:    radius - d,
			Ratio:    ratio,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Depth > out[j].Depth })
	return out
}

// Resolver corrects proposed agent positions so the agent circle never
// penetrates a wall.
type Resolver struct {
	radius float64
	passes int
}

// NewResolver creates a resolver for an agent of the given radius.
func NewResolver(radius float64) *Resolver {
	return &Resolver{radius: radius, passes: defaultPasses}
}

func (r *Resolver) Radius() float64 { return r.radius }

// Clear reports whether the agent can stand at p.
func (r *Resolver) Clear(w *world.Map, p geometry.Point) bool {
	for _, c := range Detect(w, p, r.radius) {
		if c.Distance < r.radius-Tolerance {
			return false
		}
	}
	return true
}

// Resolve moves the agent from prev (assumed clear) toward proposed.
//
// A single contact pushes the center out along the contact normal by the
// penetration depth, which keeps the tangential part of the motion (sliding).
// Two or more contacts are resolved by intersecting circles of the agent radius
// centred on the two deepest contact points and keeping the candidate nearest
// the proposal. A few relaxation passes clean up residual overlap; if overlap
// still remains the move is cut short at the furthest clear point between prev
// and the proposal, and the mode is ModeBlocked.
//
// A move that would cross a wall is pulled back in front of it and keeps the
// component of the motion parallel to that wall.
func (r *Resolver) Resolve(w *world.Map, prev, proposed geometry.Point) Resolution {
	target, tunnel, tunneled := r.guardTunnel(w, prev, proposed)
	if tunneled {
		target = r.slideAlong(w, target, proposed, tunnel)
	}

	live := Detect(w, target, r.radius)
	contacts := live
	if tunneled && !containsWall(live, tunnel.Wall) {
		contacts = append(append([]Contact(nil), live...), tunnel)
	}
	res := Resolution{Position: target, Contacts: contacts, Mode: ModeFree}
	if len(contacts) == 0 {
		return res
	}

	switch {
	case len(live) == 0:
		res.Mode = ModeSlide
	case len(live) == 1:
		res.Position = r.pushOut(target, live[0], prev)
		res.Mode = ModeSlide
	default:
		res.Position = r.corner(target, live[0], live[1], prev)
		res.Mode = ModeCorner
	}

	res.Position = r.relax(w, res.Position, prev)
	if !r.Clear(w, res.Position) {
		res.Position = r.furthestClear(w, prev, target)
		res.Mode = ModeBlocked
	}
	return res
}

// slideAlong moves from the pulled-back position by the part of the remaining
// motion that runs parallel to the crossed wall.
func (r *Resolver) slideAlong(w *world.Map, from, proposed geometry.Point, c Contact) geometry.Point {
	dir := c.Segment.Direction()
	n := dir.Norm()
	if n < geometry.Epsilon {
		return from
	}
	tangent := dir.Mul(1 / n)
	slid := from.Add(tangent.Mul(proposed.Sub(from).Dot(tangent)))
	if stop, _, crossed := r.guardTunnel(w, from, slid); crossed {
		return stop
	}
	return slid
}

// furthestClear bisects the segment from prev (clear) to target for the last
// position the agent can stand at.
func (r *Resolver) furthestClear(w *world.Map, prev, target geometry.Point) geometry.Point {
	if !r.Clear(w, prev) {
		return prev
	}
	lo, hi := 0.0, 1.0
	for i := 0; i < bisectSteps; i++ {
		mid := (lo + hi) / 2
		if r.Clear(w, geometry.Lerp(prev, target, mid)) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return geometry.Lerp(prev, target, lo)
}

// guardTunnel pulls the proposal back in front of the first wall crossed by the
// center on its way from prev.
func (r *Resolver) guardTunnel(w *world.Map, prev, proposed geometry.Point) (geometry.Point, Contact, bool) {
	motion := geometry.Segment{A: prev, B: proposed}
	length := motion.Length()
	if length < geometry.Epsilon {
		return proposed, Contact{}, false
	}

	best := math.Inf(1)
	var hit Contact
	for _, wall := range w.QuerySegment(motion) {
		p, ok := geometry.SegmentIntersection(motion, wall.Segment)
		if !ok {
			continue
		}
		if d := geometry.Distance(prev, p); d < best {
			best = d
			_, _, ratio := geometry.ClosestPoint(wall.Segment, p)
			hit = Contact{Wall: wall.Index, Segment: wall.Segment, Point: p, Depth: r.radius, Ratio: ratio}
		}
	}
	if math.IsInf(best, 1) {
		return proposed, Contact{}, false
	}

	back := math.Max(0, best-r.radius)
	dir := motion.Direction().Mul(1 / length)
	return prev.Add(dir.Mul(back)), hit, true
}

// pushOut places the center exactly one radius away from the contact point, on
// the same side of the wall as prev.
func (r *Resolver) pushOut(center geometry.Point, c Contact, prev geometry.Point) geometry.Point {
	d := center.Sub(c.Point)
	if n := d.Norm(); n > geometry.Epsilon && (c.atEndpoint() || sameSide(c.Segment, center, prev)) {
		return c.Point.Add(d.Mul(r.radius / n))
	}

	normal := c.Segment.Normal()
	if c.Segment.Side(prev) < 0 {
		normal = normal.Mul(-1)
	}
	return c.Point.Add(normal.Mul(r.radius))
}

func (r *Resolver) corner(proposed geometry.Point, a, b Contact, prev geometry.Point) geometry.Point {
	candidates := geometry.CircleIntersections(a.Point, r.radius, b.Point, r.radius)

	best := math.Inf(1)
	var chosen geometry.Point
	found := false
	for _, c := range candidates {
		if !acceptableSide(a, c, prev) || !acceptableSide(b, c, prev) {
			continue
		}
		if d := geometry.Distance(c, proposed); d < best {
			best, chosen, found = d, c, true
		}
	}
	if !found {
		return r.pushOut(r.pushOut(proposed, a, prev), b, prev)
	}
	return chosen
}

func (r *Resolver) relax(w *world.Map, p, prev geometry.Point) geometry.Point {
	for i := 0; i < r.passes; i++ {
		contacts := Detect(w, p, r.radius)
		if len(contacts) == 0 || contacts[0].Depth <= geometry.Epsilon {
			return p
		}
		p = r.pushOut(p, contacts[0], prev)
	}
	return p
}

func acceptableSide(c Contact, p, prev geometry.Point) bool {
	if c.atEndpoint() {
		return true
	}
	return sameSide(c.Segment, p, prev)
}

func sameSide(s geometry.Segment, a, b geometry.Point) bool {
	sa, sb := s.Side(a), s.Side(b)
	return sb == 0 || sa*sb > 0
}

func containsWall(contacts []Contact, wall int) bool {
	for _, c := range contacts {
		if c.Wall == wall {
			return true
		}
	}
	return false
}
