package motion

import (
	"math"

	"github.com/zeusync/kinesim/internal/core/geometry"
)

// Model integrates differential-drive kinematics. Wheel speeds are expressed in
// world units per tick and accumulate through Accelerate.
type Model struct {
	wheelbase float64

	vl, vr float64
	r      float64
	omega  float64
}

// New creates a model for a robot whose wheels are wheelbase apart.
func New(wheelbase float64) *Model {
	return &Model{wheelbase: wheelbase}
}

// Wheelbase returns the distance between the wheels.
func (m *Model) Wheelbase() float64 { return m.wheelbase }

// Accelerate adds the increments to the current wheel speeds.
func (m *Model) Accelerate(dl, dr float64) {
	m.SetSpeeds(m.vl+dl, m.vr+dr)
}

// SetSpeeds overrides both wheel speeds.
func (m *Model) SetSpeeds(vl, vr float64) {
	m.vl, m.vr = vl, vr
	if m.vl == m.vr {
		m.r, m.omega = 0, 0
		return
	}
	m.r = (m.wheelbase / 2) * (m.vr + m.vl) / (m.vr - m.vl)
	m.omega = (m.vr - m.vl) / m.wheelbase
}

// Reset stops both wheels.
func (m *Model) Reset() { m.SetSpeeds(0, 0) }

// Speeds returns the left and right wheel speeds.
func (m *Model) Speeds() (float64, float64) { return m.vl, m.vr }

// TurnRadius is the signed distance from the robot center to the ICC.
// Zero when driving straight.
func (m *Model) TurnRadius() float64 { return m.r }

// AngularRate is the heading change per tick.
func (m *Model) AngularRate() float64 { return m.omega }

// Moving reports whether at least one wheel turns.
func (m *Model) Moving() bool { return m.vl != 0 || m.vr != 0 }

// ICC returns the instantaneous center of curvature. The second value is false
// when driving straight, in which case there is no ICC.
func (m *Model) ICC(pos geometry.Point, heading float64) (geometry.Point, bool) {
	if m.vl == m.vr {
		return geometry.Point{}, false
	}
	return geometry.Pt(
		pos.X-m.r*math.Sin(heading),
		pos.Y+m.r*math.Cos(heading),
	), true
}

// Step advances pos and heading by one tick. It returns moved=false, with the
// inputs untouched, when both wheels are stopped.
func (m *Model) Step(pos geometry.Point, heading float64) (geometry.Point, float64, bool) {
	if !m.Moving() {
		return pos, heading, false
	}

	if m.vl == m.vr {
		return pos.Add(geometry.FromPolar(heading).Mul(m.vr)), heading, true
	}

	icc, _ := m.ICC(pos, heading)
	sin, cos := math.Sincos(m.omega)
	rel := pos.Sub(icc)
	next := geometry.Pt(
		cos*rel.X-sin*rel.Y+icc.X,
		sin*rel.X+cos*rel.Y+icc.Y,
	)
	return next, geometry.NormalizeAngle(heading + m.omega), true
}
