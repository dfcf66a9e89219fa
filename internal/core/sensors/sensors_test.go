package sensors

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/kinesim/internal/core/geometry"
	"github.com/zeusync/kinesim/internal/core/world"
)

func singleWall(t testing.TB, x float64) *world.Map {
	t.Helper()
	m, err := world.FromPolygons([][]geometry.Point{{geometry.Pt(x, -50), geometry.Pt(x, 50)}}, nil)
	require.NoError(t, err)
	return m
}

func TestRayReportsWallDistance(t *testing.T) {
	s, err := New(Config{Count: 4, MaxVision: 100}, 10)
	require.NoError(t, err)

	readings := s.Scan(singleWall(t, 20), geometry.Pt(0, 0), 0)
	require.Len(t, readings, 4)

	d, ok := readings[0].Value()
	require.True(t, ok)
	assert.InDelta(t, 10, d, 1e-9)
	assert.InDelta(t, 20, readings[0].Point.X, 1e-9)

	for _, r := range readings[1:] {
		assert.False(t, r.Hit)
		assert.Equal(t, -1.0, r.Or(-1))
	}
}

func TestRayMissBeyondVision(t *testing.T) {
	s, err := New(Config{Count: 1, MaxVision: 100}, 10)
	require.NoError(t, err)

	r := s.Scan(singleWall(t, 200), geometry.Pt(0, 0), 0)[0]
	_, ok := r.Value()
	assert.False(t, ok)

	// exactly at the end of the ray still counts
	r = s.Scan(singleWall(t, 110), geometry.Pt(0, 0), 0)[0]
	d, ok := r.Value()
	require.True(t, ok)
	assert.InDelta(t, 100, d, 1e-9)
}

func TestNearestWallWins(t *testing.T) {
	m, err := world.FromPolygons([][]geometry.Point{
		{geometry.Pt(50, -50), geometry.Pt(50, 50)},
		{geometry.Pt(30, -50), geometry.Pt(30, 50)},
	}, nil)
	require.NoError(t, err)

	s, err := New(Config{Count: 1, MaxVision: 100}, 10)
	require.NoError(t, err)

	r := s.Scan(m, geometry.Pt(0, 0), 0)[0]
	require.True(t, r.Hit)
	assert.InDelta(t, 20, r.Distance, 1e-9)
	assert.Equal(t, 1, r.Wall)
}

func TestRaysFollowHeading(t *testing.T) {
	s, err := New(Config{Count: 4, MaxVision: 100}, 10)
	require.NoError(t, err)

	readings := s.Scan(singleWall(t, 20), geometry.Pt(0, 0), -math.Pi/2)
	assert.False(t, readings[0].Hit)
	assert.True(t, readings[1].Hit)
	assert.InDelta(t, math.Pi/2, readings[1].Angle, 1e-12)

	rays := s.Rays(geometry.Pt(0, 0), 0)
	require.Len(t, rays, 4)
	assert.InDelta(t, 10, rays[0].A.X, 1e-12)
	assert.InDelta(t, 110, rays[0].B.X, 1e-12)
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{Count: 0, MaxVision: 10}, 1)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{Count: 3, MaxVision: -1}, 1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func BenchmarkScan(b *testing.B) {
	m, err := world.Box(1000, 1000)
	require.NoError(b, err)
	s, err := New(Config{Count: 12, MaxVision: 200}, 25)
	require.NoError(b, err)
	out := make([]Reading, s.Count())

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.ScanInto(out, m, geometry.Pt(500, 500), float64(i)*0.01)
	}
}

func TestReadingJSONKeepsZeroValues(t *testing.T) {
	b, err := json.Marshal(Reading{Hit: true, Distance: 0, Wall: 0, Point: geometry.Pt(10, 0)})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Contains(t, got, "distance")
	assert.Contains(t, got, "wall")
	assert.Equal(t, 0.0, got["distance"])
	assert.Equal(t, 0.0, got["wall"])
}
