package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/kinesim/internal/core/geometry"
)

func TestFromPolygonsClosesPolygons(t *testing.T) {
	m, err := FromPolygons([][]geometry.Point{
		{geometry.Pt(0, 0), geometry.Pt(100, 0), geometry.Pt(100, 100), geometry.Pt(0, 100)},
		{geometry.Pt(40, 40), geometry.Pt(60, 40), geometry.Pt(50, 60)},
	}, []geometry.Point{geometry.Pt(10, 10)})
	require.NoError(t, err)

	walls := m.Walls()
	require.Len(t, walls, 7)
	assert.Equal(t, geometry.Pt(0, 100), walls[3].A)
	assert.Equal(t, geometry.Pt(0, 0), walls[3].B)
	assert.Equal(t, 1, walls[6].Polygon)
	for i, w := range walls {
		assert.Equal(t, i, w.Index)
	}

	lo, hi := m.Bounds()
	assert.Equal(t, geometry.Pt(0, 0), lo)
	assert.Equal(t, geometry.Pt(100, 100), hi)
}

func TestFromPolygonsRejectsInvalidInput(t *testing.T) {
	_, err := FromPolygons(nil, nil)
	assert.ErrorIs(t, err, ErrEmptyMap)

	_, err = FromPolygons([][]geometry.Point{{geometry.Pt(1, 1)}}, nil)
	assert.ErrorIs(t, err, ErrInvalidPolygon)

	_, err = FromPolygons([][]geometry.Point{{geometry.Pt(1, 1), geometry.Pt(1, 1), geometry.Pt(2, 2)}}, nil)
	assert.ErrorIs(t, err, ErrInvalidPolygon)
}

func TestSingleSegmentPolygon(t *testing.T) {
	m, err := FromPolygons([][]geometry.Point{{geometry.Pt(20, -50), geometry.Pt(20, 50)}}, nil)
	require.NoError(t, err)
	assert.Len(t, m.Walls(), 1)

	_, err = m.StartPoint(0)
	assert.ErrorIs(t, err, ErrNoStartPoints)
}

func TestQueryUsesIndex(t *testing.T) {
	m, err := Box(600, 600)
	require.NoError(t, err)

	near := m.QueryCircle(geometry.Pt(5, 300), 10)
	require.Len(t, near, 1)
	assert.Equal(t, 3, near[0].Index)

	assert.Empty(t, m.QueryCircle(geometry.Pt(300, 300), 10))

	corner := m.QueryCircle(geometry.Pt(5, 5), 10)
	require.Len(t, corner, 2)
	assert.Equal(t, 0, corner[0].Index)
	assert.Equal(t, 3, corner[1].Index)

	across := m.QuerySegment(geometry.Seg(-10, 300, 610, 300))
	assert.Len(t, across, 2)
}

func TestStartPointWraps(t *testing.T) {
	m, err := FromPolygons(
		[][]geometry.Point{{geometry.Pt(0, 0), geometry.Pt(10, 0), geometry.Pt(10, 10)}},
		[]geometry.Point{geometry.Pt(1, 1), geometry.Pt(2, 2)},
	)
	require.NoError(t, err)

	p, err := m.StartPoint(3)
	require.NoError(t, err)
	assert.Equal(t, geometry.Pt(2, 2), p)

	p, err = m.StartPoint(-1)
	require.NoError(t, err)
	assert.Equal(t, geometry.Pt(2, 2), p)
}

func TestFingerprintIsStable(t *testing.T) {
	a, err := Box(100, 50)
	require.NoError(t, err)
	b, err := Box(100, 50)
	require.NoError(t, err)
	c, err := Box(100, 51)
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}
