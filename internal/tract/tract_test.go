package tract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

// box returns a closed ring covering [x0,x0+size] x [y0,y0+size].
func box(x0, y0, size float64) []geom.Coord {
	return []geom.Coord{
		{x0, y0}, {x0 + size, y0}, {x0 + size, y0 + size}, {x0, y0 + size}, {x0, y0},
	}
}

func multiPolygon(t *testing.T, polys ...[][]geom.Coord) *geom.MultiPolygon {
	t.Helper()
	mp, err := geom.NewMultiPolygon(geom.XY).SetCoords(polys)
	require.NoError(t, err)
	return mp
}

func testIndex(t *testing.T) *Index {
	t.Helper()
	return NewIndex([]Tract{
		// Square with a hole in the middle.
		{GEOID: "53033000100", Geometry: multiPolygon(t, [][]geom.Coord{box(0, 0, 10), box(4, 4, 2)})},
		// Shares the x=10 edge with the first tract.
		{GEOID: "53033000200", Geometry: multiPolygon(t, [][]geom.Coord{box(10, 0, 10)})},
		// Two islands.
		{GEOID: "53033000300", Geometry: multiPolygon(t,
			[][]geom.Coord{box(30, 0, 1)},
			[][]geom.Coord{box(40, 0, 1)},
		)},
		// Inside the first tract's hole.
		{GEOID: "53033000400", Geometry: multiPolygon(t, [][]geom.Coord{box(4.5, 4.5, 1)})},
	})
}

func TestIndexLocate(t *testing.T) {
	idx := testIndex(t)
	require.Equal(t, 4, idx.Len())

	tests := []struct {
		name     string
		lat, lng float64
		want     string
	}{
		{"interior", 1, 1, "53033000100"},
		{"second tract", 5, 15, "53033000200"},
		{"first island", 0.5, 30.5, "53033000300"},
		{"second island", 0.5, 40.5, "53033000300"},
		{"inside hole falls through to next tract", 5, 5, "53033000400"},
		{"in hole but outside inner tract", 4.2, 4.2, ""},
		{"on hole boundary", 4, 5, ""},
		{"on shared edge", 5, 10, ""},
		{"on outer vertex", 0, 0, ""},
		{"outside everything", -5, -5, ""},
		{"between islands", 0.5, 35, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := idx.Locate(context.Background(), tt.lat, tt.lng)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndexFirstMatchWins(t *testing.T) {
	idx := NewIndex([]Tract{
		{GEOID: "A", Geometry: multiPolygon(t, [][]geom.Coord{box(0, 0, 10)})},
		{GEOID: "B", Geometry: multiPolygon(t, [][]geom.Coord{box(0, 0, 10)})},
	})
	got, err := idx.Locate(context.Background(), 5, 5)
	require.NoError(t, err)
	assert.Equal(t, "A", got)
}

func TestIndexSkipsEmptyGeometry(t *testing.T) {
	idx := NewIndex([]Tract{
		{GEOID: "nil"},
		{GEOID: "empty", Geometry: geom.NewMultiPolygon(geom.XY)},
		{GEOID: "ok", Geometry: multiPolygon(t, [][]geom.Coord{box(0, 0, 1)})},
	})
	assert.Equal(t, 1, idx.Len())
}

func TestIndexLatLngOrder(t *testing.T) {
	// Tract spans lng -123..-122, lat 47..48.
	idx := NewIndex([]Tract{
		{GEOID: "53033005300", Geometry: multiPolygon(t, [][]geom.Coord{box(-123, 47, 1)})},
	})

	got, err := idx.Locate(context.Background(), 47.5, -122.5)
	require.NoError(t, err)
	assert.Equal(t, "53033005300", got)

	got, err = idx.Locate(context.Background(), -122.5, 47.5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
