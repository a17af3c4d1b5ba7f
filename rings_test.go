package shapefile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// clockwiseSquare returns a clockwise square ring.
func clockwiseSquare(x, y, size float64) []float64 {
	return []float64{x, y, x, y + size, x + size, y + size, x + size, y, x, y}
}

// counterClockwiseSquare returns a counter-clockwise square ring.
func counterClockwiseSquare(x, y, size float64) []float64 {
	return []float64{x, y, x + size, y, x + size, y + size, x, y + size, x, y}
}

// concatRings concatenates rings and returns their flat coordinates and ends.
func concatRings(rings ...[]float64) ([]float64, []int) {
	var flatCoords []float64
	var ends []int
	for _, ring := range rings {
		flatCoords = append(flatCoords, ring...)
		ends = append(ends, len(flatCoords))
	}
	return flatCoords, ends
}

func TestResolveRings(t *testing.T) {
	for _, tc := range []struct {
		name             string
		rings            [][]float64
		expectedWKT      string
		expectedWarnings []*Warning
	}{
		{
			name:        "empty",
			expectedWKT: "POLYGON EMPTY",
		},
		{
			name: "single_shell",
			rings: [][]float64{
				clockwiseSquare(0, 0, 10),
			},
			expectedWKT: "POLYGON ((0 0, 0 10, 10 10, 10 0, 0 0))",
		},
		{
			name: "single_shell_holes",
			rings: [][]float64{
				clockwiseSquare(0, 0, 10),
				counterClockwiseSquare(1, 1, 1),
				counterClockwiseSquare(5, 5, 1),
			},
			expectedWKT: "POLYGON ((0 0, 0 10, 10 10, 10 0, 0 0), (1 1, 2 1, 2 2, 1 2, 1 1), (5 5, 6 5, 6 6, 5 6, 5 5))",
		},
		{
			name: "hole_before_shell",
			rings: [][]float64{
				counterClockwiseSquare(1, 1, 1),
				clockwiseSquare(0, 0, 10),
			},
			expectedWKT: "POLYGON ((0 0, 0 10, 10 10, 10 0, 0 0), (1 1, 2 1, 2 2, 1 2, 1 1))",
		},
		{
			name: "two_shells",
			rings: [][]float64{
				clockwiseSquare(0, 0, 1),
				clockwiseSquare(10, 10, 5),
				counterClockwiseSquare(11, 11, 1),
			},
			expectedWKT: "MULTIPOLYGON (((0 0, 0 1, 1 1, 1 0, 0 0)), ((10 10, 10 15, 15 15, 15 10, 10 10), (11 11, 12 11, 12 12, 11 12, 11 11)))",
		},
		{
			name: "nested_shells_tightest",
			rings: [][]float64{
				clockwiseSquare(0, 0, 100),
				clockwiseSquare(10, 10, 10),
				counterClockwiseSquare(12, 12, 2),
			},
			expectedWKT: "MULTIPOLYGON (((0 0, 0 100, 100 100, 100 0, 0 0)), ((10 10, 10 20, 20 20, 20 10, 10 10), (12 12, 14 12, 14 14, 12 14, 12 12)))",
		},
		{
			name: "hole_touching_shell",
			rings: [][]float64{
				clockwiseSquare(0, 0, 1),
				clockwiseSquare(10, 10, 10),
				counterClockwiseSquare(10, 10, 2),
			},
			expectedWKT: "MULTIPOLYGON (((0 0, 0 1, 1 1, 1 0, 0 0)), ((10 10, 10 20, 20 20, 20 10, 10 10), (10 10, 12 10, 12 12, 10 12, 10 10)))",
		},
		{
			name: "orphaned_hole",
			rings: [][]float64{
				clockwiseSquare(0, 0, 1),
				clockwiseSquare(10, 10, 1),
				counterClockwiseSquare(50, 50, 1),
			},
			expectedWKT: "MULTIPOLYGON (((0 0, 0 1, 1 1, 1 0, 0 0)), ((10 10, 10 11, 11 11, 11 10, 10 10)))",
			expectedWarnings: []*Warning{
				{Kind: WarningOrphanedHole, Part: 2, Message: "no shell contains hole"},
			},
		},
		{
			name: "only_holes",
			rings: [][]float64{
				counterClockwiseSquare(0, 0, 1),
			},
			expectedWKT: "POLYGON EMPTY",
			expectedWarnings: []*Warning{
				{Kind: WarningOrphanedHole, Part: 0, Message: "no shell contains hole"},
			},
		},
		{
			name: "degenerate_ring",
			rings: [][]float64{
				clockwiseSquare(0, 0, 10),
				{1, 1, 2, 2, 1, 1},
			},
			expectedWKT: "POLYGON ((0 0, 0 10, 10 10, 10 0, 0 0))",
			expectedWarnings: []*Warning{
				{Kind: WarningDegenerateRing, Part: 1, Message: "ring has 3 points, need at least 4"},
			},
		},
		{
			name: "unclosed_ring",
			rings: [][]float64{
				clockwiseSquare(0, 0, 10),
				{1, 1, 2, 1, 2, 2, 1, 2},
			},
			expectedWKT: "POLYGON ((0 0, 0 10, 10 10, 10 0, 0 0))",
			expectedWarnings: []*Warning{
				{Kind: WarningDegenerateRing, Part: 1, Message: "ring is not closed"},
			},
		},
		{
			name: "unclosed_shell",
			rings: [][]float64{
				{0, 0, 0, 10, 10, 10, 10, 0},
			},
			expectedWKT: "POLYGON EMPTY",
			expectedWarnings: []*Warning{
				{Kind: WarningDegenerateRing, Part: 0, Message: "ring is not closed"},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			flatCoords, ends := concatRings(tc.rings...)
			ws := newWarnings(nil)
			g := resolveRings(geom.XY, flatCoords, ends, ws)
			actualWKT, err := wkt.Marshal(g)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedWKT, actualWKT)
			assert.Equal(t, tc.expectedWarnings, ws.list)
		})
	}
}

func TestResolveRingsIndex(t *testing.T) {
	const n = 2 * minShellsForIndex
	var rings [][]float64
	for i := 0; i < n; i++ {
		rings = append(rings, clockwiseSquare(float64(20*i), 0, 10))
	}
	// Holes in reverse order so that file order does not match shell order.
	for i := n - 1; i >= 0; i-- {
		rings = append(rings, counterClockwiseSquare(float64(20*i+2), 2, 2))
	}
	flatCoords, ends := concatRings(rings...)

	ws := newWarnings(nil)
	g := resolveRings(geom.XY, flatCoords, ends, ws)
	assert.Empty(t, ws.list)

	multiPolygon, ok := g.(*geom.MultiPolygon)
	require.True(t, ok)
	require.Equal(t, n, multiPolygon.NumPolygons())
	for i := 0; i < n; i++ {
		polygon := multiPolygon.Polygon(i)
		require.Equal(t, 2, polygon.NumLinearRings())
		assert.Equal(t, float64(20*i), polygon.LinearRing(0).Coord(0).X())
		assert.Equal(t, float64(20*i+2), polygon.LinearRing(1).Coord(0).X())
	}
}

func TestShellFinderIndexTightest(t *testing.T) {
	var shells []*ring
	for i := 0; i < minShellsForIndex; i++ {
		// Nested squares sharing a corner, so every shell contains the holes of
		// the smaller ones.
		size := float64(10 * (i + 1))
		flatCoords := clockwiseSquare(0, 0, size)
		shells = append(shells, &ring{
			part:       i,
			flatCoords: flatCoords,
			bounds:     geom.NewLinearRingFlat(geom.XY, flatCoords).Bounds(),
		})
	}
	findShell := newShellFinder(geom.XY, shells)
	for i := 0; i < minShellsForIndex; i++ {
		flatCoords := counterClockwiseSquare(float64(10*i)+1, 1, 1)
		hole := &ring{
			part:       minShellsForIndex + i,
			flatCoords: flatCoords,
			bounds:     geom.NewLinearRingFlat(geom.XY, flatCoords).Bounds(),
		}
		assert.Same(t, shells[i], findShell(hole), "hole %d", i)
	}
}
