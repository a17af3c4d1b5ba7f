package shapefile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestShapeTypeForCode(t *testing.T) {
	for _, tc := range []struct {
		code     int
		expected ShapeType
	}{
		{code: 0, expected: ShapeTypeNull},
		{code: 1, expected: ShapeTypePoint},
		{code: 2, expected: ShapeTypeUndefined},
		{code: 5, expected: ShapeTypePolygon},
		{code: 15, expected: ShapeTypePolygonZ},
		{code: 28, expected: ShapeTypeMultiPointM},
		{code: 31, expected: ShapeTypeMultiPatch},
		{code: 32, expected: ShapeTypeUndefined},
		{code: -1, expected: ShapeTypeUndefined},
	} {
		assert.Equal(t, tc.expected, ShapeTypeForCode(tc.code), "code %d", tc.code)
	}
}

func TestShapeTypeProperties(t *testing.T) {
	for _, tc := range []struct {
		shapeType       ShapeType
		expectedString  string
		expectedIsMulti bool
		expectedHasZ    bool
		expectedHasM    bool
	}{
		{shapeType: ShapeTypeNull, expectedString: "Null"},
		{shapeType: ShapeTypePoint, expectedString: "Point"},
		{shapeType: ShapeTypePointM, expectedString: "PointM", expectedHasM: true},
		{shapeType: ShapeTypePointZ, expectedString: "PointZ", expectedHasZ: true, expectedHasM: true},
		{shapeType: ShapeTypeMultiPoint, expectedString: "MultiPoint", expectedIsMulti: true},
		{shapeType: ShapeTypePolyLineM, expectedString: "PolyLineM", expectedIsMulti: true, expectedHasM: true},
		{shapeType: ShapeTypePolygonZ, expectedString: "PolygonZ", expectedIsMulti: true, expectedHasZ: true, expectedHasM: true},
		{shapeType: ShapeTypeMultiPatch, expectedString: "MultiPatch", expectedIsMulti: true, expectedHasZ: true, expectedHasM: true},
		{shapeType: ShapeTypeUndefined, expectedString: "Undefined"},
		{shapeType: 7, expectedString: "ShapeType(7)"},
	} {
		t.Run(tc.expectedString, func(t *testing.T) {
			assert.Equal(t, tc.expectedString, tc.shapeType.String())
			assert.Equal(t, tc.expectedIsMulti, tc.shapeType.IsMulti())
			assert.Equal(t, tc.expectedHasZ, tc.shapeType.HasZ())
			assert.Equal(t, tc.expectedHasM, tc.shapeType.HasM())
		})
	}
}

func TestHandlerFor(t *testing.T) {
	for shapeType := range shapeTypeNames {
		handler, err := handlerFor(shapeType)
		if shapeType == ShapeTypeMultiPatch {
			var unsupportedShapeTypeError *UnsupportedShapeTypeError
			require.ErrorAs(t, err, &unsupportedShapeTypeError)
			assert.Equal(t, ShapeTypeMultiPatch, unsupportedShapeTypeError.ShapeType)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, shapeType, handler.ShapeType())
	}

	_, err := handlerFor(ShapeTypeUndefined)
	assert.EqualError(t, err, "undefined shape type")
}

func TestShapeTypeOf(t *testing.T) {
	for _, tc := range []struct {
		name     string
		g        geom.T
		expected ShapeType
	}{
		{
			name:     "nil",
			expected: ShapeTypeNull,
		},
		{
			name:     "empty_point",
			g:        geom.NewPointEmpty(geom.XY),
			expected: ShapeTypeNull,
		},
		{
			name:     "empty_geometry_collection",
			g:        geom.NewGeometryCollection(),
			expected: ShapeTypeNull,
		},
		{
			name:     "point",
			g:        geom.NewPointFlat(geom.XY, []float64{1, 2}),
			expected: ShapeTypePoint,
		},
		{
			name:     "point_m",
			g:        geom.NewPointFlat(geom.XYM, []float64{1, 2, 3}),
			expected: ShapeTypePointM,
		},
		{
			name:     "point_zm",
			g:        geom.NewPointFlat(geom.XYZM, []float64{1, 2, 3, 4}),
			expected: ShapeTypePointZ,
		},
		{
			name:     "multi_point_z",
			g:        geom.NewMultiPointFlat(geom.XYZ, []float64{1, 2, 3}),
			expected: ShapeTypeMultiPointZ,
		},
		{
			name:     "line_string",
			g:        geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1}),
			expected: ShapeTypePolyLine,
		},
		{
			name:     "multi_line_string_m",
			g:        geom.NewMultiLineStringFlat(geom.XYM, []float64{0, 0, 0, 1, 1, 1}, []int{6}),
			expected: ShapeTypePolyLineM,
		},
		{
			name:     "multi_polygon_z",
			g:        geom.NewMultiPolygonFlat(geom.XYZ, square3D(0, 0, 1), [][]int{{15}}),
			expected: ShapeTypePolygonZ,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			shapeType, err := ShapeTypeOf(tc.g)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, shapeType)
		})
	}

	t.Run("geometry_collection", func(t *testing.T) {
		g := geom.NewGeometryCollection()
		require.NoError(t, g.Push(geom.NewPointFlat(geom.XY, []float64{1, 2})))
		_, err := ShapeTypeOf(g)
		var unsupportedGeometryError *UnsupportedGeometryError
		assert.ErrorAs(t, err, &unsupportedGeometryError)
	})
}

// square3D returns a clockwise square ring with zero Z values.
func square3D(x, y, size float64) []float64 {
	return []float64{
		x, y, 0,
		x, y + size, 0,
		x + size, y + size, 0,
		x + size, y, 0,
		x, y, 0,
	}
}
