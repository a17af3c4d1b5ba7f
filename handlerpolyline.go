package shapefile

import (
	"github.com/twpayne/go-geom"
)

type polyLineHandler struct {
	shapeType ShapeType
}

func (h polyLineHandler) ShapeType() ShapeType { return h.shapeType }

// read returns a *geom.LineString for single-part records and a
// *geom.MultiLineString otherwise.
func (h polyLineHandler) read(d *decoder, r *byteSliceReader, contentLength int) (geom.T, bool, error) {
	switch null, match, err := readRecordShapeType(r, h.shapeType); {
	case err != nil:
		return nil, false, err
	case null:
		return geom.NewMultiLineString(geom.XY), true, nil
	case !match:
		return nil, false, nil
	}

	body, err := d.readMulti(r, h.shapeType, contentLength, true)
	if err != nil {
		return nil, false, err
	}
	if len(body.offsets) == 1 {
		return geom.NewLineStringFlat(body.layout, body.flatCoords), true, nil
	}
	return geom.NewMultiLineStringFlat(body.layout, body.flatCoords, ends(body)), true, nil
}

func (h polyLineHandler) write(w *byteSliceWriter, g geom.T) error {
	var ends []int
	switch g := g.(type) {
	case *geom.LineString:
		ends = []int{len(g.FlatCoords())}
	case *geom.MultiLineString:
		ends = g.Ends()
	default:
		return &UnsupportedGeometryError{Geom: g}
	}
	writeMulti(w, h.shapeType, g.Layout(), g.FlatCoords(), ends, true)
	return nil
}

func (h polyLineHandler) length(g geom.T) int {
	numParts := 1
	if multiLineString, ok := g.(*geom.MultiLineString); ok {
		numParts = multiLineString.NumLineStrings()
	}
	numPoints := len(g.FlatCoords()) / g.Stride()
	n, mBlockLength := multiLength(h.shapeType, true, numParts, numPoints)
	if h.shapeType.HasM() {
		n += mBlockLength
	}
	return n / 2
}

// ends converts the part offsets of body into go-geom ends.
func ends(body *multiBody) []int {
	stride := body.layout.Stride()
	ends := make([]int, len(body.offsets))
	for i := range body.offsets {
		if i+1 < len(body.offsets) {
			ends[i] = stride * body.offsets[i+1]
		} else {
			ends[i] = stride * body.numPoints
		}
	}
	return ends
}
