package shapefile

import (
	"fmt"

	"github.com/twpayne/go-geom"
	"golang.org/x/exp/slices"
)

type polygonHandler struct {
	shapeType ShapeType
}

func (h polygonHandler) ShapeType() ShapeType { return h.shapeType }

// read returns a *geom.Polygon if the record has one shell and a
// *geom.MultiPolygon if it has more. See resolveRings.
func (h polygonHandler) read(d *decoder, r *byteSliceReader, contentLength int) (geom.T, bool, error) {
	switch null, match, err := readRecordShapeType(r, h.shapeType); {
	case err != nil:
		return nil, false, err
	case null:
		return geom.NewPolygon(geom.XY), true, nil
	case !match:
		return nil, false, nil
	}

	body, err := d.readMulti(r, h.shapeType, contentLength, true)
	if err != nil {
		return nil, false, err
	}
	return resolveRings(body.layout, body.flatCoords, ends(body), d.warnings), true, nil
}

// write writes g's rings with outer rings clockwise and inner rings
// counter-clockwise, reversing copies of the rings where needed. Rings must be
// closed.
func (h polygonHandler) write(w *byteSliceWriter, g geom.T) error {
	var endss [][]int
	switch g := g.(type) {
	case *geom.Polygon:
		endss = [][]int{g.Ends()}
	case *geom.MultiPolygon:
		endss = g.Endss()
	default:
		return &UnsupportedGeometryError{Geom: g}
	}

	layout := g.Layout()
	stride := layout.Stride()
	flatCoords := slices.Clone(g.FlatCoords())
	var allEnds []int
	offset := 0
	for _, ends := range endss {
		for i, end := range ends {
			ring := flatCoords[offset:end]
			if !isClosed(ring, stride) {
				return fmt.Errorf("%d: %w", len(allEnds), ErrUnclosedRing)
			}
			if outer := i == 0; outer == isCounterClockwise(layout, ring) {
				reverseRing(ring, stride)
			}
			allEnds = append(allEnds, end)
			offset = end
		}
	}

	writeMulti(w, h.shapeType, layout, flatCoords, allEnds, true)
	return nil
}

func (h polygonHandler) length(g geom.T) int {
	var numParts int
	switch g := g.(type) {
	case *geom.Polygon:
		numParts = g.NumLinearRings()
	case *geom.MultiPolygon:
		for _, ends := range g.Endss() {
			numParts += len(ends)
		}
	}
	numPoints := len(g.FlatCoords()) / g.Stride()
	n, mBlockLength := multiLength(h.shapeType, true, numParts, numPoints)
	if h.shapeType.HasM() {
		n += mBlockLength
	}
	return n / 2
}
