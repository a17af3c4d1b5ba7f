package shapefile

import (
	"github.com/twpayne/go-geom"
)

type multiPointHandler struct {
	shapeType ShapeType
}

func (h multiPointHandler) ShapeType() ShapeType { return h.shapeType }

func (h multiPointHandler) read(d *decoder, r *byteSliceReader, contentLength int) (geom.T, bool, error) {
	switch null, match, err := readRecordShapeType(r, h.shapeType); {
	case err != nil:
		return nil, false, err
	case null:
		return geom.NewMultiPoint(geom.XY), true, nil
	case !match:
		return nil, false, nil
	}

	body, err := d.readMulti(r, h.shapeType, contentLength, false)
	if err != nil {
		return nil, false, err
	}
	return geom.NewMultiPointFlat(body.layout, body.flatCoords), true, nil
}

func (h multiPointHandler) write(w *byteSliceWriter, g geom.T) error {
	multiPoint, ok := g.(*geom.MultiPoint)
	if !ok {
		return &UnsupportedGeometryError{Geom: g}
	}
	writeMulti(w, h.shapeType, multiPoint.Layout(), multiPoint.FlatCoords(), nil, false)
	return nil
}

func (h multiPointHandler) length(g geom.T) int {
	numPoints := len(g.FlatCoords()) / g.Stride()
	n, mBlockLength := multiLength(h.shapeType, false, 0, numPoints)
	if h.shapeType.HasM() {
		n += mBlockLength
	}
	return n / 2
}
