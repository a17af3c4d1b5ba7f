package shapefile

import (
	"github.com/twpayne/go-geom"
)

type pointHandler struct {
	shapeType ShapeType
}

func (h pointHandler) ShapeType() ShapeType { return h.shapeType }

func (h pointHandler) read(_ *decoder, r *byteSliceReader, contentLength int) (geom.T, bool, error) {
	switch null, match, err := readRecordShapeType(r, h.shapeType); {
	case err != nil:
		return nil, false, err
	case null:
		return geom.NewPointEmpty(geom.XY), true, nil
	case !match:
		return nil, false, nil
	}

	lengthWithoutM := 4 + 16
	if h.shapeType.HasZ() {
		lengthWithoutM += 8
	}
	hasM := hasMBlock(h.shapeType, 2*contentLength, lengthWithoutM, 8)

	layout := layoutFor(h.shapeType.HasZ(), hasM)
	flatCoords := make([]float64, layout.Stride())
	flatCoords[0], flatCoords[1] = r.readFloat64Pair()
	if h.shapeType.HasZ() {
		flatCoords[layout.ZIndex()] = r.readFloat64()
	}
	if hasM {
		flatCoords[layout.MIndex()] = r.readFloat64()
	}
	if err := r.Err(); err != nil {
		return nil, false, err
	}
	layout, flatCoords = dropNoDataM(layout, flatCoords)
	return geom.NewPointFlat(layout, flatCoords), true, nil
}

func (h pointHandler) write(w *byteSliceWriter, g geom.T) error {
	point, ok := g.(*geom.Point)
	if !ok {
		return &UnsupportedGeometryError{Geom: g}
	}
	w.writeUint32(int(h.shapeType))
	w.writeXYs(point.FlatCoords(), point.Stride())
	if h.shapeType.HasZ() {
		w.writeFloat64(point.Z())
	}
	if h.shapeType.HasM() {
		if point.Layout().MIndex() >= 0 {
			w.writeFloat64(point.M())
		} else {
			w.writeFloat64(noDataValue)
		}
	}
	return nil
}

func (h pointHandler) length(geom.T) int {
	n := 4 + 16
	if h.shapeType.HasZ() {
		n += 8
	}
	if h.shapeType.HasM() {
		n += 8
	}
	return n / 2
}
