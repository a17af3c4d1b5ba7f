package shapefile

import (
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"golang.org/x/exp/slices"
)

// noDataValue is written for M values when the geometry has none. Any value
// less than -1e38 means no data.
const noDataValue = -1e39

var errInvalidPartOffset = errors.New("invalid part offset")

// A shapeHandler reads, writes, and measures the records of a single shape
// type.
type shapeHandler interface {
	// ShapeType returns the shape type handled.
	ShapeType() ShapeType

	// read reads a record body of contentLength 16-bit words. It returns
	// false if the body's shape type is neither the handler's nor null.
	read(d *decoder, r *byteSliceReader, contentLength int) (geom.T, bool, error)

	// write appends the record body of g to w.
	write(w *byteSliceWriter, g geom.T) error

	// length returns the length in 16-bit words of the record body written
	// for g.
	length(g geom.T) int
}

// A decoder holds the state shared by the handlers while reading a file.
type decoder struct {
	options  ReadSHPOptions
	warnings *warnings
}

func newDecoder(options *ReadSHPOptions) *decoder {
	d := &decoder{}
	if options != nil {
		d.options = *options
	}
	d.warnings = newWarnings(d.options.Logger)
	return d
}

// readRecordShapeType reads the shape type at the start of a record body and
// compares it with want.
func readRecordShapeType(r *byteSliceReader, want ShapeType) (null, match bool, err error) {
	shapeType := ShapeType(r.readUint32())
	if err := r.Err(); err != nil {
		return false, false, err
	}
	switch shapeType {
	case ShapeTypeNull:
		return true, true, nil
	case want:
		return false, true, nil
	default:
		return false, false, nil
	}
}

// hasMBlock reports whether a record of contentBytes bytes contains the
// optional M block. The format has no flag for this: the M block is present
// exactly when the declared length leaves room for it after everything else.
func hasMBlock(shapeType ShapeType, contentBytes, lengthWithoutM, mBlockLength int) bool {
	return shapeType.HasM() && contentBytes >= lengthWithoutM+mBlockLength
}

func layoutFor(hasZ, hasM bool) geom.Layout {
	switch {
	case hasZ && hasM:
		return geom.XYZM
	case hasZ:
		return geom.XYZ
	case hasM:
		return geom.XYM
	default:
		return geom.XY
	}
}

// dropNoDataM removes the M ordinate from flatCoords if every M value is no
// data.
func dropNoDataM(layout geom.Layout, flatCoords []float64) (geom.Layout, []float64) {
	mIndex := layout.MIndex()
	if mIndex < 0 {
		return layout, flatCoords
	}
	stride := layout.Stride()
	for i := mIndex; i < len(flatCoords); i += stride {
		if !NoData(flatCoords[i]) {
			return layout, flatCoords
		}
	}
	newLayout := layoutFor(layout.ZIndex() >= 0, false)
	newStride := newLayout.Stride()
	newFlatCoords := make([]float64, 0, len(flatCoords)/stride*newStride)
	for i := 0; i < len(flatCoords); i += stride {
		newFlatCoords = append(newFlatCoords, flatCoords[i:i+newStride]...)
	}
	return newLayout, newFlatCoords
}

// multiBody is the decoded body of a multipoint, polyline, or polygon record.
type multiBody struct {
	layout     geom.Layout
	flatCoords []float64
	offsets    []int
	numPoints  int
}

// multiLength returns the length in bytes of a multipoint, polyline, or
// polygon record body, without its M block, and the length of the M block.
func multiLength(shapeType ShapeType, hasParts bool, numParts, numPoints int) (int, int) {
	n := 4 + 4*8 + 4 + 16*numPoints
	if hasParts {
		n += 4 + 4*numParts
	}
	if shapeType.HasZ() {
		n += 16 + 8*numPoints
	}
	return n, 16 + 8*numPoints
}

// readMulti reads the part of a multipoint, polyline, or polygon record body
// that follows its shape type.
func (d *decoder) readMulti(r *byteSliceReader, shapeType ShapeType, contentLength int, hasParts bool) (*multiBody, error) {
	r.next(4 * 8) // Bounding box, recomputed from the coordinates.

	var numParts int
	if hasParts {
		numParts = r.readUint32()
		if d.options.MaxParts != 0 && numParts > d.options.MaxParts {
			return nil, ErrTooManyParts
		}
	}
	numPoints := r.readUint32()
	if d.options.MaxPoints != 0 && numPoints > d.options.MaxPoints {
		return nil, ErrTooManyPoints
	}
	if err := r.Err(); err != nil {
		return nil, err
	}

	contentBytes := 2 * contentLength
	lengthWithoutM, mBlockLength := multiLength(shapeType, hasParts, numParts, numPoints)
	if lengthWithoutM > contentBytes {
		return nil, errShortRecord
	}
	hasM := hasMBlock(shapeType, contentBytes, lengthWithoutM, mBlockLength)

	var offsets []int
	if hasParts {
		offsets = r.readOffsets(numParts)
		if err := validateOffsets(offsets, numPoints); err != nil {
			return nil, err
		}
	}

	layout := layoutFor(shapeType.HasZ(), hasM)
	stride := layout.Stride()
	flatCoords := make([]float64, stride*numPoints)
	r.readXYs(flatCoords, numPoints, stride)
	if shapeType.HasZ() {
		r.next(16) // Z range.
		r.readOrdinates(flatCoords, numPoints, stride, layout.ZIndex())
	}
	if hasM {
		r.next(16) // M range.
		r.readOrdinates(flatCoords, numPoints, stride, layout.MIndex())
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	layout, flatCoords = dropNoDataM(layout, flatCoords)

	return &multiBody{
		layout:     layout,
		flatCoords: flatCoords,
		offsets:    offsets,
		numPoints:  numPoints,
	}, nil
}

// validateOffsets checks that part offsets start at zero, never decrease, and
// stay within the point array.
func validateOffsets(offsets []int, numPoints int) error {
	if len(offsets) == 0 {
		if numPoints != 0 {
			return fmt.Errorf("%d points in no parts: %w", numPoints, errInvalidPartOffset)
		}
		return nil
	}
	if offsets[0] != 0 {
		return fmt.Errorf("%d: %w", offsets[0], errInvalidPartOffset)
	}
	if i := slices.IndexFunc(offsets, func(offset int) bool { return offset > numPoints }); i != -1 {
		return fmt.Errorf("%d: %w", offsets[i], errInvalidPartOffset)
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return fmt.Errorf("%d: %w", offsets[i], errInvalidPartOffset)
		}
	}
	return nil
}

// writeMulti appends a multipoint, polyline, or polygon record body. ends are
// go-geom style ends into flatCoords, one per part.
func writeMulti(w *byteSliceWriter, shapeType ShapeType, layout geom.Layout, flatCoords []float64, ends []int, hasParts bool) {
	stride := layout.Stride()
	numPoints := len(flatCoords) / stride

	w.writeUint32(int(shapeType))
	minX, minY, maxX, maxY := bounds2D(flatCoords, stride)
	w.writeFloat64s(minX, minY, maxX, maxY)
	if hasParts {
		w.writeUint32(len(ends))
	}
	w.writeUint32(numPoints)
	if hasParts {
		offset := 0
		for _, end := range ends {
			w.writeUint32(offset / stride)
			offset = end
		}
	}
	w.writeXYs(flatCoords, stride)
	writeZM(w, shapeType, layout, flatCoords)
}

// writeZM appends the Z and M blocks promised by shapeType.
func writeZM(w *byteSliceWriter, shapeType ShapeType, layout geom.Layout, flatCoords []float64) {
	stride := layout.Stride()
	if shapeType.HasZ() {
		if zIndex := layout.ZIndex(); zIndex >= 0 {
			w.writeOrdinateRange(flatCoords, stride, zIndex)
		} else {
			w.writeZeros(16 + 8*len(flatCoords)/stride)
		}
	}
	if shapeType.HasM() {
		if mIndex := layout.MIndex(); mIndex >= 0 {
			w.writeOrdinateRange(flatCoords, stride, mIndex)
		} else {
			w.writeNoDataRange(len(flatCoords) / stride)
		}
	}
}

// bounds2D returns the XY bounding box of flatCoords, or zeros if flatCoords
// is empty.
func bounds2D(flatCoords []float64, stride int) (minX, minY, maxX, maxY float64) {
	if len(flatCoords) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for i := 0; i < len(flatCoords); i += stride {
		minX = min(minX, flatCoords[i])
		minY = min(minY, flatCoords[i+1])
		maxX = max(maxX, flatCoords[i])
		maxY = max(maxY, flatCoords[i+1])
	}
	return minX, minY, maxX, maxY
}

// isCounterClockwise returns if ring is counter-clockwise. Rings with fewer
// than four coordinates have no orientation and are reported as clockwise.
func isCounterClockwise(layout geom.Layout, ring []float64) bool {
	if len(ring) < 4*layout.Stride() {
		return false
	}
	return xy.IsRingCounterClockwise(layout, ring)
}

// reverseRing reverses the order of the coordinates in ring in place.
func reverseRing(ring []float64, stride int) {
	for i, j := 0, len(ring)-stride; i < j; i, j = i+stride, j-stride {
		for k := 0; k < stride; k++ {
			ring[i+k], ring[j+k] = ring[j+k], ring[i+k]
		}
	}
}

type nullHandler struct{}

func (nullHandler) ShapeType() ShapeType { return ShapeTypeNull }

func (nullHandler) read(_ *decoder, r *byteSliceReader, _ int) (geom.T, bool, error) {
	null, _, err := readRecordShapeType(r, ShapeTypeNull)
	if err != nil || !null {
		return nil, false, err
	}
	return geom.NewGeometryCollection(), true, nil
}

func (nullHandler) write(w *byteSliceWriter, _ geom.T) error {
	w.writeUint32(int(ShapeTypeNull))
	return nil
}

func (nullHandler) length(geom.T) int {
	return 2
}
