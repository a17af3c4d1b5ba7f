package shapefile

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/twpayne/go-geom"
)

const (
	headerSize = 100
	fileCode   = 9994
	version    = 1000

	// headerLength and recordHeaderLength are in 16-bit words.
	headerLength       = headerSize / 2
	recordHeaderLength = 4
)

// A SHxHeader is header of a .shp or .shx file.
type SHxHeader struct {
	FileCode int
	// FileLength is the length of the file in 16-bit words.
	FileLength int
	Version    int
	ShapeType  ShapeType
	// Bounds has layout XY, XYM, or XYZM depending on ShapeType. Empty
	// ranges are infinite.
	Bounds *geom.Bounds
}

// ReadSHxHeader reads a SHxHeader from r.
func ReadSHxHeader(r io.Reader) (*SHxHeader, []*Warning, error) {
	ws := newWarnings(nil)
	header, err := readSHxHeader(r, ws)
	if err != nil {
		return nil, nil, err
	}
	return header, ws.list, nil
}

func readSHxHeader(r io.Reader, ws *warnings) (*SHxHeader, error) {
	data := make([]byte, headerSize)
	switch _, err := io.ReadFull(r, data); {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return nil, errors.New("file too short")
	case err != nil:
		return nil, err
	}
	header, warnings, err := ParseSHxHeader(data)
	if err != nil {
		return nil, err
	}
	ws.addAll(warnings)
	return header, nil
}

// ParseSHxHeader parses a SHxHeader from the first 100 bytes of data. An
// unexpected file code or version is reported as a warning.
func ParseSHxHeader(data []byte) (*SHxHeader, []*Warning, error) {
	if len(data) < headerSize {
		return nil, nil, errors.New("invalid header length")
	}
	data = data[:headerSize]
	var warnings []*Warning

	headerFileCode := int(binary.BigEndian.Uint32(data[:4]))
	if headerFileCode != fileCode {
		warnings = append(warnings, &Warning{
			Kind:    WarningFileCode,
			Part:    -1,
			Message: "invalid file code",
		})
	}
	headerFileLength := int(binary.BigEndian.Uint32(data[24:28]))
	headerVersion := int(binary.LittleEndian.Uint32(data[28:32]))
	if headerVersion != version {
		warnings = append(warnings, &Warning{
			Kind:    WarningVersion,
			Part:    -1,
			Message: "unexpected version",
		})
	}
	shapeType := ShapeTypeForCode(int(binary.LittleEndian.Uint32(data[32:36])))

	r := newByteSliceReader(data[36:])
	minX, minY := r.readFloat64Pair()
	maxX, maxY := r.readFloat64Pair()
	minZ, maxZ := r.readFloat64Pair()
	minM, maxM := r.readFloat64Pair()

	minX, maxX = noDataRange(minX, maxX)
	minY, maxY = noDataRange(minY, maxY)
	minZ, maxZ = noDataRange(minZ, maxZ)
	minM, maxM = noDataRange(minM, maxM)

	var bounds *geom.Bounds
	switch {
	case shapeType.HasZ():
		bounds = geom.NewBounds(geom.XYZM).Set(minX, minY, minZ, minM, maxX, maxY, maxZ, maxM)
	case shapeType.HasM():
		bounds = geom.NewBounds(geom.XYM).Set(minX, minY, minM, maxX, maxY, maxM)
	default:
		bounds = geom.NewBounds(geom.XY).Set(minX, minY, maxX, maxY)
	}

	return &SHxHeader{
		FileCode:   headerFileCode,
		FileLength: headerFileLength,
		Version:    headerVersion,
		ShapeType:  shapeType,
		Bounds:     bounds,
	}, warnings, nil
}

func noDataRange(lo, hi float64) (float64, float64) {
	if NoData(lo) {
		lo = math.Inf(1)
	}
	if NoData(hi) {
		hi = math.Inf(-1)
	}
	return lo, hi
}

// NoData returns if x represents no data.
func NoData(x float64) bool {
	return x <= -1e38
}

// NewSHxHeader returns the header of the .shp file containing geoms. The shape
// type is the shape type of the first non-empty geometry, or Point if there is
// none.
func NewSHxHeader(geoms []geom.T) (*SHxHeader, error) {
	shapeType := ShapeTypeNull
	fileLength := headerLength
	minX, minY, minZ, minM := math.Inf(1), math.Inf(1), math.Inf(1), math.Inf(1)
	maxX, maxY, maxZ, maxM := math.Inf(-1), math.Inf(-1), math.Inf(-1), math.Inf(-1)
	for _, g := range geoms {
		geomShapeType, err := ShapeTypeOf(g)
		if err != nil {
			return nil, err
		}
		handler, err := handlerFor(geomShapeType)
		if err != nil {
			return nil, err
		}
		fileLength += recordHeaderLength + handler.length(g)
		if geomShapeType == ShapeTypeNull {
			continue
		}
		if shapeType == ShapeTypeNull {
			shapeType = geomShapeType
		}

		flatCoords, stride := g.FlatCoords(), g.Stride()
		gMinX, gMinY, gMaxX, gMaxY := bounds2D(flatCoords, stride)
		minX, minY = min(minX, gMinX), min(minY, gMinY)
		maxX, maxY = max(maxX, gMaxX), max(maxY, gMaxY)
		if zIndex := g.Layout().ZIndex(); zIndex >= 0 {
			lo, hi := ordinateRange(flatCoords, stride, zIndex)
			minZ, maxZ = min(minZ, lo), max(maxZ, hi)
		}
		if mIndex := g.Layout().MIndex(); mIndex >= 0 {
			lo, hi := ordinateRange(flatCoords, stride, mIndex)
			minM, maxM = min(minM, lo), max(maxM, hi)
		}
	}
	if shapeType == ShapeTypeNull {
		shapeType = ShapeTypePoint
		minX, minY, maxX, maxY = 0, 0, 0, 0
	}

	var bounds *geom.Bounds
	switch {
	case shapeType.HasZ():
		bounds = geom.NewBounds(geom.XYZM).Set(minX, minY, minZ, minM, maxX, maxY, maxZ, maxM)
	case shapeType.HasM():
		bounds = geom.NewBounds(geom.XYM).Set(minX, minY, minM, maxX, maxY, maxM)
	default:
		bounds = geom.NewBounds(geom.XY).Set(minX, minY, maxX, maxY)
	}

	return &SHxHeader{
		FileCode:   fileCode,
		FileLength: fileLength,
		Version:    version,
		ShapeType:  shapeType,
		Bounds:     bounds,
	}, nil
}

// WriteTo writes h to w.
func (h *SHxHeader) WriteTo(w io.Writer) (int64, error) {
	var bsw byteSliceWriter
	h.appendTo(&bsw)
	n, err := w.Write(bsw)
	return int64(n), err
}

func (h *SHxHeader) appendTo(w *byteSliceWriter) {
	w.writeUint32BE(h.FileCode)
	w.writeZeros(5 * 4)
	w.writeUint32BE(h.FileLength)
	w.writeUint32(h.Version)
	w.writeUint32(int(h.ShapeType))

	var minX, minY, maxX, maxY, minZ, maxZ, minM, maxM float64
	if h.Bounds != nil {
		layout := h.Bounds.Layout()
		minX, maxX = finite(h.Bounds.Min(0), h.Bounds.Max(0))
		minY, maxY = finite(h.Bounds.Min(1), h.Bounds.Max(1))
		if zIndex := layout.ZIndex(); zIndex >= 0 {
			minZ, maxZ = finite(h.Bounds.Min(zIndex), h.Bounds.Max(zIndex))
		}
		if mIndex := layout.MIndex(); mIndex >= 0 {
			minM, maxM = finite(h.Bounds.Min(mIndex), h.Bounds.Max(mIndex))
		}
	}
	w.writeFloat64s(minX, minY, maxX, maxY, minZ, maxZ, minM, maxM)
}

// finite returns lo and hi, or zeros if the range is empty.
func finite(lo, hi float64) (float64, float64) {
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 0
	}
	return lo, hi
}
