package shapefile

import (
	"encoding/binary"
	"math"
)

// A byteSliceWriter appends little- and big-endian values to a buffer.
type byteSliceWriter []byte

func (w *byteSliceWriter) writeUint32(u int) {
	*w = binary.LittleEndian.AppendUint32(*w, uint32(u))
}

func (w *byteSliceWriter) writeUint32BE(u int) {
	*w = binary.BigEndian.AppendUint32(*w, uint32(u))
}

func (w *byteSliceWriter) writeFloat64(f float64) {
	*w = binary.LittleEndian.AppendUint64(*w, math.Float64bits(f))
}

func (w *byteSliceWriter) writeFloat64s(fs ...float64) {
	for _, f := range fs {
		w.writeFloat64(f)
	}
}

func (w *byteSliceWriter) writeZeros(n int) {
	*w = append(*w, make([]byte, n)...)
}

// writeXYs writes the first two ordinates of each coordinate in flatCoords.
func (w *byteSliceWriter) writeXYs(flatCoords []float64, stride int) {
	for i := 0; i < len(flatCoords); i += stride {
		w.writeFloat64(flatCoords[i])
		w.writeFloat64(flatCoords[i+1])
	}
}

// writeOrdinateRange writes the range of ordinate index followed by the
// ordinate of every coordinate in flatCoords.
func (w *byteSliceWriter) writeOrdinateRange(flatCoords []float64, stride, index int) {
	lo, hi := ordinateRange(flatCoords, stride, index)
	w.writeFloat64(lo)
	w.writeFloat64(hi)
	for i := index; i < len(flatCoords); i += stride {
		w.writeFloat64(flatCoords[i])
	}
}

// writeNoDataRange writes a no data range followed by n no data values.
func (w *byteSliceWriter) writeNoDataRange(n int) {
	w.writeFloat64(noDataValue)
	w.writeFloat64(noDataValue)
	for i := 0; i < n; i++ {
		w.writeFloat64(noDataValue)
	}
}

func ordinateRange(flatCoords []float64, stride, index int) (float64, float64) {
	if len(flatCoords) == 0 {
		return 0, 0
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := index; i < len(flatCoords); i += stride {
		lo = min(lo, flatCoords[i])
		hi = max(hi, flatCoords[i])
	}
	return lo, hi
}
