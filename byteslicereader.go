package shapefile

import (
	"encoding/binary"
	"errors"
	"math"
)

var errShortRecord = errors.New("record shorter than its contents")

// A byteSliceReader decodes little-endian values from a record body. Reads
// past the end of the body set a sticky error and return zero values.
type byteSliceReader struct {
	data []byte
	err  error
}

func newByteSliceReader(data []byte) *byteSliceReader {
	return &byteSliceReader{data: data}
}

// Err returns the first error encountered.
func (r *byteSliceReader) Err() error {
	return r.err
}

// Len returns the number of unread bytes.
func (r *byteSliceReader) Len() int {
	return len(r.data)
}

func (r *byteSliceReader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.data) {
		r.err = errShortRecord
		r.data = nil
		return nil
	}
	sl := r.data[:n]
	r.data = r.data[n:]
	return sl
}

func (r *byteSliceReader) readUint32() int {
	sl := r.next(4)
	if sl == nil {
		return 0
	}
	return int(binary.LittleEndian.Uint32(sl))
}

func (r *byteSliceReader) readFloat64() float64 {
	sl := r.next(8)
	if sl == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(sl))
}

func (r *byteSliceReader) readFloat64Pair() (float64, float64) {
	a := r.readFloat64()
	b := r.readFloat64()
	return a, b
}

// readOffsets reads n part offsets.
func (r *byteSliceReader) readOffsets(n int) []int {
	sl := r.next(4 * n)
	if sl == nil {
		return nil
	}
	offsets := make([]int, n)
	for i := range offsets {
		offsets[i] = int(binary.LittleEndian.Uint32(sl[4*i : 4*i+4]))
	}
	return offsets
}

// readXYs reads n XY pairs into the first two ordinates of each coordinate in
// flatCoords.
func (r *byteSliceReader) readXYs(flatCoords []float64, n, stride int) {
	sl := r.next(16 * n)
	if sl == nil {
		return
	}
	for i := 0; i < n; i++ {
		flatCoords[i*stride] = math.Float64frombits(binary.LittleEndian.Uint64(sl[16*i : 16*i+8]))
		flatCoords[i*stride+1] = math.Float64frombits(binary.LittleEndian.Uint64(sl[16*i+8 : 16*i+16]))
	}
}

// readOrdinates reads n values into ordinate index of each coordinate in
// flatCoords.
func (r *byteSliceReader) readOrdinates(flatCoords []float64, n, stride, index int) {
	sl := r.next(8 * n)
	if sl == nil {
		return
	}
	for i := 0; i < n; i++ {
		flatCoords[i*stride+index] = math.Float64frombits(binary.LittleEndian.Uint64(sl[8*i : 8*i+8]))
	}
}
