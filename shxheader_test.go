package shapefile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestNewSHxHeaderEmpty(t *testing.T) {
	for _, geoms := range [][]geom.T{
		nil,
		{nil, geom.NewPointEmpty(geom.XY)},
	} {
		header, err := NewSHxHeader(geoms)
		require.NoError(t, err)
		assert.Equal(t, ShapeTypePoint, header.ShapeType)
		assert.Equal(t, headerLength+len(geoms)*(recordHeaderLength+2), header.FileLength)
		assert.Equal(t, geom.NewBounds(geom.XY).Set(0, 0, 0, 0), header.Bounds)
	}

	var buffer bytes.Buffer
	require.NoError(t, WriteSHP(&buffer, nil))
	assert.Equal(t, 100, buffer.Len())
	assert.Equal(t, uint32(50), binary.BigEndian.Uint32(buffer.Bytes()[24:28]))
	assert.Equal(t, uint32(ShapeTypePoint), binary.LittleEndian.Uint32(buffer.Bytes()[32:36]))
}

func TestSHxHeaderRoundTrip(t *testing.T) {
	header, err := NewSHxHeader([]geom.T{
		geom.NewPointFlat(geom.XY, []float64{1, 2}),
		nil,
		geom.NewPointFlat(geom.XY, []float64{3, -4}),
	})
	require.NoError(t, err)
	assert.Equal(t, ShapeTypePoint, header.ShapeType)
	assert.Equal(t, 50+(4+10)+(4+2)+(4+10), header.FileLength)

	var buffer bytes.Buffer
	n, err := header.WriteTo(&buffer)
	require.NoError(t, err)
	assert.Equal(t, int64(headerSize), n)

	actual, warnings, err := ReadSHxHeader(&buffer)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, header, actual)
	assert.Equal(t, geom.NewBounds(geom.XY).Set(1, -4, 3, 2), actual.Bounds)
}

func TestSHxHeaderZM(t *testing.T) {
	header, err := NewSHxHeader([]geom.T{
		geom.NewMultiPointFlat(geom.XYZM, []float64{1, 2, 3, 4, 5, 6, 7, 8}),
	})
	require.NoError(t, err)
	assert.Equal(t, ShapeTypeMultiPointZ, header.ShapeType)

	var buffer bytes.Buffer
	_, err = header.WriteTo(&buffer)
	require.NoError(t, err)

	actual, _, err := ParseSHxHeader(buffer.Bytes())
	require.NoError(t, err)
	assert.Equal(t, geom.NewBounds(geom.XYZM).Set(1, 2, 3, 4, 5, 6, 7, 8), actual.Bounds)
}

func TestParseSHxHeaderWarnings(t *testing.T) {
	header, err := NewSHxHeader(nil)
	require.NoError(t, err)
	header.FileCode = 1234
	header.Version = 999

	var buffer bytes.Buffer
	_, err = header.WriteTo(&buffer)
	require.NoError(t, err)

	actual, warnings, err := ParseSHxHeader(buffer.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 1234, actual.FileCode)
	assert.Equal(t, 999, actual.Version)
	assert.Equal(t, ShapeTypePoint, actual.ShapeType)
	require.Len(t, warnings, 2)
	assert.Equal(t, WarningFileCode, warnings[0].Kind)
	assert.Equal(t, WarningVersion, warnings[1].Kind)
	assert.Equal(t, "header: file code: invalid file code", warnings[0].Error())
}

func TestParseSHxHeaderErrors(t *testing.T) {
	_, _, err := ParseSHxHeader(make([]byte, 99))
	assert.EqualError(t, err, "invalid header length")

	_, _, err = ReadSHxHeader(bytes.NewReader(make([]byte, 10)))
	assert.EqualError(t, err, "file too short")

	_, _, err = ReadSHxHeader(bytes.NewReader(nil))
	assert.EqualError(t, err, "file too short")
}

func TestParseSHxHeaderNoData(t *testing.T) {
	var w byteSliceWriter
	w.writeUint32BE(fileCode)
	w.writeZeros(5 * 4)
	w.writeUint32BE(headerLength)
	w.writeUint32(version)
	w.writeUint32(int(ShapeTypePolygonM))
	w.writeFloat64s(0, 0, 1, 1, 0, 0, noDataValue, noDataValue)

	header, _, err := ParseSHxHeader(w)
	require.NoError(t, err)
	assert.True(t, header.Bounds.Layout() == geom.XYM)
	assert.True(t, NoData(noDataValue))
	assert.Equal(t, 0., header.Bounds.Min(0))
	assert.Equal(t, 1., header.Bounds.Max(1))
	assert.Greater(t, header.Bounds.Min(2), header.Bounds.Max(2))
}
