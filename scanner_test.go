package shapefile

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

// newScannerTestFiles returns a .shp, .shx, and .dbf file with three records.
// The second record is a polygon in a point file.
func newScannerTestFiles(t *testing.T) map[string][]byte {
	t.Helper()
	geoms := append(newMixedGeoms(), geom.NewPointFlat(geom.XY, []float64{30, 40}))
	var shpBuffer, shxBuffer bytes.Buffer
	require.NoError(t, WriteSHP(&shpBuffer, geoms))
	require.NoError(t, WriteSHX(&shxBuffer, geoms))
	fields := testDBFFields[:1]
	return map[string][]byte{
		"test.shp": shpBuffer.Bytes(),
		"test.shx": shxBuffer.Bytes(),
		"test.dbf": newTestDBF(fields,
			testDBFRecord(fields, ' ', "a"),
			testDBFRecord(fields, ' ', "b"),
			testDBFRecord(fields, ' ', "c"),
		),
	}
}

func newTestScanner(t *testing.T, files map[string][]byte, options *ReadShapefileOptions) *Scanner {
	t.Helper()
	readers := make(map[string]io.Reader)
	for name, data := range files {
		readers[filepath.Ext(name)] = bytes.NewReader(data)
	}
	scanner, err := NewScanner(readers, options)
	require.NoError(t, err)
	return scanner
}

func TestScannerFromBasename(t *testing.T) {
	dir := t.TempDir()
	basename := filepath.Join(dir, "test")
	require.NoError(t, WriteFiles(basename, newMixedGeoms(), &WriteShapefileOptions{
		Projection: testProjection,
		Charset:    "UTF-8",
	}))
	fields := testDBFFields[:1]
	require.NoError(t, os.WriteFile(basename+".dbf", newTestDBF(fields,
		testDBFRecord(fields, ' ', "Z\xc3\xbcrich"),
		testDBFRecord(fields, ' ', "Bern"),
	), 0o666))

	scanner, err := NewScannerFromBasename(basename, nil)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, scanner.Close())
	}()

	assert.Equal(t, "utf-8", scanner.Charset())
	assert.Equal(t, testProjection, scanner.Projection())
	assert.Equal(t, ShapeTypePoint, scanner.SHPHeader().ShapeType)
	assert.Equal(t, ShapeTypePoint, scanner.SHXHeader().ShapeType)
	assert.Equal(t, 2, scanner.DBFHeader().Records)
	require.Len(t, scanner.DBFFieldDescriptors(), 1)
	assert.Equal(t, 2, scanner.EstimatedRecords())

	recordSHP, recordSHX, recordDBF, err := scanner.Scan()
	require.NoError(t, err)
	assert.Equal(t, 1, recordSHP.Number)
	assert.Equal(t, geom.NewPointFlat(geom.XY, []float64{10, 20}), recordSHP.Geom)
	assert.Equal(t, &SHXRecord{Offset: headerSize, ContentLength: 20}, recordSHX)
	assert.Equal(t, DBFRecord{"Zürich"}, recordDBF)

	recordSHP, recordSHX, recordDBF, err = scanner.Scan()
	require.NoError(t, err)
	assert.Equal(t, 2, recordSHP.Number)
	_, ok := recordSHP.Geom.(*geom.Polygon)
	assert.True(t, ok)
	assert.Equal(t, headerSize+8+20, recordSHX.Offset)
	assert.Equal(t, DBFRecord{"Bern"}, recordDBF)

	_, _, _, err = scanner.Scan()
	assert.ErrorIs(t, err, io.EOF)
	_, _, _, err = scanner.Scan()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, scanner.ScannedRecords())
	assert.Len(t, scanner.Warnings(), 1)
}

func TestScannerFromBasenameMissing(t *testing.T) {
	scanner, err := NewScannerFromBasename(filepath.Join(t.TempDir(), "missing"), nil)
	require.NoError(t, err)
	_, _, _, err = scanner.Scan()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, scanner.EstimatedRecords())
	assert.NoError(t, scanner.Close())
}

func TestScannerSkippedRecord(t *testing.T) {
	files := newScannerTestFiles(t)
	zipFiles := make(map[string][]byte)
	for name, data := range files {
		zipFiles["dir/"+name] = data
	}
	scanner, err := NewScannerFromZipReader(newTestZip(t, zipFiles), &ReadShapefileOptions{
		SHP: &ReadSHPOptions{
			StrictShapeType: true,
		},
	})
	require.NoError(t, err)
	defer scanner.Close()

	recordSHP, _, recordDBF, err := scanner.Scan()
	require.NoError(t, err)
	assert.Equal(t, 1, recordSHP.Number)
	assert.Equal(t, DBFRecord{"a"}, recordDBF)

	recordSHP, recordSHX, recordDBF, err := scanner.Scan()
	require.NoError(t, err)
	assert.Nil(t, recordSHP)
	assert.NotNil(t, recordSHX)
	assert.Equal(t, DBFRecord{"b"}, recordDBF)

	recordSHP, _, recordDBF, err = scanner.Scan()
	require.NoError(t, err)
	assert.Equal(t, 3, recordSHP.Number)
	assert.Equal(t, geom.NewPointFlat(geom.XY, []float64{30, 40}), recordSHP.Geom)
	assert.Equal(t, DBFRecord{"c"}, recordDBF)

	_, _, _, err = scanner.Scan()
	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, scanner.Warnings(), 1)
	assert.Equal(t, WarningShapeTypeMismatch, scanner.Warnings()[0].Kind)
}

func TestReadScanner(t *testing.T) {
	scanner := newTestScanner(t, newScannerTestFiles(t), &ReadShapefileOptions{
		SHP: &ReadSHPOptions{
			StrictShapeType: true,
		},
	})

	shapefile, err := ReadScanner(scanner)
	require.NoError(t, err)
	assert.Equal(t, 3, shapefile.NumRecords())
	assert.Len(t, shapefile.SHP.Records, 2)
	assert.Len(t, shapefile.SHX.Records, 3)
	assert.Len(t, shapefile.SHP.Warnings, 1)

	fields, g := shapefile.Record(1)
	assert.Equal(t, map[string]any{"NAME": "b"}, fields)
	assert.Nil(t, g)

	fields, g = shapefile.Record(2)
	assert.Equal(t, map[string]any{"NAME": "c"}, fields)
	assert.Equal(t, geom.NewPointFlat(geom.XY, []float64{30, 40}), g)
}

func TestScannerDiscard(t *testing.T) {
	t.Run("from_start", func(t *testing.T) {
		scanner := newTestScanner(t, newScannerTestFiles(t), nil)

		n, err := scanner.Discard(1)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 1, scanner.ScannedRecords())

		recordSHP, recordSHX, recordDBF, err := scanner.Scan()
		require.NoError(t, err)
		assert.Equal(t, 2, recordSHP.Number)
		assert.Equal(t, headerSize+8+20, recordSHX.Offset)
		assert.Equal(t, DBFRecord{"b"}, recordDBF)

		n, err = scanner.Discard(5)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, 1, n)
		assert.Equal(t, 3, scanner.ScannedRecords())
	})

	t.Run("after_read_ahead", func(t *testing.T) {
		scanner := newTestScanner(t, newScannerTestFiles(t), &ReadShapefileOptions{
			SHP: &ReadSHPOptions{
				StrictShapeType: true,
			},
		})

		_, _, _, err := scanner.Scan()
		require.NoError(t, err)
		recordSHP, _, _, err := scanner.Scan()
		require.NoError(t, err)
		assert.Nil(t, recordSHP)

		n, err := scanner.Discard(1)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, _, _, err = scanner.Scan()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("without_shx", func(t *testing.T) {
		files := newScannerTestFiles(t)
		delete(files, "test.shx")
		scanner := newTestScanner(t, files, nil)

		_, err := scanner.Discard(1)
		assert.EqualError(t, err, "cannot discard .shp records without .shx file")
	})
}

func TestScannerInconsistentNumRecords(t *testing.T) {
	files := newScannerTestFiles(t)
	fields := testDBFFields[:1]
	files["test.dbf"] = newTestDBF(fields, testDBFRecord(fields, ' ', "a"))
	scanner := newTestScanner(t, files, nil)

	_, _, _, err := scanner.Scan()
	require.NoError(t, err)
	_, _, _, err = scanner.Scan()
	assert.ErrorIs(t, err, errInconsistentNumRecords)
}

func TestScannerDBFDeletedRecord(t *testing.T) {
	fields := testDBFFields[:1]
	data := newTestDBF(fields,
		testDBFRecord(fields, '*', "a"),
		testDBFRecord(fields, ' ', "b"),
	)

	scanner, err := NewScannerDBF(bytes.NewReader(data), nil)
	require.NoError(t, err)

	record, err := scanner.Scan()
	require.NoError(t, err)
	assert.Nil(t, record)

	record, err = scanner.Scan()
	require.NoError(t, err)
	assert.Equal(t, DBFRecord{"b"}, record)

	_, err = scanner.Scan()
	assert.ErrorIs(t, err, io.EOF)
}
