package shapefile

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// A SHPRecord is a record in a SHP file.
type SHPRecord struct {
	Number int
	// ContentLength is the length of the record body in bytes.
	ContentLength int
	// ShapeType is the shape type of the record body, which is ShapeTypeNull
	// for null records.
	ShapeType ShapeType
	Geom      geom.T
}

// ReadSHPOptions are options for ReadSHP.
type ReadSHPOptions struct {
	MaxParts      int
	MaxPoints     int
	MaxRecordSize int
	// StrictShapeType skips records whose shape type differs from the file's
	// shape type. The default is lenient: such records are decoded according
	// to their own shape type and kept in Records. A WarningShapeTypeMismatch
	// is reported in both cases.
	StrictShapeType bool
	// Logger receives a warning-level entry for every Warning.
	Logger *zap.Logger
}

// A SHP is a .shp file.
type SHP struct {
	SHxHeader

	Records  []*SHPRecord
	Warnings []*Warning
}

// ReadSHP reads a SHP from an io.Reader. Records that cannot be decoded are
// skipped and reported in Warnings.
func ReadSHP(r io.Reader, options *ReadSHPOptions) (*SHP, error) {
	scanner, err := NewScannerSHP(r, options)
	if err != nil {
		return nil, err
	}
	var records []*SHPRecord
	for {
		switch record, err := scanner.Scan(); {
		case errors.Is(err, io.EOF):
			return &SHP{
				SHxHeader: *scanner.Header(),
				Records:   records,
				Warnings:  scanner.Warnings(),
			}, nil
		case err != nil:
			return nil, err
		default:
			records = append(records, record)
		}
	}
}

// ReadSHPRecord reads the next *SHPRecord from r. The record is decoded
// according to its own shape type.
func ReadSHPRecord(r io.Reader, options *ReadSHPOptions) (*SHPRecord, error) {
	d := newDecoder(options)
	number, data, err := d.readRecordData(r)
	if err != nil {
		return nil, err
	}
	d.warnings.recordNumber = number
	shapeType := recordShapeType(data)
	handler, err := handlerFor(shapeType)
	if err != nil {
		return nil, err
	}
	g, _, err := handler.read(d, newByteSliceReader(data), len(data)/2)
	if err != nil {
		return nil, err
	}
	return &SHPRecord{
		Number:        number,
		ContentLength: len(data),
		ShapeType:     shapeType,
		Geom:          g,
	}, nil
}

// readRecordData reads a record header and the record body it describes. It
// returns io.EOF if r is at the end of the file and io.ErrUnexpectedEOF if
// the record is truncated.
func (d *decoder) readRecordData(r io.Reader) (int, []byte, error) {
	recordHeaderData := make([]byte, 8)
	if _, err := io.ReadFull(r, recordHeaderData); err != nil {
		return 0, nil, err
	}
	number := int(binary.BigEndian.Uint32(recordHeaderData[:4]))
	contentLength := 2 * int64(binary.BigEndian.Uint32(recordHeaderData[4:8]))
	if d.options.MaxRecordSize != 0 && contentLength > int64(d.options.MaxRecordSize) {
		return 0, nil, fmt.Errorf("record %d: %w", number, ErrRecordTooLarge)
	}

	// Read incrementally so that a corrupt content length cannot force a
	// huge allocation.
	var buffer bytes.Buffer
	switch n, err := io.Copy(&buffer, io.LimitReader(r, contentLength)); {
	case err != nil:
		return 0, nil, fmt.Errorf("record %d: %w", number, err)
	case n != contentLength:
		return 0, nil, fmt.Errorf("record %d: %w", number, io.ErrUnexpectedEOF)
	}
	return number, buffer.Bytes(), nil
}

// recordShapeType returns the shape type at the start of a record body.
func recordShapeType(data []byte) ShapeType {
	if len(data) < 4 {
		return ShapeTypeUndefined
	}
	return ShapeTypeForCode(int(binary.LittleEndian.Uint32(data[:4])))
}

// isFatal returns if err from a handler must abort reading.
func isFatal(err error) bool {
	return errors.Is(err, ErrTooManyParts) || errors.Is(err, ErrTooManyPoints)
}

// decodeRecord decodes a record body with handler. It returns nil if the
// record is skipped.
func (d *decoder) decodeRecord(handler shapeHandler, number int, data []byte) (*SHPRecord, error) {
	d.warnings.recordNumber = number
	shapeType := recordShapeType(data)
	contentLength := len(data) / 2

	g, ok, err := handler.read(d, newByteSliceReader(data), contentLength)
	switch {
	case isFatal(err):
		return nil, fmt.Errorf("record %d: %w", number, err)
	case err != nil:
		d.warnings.add(WarningMalformedRecord, -1, "%s", err)
		return nil, nil
	case ok && g != nil && shapeType == ShapeTypeNull:
		return &SHPRecord{
			Number:        number,
			ContentLength: len(data),
			ShapeType:     ShapeTypeNull,
			Geom:          g,
		}, nil
	case ok:
		return &SHPRecord{
			Number:        number,
			ContentLength: len(data),
			ShapeType:     handler.ShapeType(),
			Geom:          g,
		}, nil
	}

	d.warnings.add(WarningShapeTypeMismatch, -1, "%s record in %s file", shapeType, handler.ShapeType())
	if d.options.StrictShapeType {
		return nil, nil
	}
	recordHandler, err := handlerFor(shapeType)
	if err != nil {
		d.warnings.add(WarningMalformedRecord, -1, "%s", err)
		return nil, nil
	}
	return d.decodeRecord(recordHandler, number, data)
}

// ReadSHPZipFile reads a *SHP from a *zip.File.
func ReadSHPZipFile(zipFile *zip.File, options *ReadSHPOptions) (*SHP, error) {
	readCloser, err := zipFile.Open()
	if err != nil {
		return nil, err
	}
	defer readCloser.Close()
	shp, err := ReadSHP(readCloser, options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", zipFile.Name, err)
	}
	return shp, nil
}

// Record returns the ith geometry.
func (s *SHP) Record(i int) geom.T {
	return s.Records[i].Geom
}

// RecordByNumber returns the geometry of the record with the given number, or
// nil if there is no such record.
func (s *SHP) RecordByNumber(number int) geom.T {
	if i := number - 1; 0 <= i && i < len(s.Records) && s.Records[i].Number == number {
		return s.Records[i].Geom
	}
	for _, record := range s.Records {
		if record.Number == number {
			return record.Geom
		}
	}
	return nil
}

// Geoms returns the geometries of all records.
func (s *SHP) Geoms() []geom.T {
	geoms := make([]geom.T, 0, len(s.Records))
	for _, record := range s.Records {
		geoms = append(geoms, record.Geom)
	}
	return geoms
}

// recordHandler returns the handler that writes g.
func recordHandler(g geom.T) (shapeHandler, error) {
	shapeType, err := ShapeTypeOf(g)
	if err != nil {
		return nil, err
	}
	return handlerFor(shapeType)
}

// WriteSHP writes geoms to w as a .shp file. nil and empty geometries are
// written as null records.
func WriteSHP(w io.Writer, geoms []geom.T) error {
	header, err := NewSHxHeader(geoms)
	if err != nil {
		return err
	}

	bufioWriter := bufio.NewWriter(w)
	if _, err := header.WriteTo(bufioWriter); err != nil {
		return err
	}

	var record byteSliceWriter
	for i, g := range geoms {
		number := i + 1
		handler, err := recordHandler(g)
		if err != nil {
			return fmt.Errorf("record %d: %w", number, err)
		}
		contentLength := handler.length(g)

		record = record[:0]
		record.writeUint32BE(number)
		record.writeUint32BE(contentLength)
		if err := handler.write(&record, g); err != nil {
			return fmt.Errorf("record %d: %w", number, err)
		}
		if len(record) != 8+2*contentLength {
			return fmt.Errorf("record %d: %w", number, ErrContentLengthMismatch)
		}
		if _, err := bufioWriter.Write(record); err != nil {
			return err
		}
	}

	return bufioWriter.Flush()
}
