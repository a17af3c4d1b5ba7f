package shapefile

import (
	"archive/zip"
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/twpayne/go-geom"
)

// An SHX is a .shx file.
type SHX struct {
	SHxHeader
	Records  []SHXRecord
	Warnings []*Warning
}

// An SHXRecord is a record in a SHX.
type SHXRecord struct {
	// Offset is the offset of the record in the .shp file in bytes.
	Offset int
	// ContentLength is the length of the record body in bytes.
	ContentLength int
}

// ReadSHX reads a SHX from an io.Reader.
func ReadSHX(r io.Reader) (*SHX, error) {
	scanner, err := NewScannerSHX(r)
	if err != nil {
		return nil, err
	}
	var records []SHXRecord
	for {
		switch record, err := scanner.Scan(); {
		case errors.Is(err, io.EOF):
			return &SHX{
				SHxHeader: *scanner.Header(),
				Records:   records,
				Warnings:  scanner.warnings,
			}, nil
		case err != nil:
			return nil, err
		default:
			records = append(records, *record)
		}
	}
}

// ReadSHXZipFile reads a SHX from a *zip.File.
func ReadSHXZipFile(zipFile *zip.File) (*SHX, error) {
	readCloser, err := zipFile.Open()
	if err != nil {
		return nil, err
	}
	defer readCloser.Close()
	shx, err := ReadSHX(readCloser)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", zipFile.Name, err)
	}
	return shx, nil
}

// ParseSHXRecord parses a SHXRecord from data.
func ParseSHXRecord(data []byte) SHXRecord {
	offset := 2 * int(binary.BigEndian.Uint32(data[:4]))
	contentLength := 2 * int(binary.BigEndian.Uint32(data[4:]))
	return SHXRecord{
		Offset:        offset,
		ContentLength: contentLength,
	}
}

// WriteSHX writes the .shx index of the .shp file that WriteSHP writes for
// geoms to w.
func WriteSHX(w io.Writer, geoms []geom.T) error {
	header, err := NewSHxHeader(geoms)
	if err != nil {
		return err
	}
	header.FileLength = headerLength + recordHeaderLength*len(geoms)

	bufioWriter := bufio.NewWriter(w)
	if _, err := header.WriteTo(bufioWriter); err != nil {
		return err
	}

	var record byteSliceWriter
	offset := headerLength
	for i, g := range geoms {
		handler, err := recordHandler(g)
		if err != nil {
			return fmt.Errorf("record %d: %w", i+1, err)
		}
		contentLength := handler.length(g)
		record = record[:0]
		record.writeUint32BE(offset)
		record.writeUint32BE(contentLength)
		if _, err := bufioWriter.Write(record); err != nil {
			return err
		}
		offset += recordHeaderLength + contentLength
	}

	return bufioWriter.Flush()
}
