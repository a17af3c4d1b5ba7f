package shapefile

// FIXME support dBase version 7 files if needed, see https://www.dbase.com/Knowledgebase/INT/db7_file_fmt.htm
// FIXME add support for memos

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const (
	dbfHeaderLength        = 32
	dbfFieldDescriptorSize = 32

	dbfFieldTerminator = '\x0d'
	dbfEndOfFile       = '\x1a'
	dbfRecordValid     = ' '
	dbfRecordDeleted   = '*'
)

var (
	errMemoNotSupported = errors.New("memo files are not supported")
	errDBTNotSupported  = errors.New(".DBT files are not supported")

	knownFieldTypes = map[byte]struct{}{
		'C': {},
		'D': {},
		'F': {},
		'N': {},
		'L': {},
		'M': {},
	}

	knownLogicalValues = map[string]any{
		"?": nil,
		"F": false,
		"N": false,
		"T": true,
		"Y": true,
		"f": false,
		"n": false,
		"t": true,
		"y": true,
	}
)

// A DBFHeader is the header of a .dbf file.
type DBFHeader struct {
	Version    int
	Memo       bool
	DBT        bool
	LastUpdate time.Time
	Records    int
	HeaderSize int
	RecordSize int
}

// A DBFFieldDescriptor describes a field of a .dbf file.
type DBFFieldDescriptor struct {
	Name       string
	Type       byte
	Length     int
	WorkAreaID byte
	SetFields  byte
}

// A DBF is a dBase III PLUS table.
//
// See http://web.archive.org/web/20150323061445/http://ulisse.elettra.trieste.it/services/doc/dbase/DBFstruct.htm.
// See https://www.clicketyclick.dk/databases/xbase/format/dbf.html.
type DBF struct {
	DBFHeader
	FieldDescriptors []*DBFFieldDescriptor
	// Records contains nil for deleted records.
	Records [][]any
}

// A DBFMemo is the content of a memo field.
type DBFMemo string

// ReadDBFOptions are options to ReadDBF.
type ReadDBFOptions struct {
	// Charset is the name of the character set of string fields. The default
	// is ISO-8859-1.
	Charset string
	// SkipBrokenFields sets fields that cannot be parsed to nil instead of
	// returning an error.
	SkipBrokenFields bool
}

// ReadDBF reads a DBF from an io.Reader.
func ReadDBF(r io.Reader, options *ReadDBFOptions) (*DBF, error) {
	scanner, err := NewScannerDBF(r, options)
	if err != nil {
		return nil, err
	}
	records := make([][]any, 0, min(scanner.header.Records, 1024))
	for {
		switch record, err := scanner.Scan(); {
		case errors.Is(err, io.EOF):
			return &DBF{
				DBFHeader:        *scanner.Header(),
				FieldDescriptors: scanner.FieldDescriptors(),
				Records:          records,
			}, nil
		case err != nil:
			return nil, err
		default:
			records = append(records, record)
		}
	}
}

func readDBFFieldDescriptors(r *bufio.Reader) ([]*DBFFieldDescriptor, error) {
	var fieldDescriptors []*DBFFieldDescriptor
	fieldDescriptorData := make([]byte, dbfFieldDescriptorSize)
	for i := 0; ; i++ {
		if _, err := io.ReadFull(r, fieldDescriptorData[:1]); err != nil {
			return nil, unexpectedEOF(err)
		}
		if fieldDescriptorData[0] == dbfFieldTerminator {
			return fieldDescriptors, nil
		}
		if _, err := io.ReadFull(r, fieldDescriptorData[1:]); err != nil {
			return nil, unexpectedEOF(err)
		}

		fieldType := fieldDescriptorData[11]
		if _, ok := knownFieldTypes[fieldType]; !ok {
			return nil, fmt.Errorf("field %d: %d: invalid field type", i, fieldType)
		}
		fieldDescriptors = append(fieldDescriptors, &DBFFieldDescriptor{
			Name:       string(TrimTrailingZeros(fieldDescriptorData[:11])),
			Type:       fieldType,
			Length:     int(fieldDescriptorData[16]),
			WorkAreaID: fieldDescriptorData[20],
			SetFields:  fieldDescriptorData[23],
		})
	}
}

// unexpectedEOF returns io.ErrUnexpectedEOF if err is io.EOF and err
// otherwise.
func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// newCharsetDecoder returns a decoder for the named character set.
func newCharsetDecoder(name string) (*encoding.Decoder, error) {
	if name == "" {
		return charmap.ISO8859_1.NewDecoder(), nil
	}
	enc, _ := charset.Lookup(name)
	if enc == nil {
		return nil, fmt.Errorf("unknown charset '%s'", name)
	}
	return enc.NewDecoder(), nil
}

// ParseDBFHeader parses a DBFHeader from data.
func ParseDBFHeader(data []byte) (*DBFHeader, error) {
	if len(data) != dbfHeaderLength {
		return nil, errors.New("invalid header length")
	}

	version := int(data[0]) & 0x7
	if version != 3 {
		return nil, fmt.Errorf("%d: unsupported version", version)
	}
	memo := int(data[0])&0x8 == 0x8
	if memo {
		return nil, errMemoNotSupported
	}
	dbt := int(data[0])&0x80 == 0x80
	if dbt {
		return nil, errDBTNotSupported
	}

	lastUpdateYear := int(data[1]) + 1900
	lastUpdateMonth := time.Month(int(data[2]))
	lastUpdateDay := int(data[3])
	lastUpdate := time.Date(lastUpdateYear, lastUpdateMonth, lastUpdateDay, 0, 0, 0, 0, time.UTC)

	records := int(binary.LittleEndian.Uint32(data[4:8]))
	headerSize := int(binary.LittleEndian.Uint16(data[8:10]))
	recordSize := int(binary.LittleEndian.Uint16(data[10:12]))

	return &DBFHeader{
		Version:    version,
		Memo:       memo,
		DBT:        dbt,
		LastUpdate: lastUpdate,
		Records:    records,
		HeaderSize: headerSize,
		RecordSize: recordSize,
	}, nil
}

// ReadDBFZipFile reads a DBF from a *zip.File.
func ReadDBFZipFile(zipFile *zip.File, options *ReadDBFOptions) (*DBF, error) {
	readCloser, err := zipFile.Open()
	if err != nil {
		return nil, err
	}
	defer readCloser.Close()
	dbf, err := ReadDBF(readCloser, options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", zipFile.Name, err)
	}
	return dbf, nil
}

// Record returns the fields of the ith record keyed by name, or nil if the
// record is deleted.
func (d *DBF) Record(i int) map[string]any {
	if d.Records[i] == nil {
		return nil
	}
	fields := make(map[string]any, len(d.FieldDescriptors))
	record := d.Records[i]
	for j, fieldDescriptor := range d.FieldDescriptors {
		fields[fieldDescriptor.Name] = record[j]
	}
	return fields
}

// ParseRecord parses the value of a field from data, decoding strings with
// decoder.
func (d *DBFFieldDescriptor) ParseRecord(data []byte, decoder *encoding.Decoder) (any, error) {
	switch d.Type {
	case 'C':
		return decodeString(bytes.TrimSpace(TrimTrailingZeros(data)), decoder)
	case 'D':
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, nil
		}
		return parseDate(data)
	case 'F', 'N':
		fieldStr := string(bytes.TrimSpace(TrimTrailingZeros(data)))
		if fieldStr == "" || fieldStr[0] == '*' {
			return nil, nil
		}
		if d.Type == 'N' && !bytes.ContainsAny(data, ".eE") {
			if field, err := strconv.Atoi(fieldStr); err == nil {
				return field, nil
			}
		}
		field, err := strconv.ParseFloat(fieldStr, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: invalid numeric: %w", fieldStr, err)
		}
		return field, nil
	case 'L':
		field, ok := knownLogicalValues[string(bytes.TrimSpace(data))]
		if !ok {
			return nil, fmt.Errorf("%q: invalid logical", string(data))
		}
		return field, nil
	case 'M':
		memo, err := decodeString(bytes.TrimSpace(TrimTrailingZeros(data)), decoder)
		if err != nil {
			return nil, err
		}
		return DBFMemo(memo), nil
	default:
		return nil, fmt.Errorf("%d: unsupported field type", d.Type)
	}
}

func decodeString(data []byte, decoder *encoding.Decoder) (string, error) {
	if decoder == nil {
		return string(data), nil
	}
	decoded, err := decoder.Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// TrimTrailingZeros returns data without trailing zero bytes.
func TrimTrailingZeros(data []byte) []byte {
	for i := len(data) - 1; i >= 0; i-- {
		if data[i] != '\x00' {
			return data[:i+1]
		}
	}
	return nil
}

func parseDate(data []byte) (time.Time, error) {
	if len(data) != 8 {
		return time.Time{}, errors.New("invalid date field")
	}
	year, err := strconv.ParseInt(string(data[:4]), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid year: %w", string(data[:4]), err)
	}
	month, err := strconv.ParseInt(string(data[4:6]), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid month: %w", string(data[4:6]), err)
	}
	day, err := strconv.ParseInt(string(data[6:8]), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid day: %w", string(data[6:8]), err)
	}
	return time.Date(int(year), time.Month(month), int(day), 0, 0, 0, 0, time.UTC), nil
}
