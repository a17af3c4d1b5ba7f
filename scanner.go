package shapefile

import (
	"archive/zip"
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"
)

// A ScannerSHP reads the records of a .shp file one at a time.
type ScannerSHP struct {
	reader      *bufio.Reader
	header      *SHxHeader
	handler     shapeHandler
	decoder     *decoder
	offset      int
	scanRecords int
	err         error
}

// NewScannerSHP reads the header of a .shp file from r and returns a
// ScannerSHP for its records. It returns an *UnsupportedShapeTypeError if the
// file's shape type cannot be read.
func NewScannerSHP(r io.Reader, options *ReadSHPOptions) (*ScannerSHP, error) {
	d := newDecoder(options)
	reader := bufio.NewReader(r)
	header, err := readSHxHeader(reader, d.warnings)
	if err != nil {
		return nil, err
	}
	handler, err := handlerFor(header.ShapeType)
	if err != nil {
		return nil, err
	}
	return &ScannerSHP{
		reader:  reader,
		header:  header,
		handler: handler,
		decoder: d,
		offset:  headerSize,
	}, nil
}

// Scan returns the next record. Skipped records are reported in Warnings and
// not returned. It returns io.EOF after the last record.
func (s *ScannerSHP) Scan() (*SHPRecord, error) {
	for s.err == nil {
		number, data, err := s.decoder.readRecordData(s.reader)
		switch {
		case errors.Is(err, io.EOF):
			s.err = io.EOF
			return nil, s.err
		case errors.Is(err, io.ErrUnexpectedEOF):
			s.err = fmt.Errorf("record %d: %w", s.scanRecords+1, io.ErrUnexpectedEOF)
			return nil, s.err
		case err != nil:
			s.err = err
			return nil, s.err
		}

		s.offset += 8 + len(data)
		s.scanRecords++
		if number != s.scanRecords {
			s.decoder.warnings.recordNumber = number
			s.decoder.warnings.add(WarningRecordNumber, -1, "expected record number %d", s.scanRecords)
		}

		record, err := s.decoder.decodeRecord(s.handler, number, data)
		switch {
		case err != nil:
			s.err = err
		case record != nil:
			return record, nil
		}
	}
	return nil, s.err
}

// Header returns the header of the .shp file.
func (s *ScannerSHP) Header() *SHxHeader {
	return s.header
}

// Warnings returns the warnings reported so far.
func (s *ScannerSHP) Warnings() []*Warning {
	return s.decoder.warnings.list
}

// ScannedRecords returns the number of records read, including skipped
// records.
func (s *ScannerSHP) ScannedRecords() int {
	return s.scanRecords
}

// discardTo skips to offset in the .shp file, which is the end of record
// scanRecords.
func (s *ScannerSHP) discardTo(offset, scanRecords int) error {
	if s.err != nil {
		return s.err
	}
	if offset > s.offset {
		if _, err := s.reader.Discard(offset - s.offset); err != nil {
			s.err = unexpectedEOF(err)
			return s.err
		}
	}
	s.offset = offset
	s.scanRecords = scanRecords
	return nil
}

// A ScannerSHX reads the records of a .shx file one at a time.
type ScannerSHX struct {
	reader      *bufio.Reader
	header      *SHxHeader
	warnings    []*Warning
	scanRecords int
	err         error
}

// NewScannerSHX reads the header of a .shx file from r and returns a
// ScannerSHX for its records.
func NewScannerSHX(r io.Reader) (*ScannerSHX, error) {
	reader := bufio.NewReader(r)
	header, warnings, err := ReadSHxHeader(reader)
	if err != nil {
		return nil, err
	}
	return &ScannerSHX{
		reader:   reader,
		header:   header,
		warnings: warnings,
	}, nil
}

// Scan returns the next record. It returns io.EOF after the last record.
func (s *ScannerSHX) Scan() (*SHXRecord, error) {
	if s.err != nil {
		return nil, s.err
	}

	data := make([]byte, 8)
	switch _, err := io.ReadFull(s.reader, data); {
	case errors.Is(err, io.EOF):
		s.err = io.EOF
		return nil, s.err
	case err != nil:
		s.err = fmt.Errorf("record %d: %w", s.scanRecords+1, err)
		return nil, s.err
	}
	record := ParseSHXRecord(data)
	s.scanRecords++
	return &record, nil
}

// Header returns the header of the .shx file.
func (s *ScannerSHX) Header() *SHxHeader {
	return s.header
}

// Warnings returns the warnings reported for the header.
func (s *ScannerSHX) Warnings() []*Warning {
	return s.warnings
}

// A DBFRecord is the fields of a .dbf record. It is nil for deleted records.
type DBFRecord = []any

// A ScannerDBF reads the records of a .dbf file one at a time.
type ScannerDBF struct {
	reader           *bufio.Reader
	options          ReadDBFOptions
	header           *DBFHeader
	fieldDescriptors []*DBFFieldDescriptor
	decoder          *encoding.Decoder
	recordData       []byte
	scanRecords      int
	err              error
}

// NewScannerDBF reads the header and field descriptors of a .dbf file from r
// and returns a ScannerDBF for its records.
func NewScannerDBF(r io.Reader, options *ReadDBFOptions) (*ScannerDBF, error) {
	var scannerOptions ReadDBFOptions
	if options != nil {
		scannerOptions = *options
	}
	decoder, err := newCharsetDecoder(scannerOptions.Charset)
	if err != nil {
		return nil, err
	}

	reader := bufio.NewReader(r)
	headerData := make([]byte, dbfHeaderLength)
	if _, err := io.ReadFull(reader, headerData); err != nil {
		return nil, unexpectedEOF(err)
	}
	header, err := ParseDBFHeader(headerData)
	if err != nil {
		return nil, err
	}

	fieldDescriptors, err := readDBFFieldDescriptors(reader)
	if err != nil {
		return nil, err
	}
	totalLength := 1
	for _, fieldDescriptor := range fieldDescriptors {
		totalLength += fieldDescriptor.Length
	}
	if totalLength != header.RecordSize {
		return nil, errors.New("invalid total length of fields")
	}

	// Skip anything between the field descriptors and the first record, for
	// example a Visual FoxPro backlink.
	if extra := header.HeaderSize - dbfHeaderLength - dbfFieldDescriptorSize*len(fieldDescriptors) - 1; extra > 0 {
		if _, err := reader.Discard(extra); err != nil {
			return nil, unexpectedEOF(err)
		}
	}

	return &ScannerDBF{
		reader:           reader,
		options:          scannerOptions,
		header:           header,
		fieldDescriptors: fieldDescriptors,
		decoder:          decoder,
		recordData:       make([]byte, header.RecordSize),
	}, nil
}

// Scan returns the next record, which is nil if the record is deleted. It
// returns io.EOF after the last record.
func (s *ScannerDBF) Scan() (DBFRecord, error) {
	if s.err != nil {
		return nil, s.err
	}

	index := s.scanRecords
	if err := s.readRecordData(); err != nil {
		s.err = err
		return nil, s.err
	}
	if s.recordData[0] == dbfRecordDeleted {
		return nil, nil
	}

	record := make(DBFRecord, 0, len(s.fieldDescriptors))
	offset := 1
	for _, fieldDescriptor := range s.fieldDescriptors {
		fieldData := s.recordData[offset : offset+fieldDescriptor.Length]
		offset += fieldDescriptor.Length
		field, err := fieldDescriptor.ParseRecord(fieldData, s.decoder)
		if err != nil {
			if !s.options.SkipBrokenFields {
				s.err = fmt.Errorf("record %d: field %s: %w", index, fieldDescriptor.Name, err)
				return nil, s.err
			}
			field = nil
		}
		record = append(record, field)
	}
	return record, nil
}

// discard skips the next record.
func (s *ScannerDBF) discard() error {
	if s.err != nil {
		return s.err
	}
	if err := s.readRecordData(); err != nil {
		s.err = err
		return s.err
	}
	return nil
}

// readRecordData reads the next record into s.recordData. After the number of
// records in the header it checks the optional end of file marker and returns
// io.EOF.
func (s *ScannerDBF) readRecordData() error {
	if s.scanRecords == s.header.Records {
		switch marker, err := s.reader.ReadByte(); {
		case errors.Is(err, io.EOF):
		case err != nil:
			return err
		case marker != dbfEndOfFile:
			return fmt.Errorf("%d: invalid end of file marker", marker)
		}
		return io.EOF
	}

	if _, err := io.ReadFull(s.reader, s.recordData); err != nil {
		return fmt.Errorf("record %d: %w", s.scanRecords, unexpectedEOF(err))
	}
	switch flag := s.recordData[0]; flag {
	case dbfRecordValid, dbfRecordDeleted:
		s.scanRecords++
		return nil
	case dbfEndOfFile:
		return fmt.Errorf("record %d: unexpected end of file marker", s.scanRecords)
	default:
		return fmt.Errorf("record %d: %d: invalid record flag", s.scanRecords, flag)
	}
}

// Header returns the header of the .dbf file.
func (s *ScannerDBF) Header() *DBFHeader {
	return s.header
}

// FieldDescriptors returns the field descriptors of the .dbf file.
func (s *ScannerDBF) FieldDescriptors() []*DBFFieldDescriptor {
	return s.fieldDescriptors
}

// A Scanner reads the records of a Shapefile's .shp, .shx, and .dbf files
// together, one at a time.
//
// Records are matched by their position in each file. Records that the .shp
// file skips are returned with a nil *SHPRecord, so attributes stay aligned
// with the remaining geometries.
type Scanner struct {
	scannerSHP    *ScannerSHP
	scannerSHX    *ScannerSHX
	scannerDBF    *ScannerDBF
	prj           *PRJ
	cpg           *CPG
	closers       []io.Closer
	pendingSHP    *SHPRecord
	pendingSHPPos int
	shpDone       bool
	scanRecords   int
	err           error
}

// NewScannerFromBasename opens the files of the Shapefile with the given
// basename and returns a Scanner for them. Missing files are ignored. The
// Scanner must be closed.
func NewScannerFromBasename(basename string, options *ReadShapefileOptions) (*Scanner, error) {
	readers := make(map[string]io.Reader)
	var closers []io.Closer
	closeAll := func() {
		for _, closer := range closers {
			closer.Close()
		}
	}
	for _, ext := range []string{".cpg", ".dbf", ".prj", ".shp", ".shx"} {
		file, err := os.Open(basename + ext)
		switch {
		case errors.Is(err, os.ErrNotExist):
			continue
		case err != nil:
			closeAll()
			return nil, err
		}
		readers[ext] = file
		closers = append(closers, file)
	}

	scanner, err := NewScanner(readers, options)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("%s: %w", basename, err)
	}
	return scanner, nil
}

// NewScannerFromZipFile opens a .zip file and returns a Scanner for the
// Shapefile it contains. The Scanner must be closed.
func NewScannerFromZipFile(name string, options *ReadShapefileOptions) (*Scanner, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	fileInfo, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	zipReader, err := zip.NewReader(file, fileInfo.Size())
	if err != nil {
		file.Close()
		return nil, err
	}

	scanner, err := NewScannerFromZipReader(zipReader, options)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	scanner.closers = append(scanner.closers, file)
	return scanner, nil
}

// NewScannerFromZipReader returns a Scanner for the Shapefile in zipReader.
// The Scanner must be closed.
func NewScannerFromZipReader(zipReader *zip.Reader, options *ReadShapefileOptions) (*Scanner, error) {
	zipFiles, err := zipFilesByExt(zipReader)
	if err != nil {
		return nil, err
	}

	readers := make(map[string]io.Reader)
	var closers []io.Closer
	for ext, zipFile := range zipFiles {
		readCloser, err := zipFile.Open()
		if err != nil {
			for _, closer := range closers {
				closer.Close()
			}
			return nil, err
		}
		readers[ext] = readCloser
		closers = append(closers, readCloser)
	}

	scanner, err := NewScanner(readers, options)
	if err != nil {
		for _, closer := range closers {
			closer.Close()
		}
		return nil, err
	}
	return scanner, nil
}

// NewScanner returns a Scanner for the Shapefile component files in readers,
// keyed by extension (".shp", ".shx", ".dbf", ".prj", ".cpg"). Readers that
// implement io.Closer are closed by Close.
func NewScanner(readers map[string]io.Reader, options *ReadShapefileOptions) (*Scanner, error) {
	scanner := &Scanner{}
	for _, reader := range readers {
		if closer, ok := reader.(io.Closer); ok {
			scanner.closers = append(scanner.closers, closer)
		}
	}

	if reader, ok := readers[".cpg"]; ok {
		cpg, err := ReadCPG(reader)
		if err != nil {
			return nil, fmt.Errorf(".cpg: %w", err)
		}
		scanner.cpg = cpg
	}
	if reader, ok := readers[".prj"]; ok {
		prj, err := ReadPRJ(reader)
		if err != nil {
			return nil, fmt.Errorf(".prj: %w", err)
		}
		scanner.prj = prj
	}

	var g errgroup.Group
	if reader, ok := readers[".shp"]; ok {
		g.Go(func() (err error) {
			if scanner.scannerSHP, err = NewScannerSHP(reader, options.shpOptions()); err != nil {
				return fmt.Errorf(".shp: %w", err)
			}
			return nil
		})
	}
	if reader, ok := readers[".shx"]; ok {
		g.Go(func() (err error) {
			if scanner.scannerSHX, err = NewScannerSHX(reader); err != nil {
				return fmt.Errorf(".shx: %w", err)
			}
			return nil
		})
	}
	if reader, ok := readers[".dbf"]; ok {
		g.Go(func() (err error) {
			if scanner.scannerDBF, err = NewScannerDBF(reader, options.dbfOptions(scanner.cpg)); err != nil {
				return fmt.Errorf(".dbf: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scanner, nil
}

// Scan returns the next record of each component file. A result is nil if
// the component file is missing, and the *SHPRecord is also nil if the .shp
// record was skipped. It returns io.EOF after the last record.
func (s *Scanner) Scan() (*SHPRecord, *SHXRecord, DBFRecord, error) {
	if s.err != nil {
		return nil, nil, nil, s.err
	}

	position := s.scanRecords + 1
	more, ended := false, false

	var recordSHX *SHXRecord
	if s.scannerSHX != nil {
		switch record, err := s.scannerSHX.Scan(); {
		case errors.Is(err, io.EOF):
			ended = true
		case err != nil:
			return s.fail(fmt.Errorf(".shx: %w", err))
		default:
			recordSHX = record
			more = true
		}
	}

	var recordDBF DBFRecord
	if s.scannerDBF != nil {
		switch record, err := s.scannerDBF.Scan(); {
		case errors.Is(err, io.EOF):
			ended = true
		case err != nil:
			return s.fail(fmt.Errorf(".dbf: %w", err))
		default:
			recordDBF = record
			more = true
		}
	}

	recordSHP, err := s.scanSHP(position)
	if err != nil {
		return s.fail(fmt.Errorf(".shp: %w", err))
	}
	if recordSHP != nil || s.pendingSHP != nil {
		more = true
	}

	switch {
	case !more:
		s.err = io.EOF
		return nil, nil, nil, s.err
	case ended:
		return s.fail(errInconsistentNumRecords)
	}
	s.scanRecords = position
	return recordSHP, recordSHX, recordDBF, nil
}

// scanSHP returns the .shp record at position, or nil if it was skipped. The
// .shp scanner reads ahead over skipped records, so the next record is kept
// until its position is reached.
func (s *Scanner) scanSHP(position int) (*SHPRecord, error) {
	if s.scannerSHP == nil {
		return nil, nil
	}
	if s.pendingSHP == nil && !s.shpDone {
		switch record, err := s.scannerSHP.Scan(); {
		case errors.Is(err, io.EOF):
			s.shpDone = true
		case err != nil:
			return nil, err
		default:
			s.pendingSHP = record
			s.pendingSHPPos = s.scannerSHP.ScannedRecords()
		}
	}
	if s.pendingSHP != nil && s.pendingSHPPos == position {
		record := s.pendingSHP
		s.pendingSHP = nil
		return record, nil
	}
	return nil, nil
}

func (s *Scanner) fail(err error) (*SHPRecord, *SHXRecord, DBFRecord, error) {
	s.err = err
	return nil, nil, nil, err
}

// Discard skips the next n records without decoding them and returns the
// number of records skipped. Skipping .shp records needs the offsets in the
// .shx file. It returns io.EOF if fewer than n records remain.
func (s *Scanner) Discard(n int) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	switch {
	case s.scannerSHP != nil && s.scannerSHX == nil:
		return 0, errors.New("cannot discard .shp records without .shx file")
	case s.scannerSHX == nil && s.scannerDBF == nil:
		return 0, nil
	}

	var lastSHX *SHXRecord
	discarded := 0
	for ; discarded < n; discarded++ {
		ended := false
		if s.scannerSHX != nil {
			switch record, err := s.scannerSHX.Scan(); {
			case errors.Is(err, io.EOF):
				ended = true
			case err != nil:
				s.err = fmt.Errorf(".shx: %w", err)
				return discarded, s.err
			default:
				lastSHX = record
			}
		}
		if s.scannerDBF != nil {
			switch err := s.scannerDBF.discard(); {
			case errors.Is(err, io.EOF):
				if s.scannerSHX != nil && !ended {
					s.err = errInconsistentNumRecords
					return discarded, s.err
				}
				ended = true
			case err != nil:
				s.err = fmt.Errorf(".dbf: %w", err)
				return discarded, s.err
			case ended:
				s.err = errInconsistentNumRecords
				return discarded, s.err
			}
		}
		if ended {
			break
		}
	}

	position := s.scanRecords + discarded
	if s.scannerSHP != nil && lastSHX != nil {
		if s.pendingSHP != nil && s.pendingSHPPos <= position {
			s.pendingSHP = nil
		}
		if s.pendingSHP == nil && !s.shpDone {
			if err := s.scannerSHP.discardTo(lastSHX.Offset+8+lastSHX.ContentLength, position); err != nil {
				s.err = fmt.Errorf(".shp: %w", err)
				return discarded, s.err
			}
		}
	}
	s.scanRecords = position

	if discarded < n {
		s.err = io.EOF
		return discarded, s.err
	}
	return discarded, nil
}

// Close closes the component files.
func (s *Scanner) Close() error {
	var err error
	for _, closer := range s.closers {
		err = errors.Join(err, closer.Close())
	}
	return err
}

// ScannedRecords returns the number of records scanned or discarded.
func (s *Scanner) ScannedRecords() int {
	return s.scanRecords
}

// EstimatedRecords returns the number of records given by the .dbf or .shx
// header, or zero if neither is present.
func (s *Scanner) EstimatedRecords() int {
	var estimated int
	if s.scannerDBF != nil {
		estimated = s.scannerDBF.header.Records
	}
	if s.scannerSHX != nil {
		estimated = max(estimated, (2*s.scannerSHX.header.FileLength-headerSize)/8)
	}
	return estimated
}

// Warnings returns the warnings reported by the .shp file so far.
func (s *Scanner) Warnings() []*Warning {
	if s.scannerSHP == nil {
		return nil
	}
	return s.scannerSHP.Warnings()
}

// SHPHeader returns the header of the .shp file, or nil if it is missing.
func (s *Scanner) SHPHeader() *SHxHeader {
	if s.scannerSHP == nil {
		return nil
	}
	return s.scannerSHP.Header()
}

// SHXHeader returns the header of the .shx file, or nil if it is missing.
func (s *Scanner) SHXHeader() *SHxHeader {
	if s.scannerSHX == nil {
		return nil
	}
	return s.scannerSHX.Header()
}

// DBFHeader returns the header of the .dbf file, or nil if it is missing.
func (s *Scanner) DBFHeader() *DBFHeader {
	if s.scannerDBF == nil {
		return nil
	}
	return s.scannerDBF.Header()
}

func (s *Scanner) DBFFieldDescriptors() []*DBFFieldDescriptor {
	if s.scannerDBF == nil {
		return nil
	}
	return s.scannerDBF.FieldDescriptors()
}

func (s *Scanner) Charset() string {
	if s.cpg == nil {
		return ""
	}
	return s.cpg.Charset
}

func (s *Scanner) Projection() string {
	if s.prj == nil {
		return ""
	}
	return s.prj.Projection
}

// ReadScanner reads the remaining records of scanner into a Shapefile.
func ReadScanner(scanner *Scanner) (*Shapefile, error) {
	shapefile := &Shapefile{
		PRJ: scanner.prj,
		CPG: scanner.cpg,
	}
	if header := scanner.SHPHeader(); header != nil {
		shapefile.SHP = &SHP{SHxHeader: *header}
	}
	if header := scanner.SHXHeader(); header != nil {
		shapefile.SHX = &SHX{
			SHxHeader: *header,
			Warnings:  scanner.scannerSHX.Warnings(),
		}
	}
	if header := scanner.DBFHeader(); header != nil {
		shapefile.DBF = &DBF{
			DBFHeader:        *header,
			FieldDescriptors: scanner.DBFFieldDescriptors(),
		}
	}

	for {
		recordSHP, recordSHX, recordDBF, err := scanner.Scan()
		switch {
		case errors.Is(err, io.EOF):
			if shapefile.SHP != nil {
				shapefile.SHP.Warnings = scanner.Warnings()
			}
			return shapefile, nil
		case err != nil:
			return nil, fmt.Errorf("record %d: %w", scanner.ScannedRecords()+1, err)
		}
		if recordSHP != nil {
			shapefile.SHP.Records = append(shapefile.SHP.Records, recordSHP)
		}
		if recordSHX != nil {
			shapefile.SHX.Records = append(shapefile.SHX.Records, *recordSHX)
		}
		if shapefile.DBF != nil {
			shapefile.DBF.Records = append(shapefile.DBF.Records, recordDBF)
		}
	}
}
