// Package shapefile reads and writes ESRI Shapefiles.
//
// Geometries are represented with github.com/twpayne/go-geom. Records that
// cannot be decoded are skipped and reported as warnings rather than failing
// the whole file.
//
// A record whose shape type differs from the shape type in the file header is
// reported with a WarningShapeTypeMismatch and, by default, still decoded
// according to its own shape type, so files with mixed geometries written by
// WriteSHP can be read back. Set ReadSHPOptions.StrictShapeType to skip such
// records instead.
//
// See https://support.esri.com/en/white-paper/279.
package shapefile

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/twpayne/go-geom"
	"golang.org/x/sync/errgroup"
)

var errInconsistentNumRecords = errors.New("inconsistent number of records")

// A Shapefile is an ESRI Shapefile.
type Shapefile struct {
	DBF *DBF
	PRJ *PRJ
	CPG *CPG
	SHP *SHP
	SHX *SHX
}

// ReadShapefileOptions are options to ReadFS, ReadZipFile, and ReadZipReader.
type ReadShapefileOptions struct {
	DBF *ReadDBFOptions
	SHP *ReadSHPOptions
}

// WriteShapefileOptions are options to WriteFiles.
type WriteShapefileOptions struct {
	// Projection is written to the .prj file if it is not empty.
	Projection string
	// Charset is written to the .cpg file if it is not empty.
	Charset string
}

func (o *ReadShapefileOptions) dbfOptions(cpg *CPG) *ReadDBFOptions {
	var options ReadDBFOptions
	if o != nil && o.DBF != nil {
		options = *o.DBF
	}
	if options.Charset == "" && cpg != nil {
		options.Charset = cpg.Charset
	}
	return &options
}

func (o *ReadShapefileOptions) shpOptions() *ReadSHPOptions {
	if o == nil {
		return nil
	}
	return o.SHP
}

// ReadFS reads a Shapefile from fsys with the given basename. Missing
// component files are left nil. The charset named in the .cpg file is used for
// the .dbf file unless options set one.
func ReadFS(fsys fs.FS, basename string, options *ReadShapefileOptions) (*Shapefile, error) {
	cpg, err := readFSFile(fsys, basename+".cpg", ReadCPG)
	if err != nil {
		return nil, err
	}

	shapefile := &Shapefile{
		CPG: cpg,
	}
	var g errgroup.Group
	g.Go(func() (err error) {
		shapefile.DBF, err = readFSFile(fsys, basename+".dbf", func(r io.Reader) (*DBF, error) {
			return ReadDBF(r, options.dbfOptions(cpg))
		})
		return
	})
	g.Go(func() (err error) {
		shapefile.PRJ, err = readFSFile(fsys, basename+".prj", ReadPRJ)
		return
	})
	g.Go(func() (err error) {
		shapefile.SHP, err = readFSFile(fsys, basename+".shp", func(r io.Reader) (*SHP, error) {
			return ReadSHP(r, options.shpOptions())
		})
		return
	})
	g.Go(func() (err error) {
		shapefile.SHX, err = readFSFile(fsys, basename+".shx", ReadSHX)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := shapefile.checkNumRecords(); err != nil {
		return nil, err
	}
	return shapefile, nil
}

// readFSFile reads name from fsys with read. It returns the zero value if
// name does not exist.
func readFSFile[T any](fsys fs.FS, name string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	file, err := fsys.Open(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return zero, nil
	case err != nil:
		return zero, err
	}
	defer file.Close()
	value, err := read(file)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", name, err)
	}
	return value, nil
}

// ReadZipFile reads a Shapefile from a .zip file.
func ReadZipFile(name string, options *ReadShapefileOptions) (*Shapefile, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, err
	}

	zipReader, err := zip.NewReader(file, fileInfo.Size())
	if err != nil {
		return nil, err
	}

	shapefile, err := ReadZipReader(zipReader, options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return shapefile, nil
}

// ReadZipReader reads a Shapefile from a *zip.Reader. The archive must
// contain at most one file of each extension, ignoring __MACOSX directories.
func ReadZipReader(zipReader *zip.Reader, options *ReadShapefileOptions) (*Shapefile, error) {
	zipFiles, err := zipFilesByExt(zipReader)
	if err != nil {
		return nil, err
	}

	shapefile := &Shapefile{}
	if cpgFile := zipFiles[".cpg"]; cpgFile != nil {
		if shapefile.CPG, err = ReadCPGZipFile(cpgFile); err != nil {
			return nil, err
		}
	}
	if dbfFile := zipFiles[".dbf"]; dbfFile != nil {
		if shapefile.DBF, err = ReadDBFZipFile(dbfFile, options.dbfOptions(shapefile.CPG)); err != nil {
			return nil, err
		}
	}
	if prjFile := zipFiles[".prj"]; prjFile != nil {
		if shapefile.PRJ, err = ReadPRJZipFile(prjFile); err != nil {
			return nil, err
		}
	}
	if shpFile := zipFiles[".shp"]; shpFile != nil {
		if shapefile.SHP, err = ReadSHPZipFile(shpFile, options.shpOptions()); err != nil {
			return nil, err
		}
	}
	if shxFile := zipFiles[".shx"]; shxFile != nil {
		if shapefile.SHX, err = ReadSHXZipFile(shxFile); err != nil {
			return nil, err
		}
	}

	if err := shapefile.checkNumRecords(); err != nil {
		return nil, err
	}
	return shapefile, nil
}

// zipFilesByExt returns the files in zipReader keyed by lowercase extension,
// ignoring __MACOSX directories. It returns an error if there is more than one
// file with the same extension.
func zipFilesByExt(zipReader *zip.Reader) (map[string]*zip.File, error) {
	zipFiles := make(map[string]*zip.File)
	for _, zipFile := range zipReader.File {
		if isMacOSXPath(zipFile.Name) {
			continue
		}
		switch ext := strings.ToLower(path.Ext(zipFile.Name)); ext {
		case ".cpg", ".dbf", ".prj", ".shp", ".shx":
			if _, ok := zipFiles[ext]; ok {
				return nil, fmt.Errorf("too many %s files", ext)
			}
			zipFiles[ext] = zipFile
		}
	}
	return zipFiles, nil
}

// checkNumRecords checks that the component files agree on the number of
// records. The .shp file may have fewer records than the others because
// records that cannot be decoded are skipped.
func (s *Shapefile) checkNumRecords() error {
	if s.DBF != nil && s.SHX != nil && len(s.DBF.Records) != len(s.SHX.Records) ||
		s.SHP != nil && s.SHX != nil && len(s.SHP.Records) > len(s.SHX.Records) ||
		s.SHP != nil && s.DBF != nil && len(s.SHP.Records) > len(s.DBF.Records) {
		return errInconsistentNumRecords
	}
	return nil
}

// NumRecords returns the number of records in s.
func (s *Shapefile) NumRecords() int {
	switch {
	case s.DBF != nil:
		return len(s.DBF.Records)
	case s.SHX != nil:
		return len(s.SHX.Records)
	case s.SHP != nil:
		return len(s.SHP.Records)
	default:
		return 0
	}
}

// Record returns s's ith record's fields and geometry. The geometry is nil if
// the .shp record was skipped.
func (s *Shapefile) Record(i int) (map[string]any, geom.T) {
	var fields map[string]any
	if s.DBF != nil {
		fields = s.DBF.Record(i)
	}
	var g geom.T
	if s.SHP != nil {
		g = s.SHP.RecordByNumber(i + 1)
	}
	return fields, g
}

// WriteFiles writes geoms to basename.shp and basename.shx, and, if options
// set them, basename.prj and basename.cpg.
func WriteFiles(basename string, geoms []geom.T, options *WriteShapefileOptions) error {
	if err := writeFile(basename+".shp", func(w io.Writer) error {
		return WriteSHP(w, geoms)
	}); err != nil {
		return err
	}
	if err := writeFile(basename+".shx", func(w io.Writer) error {
		return WriteSHX(w, geoms)
	}); err != nil {
		return err
	}
	if options == nil {
		return nil
	}
	if options.Projection != "" {
		prj := &PRJ{Projection: options.Projection}
		if err := writeFile(basename+".prj", func(w io.Writer) error {
			_, err := prj.WriteTo(w)
			return err
		}); err != nil {
			return err
		}
	}
	if options.Charset != "" {
		cpg := &CPG{Charset: options.Charset}
		if err := writeFile(basename+".cpg", func(w io.Writer) error {
			_, err := cpg.WriteTo(w)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(name string, write func(io.Writer) error) (err error) {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()
	if err := write(file); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
