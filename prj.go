package shapefile

import (
	"archive/zip"
	"io"
	"strings"
)

// A PRJ is a .prj file. The projection is kept as opaque WKT.
type PRJ struct {
	Projection string
}

// ReadPRJ reads a PRJ from an io.Reader.
func ReadPRJ(r io.Reader) (*PRJ, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &PRJ{
		Projection: strings.TrimSpace(string(data)),
	}, nil
}

// ReadPRJZipFile reads a PRJ from a *zip.File.
func ReadPRJZipFile(zipFile *zip.File) (*PRJ, error) {
	readCloser, err := zipFile.Open()
	if err != nil {
		return nil, err
	}
	defer readCloser.Close()
	return ReadPRJ(readCloser)
}

// WriteTo writes p to w.
func (p *PRJ) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, p.Projection)
	return int64(n), err
}
