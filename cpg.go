package shapefile

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// A CPG is a .cpg file, which names the character set of the .dbf file.
type CPG struct {
	Charset string
}

// ReadCPG reads a CPG from an io.Reader.
func ReadCPG(r io.Reader) (*CPG, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	label := strings.ToLower(strings.TrimSpace(string(data)))
	enc, name := charset.Lookup(label)
	if enc == nil {
		return nil, fmt.Errorf("unknown charset '%s'", label)
	}
	return &CPG{
		Charset: name,
	}, nil
}

// ReadCPGZipFile reads a CPG from a *zip.File.
func ReadCPGZipFile(zipFile *zip.File) (*CPG, error) {
	readCloser, err := zipFile.Open()
	if err != nil {
		return nil, err
	}
	defer readCloser.Close()
	cpg, err := ReadCPG(readCloser)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", zipFile.Name, err)
	}
	return cpg, nil
}

// WriteTo writes c to w.
func (c *CPG) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, c.Charset)
	return int64(n), err
}
