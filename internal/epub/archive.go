package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// Archive provides path-addressed access to the entries of an in-memory zip container.
// Paths are matched exactly against entry names.
type Archive struct {
	zipReader *zip.Reader
	files     map[string]*zip.File
}

// OpenArchive opens a zip-formatted byte buffer.
func OpenArchive(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}

	a := &Archive{
		zipReader: zr,
		files:     make(map[string]*zip.File, len(zr.File)),
	}

	for _, f := range zr.File {
		// First entry wins for duplicated names.
		if _, dup := a.files[f.Name]; !dup {
			a.files[f.Name] = f
		}
	}

	return a, nil
}

// Has reports whether the archive contains an entry at path.
func (a *Archive) Has(path string) bool {
	_, ok := a.files[path]
	return ok
}

// Names returns the entry names in archive order.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.zipReader.File))
	for _, f := range a.zipReader.File {
		names = append(names, f.Name)
	}
	return names
}

// ReadBinary reads the contents of an entry.
func (a *Archive) ReadBinary(path string) ([]byte, error) {
	f, ok := a.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, path)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrInvalidArchive, path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrInvalidArchive, path, err)
	}
	return data, nil
}

// ReadText reads an entry as text.
func (a *Archive) ReadText(path string) (string, error) {
	data, err := a.ReadBinary(path)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimPrefix(data, utf8BOM)), nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}
