package epub

// Decoder converts raw EPUB bytes into a Book.
type Decoder struct {
	handles HandleFactory
}

// NewDecoder creates a decoder that materializes covers through handles.
// A nil factory falls back to data URLs.
func NewDecoder(handles HandleFactory) *Decoder {
	if handles == nil {
		handles = DataURLs{}
	}
	return &Decoder{handles: handles}
}

// Decode opens the archive, resolves the container and parses the package
// document. Errors from each stage are returned unchanged.
func (d *Decoder) Decode(data []byte) (*Book, error) {
	a, err := OpenArchive(data)
	if err != nil {
		return nil, err
	}
	return d.DecodeArchive(a)
}

// DecodeArchive decodes an already opened archive.
func (d *Decoder) DecodeArchive(a *Archive) (*Book, error) {
	packagePath, err := ResolveContainer(a)
	if err != nil {
		return nil, err
	}

	doc, err := parsePackageDocument(a, packagePath)
	if err != nil {
		return nil, err
	}

	book := &Book{
		Package:     doc.pkg,
		PackagePath: packagePath,
	}

	if cover, data := readCover(a, &book.Package, packagePath, doc.coverMetaID); cover != nil {
		cover.URL = d.handles.Create(data, cover.MediaType)
		book.Cover = cover
		book.CoverURL = cover.URL
	}

	return book, nil
}
