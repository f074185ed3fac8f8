package epub

// Well-known metadata keys.
const (
	MetaTitle       = "title"
	MetaLanguage    = "language"
	MetaCreator     = "creator"
	MetaIdentifier  = "identifier"
	MetaPublisher   = "publisher"
	MetaDate        = "date"
	MetaDescription = "description"
	MetaRights      = "rights"
	MetaSubject     = "subject"
)

// Metadata maps metadata keys to values. A missing key means the element was
// not present; a present key may still hold an empty string.
type Metadata map[string]string

// Get returns the value for key and whether it was present.
func (m Metadata) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Title returns the book title, if present.
func (m Metadata) Title() (string, bool) {
	return m.Get(MetaTitle)
}

// ManifestItem represents an item in the manifest.
// Href is relative to the package document's directory.
type ManifestItem struct {
	ID        string `json:"id"`
	Href      string `json:"href"`
	MediaType string `json:"mediaType"`
}

// Linear values of a spine itemref.
const (
	LinearYes = "yes"
	LinearNo  = "no"
)

// SpineItem represents an item reference in the spine
type SpineItem struct {
	IDRef  string `json:"idref"`
	Linear string `json:"linear"`
}

// Package is the parsed package document. Manifest and Spine keep document order.
type Package struct {
	Metadata Metadata       `json:"metadata"`
	Manifest []ManifestItem `json:"manifest"`
	Spine    []SpineItem    `json:"spine"`
}

// Item returns the manifest item with the given id.
func (p *Package) Item(id string) (ManifestItem, bool) {
	for _, item := range p.Manifest {
		if item.ID == id {
			return item, true
		}
	}
	return ManifestItem{}, false
}

// Cover describes a resolved cover image.
type Cover struct {
	ManifestID string
	Path       string // archive entry path
	MediaType  string
	URL        string // process-local handle, see HandleFactory
}

// Book is the result of decoding an EPUB byte buffer.
type Book struct {
	Package Package
	// PackagePath is the archive path of the package document.
	PackagePath string
	// CoverURL is the cover handle, or "" when the book has no resolvable cover.
	CoverURL string
	Cover    *Cover
}
