package epub

import (
	"encoding/base64"
	"path"
	"strings"
)

// HandleFactory turns cover image bytes into a process-local handle that a
// view can display. Handles created by a decode are owned by its caller.
type HandleFactory interface {
	Create(data []byte, mediaType string) string
}

// DataURLs encodes covers as self-contained data URLs. They need no release.
type DataURLs struct{}

// Create implements HandleFactory.
func (DataURLs) Create(data []byte, mediaType string) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// FindCoverItem picks the manifest item holding the cover image.
// Methods are tried in priority order:
//  1. meta name="cover" whose content names an existing manifest item
//  2. manifest item with id "cover" or "cover-image" (case-insensitive)
func FindCoverItem(pkg *Package, metaCoverID string) (ManifestItem, bool) {
	if metaCoverID != "" {
		if item, ok := pkg.Item(metaCoverID); ok {
			return item, true
		}
	}

	for _, item := range pkg.Manifest {
		id := strings.ToLower(item.ID)
		if id == "cover" || id == "cover-image" {
			return item, true
		}
	}

	return ManifestItem{}, false
}

// readCover loads the cover image bytes. A missing entry is not an error: the
// book simply has no cover.
func readCover(a *Archive, pkg *Package, packagePath, metaCoverID string) (*Cover, []byte) {
	item, ok := FindCoverItem(pkg, metaCoverID)
	if !ok {
		return nil, nil
	}

	entry := packageDir(packagePath) + item.Href
	data, err := a.ReadBinary(entry)
	if err != nil {
		// Hrefs such as "../images/cover.jpg" only match once cleaned.
		cleaned := path.Clean(entry)
		if cleaned == entry {
			return nil, nil
		}
		if data, err = a.ReadBinary(cleaned); err != nil {
			return nil, nil
		}
		entry = cleaned
	}

	return &Cover{
		ManifestID: item.ID,
		Path:       entry,
		MediaType:  item.MediaType,
	}, data
}
