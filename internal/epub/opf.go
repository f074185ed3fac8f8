package epub

import (
	"errors"
	"fmt"
	"strings"
)

// dcPrefix is the conventional prefix of Dublin Core metadata elements.
const dcPrefix = "dc"

// metadataKeys lists the metadata elements extracted from the package document.
var metadataKeys = []string{
	MetaTitle,
	MetaLanguage,
	MetaCreator,
	MetaIdentifier,
	MetaPublisher,
	MetaDate,
	MetaDescription,
	MetaRights,
	MetaSubject,
}

// packageDocument is a parsed package document plus the cover id declared in
// its metadata, if any.
type packageDocument struct {
	pkg         Package
	coverMetaID string
}

// ParsePackage reads and parses the package document at packagePath.
func ParsePackage(a *Archive, packagePath string) (*Package, error) {
	doc, err := parsePackageDocument(a, packagePath)
	if err != nil {
		return nil, err
	}
	return &doc.pkg, nil
}

func parsePackageDocument(a *Archive, packagePath string) (*packageDocument, error) {
	content, err := a.ReadText(packagePath)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPackageMissing, packagePath)
		}
		return nil, err
	}

	doc, err := parseXML(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPackageParse, err)
	}

	root := doc.Root()
	pkgElement := root
	if !matchName(root, "", "package") {
		pkgElement = findFirst(root, "", "package")
	}
	if pkgElement == nil {
		return nil, ErrPackageElementMissing
	}

	result := &packageDocument{
		pkg: Package{
			Metadata: Metadata{},
			Manifest: []ManifestItem{},
			Spine:    []SpineItem{},
		},
	}

	if metadata := findFirst(pkgElement, "", "metadata"); metadata != nil {
		for _, key := range metadataKeys {
			el := findQualified(metadata, dcPrefix, key)
			if el == nil {
				continue
			}
			text := textContent(el)
			if text == "" {
				continue
			}
			result.pkg.Metadata[key] = strings.TrimSpace(text)
		}

		for _, meta := range findAll(metadata, "", "meta") {
			if meta.SelectAttrValue("name", "") == "cover" {
				result.coverMetaID = meta.SelectAttrValue("content", "")
				break
			}
		}
	}

	if manifest := findFirst(pkgElement, "", "manifest"); manifest != nil {
		for _, item := range findAll(manifest, "", "item") {
			id := item.SelectAttrValue("id", "")
			href := item.SelectAttrValue("href", "")
			mediaType := item.SelectAttrValue("media-type", "")
			if id == "" || href == "" || mediaType == "" {
				continue
			}
			result.pkg.Manifest = append(result.pkg.Manifest, ManifestItem{
				ID:        id,
				Href:      href,
				MediaType: mediaType,
			})
		}
	}

	if spine := findFirst(pkgElement, "", "spine"); spine != nil {
		for _, itemRef := range findAll(spine, "", "itemref") {
			idref := itemRef.SelectAttrValue("idref", "")
			if idref == "" {
				continue
			}
			linear := LinearYes
			if strings.EqualFold(strings.TrimSpace(itemRef.SelectAttrValue("linear", "")), LinearNo) {
				linear = LinearNo
			}
			result.pkg.Spine = append(result.pkg.Spine, SpineItem{
				IDRef:  idref,
				Linear: linear,
			})
		}
	}

	return result, nil
}

// packageDir returns the directory of the package document including the
// trailing slash, or "" when the document sits at the archive root.
func packageDir(packagePath string) string {
	if i := strings.LastIndex(packagePath, "/"); i >= 0 {
		return packagePath[:i+1]
	}
	return ""
}
