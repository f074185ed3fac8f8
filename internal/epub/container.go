package epub

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
)

// containerPath is the well-known location of container.xml in an EPUB archive.
const containerPath = "META-INF/container.xml"

// ResolveContainer reads META-INF/container.xml and returns the full-path of
// its first rootfile. Additional renditions are ignored.
func ResolveContainer(a *Archive) (string, error) {
	content, err := a.ReadText(containerPath)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return "", ErrContainerMissing
		}
		return "", err
	}

	doc, err := parseXML(content)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrContainerParse, err)
	}

	rootfile := doc.FindElement("//rootfile")
	if rootfile == nil {
		return "", ErrRootfileMissing
	}

	fullPath := rootfile.SelectAttrValue("full-path", "")
	if fullPath == "" {
		return "", ErrPackagePathMissing
	}

	return fullPath, nil
}

// parseXML parses an XML document strictly.
func parseXML(content string) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(content); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, errors.New("no root element")
	}
	return doc, nil
}
