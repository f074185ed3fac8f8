package epub

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Chapter represents one spine item loaded for the reading view
type Chapter struct {
	Index     int      `json:"index"`
	ID        string   `json:"id"`   // Manifest ID
	Path      string   `json:"path"` // Archive path
	Linear    string   `json:"linear"`
	Title     string   `json:"title,omitempty"`
	Body      string   `json:"body"`      // Inner HTML of <body>
	CSSLinks  []string `json:"cssLinks"`  // Referenced CSS file paths
	ImageRefs []string `json:"imageRefs"` // Referenced image paths
}

// LoadChapter loads the spine item at index and parses it as XHTML.
// Referenced stylesheets and images are resolved to archive paths.
func LoadChapter(a *Archive, packagePath string, pkg *Package, index int) (*Chapter, error) {
	if index < 0 || index >= len(pkg.Spine) {
		return nil, fmt.Errorf("%w: %d of %d", ErrChapterOutOfRange, index, len(pkg.Spine))
	}

	spineItem := pkg.Spine[index]
	item, ok := pkg.Item(spineItem.IDRef)
	if !ok {
		return nil, fmt.Errorf("%w: spine item %q not in manifest", ErrEntryNotFound, spineItem.IDRef)
	}

	href, _, _ := strings.Cut(item.Href, "#")
	chapterPath := resolvePath(strings.TrimSuffix(packageDir(packagePath), "/"), href)

	content, err := a.ReadBinary(chapterPath)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XHTML %s: %w", chapterPath, err)
	}

	body, err := doc.Find("body").First().Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render body of %s: %w", chapterPath, err)
	}

	c := &Chapter{
		Index:     index,
		ID:        item.ID,
		Path:      chapterPath,
		Linear:    spineItem.Linear,
		Title:     chapterTitle(doc),
		Body:      strings.TrimSpace(body),
		CSSLinks:  []string{},
		ImageRefs: []string{},
	}

	// Get base directory for resolving relative paths
	baseDir := path.Dir(chapterPath)

	doc.Find("link[rel='stylesheet']").Each(func(i int, s *goquery.Selection) {
		if href, exists := s.Attr("href"); exists {
			c.CSSLinks = append(c.CSSLinks, resolvePath(baseDir, href))
		}
	})

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		if src, exists := s.Attr("src"); exists {
			c.ImageRefs = append(c.ImageRefs, resolvePath(baseDir, src))
		}
	})

	return c, nil
}

// chapterTitle prefers the document <title> and falls back to the first heading.
func chapterTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1, h2, h3").First().Text())
}

// resolvePath resolves a relative path against a base directory
// baseDir: base directory (e.g., "text" for "text/chapter1.xhtml")
// relPath: relative path (e.g., "../images/photo.jpg")
// returns: resolved path (e.g., "images/photo.jpg")
func resolvePath(baseDir, relPath string) string {
	if baseDir == "" || baseDir == "." {
		return path.Clean(relPath)
	}
	return path.Clean(path.Join(baseDir, relPath))
}
