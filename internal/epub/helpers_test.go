package epub

import (
	"archive/zip"
	"bytes"
	"testing"
)

// zipEntry is one file written into a test archive.
type zipEntry struct {
	Name string
	Body string
}

// buildZip writes entries, in order, into an in-memory zip archive.
func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, e := range entries {
		method := zip.Deflate
		if e.Name == "mimetype" {
			method = zip.Store
		}
		fw, err := w.CreateHeader(&zip.FileHeader{Name: e.Name, Method: method})
		if err != nil {
			t.Fatalf("failed to create %s: %v", e.Name, err)
		}
		if _, err := fw.Write([]byte(e.Body)); err != nil {
			t.Fatalf("failed to write %s: %v", e.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

const testContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testPackageXML = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>  Test Book  </dc:title>
    <dc:creator opf:role="aut">John Doe</dc:creator>
    <dc:language>en</dc:language>
    <dc:identifier id="bookid">urn:isbn:1234567890</dc:identifier>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="cover-img" href="images/cover.jpg" media-type="image/jpeg"/>
    <item id="chapter1" href="text/chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="chapter2" href="text/chapter2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="chapter1"/>
    <itemref idref="chapter2" linear="no"/>
  </spine>
</package>`

const testChapterXHTML = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>Chapter 1</title>
  <link rel="stylesheet" type="text/css" href="../css/style.css"/>
</head>
<body><h1>Chapter 1</h1><p>Hello, World!</p><img src="../images/photo.png"/></body>
</html>`

const testCoverBytes = "\xff\xd8\xff\xe0fake-jpeg"

// createTestEPUB returns a minimal valid EPUB with a cover and two chapters.
func createTestEPUB(t *testing.T) []byte {
	t.Helper()
	return buildZip(t,
		zipEntry{"mimetype", "application/epub+zip"},
		zipEntry{"META-INF/container.xml", testContainerXML},
		zipEntry{"OEBPS/content.opf", testPackageXML},
		zipEntry{"OEBPS/images/cover.jpg", testCoverBytes},
		zipEntry{"OEBPS/text/chapter1.xhtml", testChapterXHTML},
		zipEntry{"OEBPS/text/chapter2.xhtml", `<html><body><h2>Notes</h2></body></html>`},
	)
}

// createPackageEPUB wraps a package document at OEBPS/content.opf plus extra entries.
func createPackageEPUB(t *testing.T, opf string, extra ...zipEntry) []byte {
	t.Helper()
	entries := []zipEntry{
		{"mimetype", "application/epub+zip"},
		{"META-INF/container.xml", testContainerXML},
		{"OEBPS/content.opf", opf},
	}
	return buildZip(t, append(entries, extra...)...)
}

func openTestArchive(t *testing.T, data []byte) *Archive {
	t.Helper()
	a, err := OpenArchive(data)
	if err != nil {
		t.Fatalf("OpenArchive() failed: %v", err)
	}
	return a
}

// recordingHandles is a HandleFactory that remembers what it was given.
type recordingHandles struct {
	data      [][]byte
	mediaType []string
}

func (r *recordingHandles) Create(data []byte, mediaType string) string {
	r.data = append(r.data, data)
	r.mediaType = append(r.mediaType, mediaType)
	return "blob:test/" + string(rune('0'+len(r.data)))
}
