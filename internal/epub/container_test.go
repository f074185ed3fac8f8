package epub

import (
	"errors"
	"testing"
)

func TestResolveContainer(t *testing.T) {
	a := openTestArchive(t, createTestEPUB(t))

	got, err := ResolveContainer(a)
	if err != nil {
		t.Fatalf("ResolveContainer() failed: %v", err)
	}

	expected := "OEBPS/content.opf"
	if got != expected {
		t.Errorf("ResolveContainer() = %q, want %q", got, expected)
	}
}

func TestResolveContainer_FirstRootfileWins(t *testing.T) {
	a := openTestArchive(t, buildZip(t, zipEntry{"META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="first/package.opf" media-type="application/oebps-package+xml"/>
    <rootfile full-path="second/package.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`}))

	got, err := ResolveContainer(a)
	if err != nil {
		t.Fatalf("ResolveContainer() failed: %v", err)
	}
	if got != "first/package.opf" {
		t.Errorf("ResolveContainer() = %q, want %q", got, "first/package.opf")
	}
}

func TestResolveContainer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		entries []zipEntry
		want    error
	}{
		{
			name:    "missing container",
			entries: []zipEntry{{"mimetype", "application/epub+zip"}},
			want:    ErrContainerMissing,
		},
		{
			name:    "malformed xml",
			entries: []zipEntry{{"META-INF/container.xml", `<container><rootfiles></container>`}},
			want:    ErrContainerParse,
		},
		{
			name:    "empty document",
			entries: []zipEntry{{"META-INF/container.xml", ``}},
			want:    ErrContainerParse,
		},
		{
			name:    "no rootfile",
			entries: []zipEntry{{"META-INF/container.xml", `<container><rootfiles/></container>`}},
			want:    ErrRootfileMissing,
		},
		{
			name:    "no full-path",
			entries: []zipEntry{{"META-INF/container.xml", `<container><rootfiles><rootfile media-type="application/oebps-package+xml"/></rootfiles></container>`}},
			want:    ErrPackagePathMissing,
		},
		{
			name:    "empty full-path",
			entries: []zipEntry{{"META-INF/container.xml", `<container><rootfiles><rootfile full-path=""/></rootfiles></container>`}},
			want:    ErrPackagePathMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := openTestArchive(t, buildZip(t, tt.entries...))
			_, err := ResolveContainer(a)
			if !errors.Is(err, tt.want) {
				t.Errorf("ResolveContainer() error = %v, want %v", err, tt.want)
			}
		})
	}
}
