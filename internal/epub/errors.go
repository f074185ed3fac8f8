package epub

import "errors"

// Sentinel errors returned by the epub package. Callers tell failure kinds
// apart with errors.Is; the decoder returns stage errors as-is.
var (
	// ErrInvalidArchive indicates the input bytes are not a readable zip container.
	ErrInvalidArchive = errors.New("epub: invalid zip archive")

	// ErrEntryNotFound indicates a path is not present in the archive.
	ErrEntryNotFound = errors.New("epub: entry not found in archive")

	ErrContainerMissing   = errors.New("epub: META-INF/container.xml not found")
	ErrContainerParse     = errors.New("epub: failed to parse container.xml")
	ErrRootfileMissing    = errors.New("epub: no rootfile element in container.xml")
	ErrPackagePathMissing = errors.New("epub: rootfile has no full-path")

	ErrPackageMissing        = errors.New("epub: package document not found")
	ErrPackageParse          = errors.New("epub: failed to parse package document")
	ErrPackageElementMissing = errors.New("epub: package element not found")

	// ErrChapterOutOfRange indicates a spine index outside the reading order.
	ErrChapterOutOfRange = errors.New("epub: chapter index out of range")
)
