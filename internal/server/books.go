package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yuanying/lazyreader/internal/epub"
	"github.com/yuanying/lazyreader/internal/library"
)

const coversPath = "/covers/"

type bookSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	CoverURL string `json:"coverUrl"`
}

type bookDetail struct {
	ID       string              `json:"id"`
	Metadata epub.Metadata       `json:"metadata"`
	Manifest []epub.ManifestItem `json:"manifest"`
	Spine    []epub.SpineItem    `json:"spine"`
	CoverURL string              `json:"coverUrl"`
}

// coverLink turns a cover handle into the URL the cover is served under.
func coverLink(handle string) string {
	if handle == "" {
		return ""
	}
	return coversPath + handle
}

// listBooks handles GET /api/books?q=
func (s *Server) listBooks(c *gin.Context) {
	summaries, err := s.lib.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.replaceListing(summaries)

	out := make([]bookSummary, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, bookSummary{ID: sum.ID, Title: sum.Title, CoverURL: coverLink(sum.CoverURL)})
	}
	c.JSON(http.StatusOK, out)
}

// addBook handles POST /api/books with a multipart "file" field.
func (s *Server) addBook(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}

	mediaType := fh.Header.Get("Content-Type")
	if !library.IsEpubMediaType(mediaType) {
		s.respondError(c, library.ErrUnsupportedMediaType)
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.respondError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.respondError(c, err)
		return
	}

	id, err := s.lib.Add(c.Request.Context(), fh.Filename, mediaType, data)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// showBook handles GET /api/books/:id and makes the book the open one.
func (s *Server) showBook(c *gin.Context) {
	id := c.Param("id")
	book, err := s.lib.Open(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.replaceReaderCover(book.CoverURL)

	detail := bookDetail{
		ID:       id,
		Metadata: book.Package.Metadata,
		Manifest: book.Package.Manifest,
		Spine:    book.Package.Spine,
		CoverURL: coverLink(book.CoverURL),
	}
	if detail.Metadata == nil {
		detail.Metadata = epub.Metadata{}
	}
	if detail.Manifest == nil {
		detail.Manifest = []epub.ManifestItem{}
	}
	if detail.Spine == nil {
		detail.Spine = []epub.SpineItem{}
	}
	c.JSON(http.StatusOK, detail)
}

// downloadBook handles GET /api/books/:id/file
func (s *Server) downloadBook(c *gin.Context) {
	book, err := s.lib.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, library.EpubMediaType, book.EpubBlob)
}

// showChapter handles GET /api/books/:id/chapters/:index
func (s *Server) showChapter(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chapter index"})
		return
	}

	chapter, err := s.lib.Chapter(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chapter)
}

// removeBook handles DELETE /api/books/:id
func (s *Server) removeBook(c *gin.Context) {
	if err := s.lib.Remove(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// decodeErrors are the failures of a single stored book's archive.
var decodeErrors = []error{
	epub.ErrInvalidArchive,
	epub.ErrEntryNotFound,
	epub.ErrContainerMissing,
	epub.ErrContainerParse,
	epub.ErrRootfileMissing,
	epub.ErrPackagePathMissing,
	epub.ErrPackageMissing,
	epub.ErrPackageParse,
	epub.ErrPackageElementMissing,
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, library.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, library.ErrBookNotFound), errors.Is(err, epub.ErrChapterOutOfRange):
		return http.StatusNotFound
	}
	for _, target := range decodeErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
