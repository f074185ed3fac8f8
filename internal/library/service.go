// Package library composes the book store and the EPUB decoder into the
// operations the reader's views need.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yuanying/lazyreader/internal/epub"
	"github.com/yuanying/lazyreader/internal/store"
)

const (
	// EpubMediaType is the only media type accepted on import.
	EpubMediaType = "application/epub+zip"

	// UnknownTitle is shown for books without a title.
	UnknownTitle = "Unknown Title"

	// ErrorTitle marks a book whose archive could not be decoded.
	ErrorTitle = "Erro ao carregar"
)

var (
	ErrUnsupportedMediaType = errors.New("library: only EPUB files are supported")
	ErrBookNotFound         = errors.New("library: book not found")
)

// BookStore is the persistence the library needs.
type BookStore interface {
	Put(ctx context.Context, fileName string, blob []byte) (string, error)
	GetAll(ctx context.Context) ([]store.Book, error)
	GetByID(ctx context.Context, id string) (store.Book, bool, error)
	Remove(ctx context.Context, id string) error
}

// Covers creates and releases cover handles.
type Covers interface {
	epub.HandleFactory
	Revoke(url string)
}

// Summary is the list-view shape of a stored book.
type Summary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	CoverURL string `json:"coverUrl"`
}

// Options configures a Service.
type Options struct {
	// Workers bounds concurrent decodes while listing; <= 0 means unbounded.
	Workers int
	Logger  *slog.Logger
	Metrics *Metrics
}

// Service lists, imports, opens and removes books.
type Service struct {
	store   BookStore
	covers  Covers
	decoder *epub.Decoder
	workers int
	logger  *slog.Logger
	metrics *Metrics
}

// NewService creates a library service.
func NewService(books BookStore, covers Covers, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   books,
		covers:  covers,
		decoder: epub.NewDecoder(covers),
		workers: opts.Workers,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// decodeResult is the outcome of decoding one stored book: either book or err is set.
type decodeResult struct {
	id   string
	book *epub.Book
	err  error
}

func (r decodeResult) summary() Summary {
	if r.err != nil {
		return Summary{ID: r.id, Title: ErrorTitle}
	}

	title, ok := r.book.Package.Metadata.Title()
	if !ok {
		title = UnknownTitle
	}
	return Summary{ID: r.id, Title: title, CoverURL: r.book.CoverURL}
}

// ListSummaries decodes every stored book and returns one summary per book.
// A book that fails to decode yields an ErrorTitle placeholder; it never
// fails the listing. Cover handles in the result belong to the caller, see
// ReleaseSummaries.
func (s *Service) ListSummaries(ctx context.Context) ([]Summary, error) {
	start := time.Now()
	defer s.metrics.observeList(start)

	books, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]decodeResult, len(books))

	var g errgroup.Group
	if s.workers > 0 {
		g.SetLimit(s.workers)
	}
	for i, b := range books {
		i, b := i, b
		g.Go(func() error {
			results[i] = s.decode(b)
			return nil
		})
	}
	_ = g.Wait()

	summaries := make([]Summary, 0, len(results))
	for _, r := range results {
		summaries = append(summaries, r.summary())
	}

	if err := ctx.Err(); err != nil {
		s.ReleaseSummaries(summaries)
		return nil, err
	}

	s.logger.Debug("listed books", "count", len(summaries), "duration", time.Since(start))
	return summaries, nil
}

func (s *Service) decode(b store.Book) decodeResult {
	book, err := s.decoder.Decode(b.EpubBlob)
	s.metrics.observeDecode(err)
	if err != nil {
		s.logger.Warn("failed to decode book", "book_id", b.ID, "error", err)
		return decodeResult{id: b.ID, err: err}
	}
	return decodeResult{id: b.ID, book: book}
}

// Search lists the books whose title contains term, ignoring case.
// An empty term matches every book.
func (s *Service) Search(ctx context.Context, term string) ([]Summary, error) {
	summaries, err := s.ListSummaries(ctx)
	if err != nil {
		return nil, err
	}
	if term == "" {
		return summaries, nil
	}

	needle := strings.ToLower(term)
	matched := summaries[:0:0]
	for _, sum := range summaries {
		if strings.Contains(strings.ToLower(sum.Title), needle) {
			matched = append(matched, sum)
		} else {
			s.Release(sum.CoverURL)
		}
	}
	return matched, nil
}

// Add imports an EPUB. Anything not declared as application/epub+zip is
// rejected before it is stored. It returns the book id.
func (s *Service) Add(ctx context.Context, fileName, mediaType string, data []byte) (string, error) {
	if !IsEpubMediaType(mediaType) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMediaType, mediaType)
	}

	id, err := s.store.Put(ctx, fileName, data)
	if err != nil {
		return "", err
	}
	s.logger.Info("book saved", "book_id", id, "file_name", fileName, "bytes", len(data))
	return id, nil
}

// IsEpubMediaType reports whether mediaType declares an EPUB. Parameters are ignored.
func IsEpubMediaType(mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	return mt == EpubMediaType
}

// Get returns the stored record for id.
func (s *Service) Get(ctx context.Context, id string) (store.Book, error) {
	book, found, err := s.store.GetByID(ctx, id)
	if err != nil {
		return store.Book{}, err
	}
	if !found {
		return store.Book{}, fmt.Errorf("%w: %s", ErrBookNotFound, id)
	}
	return book, nil
}

// Open fetches a book and decodes it for the reading view. The returned
// book's cover handle belongs to the caller.
func (s *Service) Open(ctx context.Context, id string) (*epub.Book, error) {
	stored, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.decoder.Decode(stored.EpubBlob)
}

// Chapter loads the spine item at index of a stored book.
func (s *Service) Chapter(ctx context.Context, id string, index int) (*epub.Chapter, error) {
	stored, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	a, err := epub.OpenArchive(stored.EpubBlob)
	if err != nil {
		return nil, err
	}
	packagePath, err := epub.ResolveContainer(a)
	if err != nil {
		return nil, err
	}
	pkg, err := epub.ParsePackage(a, packagePath)
	if err != nil {
		return nil, err
	}
	return epub.LoadChapter(a, packagePath, pkg, index)
}

// Remove deletes a book. Removing an unknown id succeeds.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return err
	}
	s.logger.Info("book removed", "book_id", id)
	return nil
}

// ReleaseSummaries releases the cover handles of a listing.
func (s *Service) ReleaseSummaries(summaries []Summary) {
	for _, sum := range summaries {
		s.Release(sum.CoverURL)
	}
}

// Release releases cover handles. Empty URLs are ignored.
func (s *Service) Release(urls ...string) {
	if s.covers == nil {
		return
	}
	for _, url := range urls {
		if url != "" {
			s.covers.Revoke(url)
		}
	}
}
