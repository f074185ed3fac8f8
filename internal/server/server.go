// Package server exposes the library over HTTP with gin.
//
// Cover handles are owned by the server: each listing and each opened book
// replace the handles of the one before, which are revoked.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yuanying/lazyreader/internal/blobs"
	"github.com/yuanying/lazyreader/internal/library"
)

const defaultShutdownTimeout = 10 * time.Second

// CoverSource resolves cover handles to their bytes.
type CoverSource interface {
	Get(url string) (blobs.Object, bool)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Addr string
	// ThumbWidth resizes served covers when no ?w= is given; 0 serves originals.
	ThumbWidth      int
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP front end of the library.
type Server struct {
	lib    *library.Service
	covers CoverSource
	health Pinger
	opts   Options
	logger *slog.Logger
	engine *gin.Engine

	mu          sync.Mutex
	listing     []library.Summary
	readerCover string
}

// New creates a server and its routes.
func New(lib *library.Service, covers CoverSource, health Pinger, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		lib:    lib,
		covers: covers,
		health: health,
		opts:   opts,
		logger: opts.Logger,
	}
	s.engine = s.newRouter()
	return s
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.logger))

	api := router.Group("/api/books")
	{
		api.GET("", s.listBooks)
		api.POST("", s.addBook)
		api.GET("/:id", s.showBook)
		api.GET("/:id/file", s.downloadBook)
		api.GET("/:id/chapters/:index", s.showChapter)
		api.DELETE("/:id", s.removeBook)
	}

	router.GET("/covers/*handle", s.serveCover)
	router.GET("/health", s.status)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))

	return router
}

// Run serves on opts.Addr until ctx is canceled, then shuts down gracefully
// and releases every cover handle the server still holds.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server", "timeout", s.opts.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.releaseAll()
	s.logger.Info("server stopped")
	return err
}

// replaceListing makes summaries the current listing and revokes the covers
// of the previous one.
func (s *Server) replaceListing(summaries []library.Summary) {
	s.mu.Lock()
	prev := s.listing
	s.listing = summaries
	s.mu.Unlock()

	s.lib.ReleaseSummaries(prev)
}

// replaceReaderCover makes url the reader view's cover and revokes the previous one.
func (s *Server) replaceReaderCover(url string) {
	s.mu.Lock()
	prev := s.readerCover
	s.readerCover = url
	s.mu.Unlock()

	s.lib.Release(prev)
}

func (s *Server) releaseAll() {
	s.replaceListing(nil)
	s.replaceReaderCover("")
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
