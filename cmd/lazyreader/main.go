package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/yuanying/lazyreader/internal/blobs"
	"github.com/yuanying/lazyreader/internal/config"
	"github.com/yuanying/lazyreader/internal/epub"
	"github.com/yuanying/lazyreader/internal/library"
	"github.com/yuanying/lazyreader/internal/logging"
	"github.com/yuanying/lazyreader/internal/server"
	"github.com/yuanying/lazyreader/internal/store"
)

type cliOptions struct {
	DatabasePath    string
	Host            string
	Port            int
	Workers         int
	ThumbWidth      int
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lazyreader",
		Short: "A personal EPUB library",
		Long: `lazyreader keeps a personal library of EPUB books in a local SQLite
database. Books are decoded on demand to list titles and covers, and can be
browsed over HTTP with "lazyreader serve".`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("db", "", "SQLite database path (default: $DATABASE_PATH or ./lazyreader.db)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default: $LOG_LEVEL or info)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (default: $LOG_FORMAT or text)")

	rootCmd.AddCommand(
		newServeCmd(),
		newAddCmd(),
		newListCmd(),
		newShowCmd(),
		newRemoveCmd(),
		newInspectCmd(),
	)
	return rootCmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the library over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}

			metrics := library.NewMetrics(prometheus.DefaultRegisterer)
			registry := blobs.NewRegistry("lazyreader", metrics.SetLiveHandles)
			st, err := openStore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer st.Close()

			svc := library.NewService(st, registry, library.Options{
				Workers: opts.Workers,
				Logger:  opts.Logger,
				Metrics: metrics,
			})
			srv := server.New(svc, registry, st, server.Options{
				Addr:            net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
				ThumbWidth:      opts.ThumbWidth,
				ShutdownTimeout: opts.ShutdownTimeout,
				Logger:          opts.Logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().String("host", "", "Listen host (default: $HOST or 127.0.0.1)")
	cmd.Flags().Int("port", 0, "Listen port (default: $PORT or 8080)")
	cmd.Flags().Int("workers", 0, "Concurrent decodes while listing; <= 0 is unbounded (default: $DECODE_WORKERS or 4)")
	cmd.Flags().Int("thumb-width", 0, "Cover thumbnail width in pixels; 0 serves originals (default: $COVER_THUMB_WIDTH)")
	return cmd
}

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Import an EPUB file into the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			mediaType, _ := cmd.Flags().GetString("media-type")
			if mediaType == "" {
				mediaType = detectMediaType(data)
				opts.Logger.Debug("detected media type", "file", args[0], "media_type", mediaType)
			}

			return withLibrary(cmd.Context(), opts, func(svc *library.Service) error {
				id, err := svc.Add(cmd.Context(), filepath.Base(args[0]), mediaType, data)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cmd.Flags().String("media-type", "", "Declared media type (default: detected from content)")
	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the books in the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			term, _ := cmd.Flags().GetString("search")

			return withLibrary(cmd.Context(), opts, func(svc *library.Service) error {
				summaries, err := svc.Search(cmd.Context(), term)
				if err != nil {
					return err
				}
				defer svc.ReleaseSummaries(summaries)

				out := cmd.OutOrStdout()
				for _, sum := range summaries {
					cover := "-"
					if sum.CoverURL != "" {
						cover = "cover"
					}
					fmt.Fprintf(out, "%s\t%s\t%s\n", sum.ID, sum.Title, cover)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringP("search", "s", "", "Only list books whose title contains this text")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the package summary of a stored book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			return withLibrary(cmd.Context(), opts, func(svc *library.Service) error {
				book, err := svc.Open(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				defer svc.Release(book.CoverURL)

				fmt.Fprintf(cmd.OutOrStdout(), "id: %s\n", args[0])
				printBook(cmd.OutOrStdout(), book)
				return nil
			})
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a book from the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			return withLibrary(cmd.Context(), opts, func(svc *library.Service) error {
				return svc.Remove(cmd.Context(), args[0])
			})
		},
	}
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Decode an EPUB file without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := readCLIOptions(cmd); err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			registry := blobs.NewRegistry("inspect", nil)
			book, err := epub.NewDecoder(registry).Decode(data)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			defer registry.Revoke(book.CoverURL)

			printBook(cmd.OutOrStdout(), book)
			return nil
		},
	}
}

// readCLIOptions merges flags over the environment configuration.
func readCLIOptions(cmd *cobra.Command) (cliOptions, error) {
	cfg := config.NewConfig()
	opts := cliOptions{
		DatabasePath:    cfg.Database.Path,
		Host:            cfg.HTTP.Host,
		Port:            int(cfg.HTTP.Port),
		Workers:         cfg.Library.DecodeWorkers,
		ThumbWidth:      cfg.Library.CoverThumbWidth,
		ShutdownTimeout: cfg.Global.ShutdownTimeout,
	}
	logLevel, logFormat := cfg.Log.Level, cfg.Log.Format

	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}
	if changed("db") {
		opts.DatabasePath, _ = flags.GetString("db")
	}
	if changed("log-level") {
		logLevel, _ = flags.GetString("log-level")
	}
	if changed("log-format") {
		logFormat, _ = flags.GetString("log-format")
	}
	if changed("host") {
		opts.Host, _ = flags.GetString("host")
	}
	if changed("port") {
		opts.Port, _ = flags.GetInt("port")
	}
	if changed("workers") {
		opts.Workers, _ = flags.GetInt("workers")
	}
	if changed("thumb-width") {
		opts.ThumbWidth, _ = flags.GetInt("thumb-width")
	}

	if opts.DatabasePath == "" {
		return cliOptions{}, fmt.Errorf("--db must not be empty")
	}
	if opts.Port < 1 || opts.Port > 65535 {
		return cliOptions{}, fmt.Errorf("--port must be between 1 and 65535, got %d", opts.Port)
	}
	if opts.ThumbWidth < 0 {
		return cliOptions{}, fmt.Errorf("--thumb-width must not be negative, got %d", opts.ThumbWidth)
	}
	if _, err := logging.ParseLevel(logLevel); err != nil {
		return cliOptions{}, fmt.Errorf("--log-level must be one of debug, info, warn, error: %q", logLevel)
	}
	normalizedFormat := strings.ToLower(strings.TrimSpace(logFormat))
	if normalizedFormat != "text" && normalizedFormat != "json" {
		return cliOptions{}, fmt.Errorf("--log-format must be text or json: %q", logFormat)
	}

	// Command output owns stdout; only the server logs there.
	logOut := cmd.ErrOrStderr()
	if cmd.Name() == "serve" {
		logOut = cmd.OutOrStdout()
	}
	logger, err := buildLogger(logOut, cmd.ErrOrStderr(), logLevel, normalizedFormat)
	if err != nil {
		return cliOptions{}, err
	}
	opts.Logger = logger

	return opts, nil
}

func buildLogger(stdout, stderr io.Writer, level, format string) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  level,
		Format: format,
		Stdout: stdout,
		Stderr: stderr,
	})
}

func openStore(ctx context.Context, opts cliOptions) (*store.Store, error) {
	st := store.New(store.Options{
		Path:  opts.DatabasePath,
		Debug: opts.Logger.Enabled(ctx, slog.LevelDebug),
	})
	if err := st.Open(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// withLibrary opens the store, runs fn against a library service and closes the store.
func withLibrary(ctx context.Context, opts cliOptions, fn func(svc *library.Service) error) error {
	st, err := openStore(ctx, opts)
	if err != nil {
		return err
	}
	defer st.Close()

	registry := blobs.NewRegistry("lazyreader", nil)
	svc := library.NewService(st, registry, library.Options{
		Workers: opts.Workers,
		Logger:  opts.Logger,
	})
	return fn(svc)
}

// detectMediaType sniffs the content type of an import. EPUBs are recognised
// by their leading mimetype entry; anything else keeps its sniffed type.
func detectMediaType(data []byte) string {
	mt := mimetype.Detect(data)
	if mt.Is(library.EpubMediaType) {
		return library.EpubMediaType
	}
	return mt.String()
}

func printBook(w io.Writer, book *epub.Book) {
	pkg := book.Package
	fmt.Fprintf(w, "package: %s\n", book.PackagePath)

	keys := make([]string, 0, len(pkg.Metadata))
	for k := range pkg.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", k, pkg.Metadata[k])
	}

	fmt.Fprintf(w, "manifest: %d items\n", len(pkg.Manifest))
	fmt.Fprintf(w, "spine: %d items\n", len(pkg.Spine))
	if book.Cover != nil {
		fmt.Fprintf(w, "cover: %s (%s)\n", book.Cover.Path, book.Cover.MediaType)
	} else {
		fmt.Fprintln(w, "cover: none")
	}
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
