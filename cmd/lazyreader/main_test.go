package main

import (
	"archive/zip"
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/yuanying/lazyreader/internal/library"
	"github.com/yuanying/lazyreader/internal/store"
)

func findCmd(t *testing.T, name string) *cobra.Command {
	t.Helper()
	cmd, _, err := newRootCmd().Find([]string{name})
	if err != nil {
		t.Fatalf("Find(%q) error = %v", name, err)
	}
	return cmd
}

// clearConfigEnv blanks the variables behind config defaults; empty counts as unset.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "HOST", "DATABASE_PATH", "DECODE_WORKERS", "COVER_THUMB_WIDTH", "LOG_LEVEL", "LOG_FORMAT", "SHUTDOWN_TIMEOUT"} {
		t.Setenv(key, "")
	}
}

func readOptionsForTest(t *testing.T, name string, flagArgs ...string) (cliOptions, error) {
	t.Helper()
	cmd := findCmd(t, name)
	if err := cmd.ParseFlags(flagArgs); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	return readCLIOptions(cmd)
}

func TestReadCLIOptions_Defaults(t *testing.T) {
	clearConfigEnv(t)
	opts, err := readOptionsForTest(t, "serve")
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}

	if opts.DatabasePath != "./lazyreader.db" {
		t.Fatalf("DatabasePath = %q, want %q", opts.DatabasePath, "./lazyreader.db")
	}
	if opts.Host != "127.0.0.1" {
		t.Fatalf("Host = %q, want %q", opts.Host, "127.0.0.1")
	}
	if opts.Port != 8080 {
		t.Fatalf("Port = %d, want %d", opts.Port, 8080)
	}
	if opts.Workers != 4 {
		t.Fatalf("Workers = %d, want %d", opts.Workers, 4)
	}
	if opts.ThumbWidth != 0 {
		t.Fatalf("ThumbWidth = %d, want 0", opts.ThumbWidth)
	}
	if opts.ShutdownTimeout != 10*time.Second {
		t.Fatalf("ShutdownTimeout = %v, want %v", opts.ShutdownTimeout, 10*time.Second)
	}
	if opts.Logger == nil {
		t.Fatal("Logger is nil, want non-nil")
	}
	if !opts.Logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("Logger should be enabled at INFO level by default")
	}
	if opts.Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("Logger should not be enabled at DEBUG level by default")
	}
}

func TestReadCLIOptions_CustomFlags(t *testing.T) {
	clearConfigEnv(t)
	opts, err := readOptionsForTest(t, "serve",
		"--db", "/tmp/books.db",
		"--host", "0.0.0.0",
		"--port", "9000",
		"--workers", "0",
		"--thumb-width", "240",
		"--log-level", "debug",
	)
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}

	if opts.DatabasePath != "/tmp/books.db" {
		t.Fatalf("DatabasePath = %q", opts.DatabasePath)
	}
	if opts.Host != "0.0.0.0" {
		t.Fatalf("Host = %q", opts.Host)
	}
	if opts.Port != 9000 {
		t.Fatalf("Port = %d", opts.Port)
	}
	if opts.Workers != 0 {
		t.Fatalf("Workers = %d", opts.Workers)
	}
	if opts.ThumbWidth != 240 {
		t.Fatalf("ThumbWidth = %d", opts.ThumbWidth)
	}
	if !opts.Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("Logger should be enabled at DEBUG level with --log-level debug")
	}
}

func TestReadCLIOptions_EnvironmentBelowFlags(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DATABASE_PATH", "/env/books.db")
	t.Setenv("PORT", "7000")

	opts, err := readOptionsForTest(t, "serve", "--port", "7100")
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}
	if opts.DatabasePath != "/env/books.db" {
		t.Fatalf("DatabasePath = %q, want %q", opts.DatabasePath, "/env/books.db")
	}
	if opts.Port != 7100 {
		t.Fatalf("Port = %d, want %d", opts.Port, 7100)
	}
}

func TestReadCLIOptions_Invalid(t *testing.T) {
	tests := []struct {
		flag string
		args []string
	}{
		{"--port", []string{"--port", "70000"}},
		{"--thumb-width", []string{"--thumb-width", "-1"}},
		{"--log-level", []string{"--log-level", "trace"}},
		{"--log-format", []string{"--log-format", "yaml"}},
		{"--db", []string{"--db", ""}},
	}
	clearConfigEnv(t)
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			_, err := readOptionsForTest(t, "serve", tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.flag) {
				t.Fatalf("expected %s validation error, got %v", tt.flag, err)
			}
		})
	}
}

func TestBuildLogger_FormatNormalization(t *testing.T) {
	var buf bytes.Buffer
	logger, err := buildLogger(&buf, &buf, "info", "json")
	if err != nil {
		t.Fatalf("buildLogger() error = %v", err)
	}
	logger.Info("test message")
	output := buf.String()
	if len(output) == 0 || output[0] != '{' {
		t.Fatalf("expected JSON output, got: %s", output)
	}
}

func TestReadCLIOptions_LogFormatCaseInsensitive(t *testing.T) {
	if _, err := readOptionsForTest(t, "list", "--log-format", "JSON"); err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}
}

// writeTestEPUB writes an EPUB whose mimetype entry is stored first and
// uncompressed so content sniffing recognises it.
func writeTestEPUB(t *testing.T, dir, name, title string) string {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("CreateHeader() error = %v", err)
	}
	fw.Write([]byte(library.EpubMediaType))

	files := []struct{ name, body string }{
		{"META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`},
		{"OEBPS/content.opf", `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>` + title + `</dc:title><dc:creator>Machado de Assis</dc:creator></metadata>
  <manifest>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="cover" href="cover.jpg" media-type="image/jpeg"/>
  </manifest>
  <spine><itemref idref="ch1"/></spine>
</package>`},
		{"OEBPS/ch1.xhtml", `<html><body><p>text</p></body></html>`},
		{"OEBPS/cover.jpg", "jpeg-bytes"},
	}
	for _, f := range files {
		fw, err := w.Create(f.name)
		if err != nil {
			t.Fatalf("Create(%q) error = %v", f.name, err)
		}
		fw.Write([]byte(f.body))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestCLI_AddListShowRemove(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "books.db")
	file := writeTestEPUB(t, dir, "dom-casmurro.epub", "Dom Casmurro")

	out, err := runCLI(t, "--db", db, "add", file)
	if err != nil {
		t.Fatalf("add error = %v", err)
	}
	id := strings.TrimSpace(out)
	if want := store.HashFileName("dom-casmurro.epub"); id != want {
		t.Fatalf("add printed %q, want %q", id, want)
	}

	out, err = runCLI(t, "--db", db, "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if want := id + "\tDom Casmurro\tcover\n"; out != want {
		t.Fatalf("list output = %q, want %q", out, want)
	}

	out, err = runCLI(t, "--db", db, "list", "--search", "iracema")
	if err != nil {
		t.Fatalf("list --search error = %v", err)
	}
	if out != "" {
		t.Fatalf("list --search output = %q, want empty", out)
	}

	out, err = runCLI(t, "--db", db, "show", id)
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	for _, want := range []string{"id: " + id, "package: OEBPS/content.opf", "title: Dom Casmurro", "creator: Machado de Assis", "spine: 1 items", "cover: OEBPS/cover.jpg (image/jpeg)"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	if _, err := runCLI(t, "--db", db, "remove", id); err != nil {
		t.Fatalf("remove error = %v", err)
	}
	out, err = runCLI(t, "--db", db, "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if out != "" {
		t.Fatalf("list after remove = %q, want empty", out)
	}

	if _, err := runCLI(t, "--db", db, "show", id); err == nil {
		t.Fatal("show after remove: expected error")
	}
}

func TestCLI_AddRejectsNonEPUB(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "books.db")
	file := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(file, []byte("just some notes"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := runCLI(t, "--db", db, "add", file); err == nil {
		t.Fatal("add of a text file: expected error")
	}

	// An explicit media type overrides sniffing.
	if _, err := runCLI(t, "--db", db, "add", "--media-type", library.EpubMediaType, file); err != nil {
		t.Fatalf("add --media-type error = %v", err)
	}
	out, err := runCLI(t, "--db", db, "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(out, library.ErrorTitle) {
		t.Fatalf("list output = %q, want %q placeholder", out, library.ErrorTitle)
	}
}

func TestCLI_Inspect(t *testing.T) {
	dir := t.TempDir()
	file := writeTestEPUB(t, dir, "iracema.epub", "Iracema")

	out, err := runCLI(t, "--db", filepath.Join(dir, "unused.db"), "inspect", file)
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	for _, want := range []string{"title: Iracema", "manifest: 2 items", "cover: OEBPS/cover.jpg (image/jpeg)"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "unused.db")); !os.IsNotExist(err) {
		t.Fatalf("inspect created a database: %v", err)
	}

	bad := filepath.Join(dir, "bad.epub")
	if err := os.WriteFile(bad, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := runCLI(t, "inspect", bad); err == nil {
		t.Fatal("inspect of a corrupt file: expected error")
	}
}

func TestDetectMediaType(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(writeTestEPUB(t, dir, "a.epub", "A"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got := detectMediaType(data); got != library.EpubMediaType {
		t.Fatalf("detectMediaType(epub) = %q, want %q", got, library.EpubMediaType)
	}
	if got := detectMediaType([]byte("plain text")); got == library.EpubMediaType {
		t.Fatalf("detectMediaType(text) = %q", got)
	}
}
