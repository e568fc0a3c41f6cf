package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newSitemapServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprint(w, `<sitemapindex>
  <sitemap><loc>/pages.xml</loc></sitemap>
  <sitemap><loc>/missing.xml</loc></sitemap>
</sitemapindex>`)
		case "/pages.xml":
			fmt.Fprintf(w, `<urlset>
  <url><loc>http://%[1]s/b</loc></url>
  <url><loc>http://%[1]s/a</loc></url>
</urlset>`, r.Host)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("SITEMAP_TO_CSV_LOG_LEVEL", "")
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRoot_WritesCSVFile(t *testing.T) {
	server := newSitemapServer(t)
	output := filepath.Join(t.TempDir(), "out", "urls.csv")

	stdout, stderr, err := execute(t, server.URL+"/sitemap.xml", "-o", output, "--config", writeConfig(t, ""))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !strings.Contains(stdout, "Wrote 2 unique URLs to "+output) {
		t.Fatalf("unexpected stdout %q", stdout)
	}
	if !strings.Contains(stderr, "1 sitemap(s) failed:") || !strings.Contains(stderr, "[FetchError] "+server.URL+"/missing.xml") {
		t.Fatalf("failures not reported on stderr: %q", stderr)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "url\n" + server.URL + "/b\n" + server.URL + "/a\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Fatalf("CSV mismatch (-want +got):\n%s", diff)
	}
}

func TestRoot_StdoutStripAndSort(t *testing.T) {
	server := newSitemapServer(t)

	stdout, stderr, err := execute(t, server.URL+"/sitemap.xml", "-o", "-", "--strip-domain", "--sort", "--config", writeConfig(t, ""))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if diff := cmp.Diff("url\n/a\n/b\n", stdout); diff != "" {
		t.Fatalf("CSV mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(stderr, "Wrote 2 unique URLs to -") {
		t.Fatalf("summary should go to stderr when writing CSV to stdout: %q", stderr)
	}
}

func TestRoot_ConfigFileAndFlagPrecedence(t *testing.T) {
	server := newSitemapServer(t)
	dir := t.TempDir()
	fromConfig := filepath.Join(dir, "config.csv")
	fromFlag := filepath.Join(dir, "flag.csv")
	cfgPath := writeConfig(t, fmt.Sprintf("output: %s\nstrip-domain: true\nsort: true\n", fromConfig))

	if _, _, err := execute(t, server.URL+"/sitemap.xml", "--config", cfgPath); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	data, err := os.ReadFile(fromConfig)
	if err != nil {
		t.Fatalf("config output not written: %v", err)
	}
	if diff := cmp.Diff("url\n/a\n/b\n", string(data)); diff != "" {
		t.Fatalf("CSV mismatch (-want +got):\n%s", diff)
	}

	if _, _, err := execute(t, server.URL+"/sitemap.xml", "--config", cfgPath, "-o", fromFlag); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if _, err := os.Stat(fromFlag); err != nil {
		t.Fatalf("flag should override config output: %v", err)
	}
}

func TestRoot_MissingExplicitConfig(t *testing.T) {
	_, _, err := execute(t, "https://example.com/sitemap.xml", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRoot_InvalidRootURL(t *testing.T) {
	output := filepath.Join(t.TempDir(), "urls.csv")
	_, _, err := execute(t, "ftp://example.com/sitemap.xml", "-o", output, "--config", writeConfig(t, ""))
	if err == nil {
		t.Fatalf("expected error for invalid root URL")
	}
	if _, statErr := os.Stat(output); statErr == nil {
		t.Fatalf("no CSV should be written for a fatal error")
	}
}

func TestRoot_ConflictingTLSOptions(t *testing.T) {
	_, _, err := execute(t, "https://example.com/sitemap.xml", "--ca-file", "ca.pem", "--insecure", "--config", writeConfig(t, ""))
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRoot_ReportAndHistory(t *testing.T) {
	server := newSitemapServer(t)
	dir := t.TempDir()
	dbDir := filepath.Join(dir, "db")
	report := filepath.Join(dir, "report.md")
	cfgPath := writeConfig(t, "")

	_, _, err := execute(t, server.URL+"/sitemap.xml",
		"-o", filepath.Join(dir, "urls.csv"),
		"--report", report,
		"--history", "--db-dir", dbDir,
		"--config", cfgPath,
	)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(data), "# Sitemap Report") {
		t.Fatalf("unexpected report:\n%s", data)
	}

	stdout, _, err := execute(t, "history", "--db-dir", dbDir, "--config", cfgPath)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(stdout, server.URL+"/sitemap.xml") {
		t.Fatalf("run not listed:\n%s", stdout)
	}

	stdout, _, err = execute(t, "history", "diff", "1", "1", "--db-dir", dbDir, "--config", cfgPath)
	if err != nil {
		t.Fatalf("history diff failed: %v", err)
	}
	if !strings.Contains(stdout, "0 added, 0 removed") {
		t.Fatalf("unexpected diff output %q", stdout)
	}
}

func TestHistory_DiffUnknownRun(t *testing.T) {
	server := newSitemapServer(t)
	dir := t.TempDir()
	dbDir := filepath.Join(dir, "db")
	cfgPath := writeConfig(t, "")

	if _, _, err := execute(t, server.URL+"/sitemap.xml", "-o", filepath.Join(dir, "urls.csv"), "--history", "--db-dir", dbDir, "--config", cfgPath); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	stdout, _, err := execute(t, "history", "diff", "999", "1", "--db-dir", dbDir, "--config", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "run 999 not found") {
		t.Fatalf("expected unknown run error, got %v", err)
	}
	if strings.Contains(stdout, "added") {
		t.Fatalf("no diff should be printed for an unknown run: %q", stdout)
	}
}

func TestHistory_Empty(t *testing.T) {
	stdout, _, err := execute(t, "history", "--db-dir", t.TempDir(), "--config", writeConfig(t, ""))
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(stdout, "No runs recorded.") {
		t.Fatalf("unexpected output %q", stdout)
	}
}

func TestResolveLogLevel(t *testing.T) {
	t.Setenv("SITEMAP_TO_CSV_LOG_LEVEL", "")
	tests := map[string]slog.Level{
		"":        slog.LevelError,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range tests {
		got, err := resolveLogLevel(in)
		if err != nil {
			t.Fatalf("resolveLogLevel(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("resolveLogLevel(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := resolveLogLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}

	t.Setenv("SITEMAP_TO_CSV_LOG_LEVEL", "debug")
	if got, _ := resolveLogLevel(""); got != slog.LevelDebug {
		t.Fatalf("env level not used, got %v", got)
	}
}
