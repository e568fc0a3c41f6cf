// Package web serves the browser front-end: a form that resolves a sitemap
// and offers the URL list as a CSV download.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	sitemapcsv "github.com/kotylevskiy/go-sitemap-csv"
	"github.com/kotylevskiy/go-sitemap-csv/export"
)

const (
	defaultFileName   = "sitemap_links.csv"
	defaultMaxResults = 32
	sampleSize        = 10
)

// Resolver is the part of sitemapcsv.Resolver the web UI needs.
type Resolver interface {
	Resolve(ctx context.Context, rootURL string) (*sitemapcsv.Result, error)
}

// ResolverFactory builds a Resolver for one request. useCA reports whether
// the user asked for the configured CA bundle.
type ResolverFactory func(useCA bool) (Resolver, error)

// Recorder stores finished runs; *history.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, roots []string, startedAt time.Time, elapsed time.Duration, result *sitemapcsv.Result) (int64, error)
}

// Options configures the web server.
type Options struct {
	NewResolver ResolverFactory
	// CAAvailable shows the CA bundle checkbox.
	CAAvailable bool
	// RunTimeout bounds each resolve (0 = none).
	RunTimeout time.Duration
	// MaxResults is how many CSV downloads are kept in memory.
	MaxResults int
	Recorder   Recorder
	Logger     *slog.Logger
}

// Server holds the handlers and the in-memory download store.
type Server struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	results map[string]*download
	order   []string
}

type download struct {
	fileName string
	data     []byte
}

type formValues struct {
	SitemapURL  string
	FileName    string
	UseCA       bool
	StripDomain bool
}

type collected struct {
	ID       string
	Count    int
	Sample   []string
	Failures []sitemapcsv.Failure
}

type pageData struct {
	Form        formValues
	CAAvailable bool
	Error       string
	Collected   *collected
}

// New builds a Server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	return &Server{
		opts:    opts,
		logger:  opts.Logger,
		results: map[string]*download{},
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Post("/collect", s.handleCollect)
	r.Get("/download/{id}", s.handleDownload)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.render(w, http.StatusOK, pageData{
		Form:        formValues{SitemapURL: "https://example.com/sitemap.xml", FileName: defaultFileName, StripDomain: true},
		CAAvailable: s.opts.CAAvailable,
	})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := formValues{
		SitemapURL:  strings.TrimSpace(r.PostFormValue("sitemap_url")),
		FileName:    strings.TrimSpace(r.PostFormValue("file_name")),
		UseCA:       r.PostFormValue("use_ca") != "",
		StripDomain: r.PostFormValue("strip_domain") != "",
	}
	page := pageData{Form: form, CAAvailable: s.opts.CAAvailable}

	if form.SitemapURL == "" {
		page.Error = "Please provide a sitemap URL."
		s.render(w, http.StatusBadRequest, page)
		return
	}

	resolver, err := s.opts.NewResolver(form.UseCA && s.opts.CAAvailable)
	if err != nil {
		page.Error = fmt.Sprintf("Failed to collect URLs: %v", err)
		s.render(w, http.StatusInternalServerError, page)
		return
	}

	ctx := r.Context()
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	started := time.Now()
	result, err := resolver.Resolve(ctx, form.SitemapURL)
	if err != nil {
		var rootErr *sitemapcsv.ErrInvalidRootURL
		if errors.As(err, &rootErr) || result == nil {
			page.Error = fmt.Sprintf("Failed to collect URLs: %v", err)
			s.render(w, http.StatusBadRequest, page)
			return
		}
		// timed out: keep the partial result and say so
		page.Error = fmt.Sprintf("Stopped early (%v); results are partial.", err)
	}
	elapsed := time.Since(started)

	if s.opts.Recorder != nil {
		if _, err := s.opts.Recorder.Record(context.WithoutCancel(ctx), []string{form.SitemapURL}, started, elapsed, result); err != nil {
			s.logger.Warn("failed to record run", "error", err)
		}
	}

	csvOpts := export.CSVOptions{StripDomain: form.StripDomain}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, result.URLs, csvOpts); err != nil {
		page.Error = fmt.Sprintf("Failed to build CSV: %v", err)
		s.render(w, http.StatusInternalServerError, page)
		return
	}

	rows := export.Rows(result.URLs, csvOpts)
	sample := rows
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	id := s.store(&download{fileName: sanitizeFileName(form.FileName), data: buf.Bytes()})
	page.Collected = &collected{
		ID:       id,
		Count:    len(rows),
		Sample:   sample,
		Failures: result.Failures,
	}
	s.render(w, http.StatusOK, page)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	d, ok := s.results[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "download not found or expired", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.fileName))
	_, _ = w.Write(d.data)
}

// store keeps at most MaxResults downloads, evicting the oldest.
func (s *Server) store(d *download) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[id] = d
	s.order = append(s.order, id)
	for len(s.order) > s.opts.MaxResults {
		delete(s.results, s.order[0])
		s.order = s.order[1:]
	}
	return id
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("failed to render page", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" {
		return defaultFileName
	}
	return name
}
