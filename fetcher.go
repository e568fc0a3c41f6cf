package sitemapcsv

import (
	"bufio"
	"compress/gzip"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	defaultUserAgent   = "Mozilla/5.0 (compatible; sitemap-to-csv/1.0; +https://github.com/kotylevskiy/go-sitemap-csv)"
	defaultBufSize     = 64 * 1024
	defaultMaxBodySize = 50 * 1024 * 1024
	maxRetryAttempts   = 3
	defaultRetryDelay  = 5 * time.Second
	maxRetryDelay      = 30 * time.Second
)

// ===================== Configuration =====================

// TransportConfig configures how sitemaps are fetched. The Resolver never inspects it.
type TransportConfig struct {
	// HTTPClient takes precedence over CAFile and InsecureSkipVerify.
	HTTPClient *http.Client
	// CAFile is a PEM bundle added to the system trust store.
	CAFile             string
	InsecureSkipVerify bool
	UserAgent          string
	Timeout            time.Duration
	// MaxBodySize caps the decompressed sitemap size (0 = 50 MiB).
	MaxBodySize   int64
	RespectRobots bool
	Logger        *slog.Logger
}

// HTTPFetcher fetches sitemaps over HTTP(S) and implements Fetcher.
// It is safe for concurrent use.
type HTTPFetcher struct {
	cfg    TransportConfig
	client *http.Client
	logger *slog.Logger

	mu     sync.Mutex
	robots map[string]*robotsRules
}

type robotsRules struct {
	group    *robotstxt.Group
	sitemaps []*url.URL
}

// ===================== Public API =====================

// NewHTTPFetcher builds an HTTPFetcher. It fails only when CAFile cannot be loaded.
func NewHTTPFetcher(cfg TransportConfig) (*HTTPFetcher, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	client := cfg.HTTPClient
	if client == nil {
		var err error
		client, err = newHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
	}
	return &HTTPFetcher{
		cfg:    cfg,
		client: client,
		logger: cfg.Logger,
		robots: map[string]*robotsRules{},
	}, nil
}

// Fetch downloads a sitemap and returns its decompressed body.
func (f *HTTPFetcher) Fetch(ctx context.Context, loc *url.URL) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if f.cfg.RespectRobots && !f.allowedByRobots(ctx, loc) {
		return nil, &ErrRobotsDisallowed{URL: cloneURL(loc)}
	}
	reader, err := f.fetchSitemap(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, f.cfg.MaxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.cfg.MaxBodySize {
		return nil, &ErrBodyTooLarge{URL: cloneURL(loc), Limit: f.cfg.MaxBodySize}
	}
	return data, nil
}

// newDefaultFetcher builds an HTTPFetcher without a CA file, which cannot fail.
func newDefaultFetcher(logger *slog.Logger) *HTTPFetcher {
	cfg := TransportConfig{UserAgent: defaultUserAgent, MaxBodySize: defaultMaxBodySize, Logger: logger}
	client := &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	return &HTTPFetcher{cfg: cfg, client: client, logger: logger, robots: map[string]*robotsRules{}}
}

// ===================== Transport =====================

func newHTTPClient(cfg TransportConfig) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.CAFile != "" || cfg.InsecureSkipVerify {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.InsecureSkipVerify {
			tlsConfig.InsecureSkipVerify = true //nolint:gosec // opt-in via --insecure
		}
		if cfg.CAFile != "" {
			pool, err := loadCertPool(cfg.CAFile)
			if err != nil {
				return nil, err
			}
			tlsConfig.RootCAs = pool
		}
		transport.TLSClientConfig = tlsConfig
	}
	return &http.Client{Transport: transport}, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path) //nolint:gosec // user-provided CA bundle
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}

func (f *HTTPFetcher) newRequest(ctx context.Context, u *url.URL) (*http.Request, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})
	if f.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	return req, cancel, nil
}

func (f *HTTPFetcher) fetchSitemap(ctx context.Context, loc *url.URL) (io.ReadCloser, error) {
	for attempt := 0; attempt <= maxRetryAttempts; attempt++ {
		req, cancel, err := f.newRequest(ctx, loc)
		if err != nil {
			return nil, err
		}

		resp, err := f.client.Do(req)
		if err != nil {
			cancel()
			return nil, err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			delay := retryAfterDelay(resp)
			resp.Body.Close()
			cancel()
			if attempt == maxRetryAttempts {
				return nil, &ErrHTTPStatus{URL: cloneURL(loc), StatusCode: resp.StatusCode, Status: resp.Status}
			}
			if delay <= 0 {
				delay = defaultRetryDelay
			}
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			f.logger.Debug(fmt.Sprintf("received 429 for %s, retrying in %s", loc, delay))
			if err := sleepWithContext(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			resp.Body.Close()
			cancel()
			return nil, &ErrHTTPStatus{URL: cloneURL(loc), StatusCode: resp.StatusCode, Status: resp.Status}
		}

		reader, err := wrapReader(resp, cancel)
		if err != nil {
			resp.Body.Close()
			cancel()
			return nil, err
		}
		return reader, nil
	}

	return nil, &ErrHTTPStatus{URL: cloneURL(loc), StatusCode: http.StatusTooManyRequests, Status: http.StatusText(http.StatusTooManyRequests)}
}

type readCloser struct {
	reader io.Reader
	close  func() error
}

func (r *readCloser) Read(p []byte) (int, error) {
	return r.reader.Read(p)
}

func (r *readCloser) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// wrapReader transparently decompresses gzip bodies, detected by magic bytes.
func wrapReader(resp *http.Response, cancel context.CancelFunc) (io.ReadCloser, error) {
	reader := bufio.NewReaderSize(resp.Body, defaultBufSize)
	closeAll := func() error {
		cancel()
		return resp.Body.Close()
	}
	peek, err := reader.Peek(2)
	if err == nil && len(peek) == 2 && peek[0] == 0x1f && peek[1] == 0x8b {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, err
		}
		return &readCloser{
			reader: gz,
			close: func() error {
				gzErr := gz.Close()
				if err := closeAll(); err != nil {
					return err
				}
				return gzErr
			},
		}, nil
	}
	return &readCloser{reader: reader, close: closeAll}, nil
}

func retryAfterDelay(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		return time.Until(t)
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ===================== Robots =====================

// getRobots fetches robots.txt once per origin. A missing or broken robots.txt allows everything.
func (f *HTTPFetcher) getRobots(ctx context.Context, base *url.URL) *robotsRules {
	key := base.Scheme + "://" + base.Host
	f.mu.Lock()
	rules, ok := f.robots[key]
	f.mu.Unlock()
	if ok {
		return rules
	}

	rules = f.loadRobots(ctx, base)

	f.mu.Lock()
	if cached, ok := f.robots[key]; ok {
		rules = cached
	} else {
		f.robots[key] = rules
	}
	f.mu.Unlock()
	return rules
}

func (f *HTTPFetcher) loadRobots(ctx context.Context, base *url.URL) *robotsRules {
	robotsURL := base.ResolveReference(&url.URL{Path: "/robots.txt"})
	req, cancel, err := f.newRequest(ctx, robotsURL)
	if err != nil {
		return &robotsRules{}
	}
	defer cancel()

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug(fmt.Sprintf("robots.txt unavailable at %s: %v", robotsURL, err))
		return &robotsRules{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &robotsRules{}
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		f.logger.Debug(fmt.Sprintf("invalid robots.txt at %s: %v", robotsURL, err))
		return &robotsRules{}
	}

	rules := &robotsRules{group: data.FindGroup(f.cfg.UserAgent)}
	for _, loc := range data.Sitemaps {
		parsed, err := url.Parse(strings.TrimSpace(loc))
		if err != nil {
			f.logger.Debug(fmt.Sprintf("invalid sitemap URL %q in robots.txt %s: %v", loc, robotsURL, err))
			continue
		}
		if !parsed.IsAbs() {
			parsed = base.ResolveReference(parsed)
		}
		rules.sitemaps = append(rules.sitemaps, parsed)
	}
	return rules
}

func (f *HTTPFetcher) allowedByRobots(ctx context.Context, loc *url.URL) bool {
	rules := f.getRobots(ctx, &url.URL{Scheme: loc.Scheme, Host: loc.Host})
	if rules == nil || rules.group == nil {
		return true
	}
	path := loc.EscapedPath()
	if path == "" {
		path = "/"
	}
	if loc.RawQuery != "" {
		path += "?" + loc.RawQuery
	}
	return rules.group.Test(path)
}
