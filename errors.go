package sitemapcsv

import (
	"fmt"
	"net/url"
)

// ErrInvalidRootURL indicates the root sitemap URL cannot be resolved.
type ErrInvalidRootURL struct {
	URL string
	Err error
}

func (e *ErrInvalidRootURL) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("invalid root URL: %v", e.Err)
	}
	return fmt.Sprintf("invalid root URL %q: %v", e.URL, e.Err)
}

func (e *ErrInvalidRootURL) Unwrap() error {
	return e.Err
}

// ErrHTTPStatus indicates an unexpected HTTP status while fetching a sitemap.
type ErrHTTPStatus struct {
	URL        *url.URL
	StatusCode int
	Status     string
}

func (e *ErrHTTPStatus) Error() string {
	if e.URL == nil {
		return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected HTTP status %d for %s", e.StatusCode, e.URL)
}

// ErrBodyTooLarge indicates a sitemap body exceeded the configured size cap.
type ErrBodyTooLarge struct {
	URL   *url.URL
	Limit int64
}

func (e *ErrBodyTooLarge) Error() string {
	return fmt.Sprintf("sitemap %s exceeds %d bytes", e.URL, e.Limit)
}

// ErrRobotsDisallowed indicates robots.txt forbids fetching a sitemap.
type ErrRobotsDisallowed struct {
	URL *url.URL
}

func (e *ErrRobotsDisallowed) Error() string {
	return fmt.Sprintf("robots.txt disallows %s", e.URL)
}

// ErrSitemapParse indicates a failure while parsing sitemap XML.
type ErrSitemapParse struct {
	URL *url.URL
	Err error
}

func (e *ErrSitemapParse) Error() string {
	if e.URL == nil {
		return fmt.Sprintf("sitemap parse failed: %v", e.Err)
	}
	return fmt.Sprintf("sitemap parse failed for %s: %v", e.URL, e.Err)
}

func (e *ErrSitemapParse) Unwrap() error {
	return e.Err
}

// ErrUnsupportedRoot indicates the XML root is neither urlset nor sitemapindex.
type ErrUnsupportedRoot struct {
	Name string
}

func (e *ErrUnsupportedRoot) Error() string {
	return fmt.Sprintf("unsupported sitemap root element <%s>", e.Name)
}

// ErrMaxDepth indicates the sitemap index depth limit was exceeded.
type ErrMaxDepth struct {
	MaxDepth int
	URL      *url.URL
}

func (e *ErrMaxDepth) Error() string {
	if e.URL == nil {
		return fmt.Sprintf("max depth %d exceeded", e.MaxDepth)
	}
	return fmt.Sprintf("max depth %d exceeded at %s", e.MaxDepth, e.URL)
}

// ErrMaxFetches indicates the sitemap fetch budget was exhausted.
type ErrMaxFetches struct {
	MaxFetches int
}

func (e *ErrMaxFetches) Error() string {
	return fmt.Sprintf("max fetches %d exceeded", e.MaxFetches)
}
