package sitemapcsv

import (
	"context"
	"net/url"
)

// Fetcher retrieves the raw bytes of a sitemap document.
type Fetcher interface {
	Fetch(ctx context.Context, loc *url.URL) ([]byte, error)
}

// Parser turns raw sitemap bytes into an ordered list of entries.
type Parser interface {
	Parse(data []byte) (*Document, error)
}

// Kind classifies a sitemap document.
type Kind int

const (
	KindUnknown Kind = iota
	KindIndex
	KindURLSet
)

func (k Kind) String() string {
	switch k {
	case KindIndex:
		return "index"
	case KindURLSet:
		return "urlset"
	default:
		return "unknown"
	}
}

// Entry is a single <loc> found in a sitemap document.
type Entry struct {
	Loc     string
	IsIndex bool
}

// Document is what a Parser produces for one sitemap.
type Document struct {
	Kind    Kind
	Entries []Entry
}

// ErrorKind classifies a per-node failure.
type ErrorKind string

const (
	FetchError    ErrorKind = "FetchError"
	ParseError    ErrorKind = "ParseError"
	LimitExceeded ErrorKind = "LimitExceeded"
)

// Failure records a sitemap node that could not be resolved.
type Failure struct {
	URL     string
	Kind    ErrorKind
	Message string
	Err     error
}

// Sitemap records a sitemap node visited during a run.
type Sitemap struct {
	URL        string
	Kind       Kind
	Depth      int
	EntryCount int
}

// Result is the outcome of a Resolve call.
type Result struct {
	// URLs holds distinct leaf URLs in first-discovery order.
	URLs     []string
	Failures []Failure
	Sitemaps []Sitemap
	Fetches  int
}
