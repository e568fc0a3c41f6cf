package sitemapcsv

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestXMLParser_URLSet(t *testing.T) {
	const sitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9" xmlns:image="http://www.google.com/schemas/sitemap-image/1.1">
  <url>
    <loc>
      https://example.com/a
    </loc>
    <lastmod>2024-01-02</lastmod>
    <image:image><image:loc>https://example.com/a.png</image:loc></image:image>
  </url>
  <url><loc></loc></url>
  <url><loc>/b</loc></url>
</urlset>`

	doc, err := NewXMLParser().Parse([]byte(sitemap))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	want := &Document{
		Kind: KindURLSet,
		Entries: []Entry{
			{Loc: "https://example.com/a"},
			{Loc: "/b"},
		},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestXMLParser_Index(t *testing.T) {
	const index = `<?xml version="1.0" encoding="UTF-8"?>
<sm:sitemapindex xmlns:sm="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sm:sitemap><sm:loc>https://example.com/sitemap-a.xml</sm:loc></sm:sitemap>
  <sm:sitemap><sm:loc>https://example.com/sitemap-b.xml</sm:loc><sm:lastmod>2024-01-01</sm:lastmod></sm:sitemap>
</sm:sitemapindex>`

	doc, err := NewXMLParser().Parse([]byte(index))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	want := &Document{
		Kind: KindIndex,
		Entries: []Entry{
			{Loc: "https://example.com/sitemap-a.xml", IsIndex: true},
			{Loc: "https://example.com/sitemap-b.xml", IsIndex: true},
		},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestXMLParser_IgnoresForeignEntries(t *testing.T) {
	// <url> inside an index is not a sitemap reference.
	const index = `<sitemapindex>
  <url><loc>https://example.com/page</loc></url>
  <sitemap><loc>https://example.com/nested.xml</loc></sitemap>
</sitemapindex>`

	doc, err := NewXMLParser().Parse([]byte(index))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if diff := cmp.Diff([]Entry{{Loc: "https://example.com/nested.xml", IsIndex: true}}, doc.Entries); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestXMLParser_Charset(t *testing.T) {
	// "café" encoded as ISO-8859-1.
	data := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><urlset><url><loc>https://example.com/caf`), 0xe9)
	data = append(data, []byte(`</loc></url></urlset>`)...)

	doc, err := NewXMLParser().Parse(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(doc.Entries) != 1 || doc.Entries[0].Loc != "https://example.com/café" {
		t.Fatalf("unexpected entries: %+v", doc.Entries)
	}
}

func TestXMLParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "not xml", data: "<!doctype html> hello"},
		{name: "truncated", data: `<urlset><url><loc>https://example.com/a</loc>`},
		{name: "html root", data: `<html><body>nope</body></html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewXMLParser().Parse([]byte(tt.data)); err == nil {
				t.Fatalf("expected parse error")
			}
		})
	}
}

func TestXMLParser_UnsupportedRoot(t *testing.T) {
	_, err := NewXMLParser().Parse([]byte(`<rss><channel></channel></rss>`))
	var rootErr *ErrUnsupportedRoot
	if !errors.As(err, &rootErr) {
		t.Fatalf("expected ErrUnsupportedRoot, got %v", err)
	}
	if rootErr.Name != "rss" {
		t.Fatalf("expected root name rss, got %q", rootErr.Name)
	}
}
