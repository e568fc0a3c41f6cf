package sitemapcsv

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// XMLParser parses sitemap and sitemap index documents from the sitemaps.org vocabulary.
type XMLParser struct{}

// NewXMLParser returns the default Parser.
func NewXMLParser() *XMLParser {
	return &XMLParser{}
}

type xmlLocEntry struct {
	Loc string `xml:"loc"`
}

// Parse classifies the document by its root element and returns its <loc> entries in document order.
func (p *XMLParser) Parse(data []byte) (*Document, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	decoder.CharsetReader = charset.NewReaderLabel

	doc := &Document{}
	var entryName string
	for {
		tok, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if doc.Kind == KindUnknown {
			switch start.Name.Local {
			case "sitemapindex":
				doc.Kind = KindIndex
				entryName = "sitemap"
			case "urlset":
				doc.Kind = KindURLSet
				entryName = "url"
			default:
				return nil, &ErrUnsupportedRoot{Name: start.Name.Local}
			}
			continue
		}
		if start.Name.Local != entryName {
			if err := decoder.Skip(); err != nil {
				return nil, err
			}
			continue
		}
		var entry xmlLocEntry
		if err := decoder.DecodeElement(&entry, &start); err != nil {
			return nil, err
		}
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}
		doc.Entries = append(doc.Entries, Entry{Loc: loc, IsIndex: doc.Kind == KindIndex})
	}
	if doc.Kind == KindUnknown {
		return nil, errors.New("no sitemap root element found")
	}
	return doc, nil
}
