// Package export renders resolved sitemap URLs as CSV and Markdown.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Header is the single CSV column name.
const Header = "url"

// CSVOptions controls how URLs are written.
type CSVOptions struct {
	// StripDomain drops scheme and host, keeping path, query and fragment.
	StripDomain bool
	// Sort writes rows in lexical order instead of discovery order.
	Sort bool
}

// Rows applies opts to urls and returns the values that WriteCSV emits.
func Rows(urls []string, opts CSVOptions) []string {
	rows := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		value := raw
		if opts.StripDomain {
			value = stripDomain(raw)
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		rows = append(rows, value)
	}
	if opts.Sort {
		sort.Strings(rows)
	}
	return rows
}

// WriteCSV writes a header row followed by one row per URL.
func WriteCSV(w io.Writer, urls []string, opts CSVOptions) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{Header}); err != nil {
		return err
	}
	for _, row := range Rows(urls, opts) {
		if err := writer.Write([]string{row}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSVFile writes the CSV to path, creating parent directories.
func WriteCSVFile(path string, urls []string, opts CSVOptions) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	file, err := os.Create(path) //nolint:gosec // user-selected output path
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return WriteCSV(file, urls, opts)
}

// ReadCSV reads back a file produced by WriteCSV.
func ReadCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty CSV")
		}
		return nil, err
	}
	if strings.TrimPrefix(header[0], "\ufeff") != Header {
		return nil, fmt.Errorf("unexpected CSV header %q", header[0])
	}
	urls := []string{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return urls, nil
		}
		if err != nil {
			return nil, err
		}
		urls = append(urls, record[0])
	}
}

func stripDomain(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	out := parsed.EscapedPath()
	if out == "" {
		out = "/"
	}
	if parsed.RawQuery != "" {
		out += "?" + parsed.RawQuery
	}
	if parsed.Fragment != "" {
		out += "#" + parsed.EscapedFragment()
	}
	return out
}
