package sitemapcsv

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

func parseRootURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ErrInvalidRootURL{Err: errors.New("empty URL")}
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, &ErrInvalidRootURL{URL: raw, Err: err}
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	case "":
		return nil, &ErrInvalidRootURL{URL: raw, Err: errors.New("URL is not absolute")}
	default:
		return nil, &ErrInvalidRootURL{URL: raw, Err: fmt.Errorf("unsupported scheme %q", parsed.Scheme)}
	}
	if parsed.Host == "" {
		return nil, &ErrInvalidRootURL{URL: raw, Err: errors.New("missing host")}
	}
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed, nil
}

func resolveLocation(base *url.URL, loc string) (*url.URL, error) {
	trimmed := strings.TrimSpace(loc)
	if trimmed == "" {
		return nil, errors.New("empty loc")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, err
	}
	if !parsed.IsAbs() {
		parsed = base.ResolveReference(parsed)
	}
	parsed.Fragment = ""
	parsed.RawFragment = ""
	if parsed.Host == "" {
		return nil, fmt.Errorf("missing host in %q", trimmed)
	}
	return parsed, nil
}

// canonicalURLKey is the identity used by the visited set and leaf dedup.
func canonicalURLKey(u *url.URL) string {
	if u == nil {
		return ""
	}
	clone := *u
	clone.Fragment = ""
	clone.RawFragment = ""
	clone.Scheme = strings.ToLower(clone.Scheme)

	host := strings.ToLower(clone.Hostname())
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	port := clone.Port()
	if (clone.Scheme == "http" && port == "80") || (clone.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		clone.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		clone.Host = "[" + host + "]"
	} else {
		clone.Host = host
	}
	if clone.Path == "" && clone.Opaque == "" {
		clone.Path = "/"
		clone.RawPath = ""
	}
	return clone.String()
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	copy := *u
	return &copy
}
