package sitemapcsv

import (
	"context"
	"net/url"
	"strings"
)

// DiscoverSitemaps returns root sitemap URLs for a site. A URL that already
// points at a sitemap is returned unchanged; otherwise robots.txt Sitemap
// lines are used, falling back to /sitemap.xml.
func (f *HTTPFetcher) DiscoverSitemaps(ctx context.Context, site string) ([]string, error) {
	parsed, err := parseRootURL(site)
	if err != nil {
		return nil, err
	}
	if isLikelySitemapURL(parsed) {
		return []string{parsed.String()}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	rules := f.getRobots(ctx, base)
	if rules != nil && len(rules.sitemaps) > 0 {
		out := make([]string, 0, len(rules.sitemaps))
		for _, loc := range rules.sitemaps {
			out = append(out, loc.String())
		}
		return out, nil
	}
	return []string{base.ResolveReference(&url.URL{Path: "/sitemap.xml"}).String()}, nil
}

func isLikelySitemapURL(u *url.URL) bool {
	if u == nil {
		return false
	}
	path := strings.ToLower(u.Path)
	return strings.HasSuffix(path, ".xml") || strings.HasSuffix(path, ".xml.gz")
}
