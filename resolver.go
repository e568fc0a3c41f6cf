package sitemapcsv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxDepth bounds how deep nested sitemap indexes are followed.
	DefaultMaxDepth = 20
	// DefaultMaxFetches bounds how many sitemap documents one run may fetch.
	DefaultMaxFetches = 10000
)

// ===================== Configuration =====================

// Options configures traversal limits and collaborators.
//
// For MaxDepth and MaxFetches, zero selects the default and a negative value
// disables the limit.
type Options struct {
	Fetcher     Fetcher
	Parser      Parser
	MaxDepth    int
	MaxFetches  int
	Concurrency int
	Logger      *slog.Logger
}

// Resolver flattens a sitemap tree into its distinct leaf URLs.
type Resolver struct {
	opts    Options
	fetcher Fetcher
	parser  Parser
	logger  *slog.Logger
}

// ===================== Public API =====================

// New builds a Resolver with defaults applied. A nil Fetcher becomes an
// HTTPFetcher with an empty TransportConfig.
func New(opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Fetcher == nil {
		opts.Fetcher = newDefaultFetcher(opts.Logger)
	}
	if opts.Parser == nil {
		opts.Parser = NewXMLParser()
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxFetches == 0 {
		opts.MaxFetches = DefaultMaxFetches
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Resolver{
		opts:    opts,
		fetcher: opts.Fetcher,
		parser:  opts.Parser,
		logger:  opts.Logger,
	}
}

// Resolve walks the sitemap tree rooted at rootURL.
//
// Per-sitemap failures are collected in Result.Failures and never abort the
// walk. The returned error is an *ErrInvalidRootURL, or the context error
// when ctx ends early, in which case the partial Result is still returned.
func (r *Resolver) Resolve(ctx context.Context, rootURL string) (*Result, error) {
	return r.ResolveAll(ctx, []string{rootURL})
}

// ResolveAll walks several roots in one run sharing a single visited set.
func (r *Resolver) ResolveAll(ctx context.Context, rootURLs []string) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(rootURLs) == 0 {
		return nil, &ErrInvalidRootURL{Err: errors.New("no root URL")}
	}

	t := newTraversal()
	level := make([]sitemapTask, 0, len(rootURLs))
	for _, raw := range rootURLs {
		root, err := parseRootURL(raw)
		if err != nil {
			return nil, err
		}
		key := canonicalURLKey(root)
		t.sitemapKeys[key] = struct{}{}
		level = append(level, sitemapTask{loc: root, key: key, depth: 0})
	}

	for len(level) > 0 {
		if err := ctx.Err(); err != nil {
			return t.result(), err
		}
		jobs := r.claim(t, level)
		r.fetchAll(ctx, jobs)
		// finished sitemaps of an interrupted level still count
		level = r.merge(t, jobs)
		if err := ctx.Err(); err != nil {
			return t.result(), err
		}
	}

	return t.result(), nil
}

// ===================== Internal Types =====================

type sitemapTask struct {
	loc   *url.URL
	key   string
	depth int
}

type nodeOutcome struct {
	task    sitemapTask
	fetch   bool
	doc     *Document
	failure *Failure

	// canceled is set when the fetch was cut short by the run's context.
	canceled bool
}

type leafURL struct {
	key string
	loc string
}

// traversal holds all state owned by one ResolveAll call.
type traversal struct {
	visited     map[string]struct{}
	sitemapKeys map[string]struct{}
	leafKeys    map[string]struct{}
	leaves      []leafURL
	failures    []Failure
	sitemaps    []Sitemap
	fetches     int
}

func newTraversal() *traversal {
	return &traversal{
		visited:     map[string]struct{}{},
		sitemapKeys: map[string]struct{}{},
		leafKeys:    map[string]struct{}{},
	}
}

func (t *traversal) result() *Result {
	urls := make([]string, 0, len(t.leaves))
	for _, leaf := range t.leaves {
		// a URL also referenced as a sitemap is never a leaf
		if _, ok := t.sitemapKeys[leaf.key]; ok {
			continue
		}
		urls = append(urls, leaf.loc)
	}
	return &Result{
		URLs:     urls,
		Failures: append([]Failure(nil), t.failures...),
		Sitemaps: append([]Sitemap(nil), t.sitemaps...),
		Fetches:  t.fetches,
	}
}

// ===================== Traversal =====================

// claim marks every not-yet-visited task of a level as visited and applies limits.
// It runs sequentially so the visited set and fetch budget stay deterministic.
func (r *Resolver) claim(t *traversal, level []sitemapTask) []*nodeOutcome {
	jobs := make([]*nodeOutcome, 0, len(level))
	for _, task := range level {
		if _, ok := t.visited[task.key]; ok {
			r.logger.Debug(fmt.Sprintf("skipping already visited sitemap %s", task.loc))
			continue
		}
		t.visited[task.key] = struct{}{}

		job := &nodeOutcome{task: task}
		switch {
		case r.opts.MaxDepth > 0 && task.depth > r.opts.MaxDepth:
			job.failure = limitFailure(task.loc, &ErrMaxDepth{MaxDepth: r.opts.MaxDepth, URL: cloneURL(task.loc)})
		case r.opts.MaxFetches > 0 && t.fetches >= r.opts.MaxFetches:
			job.failure = limitFailure(task.loc, &ErrMaxFetches{MaxFetches: r.opts.MaxFetches})
		default:
			t.fetches++
			job.fetch = true
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// fetchAll fetches and parses the claimed sitemaps of one level, at most
// Concurrency at a time. Each job only writes its own outcome.
func (r *Resolver) fetchAll(ctx context.Context, jobs []*nodeOutcome) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for _, job := range jobs {
		if !job.fetch {
			continue
		}
		g.Go(func() error {
			r.process(gctx, job)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Resolver) process(ctx context.Context, job *nodeOutcome) {
	loc := job.task.loc
	r.logger.Debug(fmt.Sprintf("fetching sitemap %s (depth %d)", loc, job.task.depth))

	data, err := r.fetcher.Fetch(ctx, loc)
	if err != nil {
		if ctx.Err() != nil {
			job.canceled = true
			return
		}
		job.failure = &Failure{URL: loc.String(), Kind: FetchError, Message: err.Error(), Err: err}
		return
	}
	doc, err := r.parser.Parse(data)
	if err != nil {
		parseErr := &ErrSitemapParse{URL: cloneURL(loc), Err: err}
		job.failure = &Failure{URL: loc.String(), Kind: ParseError, Message: parseErr.Error(), Err: parseErr}
		return
	}
	job.doc = doc
}

// merge folds the outcomes of one level into the traversal in queue order and
// returns the next level.
func (r *Resolver) merge(t *traversal, jobs []*nodeOutcome) []sitemapTask {
	var next []sitemapTask
	for _, job := range jobs {
		if job.canceled {
			r.logger.Debug(fmt.Sprintf("sitemap %s interrupted", job.task.loc))
			continue
		}
		if job.failure != nil {
			r.logger.Warn(fmt.Sprintf("sitemap %s failed: %s", job.failure.URL, job.failure.Message))
			t.failures = append(t.failures, *job.failure)
			continue
		}

		doc := job.doc
		r.logger.Debug(fmt.Sprintf("parsed %s sitemap %s with %d entries", doc.Kind, job.task.loc, len(doc.Entries)))
		t.sitemaps = append(t.sitemaps, Sitemap{
			URL:        job.task.loc.String(),
			Kind:       doc.Kind,
			Depth:      job.task.depth,
			EntryCount: len(doc.Entries),
		})

		for _, entry := range doc.Entries {
			loc, err := resolveLocation(job.task.loc, entry.Loc)
			if err != nil {
				r.logger.Debug(fmt.Sprintf("invalid URL %q in %s: %v", entry.Loc, job.task.loc, err))
				continue
			}
			key := canonicalURLKey(loc)
			if entry.IsIndex {
				t.sitemapKeys[key] = struct{}{}
				if _, ok := t.visited[key]; ok {
					continue
				}
				next = append(next, sitemapTask{loc: loc, key: key, depth: job.task.depth + 1})
				continue
			}
			if _, ok := t.leafKeys[key]; ok {
				continue
			}
			t.leafKeys[key] = struct{}{}
			t.leaves = append(t.leaves, leafURL{key: key, loc: loc.String()})
		}
	}
	return next
}

func limitFailure(loc *url.URL, err error) *Failure {
	return &Failure{URL: loc.String(), Kind: LimitExceeded, Message: err.Error(), Err: err}
}
