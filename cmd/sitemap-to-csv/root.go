package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	sitemapcsv "github.com/kotylevskiy/go-sitemap-csv"
	"github.com/kotylevskiy/go-sitemap-csv/export"
	"github.com/kotylevskiy/go-sitemap-csv/internal/config"
	"github.com/kotylevskiy/go-sitemap-csv/internal/history"
)

// app carries what every subcommand shares after flags and config are merged.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{cfg: config.NewConfig(), stdout: stdout, stderr: stderr}
	cfg := a.cfg

	cmd := &cobra.Command{
		Use:          "sitemap-to-csv [flags] <sitemap URL>",
		Short:        "Flatten a sitemap tree into a CSV of page URLs",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), args[0])
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	persistent := cmd.PersistentFlags()
	persistent.StringVar(&cfg.ConfigFilePath, "config", "", "Config file (default "+config.DefaultConfigPath()+")")
	persistent.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	persistent.IntVar(&cfg.MaxDepth, "max-depth", cfg.MaxDepth, "Maximum sitemap index depth (negative = no limit)")
	persistent.IntVar(&cfg.MaxFetches, "max-fetches", cfg.MaxFetches, "Maximum number of sitemaps to fetch (negative = no limit)")
	persistent.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Sitemaps fetched in parallel")
	persistent.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout (e.g. 5s, 500ms)")
	persistent.DurationVar(&cfg.TotalTimeout, "total-timeout", 0, "Timeout for the whole run (0 = none)")
	persistent.StringVar(&cfg.CAFile, "ca-file", "", "PEM bundle of extra trusted CAs")
	persistent.BoolVar(&cfg.Insecure, "insecure", false, "Skip TLS certificate verification")
	persistent.StringVar(&cfg.UserAgent, "user-agent", "", "User-Agent for HTTP requests")
	persistent.Int64Var(&cfg.MaxBodySize, "max-body-size", 0, "Maximum sitemap size in bytes (0 = default)")
	persistent.BoolVar(&cfg.RespectRobots, "respect-robots", false, "Skip sitemaps disallowed by robots.txt")
	persistent.BoolVar(&cfg.History, "history", false, "Record the run in the history database")
	persistent.StringVar(&cfg.DBDir, "db-dir", cfg.DBDir, "Directory of the history database")

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Output, "output", "o", cfg.Output, `CSV output path ("-" = stdout)`)
	flags.BoolVar(&cfg.StripDomain, "strip-domain", false, "Keep only path, query and fragment")
	flags.BoolVar(&cfg.Sort, "sort", false, "Sort URLs instead of keeping discovery order")
	flags.StringVar(&cfg.ReportFile, "report", "", "Write a Markdown report to this file")
	flags.BoolVar(&cfg.Discover, "discover", false, "Treat the argument as a site and find its sitemaps")

	cmd.AddCommand(newServeCmd(a), newHistoryCmd(a))
	return cmd
}

// setup merges the config file under the command-line flags, validates the
// result and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	file, err := a.cfg.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg.Merge(file, func(key string) bool {
		flag := cmd.Flags().Lookup(key)
		return flag != nil && flag.Changed
	})
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	level, err := resolveLogLevel(a.cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

func (a *app) signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runContext returns a context canceled on SIGINT/SIGTERM and after TotalTimeout.
func (a *app) runContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := a.signalContext(parent)
	if a.cfg.TotalTimeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.TotalTimeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func (a *app) run(parent context.Context, target string) error {
	cfg := a.cfg
	ctx, cancel := a.runContext(parent)
	defer cancel()

	fetcher, err := sitemapcsv.NewHTTPFetcher(cfg.Transport(a.logger))
	if err != nil {
		return err
	}

	roots := []string{target}
	if cfg.Discover {
		roots, err = fetcher.DiscoverSitemaps(ctx, target)
		if err != nil {
			return err
		}
		a.logger.Info("discovered sitemaps", "site", target, "sitemaps", roots)
	}

	started := time.Now()
	result, err := sitemapcsv.New(cfg.ResolverOptions(fetcher, a.logger)).ResolveAll(ctx, roots)
	if err != nil {
		if result == nil {
			return err
		}
		fmt.Fprintf(a.stderr, "Stopped early (%v); results are partial.\n", err)
	}
	elapsed := time.Since(started)

	csvOpts := export.CSVOptions{StripDomain: cfg.StripDomain, Sort: cfg.Sort}
	if cfg.Output == "-" {
		err = export.WriteCSV(a.stdout, result.URLs, csvOpts)
	} else {
		err = export.WriteCSVFile(cfg.Output, result.URLs, csvOpts)
	}
	if err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}

	if cfg.ReportFile != "" {
		if err := writeReport(cfg.ReportFile, roots, result); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if cfg.History {
		a.record(roots, started, elapsed, result)
	}

	summary := a.stdout
	if cfg.Output == "-" {
		summary = a.stderr
	}
	fmt.Fprintf(summary, "Wrote %d unique URLs to %s\n", len(export.Rows(result.URLs, csvOpts)), cfg.Output)
	a.printFailures(result.Failures)
	return nil
}

// record stores the run; a broken history database never fails the run.
func (a *app) record(roots []string, started time.Time, elapsed time.Duration, result *sitemapcsv.Result) {
	store, err := history.Open(a.cfg.DBDir)
	if err != nil {
		a.logger.Warn("history disabled", "error", err)
		return
	}
	defer store.Close()
	id, err := store.Record(context.Background(), roots, started, elapsed, result)
	if err != nil {
		a.logger.Warn("failed to record run", "error", err)
		return
	}
	a.logger.Info("recorded run", "id", id, "db", store.Path())
}

func (a *app) printFailures(failures []sitemapcsv.Failure) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintf(a.stderr, "%d sitemap(s) failed:\n", len(failures))
	for _, f := range failures {
		fmt.Fprintf(a.stderr, "  [%s] %s: %s\n", f.Kind, f.URL, f.Message)
	}
}

func writeReport(path string, roots []string, result *sitemapcsv.Result) (err error) {
	file, err := os.Create(path) //nolint:gosec // user-selected report path
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return export.WriteReport(file, roots, result)
}
