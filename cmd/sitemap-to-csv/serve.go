package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	sitemapcsv "github.com/kotylevskiy/go-sitemap-csv"
	"github.com/kotylevskiy/go-sitemap-csv/internal/history"
	"github.com/kotylevskiy/go-sitemap-csv/internal/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&a.cfg.Addr, "addr", a.cfg.Addr, "Listen address")
	return cmd
}

// resolverFactory builds a fresh fetcher per request so the CA bundle can be
// toggled from the form.
func (a *app) resolverFactory(useCA bool) (web.Resolver, error) {
	transport := a.cfg.Transport(a.logger)
	if !useCA {
		transport.CAFile = ""
	}
	fetcher, err := sitemapcsv.NewHTTPFetcher(transport)
	if err != nil {
		return nil, err
	}
	return sitemapcsv.New(a.cfg.ResolverOptions(fetcher, a.logger)), nil
}

func (a *app) serve(parent context.Context) error {
	ctx, stop := a.signalContext(parent)
	defer stop()

	opts := web.Options{
		NewResolver: a.resolverFactory,
		CAAvailable: a.cfg.CAFile != "",
		RunTimeout:  a.cfg.TotalTimeout,
		Logger:      a.logger,
	}
	if a.cfg.History {
		store, err := history.Open(a.cfg.DBDir)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Recorder = store
	}

	listener, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           web.New(opts).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Fprintf(a.stdout, "Serving on http://%s\n", listener.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
