package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/kotylevskiy/go-sitemap-csv/internal/config"
	"github.com/kotylevskiy/go-sitemap-csv/internal/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := history.Open(a.cfg.DBDir)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.stdout, "No runs recorded.")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					strconv.FormatInt(run.ID, 10),
					run.StartedAt.Format(time.DateTime),
					strings.Join(run.Roots, " "),
					strconv.Itoa(run.URLCount),
					strconv.Itoa(run.FailureCount),
					run.Duration.Round(time.Millisecond).String(),
				})
			}
			md := markdown.NewMarkdown(a.stdout)
			md.Table(markdown.TableSet{
				Header: []string{"ID", "Started", "Roots", "URLs", "Failures", "Duration"},
				Rows:   rows,
			})
			return md.Build()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", config.DefaultHistoryLimit, "Number of runs to list")
	cmd.AddCommand(newHistoryDiffCmd(a))
	return cmd
}

func newHistoryDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <older run ID> <newer run ID>",
		Short: "Show URLs added and removed between two runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 2)
			for i, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid run ID %q", arg)
				}
				ids[i] = id
			}

			store, err := history.Open(a.cfg.DBDir)
			if err != nil {
				return err
			}
			defer store.Close()

			added, removed, err := store.Diff(cmd.Context(), ids[0], ids[1])
			if err != nil {
				return err
			}
			for _, u := range added {
				fmt.Fprintf(a.stdout, "+ %s\n", u)
			}
			for _, u := range removed {
				fmt.Fprintf(a.stdout, "- %s\n", u)
			}
			fmt.Fprintf(a.stdout, "%d added, %d removed\n", len(added), len(removed))
			return nil
		},
	}
}
