package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sessionforge/sessionforge/pkg/analytics"
	"github.com/sessionforge/sessionforge/pkg/config"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		top        int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache hit analytics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !cfg.Analytics.Enabled {
				fmt.Println("Analytics disabled in configuration.")
				return nil
			}

			rec, err := analytics.New(cfg.Analytics.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = rec.Close() }()

			ctx := context.Background()

			summaries, err := rec.Summary(ctx)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No hit data recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tSESSION TYPE\tHITS\tLAST HIT")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					s.Category, s.SessionType, s.Events, s.LastHitAt.Format("2006-01-02T15:04:05"))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if top > 0 {
				prefixes, err := rec.TopPrefixes(ctx, top)
				if err != nil {
					return err
				}
				if len(prefixes) == 0 {
					return nil
				}

				type row struct {
					prefix string
					hits   int64
				}
				rows := make([]row, 0, len(prefixes))
				for p, n := range prefixes {
					rows = append(rows, row{p, n})
				}
				sort.Slice(rows, func(i, j int) bool { return rows[i].hits > rows[j].hits })

				fmt.Println()
				w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "KEY PREFIX\tHITS")
				for _, r := range rows {
					fmt.Fprintf(w, "%s\t%d\n", r.prefix, r.hits)
				}
				return w.Flush()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sessionforge.yaml", "path to config file")
	cmd.Flags().IntVar(&top, "top", 0, "also list the N hottest key prefixes")
	return cmd
}
