package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sessionforge/sessionforge/pkg/config"
	"github.com/sessionforge/sessionforge/pkg/genlog"
	"github.com/sessionforge/sessionforge/pkg/models"
)

func newGenlogCmd() *cobra.Command {
	var (
		configPath string
		category   string
		prefix     string
		requestID  string
		hitsOnly   bool
		sinceDays  int
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "genlog",
		Short: "Query the generation invocation log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !cfg.GenLog.Enabled {
				fmt.Println("Generation log disabled in configuration.")
				return nil
			}

			l, err := genlog.New(cfg.GenLog)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			opts := models.GenQueryOpts{
				Category:       category,
				CacheKeyPrefix: prefix,
				RequestID:      requestID,
				HitsOnly:       hitsOnly,
				Limit:          limit,
			}
			if sinceDays > 0 {
				opts.Since = time.Now().AddDate(0, 0, -sinceDays)
			}

			records, err := l.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No matching invocations.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tREQUEST ID\tCATEGORY\tTYPE\tVARIANT\tCACHED\tLATENCY")
			for _, r := range records {
				cached := "miss"
				if r.CacheHit {
					cached = "hit"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%dms\n",
					r.CreatedAt.Format("2006-01-02T15:04:05"), r.RequestID,
					r.Category, r.SessionType, r.VariantIndex, cached, r.LatencyMs)
			}
			return w.Flush()
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show invocation counts by category and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			l, err := genlog.New(cfg.GenLog)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			stats, err := l.Stats(context.Background())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("No invocations recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DAY\tCATEGORY\tINVOCATIONS\tHITS")
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", s.Day, s.Category, s.Count, s.Hits)
			}
			return w.Flush()
		},
	}

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete records past the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			l, err := genlog.New(cfg.GenLog)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			n, err := l.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d records.\n", n)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sessionforge.yaml", "path to config file")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&prefix, "key-prefix", "", "filter by cache key prefix")
	cmd.Flags().StringVar(&requestID, "request-id", "", "show a specific invocation")
	cmd.Flags().BoolVar(&hitsOnly, "hits", false, "only show cache hits")
	cmd.Flags().IntVar(&sinceDays, "since-days", 0, "only show the last N days")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to show")
	cmd.AddCommand(statsCmd, cleanupCmd)
	return cmd
}
