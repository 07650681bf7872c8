package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sessionforge/sessionforge/pkg/config"
	"github.com/sessionforge/sessionforge/pkg/gencache"
)

func cachePolicy(cfg *config.Config) gencache.Policy {
	return gencache.Policy{
		Enabled:        cfg.Cache.Enabled,
		TTL:            time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour,
		MaxBudgetUnits: cfg.Cache.MaxBudgetUnits,
	}
}

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the generation result cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, err := gencache.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			engine := gencache.NewEngine(store, cachePolicy(cfg), nil, nil, newLogger(cfg.LogLevel))
			stats, err := engine.Stats(context.Background())
			if err != nil {
				return err
			}

			fmt.Printf("Entries:      %d\n", stats.TotalEntries)
			fmt.Printf("Hits:         %d\n", stats.TotalHits)
			fmt.Printf("Avg hits:     %.2f\n", stats.AvgHitsPerEntry)
			fmt.Printf("Budget used:  %d / %d units\n", stats.BudgetUnitsUsed, cfg.Cache.MaxBudgetUnits)
			if stats.OldestAccess != nil {
				fmt.Printf("Oldest read:  %s\n", stats.OldestAccess.Format(time.RFC3339))
			}
			if stats.NewestAccess != nil {
				fmt.Printf("Newest read:  %s\n", stats.NewestAccess.Format(time.RFC3339))
			}
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, err := gencache.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			engine := gencache.NewEngine(store, cachePolicy(cfg), nil, nil, newLogger(cfg.LogLevel))
			n, err := engine.Clear(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %d cache entries.\n", n)
			return nil
		},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, err := gencache.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			maint := gencache.NewMaintainer(store, cachePolicy(cfg), newLogger(cfg.LogLevel))
			defer maint.Close()

			n, err := maint.SweepExpired(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Swept %d expired entries.\n", n)
			return nil
		},
	}

	evictCmd := &cobra.Command{
		Use:   "evict",
		Short: "Enforce the cache size budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, err := gencache.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			maint := gencache.NewMaintainer(store, cachePolicy(cfg), newLogger(cfg.LogLevel))
			defer maint.Close()

			n, err := maint.EnforceBudget(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Evicted %d entries.\n", n)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sessionforge.yaml", "path to config file")
	cmd.AddCommand(statsCmd, clearCmd, sweepCmd, evictCmd)
	return cmd
}
