package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mangameta/internal/metastore"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the fetched metadata cache",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePurgeCommand(ctx))
	return cacheCmd
}

func (c *commandContext) withMetadataCache(fn func(*metastore.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := metastore.Open(cfg.MetadataCachePath())
	if err != nil {
		return fmt.Errorf("open metadata cache: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show metadata cache size",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withMetadataCache(func(store *metastore.Store) error {
				count, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				cfg, _ := ctx.ensureConfig()
				ttl := "forever"
				if d := cfg.CacheTTL(); d > 0 {
					ttl = d.String()
				}
				fmt.Fprint(cmd.OutOrStdout(), renderFields([][2]string{
					{"Path", store.Path()},
					{"Enabled", yesNo(cfg.Provider.CacheEnabled)},
					{"Entries", fmt.Sprintf("%d", count)},
					{"TTL", ttl},
				}))
				return nil
			})
		},
	}
}

func newCachePurgeCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete cached metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withMetadataCache(func(store *metastore.Store) error {
				var cutoff time.Time
				if olderThan > 0 {
					cutoff = time.Now().Add(-olderThan)
				}
				removed, err := store.Purge(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached record(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only remove records fetched before this age (e.g. 720h)")
	return cmd
}
