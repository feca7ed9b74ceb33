package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/koeck/voicegpt/internal/cache"
	"github.com/spf13/cobra"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the speech cache",
		Long:  paragraph(fmt.Sprintf("\nSynthesized sentences are %s so repeated answers are spoken without calling the engine again.", keyword("cached on disk"))),
		Args:  cobra.NoArgs,
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show how much audio is cached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(func(m *cache.CacheManager) error {
				s := m.Stats().Disk
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s\n", keyword("Directory:"), m.Dir())
				fmt.Fprintf(out, "%s %s\n", keyword("Clips:    "), humanize.Comma(int64(s.Entries)))
				fmt.Fprintf(out, "%s %s of %s\n", keyword("Size:     "),
					humanize.IBytes(uint64(s.Size)), humanize.IBytes(uint64(s.Capacity))) //nolint:gosec
				if !s.LastEviction.IsZero() {
					fmt.Fprintf(out, "%s %s\n", keyword("Evicted:  "), humanize.Time(s.LastEviction))
				}
				return nil
			})
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached clip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(func(m *cache.CacheManager) error {
				before := m.Stats().Disk
				if err := m.Clear(); err != nil {
					return err //nolint:wrapcheck
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s clips (%s)\n",
					humanize.Comma(int64(before.Entries)), humanize.IBytes(uint64(before.Size))) //nolint:gosec
				return nil
			})
		},
	}

	cachePruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Remove clips older than 30 days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(func(m *cache.CacheManager) error {
				n := m.Sweep()
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s clips\n", humanize.Comma(int64(n)))
				return nil
			})
		},
	}
)

// withCache opens the configured cache without its background sweeper.
func withCache(fn func(*cache.CacheManager) error) error {
	cfg, err := cacheConfig()
	if err != nil {
		return err
	}
	cfg.SweepInterval = 0

	m, err := cache.NewCacheManager(cfg)
	if err != nil {
		return fmt.Errorf("unable to open speech cache: %w", err)
	}
	defer m.Close() //nolint:errcheck

	return fn(m)
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cachePruneCmd)
}
