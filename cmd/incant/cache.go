package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the semantic cache",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(func(app application) error {
				entries, err := app.Cache.ListRecent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "cache is empty")
					return nil
				}
				for _, entry := range entries {
					kind := "global"
					if entry.ContextHash != "" {
						kind = "contextual"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%4d  %s  hits=%-3d %-10s %s\n",
						entry.ID,
						entry.CreatedAt.Local().Format("2006-01-02 15:04"),
						entry.HitCount,
						kind,
						entry.Query)
					fmt.Fprintf(cmd.OutOrStdout(), "      -> %s\n", entry.Response)
				}
				return nil
			})
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries to show")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(func(app application) error {
				stats, err := app.Cache.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Entries:  %d\n", stats.Count)
				fmt.Fprintf(out, "Hits:     %d\n", stats.TotalHits)
				fmt.Fprintf(out, "Expired:  %d\n", stats.ExpiredCount)
				fmt.Fprintf(out, "Storage:  %s\n", formatBytes(stats.StorageBytes))
				if !stats.Oldest.IsZero() {
					fmt.Fprintf(out, "Oldest:   %s\n", stats.Oldest.Local().Format(time.RFC1123))
					fmt.Fprintf(out, "Newest:   %s\n", stats.Newest.Local().Format(time.RFC1123))
				}
				return nil
			})
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(func(app application) error {
				var (
					removed int64
					err     error
				)
				if expiredOnly {
					removed, err = app.Cache.PruneExpired(cmd.Context())
				} else {
					removed, err = app.Cache.ClearAll(cmd.Context())
				}
				if err != nil {
					return err
				}
				if expiredOnly {
					fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", removed)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
				}
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only remove expired entries")

	rmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a single cache entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid entry id %q", args[0])
			}
			return runApp(func(app application) error {
				found, err := app.Cache.ClearByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no cache entry with id %d", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed entry %d\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(listCmd, statsCmd, clearCmd, rmCmd)
	return cmd
}

func formatBytes(n int64) string {
	const kib = 1024
	switch {
	case n >= kib*kib:
		return fmt.Sprintf("%.1f MiB", float64(n)/(kib*kib))
	case n >= kib:
		return fmt.Sprintf("%.1f KiB", float64(n)/kib)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
