package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tileverse/rangereader/diskcache"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect an on-disk range cache",
	}
	cmd.AddCommand(newCacheStatCmd())
	return cmd
}

func newCacheStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <cache-dir>",
		Short: "Print entry counts and sizes for every source scope in a cache directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := diskcache.Inspect(args[0])
			if err != nil {
				return fmt.Errorf("inspecting %s: %w", args[0], err)
			}
			if len(stats) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no cached sources under %s\n", args[0])
				return nil
			}

			var totalEntries, totalBytes int64
			for _, s := range stats {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tentries=%d\tbytes=%d\n", s.SourceHash, s.EntryCount, s.TotalBytes)
				totalEntries += s.EntryCount
				totalBytes += s.TotalBytes
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total\tentries=%d\tbytes=%d\n", totalEntries, totalBytes)
			return nil
		},
	}
}
