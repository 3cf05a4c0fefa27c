package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage result caches",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-cache hit/miss statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initShell(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		for _, s := range env.Caches.Stats() {
			fmt.Printf("%s: %d entries, %d hits / %d misses (%.1f%% hit rate), %d evictions\n",
				s.Name, s.Entries, s.Hits, s.Misses, s.HitRate*100, s.Evictions)
			fmt.Printf("  avg load %.0fms, estimated savings $%.2f\n", s.AvgLoadMillis, s.EstimatedSavings)
		}
		for _, c := range env.Caches.Configs() {
			fmt.Printf("%s: ttl=%s max=%d purpose=%q\n", c.Name, c.TTL, c.MaxEntries, c.Purpose)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [name]",
	Short: "Clear one cache by name, or all caches",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initShell(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if len(args) == 0 {
			env.Caches.ClearAll()
			fmt.Println("all caches cleared")
			return nil
		}
		if !env.Caches.Clear(args[0]) {
			return eris.Errorf("no cache named %q", args[0])
		}
		fmt.Printf("cache %q cleared\n", args[0])
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
