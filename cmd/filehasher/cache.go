package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/filehasher/pkg/filehasher/cache"
	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the digest cache",
	Long: `Commands for managing the digest cache.

The cache remembers the checksum of every hashed file together with its
size and modification time, so unchanged files are not read again on the
next scan. Verification always reads the files.
Cache data is stored in the XDG cache directory (typically ~/.cache/filehasher/digests).`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached digests",
	Long: `Removes cached digests. With --algorithm only the digests of that
algorithm are removed.`,
	RunE: runCacheClear,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Long:  `Displays the cache location, its size on disk and the number of digests per algorithm.`,
	RunE:  runCacheStats,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop digests of missing or changed files",
	Long:  `Removes every cached digest whose file no longer exists or has a different size or modification time.`,
	RunE:  runCachePrune,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	Long:  `Prints the path to the cache directory.`,
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(cfg.CachePath())
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

// openCache opens the cache, or returns nil when it was never created.
func openCache() (*cache.Cache, error) {
	path := cfg.CachePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	c, err := cache.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return c, nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	var alg types.Algorithm
	if cmd.Flags().Changed("algorithm") {
		alg = types.AlgorithmOrDefault(cfg.Algorithm)
	}

	c, err := openCache()
	if err != nil {
		return err
	}
	if c == nil {
		fmt.Println("Cache is already empty.")
		return nil
	}
	defer c.Close()

	if err := c.Clear(alg); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	if alg != "" {
		fmt.Printf("Cleared %s digests.\n", alg)
		return nil
	}
	fmt.Println("Cache cleared.")
	return nil
}

func runCacheStats(_ *cobra.Command, _ []string) error {
	fmt.Printf("Cache location: %s\n", cfg.CachePath())

	c, err := openCache()
	if err != nil {
		return err
	}
	if c == nil {
		fmt.Println("Cache: empty (not created yet)")
		return nil
	}
	defer c.Close()

	st, err := c.Stats()
	if err != nil {
		return fmt.Errorf("failed to read cache statistics: %w", err)
	}

	fmt.Printf("Cache size:     %s\n", humanize.IBytes(uint64(st.LSMBytes+st.VLogBytes)))
	fmt.Printf("Digests:        %s\n", humanize.Comma(st.Total))

	algs := make([]types.Algorithm, 0, len(st.Entries))
	for alg := range st.Entries {
		algs = append(algs, alg)
	}
	sort.Slice(algs, func(i, j int) bool { return algs[i] < algs[j] })
	for _, alg := range algs {
		fmt.Printf("  %-8s %s\n", alg, humanize.Comma(st.Entries[alg]))
	}
	return nil
}

func runCachePrune(_ *cobra.Command, _ []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}
	if c == nil {
		fmt.Println("Cache is empty, nothing to prune.")
		return nil
	}
	defer c.Close()

	removed, err := c.Prune()
	if err != nil {
		return fmt.Errorf("failed to prune cache: %w", err)
	}
	fmt.Printf("Removed %d stale digests.\n", removed)
	return nil
}
