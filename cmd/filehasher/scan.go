package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Scan a directory and compute checksums",
	Long: `Walk a directory, compute a checksum for every regular file and print
a report. With --output the result is also saved as a manifest.

Files are hashed while the walk is still running unless --no-hash is set,
in which case only names and sizes are collected.`,
	Example: `  filehasher scan ~/photos
  filehasher scan -a sha256 ~/photos -o photos.sfv
  filehasher scan . -o sums.sfv.zst --format pretty`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

var (
	scanOutput   string
	scanNoHash   bool
	scanBlocking bool
)

func init() {
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "save the result as a manifest (.gz and .zst are compressed)")
	scanCmd.Flags().BoolVar(&scanNoHash, "no-hash", false, "only list files, do not compute checksums")
	scanCmd.Flags().BoolVar(&scanBlocking, "blocking", false, "hash inside the directory walk instead of the worker pool")
	rootCmd.AddCommand(scanCmd)
}

func runScan(_ *cobra.Command, args []string) error {
	root := args[0]
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	settings := cfg.Settings()
	if scanNoHash {
		settings.ScanImmediately = false
	}
	if scanBlocking {
		settings.BlockingHashCalc = true
	}
	printVerbose("scanning %s with %s", root, settings.Algorithm)

	s, err := newSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	res, err := s.run(func(ctx context.Context) error {
		return s.proj.Scan(ctx, root, settings)
	})
	if err != nil {
		return err
	}

	if scanOutput != "" {
		if err := s.proj.Save(scanOutput); err != nil {
			return fmt.Errorf("failed to save manifest: %w", err)
		}
		printInfo("Saved %d entries to %s", res.Counts.Total, scanOutput)
	}
	s.record(res, absPath(scanOutput))

	if err := s.report(nil, res, nil); err != nil {
		return err
	}
	summarize(res)
	for _, fe := range res.Errors {
		logger.Debug("file error", "path", fe.Path, "error", fe.Error)
	}
	if res.Aborted {
		return errAborted
	}
	return nil
}

// loadManifest loads path into the session's project and reports how
// many lines were only partially understood.
func loadManifest(s *session, path string) ([]*types.ParseError, error) {
	res, err := s.proj.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	if n := len(res.Warnings); n > 0 {
		printInfo("Warning: %d manifest lines could not be fully parsed", n)
	}
	printVerbose("loaded %d entries from %s", len(res.Entries), path)
	return res.Warnings, nil
}
