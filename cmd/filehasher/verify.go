package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <manifest> [dir]",
	Short: "Verify files against a manifest",
	Long: `Load a manifest and compute a verification checksum for every entry,
using the algorithm recorded for that entry. Files are read from the
manifest's base directory, or from dir when given.

The exit status is 1 when any file does not match or could not be read.`,
	Example: `  filehasher verify photos.sfv
  filehasher verify photos.sfv /mnt/backup/photos
  filehasher verify photos.sfv --status mismatch`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runVerify,
}

var verifyFilter filterFlags

func init() {
	verifyFilter.register(verifyCmd.Flags())
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(_ *cobra.Command, args []string) error {
	path := args[0]
	var base string
	if len(args) == 2 {
		info, err := os.Stat(args[1])
		if err != nil {
			return fmt.Errorf("cannot access %s: %w", args[1], err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", args[1])
		}
		base = absPath(args[1])
	}

	f, err := verifyFilter.build()
	if err != nil {
		return err
	}

	s, err := newSession(false)
	if err != nil {
		return err
	}
	defer s.close()

	warnings, err := loadManifest(s, path)
	if err != nil {
		return err
	}

	settings := s.proj.Settings()
	s.progress.expect(int64(s.proj.Registry().Len()), "verifying")
	res, err := s.run(func(ctx context.Context) error {
		return s.proj.Hash(ctx, settings, true, base)
	})
	if err != nil {
		return err
	}
	s.record(res, absPath(path))

	if err := s.report(f, res, warnings); err != nil {
		return err
	}
	summarize(res)

	switch {
	case res.Aborted:
		return errAborted
	case len(res.Mismatched) > 0 || res.Hash.Failed > 0:
		return errVerifyFailed
	}
	return nil
}
