package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var hashCmd = &cobra.Command{
	Use:   "hash <manifest>",
	Short: "Compute missing checksums of a manifest",
	Long: `Load a manifest, compute the checksum of every entry that has none and
save the manifest again. Entries that already carry a checksum are left
as they are unless --rehash is given.

Files are read from the manifest's base directory unless --base is given.`,
	Example: `  filehasher scan ~/photos --no-hash -o photos.sfv
  filehasher hash photos.sfv
  filehasher hash photos.sfv --base /mnt/backup/photos --save backup.sfv`,
	Args: cobra.ExactArgs(1),
	RunE: runHash,
}

var (
	hashBase   string
	hashSave   string
	hashRehash bool
)

func init() {
	hashCmd.Flags().StringVar(&hashBase, "base", "", "read files from this directory")
	hashCmd.Flags().StringVar(&hashSave, "save", "", "write the result here instead of back to the manifest")
	hashCmd.Flags().BoolVar(&hashRehash, "rehash", false, "discard existing checksums and hash every entry again")
	rootCmd.AddCommand(hashCmd)
}

func runHash(cmd *cobra.Command, args []string) error {
	path := args[0]

	s, err := newSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	warnings, err := loadManifest(s, path)
	if err != nil {
		return err
	}

	if hashRehash {
		if err := s.proj.RemoveHashes(); err != nil {
			return err
		}
	}

	// The manifest's algorithm wins unless one was asked for explicitly.
	settings := cfg.Settings()
	if !cmd.Flags().Changed("algorithm") {
		settings.Algorithm = s.proj.Settings().Algorithm
	}

	s.progress.expect(int64(s.proj.Registry().Len()), "hashing")
	res, err := s.run(func(ctx context.Context) error {
		return s.proj.Hash(ctx, settings, false, absPath(hashBase))
	})
	if err != nil {
		return err
	}

	dest := path
	if hashSave != "" {
		dest = hashSave
	}
	if err := s.proj.Save(dest); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	printInfo("Saved %d entries to %s", res.Counts.Total, dest)
	s.record(res, absPath(dest))

	if err := s.report(nil, res, warnings); err != nil {
		return err
	}
	summarize(res)
	if res.Aborted {
		return errAborted
	}
	return nil
}
