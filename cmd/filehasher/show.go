package main

import (
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <manifest>",
	Short: "Print the entries of a manifest",
	Long: `Load a manifest and print its entries without reading any of the files
it lists. Lines that could only be partially parsed are reported as
warnings.`,
	Example: `  filehasher show photos.sfv
  filehasher show photos.sfv --sort size --desc --limit 10 --format pretty
  filehasher show photos.sfv --ext jpg,png --format names`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var showFilter filterFlags

func init() {
	showFilter.register(showCmd.Flags())
	rootCmd.AddCommand(showCmd)
}

func runShow(_ *cobra.Command, args []string) error {
	f, err := showFilter.build()
	if err != nil {
		return err
	}

	s, err := newSession(false)
	if err != nil {
		return err
	}
	defer s.close()

	warnings, err := loadManifest(s, args[0])
	if err != nil {
		return err
	}
	return s.report(f, nil, warnings)
}
