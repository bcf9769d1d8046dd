package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/filehasher/pkg/filehasher/config"
	"github.com/jamesainslie/filehasher/pkg/filehasher/logging"
)

var (
	cfgFile string

	// cfg is loaded by the persistent pre-run hook.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "filehasher",
		Short: "Create and verify checksum manifests",
		Long: `filehasher scans directories, computes file checksums and reads and
writes SFV-style manifests that can later be verified.

Supported algorithms: CRC32, MD4, MD5, SHA1, SHA256, SHA512, BLAKE3.
Manifests ending in .gz or .zst are compressed transparently.

Examples:
  filehasher scan ~/photos -o photos.sfv       # CRC32 manifest of a tree
  filehasher scan -a sha256 . -o sums.sfv.zst  # compressed SHA256 manifest
  filehasher verify photos.sfv                 # check files against the manifest
  filehasher verify photos.sfv /mnt/backup     # check a copy somewhere else
  filehasher show photos.sfv --status mismatch # list entries
  filehasher history                           # recent runs`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initialize,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logging.Close()
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ~/.config/filehasher/config.yaml)")
	flags.StringP("algorithm", "a", "", "digest algorithm (CRC32, MD4, MD5, SHA1, SHA256, SHA512, BLAKE3)")
	flags.StringSliceP("exclude", "e", nil, "exclude glob patterns (can be specified multiple times)")
	flags.IntP("workers", "w", 0, "hash workers (0=auto)")
	flags.Int("walk-workers", 0, "directory walking workers (0=auto)")
	flags.String("buffer-size", "", "read buffer per hash worker (e.g. 256K, 1M)")
	flags.StringP("format", "f", "", "report format (plain, pretty, json, jsonl, yaml, tsv, csv, template, names, null)")
	flags.String("template", "", "row template for --format template, e.g. '{hash} {name}'")
	flags.Bool("no-cache", false, "do not read or write the digest cache")
	flags.Bool("no-progress", false, "disable the progress bar")
	flags.BoolP("quiet", "q", false, "minimal output")
	flags.BoolP("verbose", "v", false, "debug output on stderr")

	_ = viper.BindPFlag("algorithm", flags.Lookup("algorithm"))
	_ = viper.BindPFlag("exclude", flags.Lookup("exclude"))
	_ = viper.BindPFlag("workers.hash", flags.Lookup("workers"))
	_ = viper.BindPFlag("workers.walk", flags.Lookup("walk-workers"))
	_ = viper.BindPFlag("hash.buffer_size", flags.Lookup("buffer-size"))
	_ = viper.BindPFlag("format", flags.Lookup("format"))
	_ = viper.BindPFlag("template", flags.Lookup("template"))
	_ = viper.BindPFlag("no_cache", flags.Lookup("no-cache"))
	_ = viper.BindPFlag("no_progress", flags.Lookup("no-progress"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
}

// initConfig registers config search paths, environment binding and
// defaults on the global viper instance, then reads the config file.
func initConfig() {
	v := viper.GetViper()
	if err := config.Prepare(v, cfgFile); err != nil {
		printError("%v", err)
		return
	}
	if err := config.ReadIn(v); err != nil {
		printError("%v", err)
	}
}

// initialize loads the configuration, creates the XDG directories and
// starts logging. It runs before every subcommand.
func initialize(_ *cobra.Command, _ []string) error {
	loaded, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = loaded

	for _, dir := range []string{config.DataDir(), config.StateDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logCfg, err := cfg.LogConfig(consoleLevel())
	if err != nil {
		return err
	}
	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

// consoleLevel maps --verbose and --quiet to the stderr log level.
func consoleLevel() string {
	switch {
	case getVerbose():
		return "debug"
	case getQuiet():
		return "error"
	default:
		return "warn"
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func getVerbose() bool {
	return viper.GetBool("verbose")
}

func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message to stderr unless quiet mode is enabled.
// Reports go to stdout so they can be piped.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
