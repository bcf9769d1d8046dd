package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/filehasher/pkg/filehasher/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage filehasher configuration",
	Long: `View and manage the filehasher configuration file.

The configuration is read from ~/.config/filehasher/config.yaml (or
$XDG_CONFIG_HOME/filehasher/config.yaml). Every key can be overridden with
an environment variable prefixed with FILEHASHER_, e.g. FILEHASHER_ALGORITHM.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Display the configuration after defaults, the config file, environment variables and flags have been applied.`,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Write a commented default config file. An existing file is left untouched.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	if used := viper.ConfigFileUsed(); used != "" {
		printInfo("# %s", used)
	} else {
		printInfo("# no config file, showing defaults")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path, err := config.WriteDefault()
	if err != nil {
		return err
	}
	printInfo("Config file: %s", path)
	return nil
}

func runConfigPath(_ *cobra.Command, _ []string) error {
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Println(used)
		return nil
	}
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
