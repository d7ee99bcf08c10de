package main

import (
	"fmt"
	"os"

	"github.com/jamesainslie/fsjournal/pkg/fsjournal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage fsjournal configuration settings.

Configuration is loaded from the first of:
  1. the file given with --config
  2. $XDG_CONFIG_HOME/fsjournal/config.yaml (if set)
  3. ~/.config/fsjournal/config.yaml

Command-line flags override file settings. Environment variables are not read.`,
	// Config commands must work even when the config file does not load.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the effective configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	c, err := config.Load(v, cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	if configFile := v.ConfigFileUsed(); configFile != "" {
		fmt.Fprintf(out, "Config file: %s\n\n", configFile)
	} else {
		fmt.Fprint(out, "Config file: (using defaults, no file found)\n\n")
	}

	fmt.Fprintln(out, "Current Configuration:")
	fmt.Fprintln(out, "----------------------")
	fmt.Fprintf(out, "directory:               %s\n", c.Directory)
	fmt.Fprintf(out, "files.prefix:            %s\n", c.Files.Prefix)
	fmt.Fprintf(out, "files.count:             %d\n", c.Files.Count)
	fmt.Fprintf(out, "files.payload:           %q\n", c.Files.Payload)
	fmt.Fprintf(out, "audit.path:              %s\n", c.Audit.Path)
	fmt.Fprintf(out, "journal.path:            %s\n", c.Journal.Path)
	fmt.Fprintf(out, "journal.replay:          %s\n", c.Journal.Replay)
	fmt.Fprintf(out, "journal.checkpoint_path: %s\n", c.CheckpointPath())
	fmt.Fprintf(out, "output.format:           %s\n", c.Output.Format)
	fmt.Fprintf(out, "logging.level:           %s\n", c.Logging.Level)
	fmt.Fprintf(out, "logging.console:         %s\n", c.Logging.Console)
	if c.Logging.Path != "" {
		fmt.Fprintf(out, "logging.path:            %s\n", c.Logging.Path)
	}
	for comp, lvl := range c.Logging.Components {
		fmt.Fprintf(out, "logging.components.%s: %s\n", comp, lvl)
	}
	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(out, "Config file already exists: %s\n", configPath)
		return nil
	}

	if _, err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Fprintf(out, "Created default config file: %s\n", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	if cfgFile != "" {
		fmt.Fprintln(cmd.OutOrStdout(), cfgFile)
		return nil
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), configPath)
	return nil
}
