package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"boorudl/pkg/config"
	"boorudl/pkg/ui"
)

var forceInit bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage boorudl configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (BOORUDL_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with two endpoints and one section.

The file is written to $HOME/.config/boorudl/config.yaml unless a different
path is given with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source.

API keys are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the configuration and list every section field that falls back
to the defaults.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)

	initCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.ExampleConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Out, "\nNext steps:")
	fmt.Fprintln(ui.Out, "1. Edit the endpoints and sections")
	fmt.Fprintln(ui.Out, "2. Run 'boorudl auth set <endpoint>' to store an API key")
	fmt.Fprintln(ui.Out, "3. Run 'boorudl config validate' to check the configuration")
	fmt.Fprintln(ui.Out, "4. Start crawling with 'boorudl crawl'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadUnvalidated(configFile, commandLineFlags())
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	fmt.Fprint(ui.Out, string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, commandLineFlags())
	if err != nil {
		return err
	}

	resolved, err := cfg.Resolve()
	if err != nil {
		return err
	}

	if len(resolved.Warnings) > 0 {
		ui.PrintWarning("Fields using defaults:")
		for _, w := range resolved.Warnings {
			fmt.Fprintf(ui.Out, "  - %s\n", w)
		}
		fmt.Fprintln(ui.Out)
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintln(ui.Out)
	ui.PrintInfo("Endpoints", strconv.Itoa(len(resolved.Endpoints)))
	ui.PrintInfo("Sections", strconv.Itoa(len(resolved.Sections)))
	ui.PrintInfo("Blacklisted tags", strconv.Itoa(len(resolved.Blacklist)))
	ui.PrintInfo("Output directory", cfg.Output.BaseDirectory)
	ui.PrintInfo("Workers", strconv.Itoa(cfg.Crawl.ConcurrentWorkers))
	ui.PrintInfo("Requests per second", strconv.FormatFloat(cfg.Crawl.RequestsPerSecond, 'g', -1, 64))
	ui.PrintInfo("Log level", cfg.Logging.Level)
	return nil
}
