package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"boorudl/pkg/booru"
	"boorudl/pkg/config"
	"boorudl/pkg/logger"
	"boorudl/pkg/ui"
)

// detectCmd represents the detect command
var detectCmd = &cobra.Command{
	Use:   "detect <url>",
	Short: "Find out which API dialect a site speaks",
	Long: `Probe a site's post listing in each supported dialect and print the
first one that answers with a readable page. Use the result as the
endpoint's dialect in the config file to skip detection on every run.`,
	Example: `  boorudl detect https://safebooru.org`,
	Args:    cobra.ExactArgs(1),
	RunE:    runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	baseURL := strings.TrimRight(strings.TrimSpace(args[0]), "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return fmt.Errorf("url must start with http:// or https://")
	}

	cfg, err := config.LoadUnvalidated(configFile, commandLineFlags())
	if err != nil {
		return err
	}
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.Crawl.RequestTimeout+5*time.Second)
	defer cancel()

	client := booru.NewClient(cfg.Crawl.RequestTimeout, cfg.UserAgentString(), log)
	d := booru.Detect(ctx, client, baseURL)

	ui.PrintInfo("URL", baseURL)
	if !d.Known() {
		ui.PrintWarning("No supported dialect answered")
		return fmt.Errorf("could not detect the API dialect of %s", baseURL)
	}
	ui.PrintInfo("Dialect", d.String())
	ui.PrintInfo("Search tags", fmt.Sprintf("up to %d", d.MaxSearchTags()))
	ui.PrintInfo("Page size", fmt.Sprintf("%d (full page at %d)", d.DefaultLimit(), d.DefaultFullPageSize()))
	return nil
}
