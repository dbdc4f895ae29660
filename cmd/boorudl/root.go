package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"boorudl/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	outputDir   string
	workers     int
	metricsAddr string
	userAgent   string
	noLogo      bool
)

// errRunFailed signals a finished run with failed workers. The summary has
// already been printed, so Execute only sets the exit status.
var errRunFailed = errors.New("one or more workers failed")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "boorudl",
	Short: "Incrementally harvest images from booru sites",
	Long: `boorudl walks the post listings of danbooru and gelbooru style sites
from the newest post backwards, keeps the posts that match a section's policy
and saves each file exactly once.

Features:
  - Named sections with their own tags, ratings, score and age limits
  - Global tag blacklist with per-section exceptions
  - Per-host rate limiting shared by concurrent workers
  - Resumable crawls from per-page checkpoints
  - API keys kept in the system keychain or an encrypted file
  - Prometheus metrics and scheduled runs`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noLogo {
			return
		}
		switch cmd.Name() {
		case "version", "help", "show":
		default:
			ui.PrintLogo()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCrawl(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			ui.PrintError("Error", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.config/boorudl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "root of the download tree")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "number of concurrent (section, endpoint) workers")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "", "override the User-Agent header")
	rootCmd.PersistentFlags().BoolVar(&noLogo, "no-logo", false, "do not print the banner")

	addCrawlFlags(rootCmd)

	rootCmd.SetVersionTemplate(`boorudl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// commandLineFlags collects the global flags that override configuration
func commandLineFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if workers > 0 {
		flags["workers"] = workers
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if metricsAddr != "" {
		flags["metrics-addr"] = metricsAddr
	}
	if userAgent != "" {
		flags["user-agent"] = userAgent
	}
	return flags
}
