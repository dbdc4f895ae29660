package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"boorudl/pkg/crawler"
	"boorudl/pkg/ui"
)

var (
	// Crawl command flags
	sectionNames  []string
	endpointNames []string
	resume        bool
	notify        bool
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl every configured section once",
	Long: `Crawl every (section, endpoint) pair once and exit.

Each worker starts at the newest post and walks backwards until the section's
time window is exhausted, the listing runs out, or the yield stays too low.
Files that are already on disk are never downloaded again.

The exit status is 1 when any worker ended on an error or was interrupted.`,
	Example: `  # Crawl everything in the default config
  boorudl crawl

  # Crawl two sections on one endpoint with four workers
  boorudl crawl --section landscapes --section skies --endpoint danbooru -w 4

  # Continue an interrupted crawl from its checkpoints
  boorudl crawl --resume

  # Expose metrics while crawling
  boorudl crawl --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	addCrawlFlags(crawlCmd)
}

func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&sectionNames, "section", "s", nil, "crawl only this section (repeatable)")
	cmd.Flags().StringArrayVarP(&endpointNames, "endpoint", "e", nil, "crawl only this endpoint (repeatable)")
	cmd.Flags().BoolVar(&resume, "resume", false, "resume each worker from its last checkpoint")
	cmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when the run finishes")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	log.WithField("version", version).Info("boorudl starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	p.serveMetrics(ctx)

	ui.PrintInfo("Output", cfg.Output.BaseDirectory)
	ui.PrintInfo("Jobs", strconv.Itoa(len(p.jobs)))

	summary := p.runner.Run(ctx, p.jobs)
	return report(summary)
}

// report prints the summary and turns failed workers into errRunFailed
func report(summary crawler.Summary) error {
	ui.PrintSummary(ui.Out, summary)
	if notify {
		ui.NewNotifier().RunFinished(summary)
	}
	if !summary.OK() {
		return errRunFailed
	}
	return nil
}
