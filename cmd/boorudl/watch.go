package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"boorudl/pkg/logger"
	"boorudl/pkg/ui"
)

var (
	// Watch command flags
	schedule   string
	runAtStart bool
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Crawl on a cron schedule until interrupted",
	Long: `Run the crawl repeatedly on a cron schedule.

The schedule uses the standard five field cron syntax or one of the
descriptors such as @hourly or "@every 30m". A run that is still going when
the next one is due is skipped, never overlapped.`,
	Example: `  # Crawl every hour, starting right away
  boorudl watch --schedule @hourly --now

  # Crawl at 03:15 every day with metrics exposed between runs
  boorudl watch --schedule "15 3 * * *" --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addCrawlFlags(watchCmd)
	watchCmd.Flags().StringVar(&schedule, "schedule", "@hourly", "cron schedule for runs")
	watchCmd.Flags().BoolVar(&runAtStart, "now", false, "also run once immediately")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	p.serveMetrics(ctx)

	runOnce := func() {
		if ctx.Err() != nil {
			return
		}
		summary := p.runner.Run(ctx, p.jobs)
		if err := report(summary); err != nil {
			log.WithField("failed", summary.Failed).Warn("Scheduled run finished with failures")
		}
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, runOnce); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	if runAtStart {
		runOnce()
	}

	c.Start()
	logger.LogComponentStart("scheduler", map[string]interface{}{"schedule": schedule})
	ui.PrintInfo("Schedule", schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	logger.LogComponentStop("scheduler", "interrupted")
	return nil
}
