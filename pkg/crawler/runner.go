package crawler

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"boorudl/internal/pool"
	"boorudl/pkg/booru"
	"boorudl/pkg/filter"
	"boorudl/pkg/logger"
)

// Plan pairs every section with the endpoints it is routed to. Endpoints
// whose dialect is still unknown are skipped.
func Plan(sections []filter.Section, endpoints []booru.Endpoint, log logger.Logger) []Job {
	if log == nil {
		log = logger.GetLogger()
	}

	var jobs []Job
	for _, s := range sections {
		for _, ep := range endpoints {
			if len(s.Endpoints) > 0 && !slices.Contains(s.Endpoints, ep.Name) {
				continue
			}
			if !ep.Dialect.Known() {
				log.WarnWithFields("Skipping endpoint with unknown API dialect", map[string]interface{}{
					"section":  s.Name,
					"endpoint": ep.Name,
					"url":      ep.BaseURL,
				})
				continue
			}
			jobs = append(jobs, Job{Section: s, Endpoint: ep})
		}
	}
	return jobs
}

// Summary aggregates the results of one run
type Summary struct {
	RunID   string
	Results []Result
	Failed  int
	Elapsed time.Duration
}

// OK reports whether every worker ended without error
func (s Summary) OK() bool {
	return s.Failed == 0
}

// Totals sums the telemetry of all workers
func (s Summary) Totals() Telemetry {
	var t Telemetry
	for _, r := range s.Results {
		t.Searched += r.Telemetry.Searched
		t.Downloaded += r.Telemetry.Downloaded
		t.Duplicates += r.Telemetry.Duplicates
		t.Failed += r.Telemetry.Failed
		t.Rejected += r.Telemetry.Rejected
		t.Unreadable += r.Telemetry.Unreadable
		t.Loops += r.Telemetry.Loops
		t.Bytes += r.Telemetry.Bytes
	}
	t.Elapsed = s.Elapsed
	return t
}

// Runner runs jobs on a bounded number of concurrent workers
type Runner struct {
	deps    Dependencies
	opts    Options
	workers int
	logger  logger.Logger
	now     func() time.Time
}

// NewRunner creates a Runner. workers below 1 means sequential.
func NewRunner(deps Dependencies, opts Options, workers int, log logger.Logger) *Runner {
	if log == nil {
		log = logger.GetLogger()
	}
	if workers < 1 {
		workers = 1
	}
	if opts.StartCursor <= 0 {
		opts.StartCursor = DefaultStartCursor
	}
	return &Runner{deps: deps, opts: opts, workers: workers, logger: log, now: time.Now}
}

// Run crawls every job and returns once all workers are done. Results keep
// the order of jobs. Jobs that never started are reported as cancelled.
func (r *Runner) Run(ctx context.Context, jobs []Job) Summary {
	started := time.Now()
	runID := newRunID()

	log := r.logger.WithField("run_id", runID)
	log.InfoWithFields("Starting run", map[string]interface{}{
		"jobs":    len(jobs),
		"workers": r.workers,
	})

	type indexed struct {
		index int
		job   Job
	}
	type indexedResult struct {
		index  int
		result Result
	}

	wp := pool.NewWorkerPool[indexed, indexedResult](r.workers, func(ctx context.Context, workerID int, in indexed) indexedResult {
		w := NewWorker(in.job, r.deps, r.opts, runID, log.WithField("worker_id", workerID))
		w.now = r.now
		return indexedResult{index: in.index, result: w.Run(ctx)}
	}, log)
	wp.Start(ctx)

	go func() {
		defer wp.Stop()
		for i, job := range jobs {
			if err := wp.Submit(indexed{index: i, job: job}); err != nil {
				log.WithError(err).Warn("Stopped submitting jobs")
				return
			}
		}
	}()

	results := make([]Result, len(jobs))
	done := make([]bool, len(jobs))
	for res := range wp.Results() {
		results[res.index] = res.result
		done[res.index] = true
	}

	summary := Summary{RunID: runID}
	for i, job := range jobs {
		if !done[i] {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results[i] = Result{
				Section:     job.Section.Name,
				Endpoint:    job.Endpoint.Name,
				Reason:      ReasonCancelled,
				FinalCursor: r.opts.StartCursor,
				Err:         err,
			}
		}
		if results[i].Failed() {
			summary.Failed++
		}
	}
	summary.Results = results
	summary.Elapsed = time.Since(started)

	totals := summary.Totals()
	fields := map[string]interface{}{
		"workers_failed": summary.Failed,
		"searched":       totals.Searched,
		"downloaded":     totals.Downloaded,
		"duplicates":     totals.Duplicates,
		"elapsed":        summary.Elapsed.Round(time.Millisecond).String(),
	}
	if summary.OK() {
		log.InfoWithFields("Run finished", fields)
	} else {
		log.WarnWithFields("Run finished with failures", fields)
	}
	return summary
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
