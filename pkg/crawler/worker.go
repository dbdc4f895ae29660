package crawler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"boorudl/pkg/booru"
	"boorudl/pkg/checkpoint"
	"boorudl/pkg/filter"
	"boorudl/pkg/logger"
	"boorudl/pkg/post"
	"boorudl/pkg/ratelimit"
	"boorudl/pkg/retry"
	"boorudl/pkg/storage"
)

// DefaultStartCursor is larger than any real post id
const DefaultStartCursor int64 = 100000000

// Reason explains why a worker stopped
type Reason string

const (
	ReasonCursorExhausted Reason = "cursor-exhausted"
	ReasonTimeWindow      Reason = "time-window"
	ReasonShortPage       Reason = "short-page"
	ReasonNoData          Reason = "no-data"
	ReasonLowYield        Reason = "low-yield"
	ReasonCursorStalled   Reason = "cursor-stalled"
	ReasonCancelled       Reason = "cancelled"
	ReasonFetchError      Reason = "fetch-error"
)

// Normal reports whether the crawl reached a natural end
func (r Reason) Normal() bool {
	return r != ReasonCancelled && r != ReasonFetchError
}

// Options tunes a worker
type Options struct {
	StartCursor int64
	// PostInterval is the minimum wall time spent per downloaded post
	PostInterval time.Duration
	// LowYieldMinLoops and LowYieldRatio drive the low-yield abort
	LowYieldMinLoops int
	LowYieldRatio    float64
	// FetchAttempts above 1 retries transient fetch errors
	FetchAttempts int
	RetryBackoff  retry.BackoffStrategy
	// CheckpointDir enables per-page checkpoints when set
	CheckpointDir string
	Resume        bool
}

// DefaultOptions returns the stock crawl tuning
func DefaultOptions() Options {
	return Options{
		StartCursor:      DefaultStartCursor,
		PostInterval:     500 * time.Millisecond,
		LowYieldMinLoops: 5,
		LowYieldRatio:    0.10,
		FetchAttempts:    1,
	}
}

// Telemetry counts what a worker did. It is reported, never persisted.
type Telemetry struct {
	Searched   int
	Downloaded int
	Duplicates int
	Failed     int
	Rejected   int
	Unreadable int
	Loops      int
	Bytes      int64
	Elapsed    time.Duration
}

// Yield is the share of searched posts that ended up on disk
func (t Telemetry) Yield() float64 {
	if t.Searched == 0 {
		return 0
	}
	return float64(t.Downloaded+t.Duplicates) / float64(t.Searched)
}

// Result is the outcome of one worker run
type Result struct {
	Section     string
	Endpoint    string
	Telemetry   Telemetry
	Reason      Reason
	FinalCursor int64
	Err         error
}

// Failed reports whether the worker ended on an error
func (r Result) Failed() bool {
	return r.Err != nil
}

// Job is one (section, endpoint) pair to crawl
type Job struct {
	Section  filter.Section
	Endpoint booru.Endpoint
}

// Key identifies the job in logs and checkpoints
func (j Job) Key() string {
	return j.Section.Name + "/" + j.Endpoint.Name
}

// Dependencies are the collaborators shared by all workers of a run
type Dependencies struct {
	Fetcher    Fetcher
	Downloader Downloader
	Layout     Layout
	Recorder   Recorder
	Blacklist  filter.Blacklist
}

// Worker crawls one (section, endpoint) pair
type Worker struct {
	job    Job
	deps   Dependencies
	opts   Options
	runID  string
	pacer  *ratelimit.Pacer
	logger logger.Logger
	now    func() time.Time
}

// NewWorker creates a worker for job
func NewWorker(job Job, deps Dependencies, opts Options, runID string, log logger.Logger) *Worker {
	if log == nil {
		log = logger.GetLogger()
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if opts.StartCursor <= 0 {
		opts.StartCursor = DefaultStartCursor
	}

	return &Worker{
		job:   job,
		deps:  deps,
		opts:  opts,
		runID: runID,
		pacer: ratelimit.NewPacer(opts.PostInterval),
		logger: log.WithFields(map[string]interface{}{
			"section":  job.Section.Name,
			"endpoint": job.Endpoint.Name,
		}),
		now: time.Now,
	}
}

// pageOutcome is what processing one page produced
type pageOutcome struct {
	minID int64
	stop  bool
}

// Run crawls until a termination condition is met or ctx is cancelled
func (w *Worker) Run(ctx context.Context) Result {
	started := w.now()
	result := Result{
		Section:  w.job.Section.Name,
		Endpoint: w.job.Endpoint.Name,
	}

	w.deps.Recorder.WorkerStarted()
	w.logger.InfoWithFields("Starting crawl", map[string]interface{}{
		"run_id":      w.runID,
		"search_tags": w.searchTags(),
	})

	cursor, cp, cpm := w.openCheckpoint()
	tel := &Telemetry{}

	result.Reason, result.Err = w.crawl(ctx, &cursor, tel, cp, cpm)
	result.FinalCursor = cursor
	tel.Elapsed = w.now().Sub(started)
	result.Telemetry = *tel

	if cpm != nil && result.Reason.Normal() {
		if err := cpm.Delete(); err != nil {
			w.logger.WithError(err).Warn("Failed to delete checkpoint")
		}
	}

	w.deps.Recorder.WorkerFinished(string(result.Reason))
	w.logSummary(result)
	return result
}

func (w *Worker) crawl(ctx context.Context, cursor *int64, tel *Telemetry, cp *checkpoint.Checkpoint, cpm *checkpoint.Manager) (Reason, error) {
	ep := w.job.Endpoint
	tags := w.searchTags()

	for {
		if err := ctx.Err(); err != nil {
			return ReasonCancelled, err
		}

		page, err := w.fetch(ctx, booru.Query{Tags: tags, Before: *cursor})
		if err != nil {
			if ctx.Err() != nil {
				return ReasonCancelled, ctx.Err()
			}
			w.logger.WithError(err).ErrorWithFields("Fetch failed", map[string]interface{}{
				"cursor": *cursor,
			})
			return ReasonFetchError, fmt.Errorf("fetch %s before %d: %w", ep.Name, *cursor, err)
		}
		if len(page.Posts) == 0 {
			return ReasonNoData, nil
		}
		tel.Loops++

		out, err := w.processPage(ctx, page, tel)
		if err != nil {
			return ReasonCancelled, err
		}
		if out.stop {
			return ReasonTimeWindow, nil
		}
		if out.minID == 0 || out.minID >= *cursor {
			w.logger.WarnWithFields("Cursor did not advance", map[string]interface{}{
				"cursor": *cursor,
				"min_id": out.minID,
			})
			return ReasonCursorStalled, nil
		}
		*cursor = out.minID

		if cpm != nil {
			if err := cpm.UpdateProgress(cp, *cursor); err != nil {
				w.logger.WithError(err).Warn("Failed to save checkpoint")
			}
		}

		w.logger.DebugWithFields("Page processed", map[string]interface{}{
			"loop":       tel.Loops,
			"page_size":  len(page.Posts),
			"cursor":     *cursor,
			"searched":   tel.Searched,
			"downloaded": tel.Downloaded,
		})

		if *cursor <= 1 {
			return ReasonCursorExhausted, nil
		}
		if len(page.Posts) < ep.MinFullPage() {
			return ReasonShortPage, nil
		}
		if w.lowYield(tel) {
			w.logger.WarnWithFields("Too little yield, stopping early", map[string]interface{}{
				"loops":    tel.Loops,
				"searched": tel.Searched,
				"yield":    tel.Yield(),
			})
			return ReasonLowYield, nil
		}
	}
}

func (w *Worker) lowYield(tel *Telemetry) bool {
	if w.opts.LowYieldMinLoops <= 0 || tel.Loops < w.opts.LowYieldMinLoops {
		return false
	}
	return tel.Yield() < w.opts.LowYieldRatio
}

func (w *Worker) fetch(ctx context.Context, q booru.Query) (*booru.Page, error) {
	if w.opts.FetchAttempts <= 1 {
		return w.deps.Fetcher.Fetch(ctx, w.job.Endpoint, q)
	}

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = w.opts.FetchAttempts
	cfg.Context = ctx
	cfg.Logger = w.logger
	if w.opts.RetryBackoff != nil {
		cfg.Backoff = w.opts.RetryBackoff
	}
	return retry.DoWithResult(func() (*booru.Page, error) {
		return w.deps.Fetcher.Fetch(ctx, w.job.Endpoint, q)
	}, cfg)
}

// processPage walks one page. The returned minID covers every post whose id
// was readable, including posts that were skipped.
func (w *Worker) processPage(ctx context.Context, page *booru.Page, tel *Telemetry) (pageOutcome, error) {
	var out pageOutcome
	section := w.job.Section
	ep := w.job.Endpoint

	seen := func(id int64) {
		if id > 0 && (out.minID == 0 || id < out.minID) {
			out.minID = id
		}
	}

	for _, raw := range page.Posts {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		tel.Searched++
		w.deps.Recorder.PostSearched(section.Name, ep.Name)

		p, err := post.Normalize(raw)
		if err != nil {
			tel.Unreadable++
			var nerr *post.NormalizationError
			if errors.As(err, &nerr) {
				seen(nerr.ID)
				w.deps.Recorder.PostUnreadable(ep.Name, string(nerr.Kind))
			}
			w.logger.WithError(err).Warn("Skipping unreadable post")
			continue
		}
		seen(p.ID)

		decision := filter.Evaluate(p, section, w.deps.Blacklist, w.now())
		switch decision.Verdict {
		case filter.StopPagination:
			w.logger.InfoWithFields("Reached the end of the retention window", map[string]interface{}{
				"post_id":    p.ID,
				"created_at": p.CreatedAt,
				"days":       section.Days,
			})
			out.stop = true
			return out, nil

		case filter.Reject:
			tel.Rejected++
			w.deps.Recorder.PostRejected(section.Name, ep.Name, string(decision.Reason))
			fields := map[string]interface{}{
				"post_id": p.ID,
				"reason":  string(decision.Reason),
			}
			if decision.Tag != "" {
				fields["tag"] = decision.Tag
			}
			w.logger.DebugWithFields("Post rejected", fields)

		case filter.Accept:
			if err := w.download(ctx, p, tel); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

// download hands an accepted post to the downloader and paces the loop.
// Only a cancelled context is returned as an error.
func (w *Worker) download(ctx context.Context, p post.Post, tel *Telemetry) error {
	section := w.job.Section
	ep := w.job.Endpoint
	started := time.Now()

	dir := w.deps.Layout.Dir(section.Name, ep.Name, p.Extension)
	res, err := w.deps.Downloader.Download(ctx, ep, p.FileURL, dir, strconv.FormatInt(p.ID, 10))
	w.deps.Recorder.Download(section.Name, ep.Name, string(res.Status), res.Bytes)
	logger.LogDownload(w.logger, p.ID, res.Path, string(res.Status), err)

	switch res.Status {
	case storage.StatusAlreadyExists:
		tel.Duplicates++
		return nil
	case storage.StatusDownloaded:
		tel.Downloaded++
		tel.Bytes += res.Bytes
	default:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		tel.Failed++
	}

	return w.pacer.Pace(ctx, started)
}

func (w *Worker) searchTags() []string {
	return filter.SearchTags(w.job.Section, w.job.Endpoint.Dialect.MaxSearchTags())
}

// openCheckpoint returns the starting cursor and, when checkpoints are on,
// the checkpoint to update after every page.
func (w *Worker) openCheckpoint() (int64, *checkpoint.Checkpoint, *checkpoint.Manager) {
	cursor := w.opts.StartCursor
	if w.opts.CheckpointDir == "" {
		return cursor, nil, nil
	}

	section, ep := w.job.Section.Name, w.job.Endpoint.Name
	cpm, err := checkpoint.NewManager(w.opts.CheckpointDir, section, ep, w.logger)
	if err != nil {
		w.logger.WithError(err).Warn("Checkpoints disabled")
		return cursor, nil, nil
	}

	if w.opts.Resume {
		cp, err := cpm.Load()
		if err != nil {
			w.logger.WithError(err).Warn("Ignoring unreadable checkpoint")
		} else if cp != nil && cp.Cursor > 0 {
			w.logger.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
				"cursor": cp.Cursor,
				"pages":  cp.Pages,
			})
			cp.RunID = w.runID
			return cp.Cursor, cp, cpm
		}
	}

	cp, err := cpm.Create(section, ep, w.runID, cursor)
	if err != nil {
		w.logger.WithError(err).Warn("Checkpoints disabled")
		return cursor, nil, nil
	}
	return cursor, cp, cpm
}

func (w *Worker) logSummary(r Result) {
	fields := map[string]interface{}{
		"reason":       string(r.Reason),
		"searched":     r.Telemetry.Searched,
		"downloaded":   r.Telemetry.Downloaded,
		"duplicates":   r.Telemetry.Duplicates,
		"failed":       r.Telemetry.Failed,
		"rejected":     r.Telemetry.Rejected,
		"unreadable":   r.Telemetry.Unreadable,
		"loops":        r.Telemetry.Loops,
		"final_cursor": r.FinalCursor,
		"elapsed":      r.Telemetry.Elapsed.Round(time.Millisecond).String(),
	}
	if r.Err != nil {
		w.logger.WithError(r.Err).ErrorWithFields("Crawl failed", fields)
		return
	}
	w.logger.InfoWithFields("Crawl finished", fields)
}
