// Package crawler drives the paginated crawl for each (section, endpoint) pair.
//
// A Worker owns one pair. It walks the remote post index backwards by id,
// normalizes every raw post, runs it through the section's filter and hands
// accepted posts to the downloader. The crawl ends when the cursor is
// exhausted, a post falls outside the retention window, a page comes back
// short, or the run has searched many posts without producing output.
//
// A Runner fans a list of Jobs out over a worker pool and collects a Summary:
//
//	jobs := crawler.Plan(sections, endpoints, log)
//	runner := crawler.NewRunner(deps, opts, 2, log)
//	summary := runner.Run(ctx, jobs)
//	if summary.Failed > 0 {
//	    os.Exit(1)
//	}
//
// Workers share nothing mutable except the HTTP client, whose host limiter
// serializes access to each remote host.
package crawler
