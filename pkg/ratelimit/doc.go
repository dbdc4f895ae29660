// Package ratelimit keeps request pacing within what remote boorus allow.
//
// Two mechanisms are combined:
//
// HostLimiter:
//   - One token bucket per remote host, shared by every worker in the process
//   - Gates both API fetches and file downloads
//
// Pacer:
//   - A per-worker floor on the time spent handling one post
//   - Sleeps for the remainder when a post finished faster than the floor
//
// Usage:
//
//	hosts := ratelimit.NewHostLimiter(2, 1)
//	if err := hosts.Wait(ctx, "danbooru.donmai.us"); err != nil {
//	    return err
//	}
//
//	pacer := ratelimit.NewPacer(500 * time.Millisecond)
//	started := time.Now()
//	// handle one post
//	if err := pacer.Pace(ctx, started); err != nil {
//	    return err
//	}
package ratelimit
