// Package retry provides backoff and retry logic for transient transport
// failures when talking to booru APIs.
//
// Retries are opt-in: the crawl loop only wraps page fetches in Do when the
// configured number of fetch attempts is above one.
//
//	cfg := &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.NewErrorTypeBackoff(),
//		RetryIf:     retry.DefaultRetryIf,
//		Context:     ctx,
//		Logger:      log,
//	}
//	page, err := retry.DoWithResult(func() (*booru.Page, error) {
//		return client.Fetch(ctx, ep, q)
//	}, cfg)
//
// Error types select the backoff:
//   - Network errors: quick exponential retries
//   - Rate limit errors: longer delays with gentler growth
//   - Server errors: moderate exponential delays
//   - Auth, not found and parsing errors: never retried
package retry
