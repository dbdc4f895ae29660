// Package checkpoint saves crawl cursors so an interrupted crawl can resume.
//
// One JSON file per (section, endpoint) pair lives in
// <base>/.boorudl/checkpoints/<section>__<endpoint>.json. It is rewritten
// atomically after every page and removed once the crawl finishes normally.
// Only the cursor and page count are kept; telemetry counters start at zero
// on every run.
package checkpoint
