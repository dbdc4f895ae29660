package crawler

import (
	"context"

	"boorudl/pkg/booru"
	"boorudl/pkg/storage"
)

// Fetcher retrieves one page of raw posts
type Fetcher interface {
	Fetch(ctx context.Context, ep booru.Endpoint, q booru.Query) (*booru.Page, error)
}

// Downloader persists an accepted post's file
type Downloader interface {
	Download(ctx context.Context, ep booru.Endpoint, fileURL, dir, baseName string) (storage.Result, error)
}

// Layout maps a post to its output directory
type Layout interface {
	Dir(section, endpoint, ext string) string
}

// Recorder receives crawl counters. *metrics.Recorder satisfies it.
type Recorder interface {
	PostSearched(section, endpoint string)
	PostRejected(section, endpoint, reason string)
	PostUnreadable(endpoint, kind string)
	Download(section, endpoint, status string, bytes int64)
	WorkerStarted()
	WorkerFinished(reason string)
}

type nopRecorder struct{}

func (nopRecorder) PostSearched(string, string) {}
func (nopRecorder) PostRejected(string, string, string) {}
func (nopRecorder) PostUnreadable(string, string) {}
func (nopRecorder) Download(string, string, string, int64) {}
func (nopRecorder) WorkerStarted() {}
func (nopRecorder) WorkerFinished(string) {}
