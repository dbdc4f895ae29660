package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"boorudl/pkg/booru"
	"boorudl/pkg/errors"
	"boorudl/pkg/post"
)

// Status is the outcome of one download
type Status string

const (
	StatusDownloaded    Status = "downloaded"
	StatusAlreadyExists Status = "already_exists"
	StatusFailed        Status = "failed"
)

// Result describes one download. StatusCode is set for failed HTTP responses.
type Result struct {
	Status     Status
	Path       string
	Bytes      int64
	StatusCode int
}

// Streamer opens a remote file for reading
type Streamer interface {
	Stream(ctx context.Context, ep booru.Endpoint, fileURL string) (io.ReadCloser, error)
}

// Downloader fetches accepted posts into the download tree
type Downloader struct {
	manager  *Manager
	streamer Streamer
}

// NewDownloader creates a Downloader writing through manager
func NewDownloader(manager *Manager, streamer Streamer) *Downloader {
	return &Downloader{manager: manager, streamer: streamer}
}

// Manager returns the storage manager used for paths
func (d *Downloader) Manager() *Manager {
	return d.manager
}

// Download saves fileURL as dir/baseName.<ext>. An existing target is
// reported as StatusAlreadyExists without touching the network.
func (d *Downloader) Download(ctx context.Context, ep booru.Endpoint, fileURL, dir, baseName string) (Result, error) {
	ext := post.Extension(fileURL)
	if ext == "" {
		return Result{Status: StatusFailed}, fmt.Errorf("no extension in %s", fileURL)
	}
	target := filepath.Join(dir, baseName+"."+ext)

	if d.manager.Exists(target) {
		return Result{Status: StatusAlreadyExists, Path: target}, nil
	}

	body, err := d.streamer.Stream(ctx, ep, fileURL)
	if err != nil {
		return Result{Status: StatusFailed, Path: target, StatusCode: errors.StatusCode(err)}, err
	}
	defer body.Close()

	n, err := d.manager.Save(body, target)
	if err != nil {
		return Result{Status: StatusFailed, Path: target}, err
	}
	return Result{Status: StatusDownloaded, Path: target, Bytes: n}, nil
}
