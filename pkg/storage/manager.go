package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ChunkSize is the size of each read/write when streaming a file to disk
const ChunkSize = 8192

// Manager lays out the download tree and writes files into it atomically
type Manager struct {
	baseDir        string
	organizeByType bool
	saved          atomic.Int64
}

// NewManager creates a new storage manager rooted at baseDir
func NewManager(baseDir string, organizeByType bool) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{
		baseDir:        baseDir,
		organizeByType: organizeByType,
	}, nil
}

// BaseDir returns the root of the download tree
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Dir returns the directory a post with extension ext is written to:
// <base>/<section>/<endpoint>, plus /<ext> when organizing by type.
func (m *Manager) Dir(section, endpoint, ext string) string {
	dir := filepath.Join(m.baseDir, section, endpoint)
	if m.organizeByType && ext != "" {
		dir = filepath.Join(dir, ext)
	}
	return dir
}

// Exists reports whether path is already present
func (m *Manager) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Save streams r into path in ChunkSize pieces. Data lands in a temporary file
// next to path first, so path only ever holds complete files.
func (m *Manager) Save(r io.Reader, path string) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	out, err := os.CreateTemp(dir, filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	// Hide ReaderFrom/WriterTo so CopyBuffer uses the fixed chunk size
	buf := make([]byte, ChunkSize)
	n, err := io.CopyBuffer(struct{ io.Writer }{out}, struct{ io.Reader }{r}, buf)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to write file data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.saved.Add(1)
	return n, nil
}

// SavedCount returns the number of files written by this manager
func (m *Manager) SavedCount() int64 {
	return m.saved.Load()
}
