package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"boorudl/pkg/logger"
)

// Version is the current checkpoint file format
const Version = 1

// Checkpoint records how far a (section, endpoint) crawl has progressed
type Checkpoint struct {
	Section   string    `json:"section"`
	Endpoint  string    `json:"endpoint"`
	RunID     string    `json:"run_id"`
	Cursor    int64     `json:"cursor"`
	Pages     int       `json:"pages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// Manager handles checkpoint operations for one (section, endpoint) pair
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// Dir returns the checkpoint directory inside a download tree
func Dir(baseDir string) string {
	return filepath.Join(baseDir, ".boorudl", "checkpoints")
}

// NewManager creates a checkpoint manager storing its file under baseDir
func NewManager(baseDir, section, endpoint string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	dir := Dir(baseDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		checkpointPath: filepath.Join(dir, fmt.Sprintf("%s__%s.json", section, endpoint)),
		logger:         log,
	}, nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create writes a fresh checkpoint at cursor
func (m *Manager) Create(section, endpoint, runID string, cursor int64) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		Section:   section,
		Endpoint:  endpoint,
		RunID:     runID,
		Cursor:    cursor,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   Version,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}
	return cp, nil
}

// Load loads an existing checkpoint. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version != Version {
		return nil, fmt.Errorf("unsupported checkpoint version %d", cp.Version)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"section":    cp.Section,
		"endpoint":   cp.Endpoint,
		"cursor":     cp.Cursor,
		"pages":      cp.Pages,
		"updated_at": cp.UpdatedAt,
	})
	return &cp, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"section":  cp.Section,
		"endpoint": cp.Endpoint,
		"cursor":   cp.Cursor,
		"pages":    cp.Pages,
	})
	return nil
}

// UpdateProgress moves the checkpoint to cursor after one more page
func (m *Manager) UpdateProgress(cp *Checkpoint, cursor int64) error {
	cp.Cursor = cursor
	cp.Pages++
	return m.Save(cp)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}
