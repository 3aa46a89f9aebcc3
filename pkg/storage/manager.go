package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Manager owns the harvested media folder: it knows which files are already
// there and writes new ones atomically
type Manager struct {
	dir        string
	extensions map[string]bool
	saved      map[string]bool
	mu         sync.RWMutex
}

// NewManager creates dir when missing and indexes the files already in it.
// Only files with one of the given extensions count as media; no extensions
// means every regular file does.
func NewManager(dir string, extensions ...string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	m := &Manager{
		dir:        dir,
		extensions: make(map[string]bool, len(extensions)),
		saved:      make(map[string]bool),
	}
	for _, ext := range extensions {
		m.extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	if err := m.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan media directory: %w", err)
	}

	return m, nil
}

func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !m.isMedia(entry.Name()) {
			continue
		}
		m.saved[entry.Name()] = true
	}

	return nil
}

func (m *Manager) isMedia(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		return false
	}
	if len(m.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return m.extensions[ext]
}

// IsDownloaded reports whether name is already in the folder
func (m *Manager) IsDownloaded(name string) bool {
	m.mu.RLock()
	known := m.saved[name]
	m.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(filepath.Join(m.dir, name)); err == nil {
		m.mu.Lock()
		m.saved[name] = true
		m.mu.Unlock()
		return true
	}

	return false
}

// Save writes r to name through a temporary file and a rename, so a crash
// never leaves a half written image in the folder
func (m *Manager) Save(r io.Reader, name string) error {
	if name == "" || filepath.Base(name) != name {
		return fmt.Errorf("invalid media file name %q", name)
	}

	filename := filepath.Join(m.dir, name)
	tempFile := filename + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write media data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved[name] = true
	m.mu.Unlock()

	return nil
}

// Dir returns the media folder path
func (m *Manager) Dir() string {
	return m.dir
}

// Count returns the number of media files known to be in the folder
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}
