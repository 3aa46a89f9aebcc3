package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"describer/pkg/logger"
)

const currentVersion = 1

// Checkpoint is the harvest position of one account. MaxID is the max_id of
// the next page to fetch; zero means the newest page.
type Checkpoint struct {
	ScreenName string    `json:"screen_name"`
	UserID     string    `json:"user_id"`
	MaxID      int64     `json:"max_id"`
	Pages      int       `json:"pages"`
	Statuses   int       `json:"statuses"`
	Media      int       `json:"media"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int       `json:"version"`
}

// Manager handles checkpoint files in one directory
type Manager struct {
	dir    string
	logger logger.Logger
}

// NewManager creates a manager storing checkpoints in dir, creating it if needed
func NewManager(dir string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	return &Manager{dir: dir, logger: log.WithField("component", "checkpoint")}, nil
}

// NewDefaultManager stores checkpoints in the user data directory
func NewDefaultManager(log logger.Logger) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManager(filepath.Join(dataDir, "checkpoints"), log)
}

// Create starts a fresh checkpoint for an account
func (m *Manager) Create(screenName, userID string) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		ScreenName: screenName,
		UserID:     userID,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    currentVersion,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint created", map[string]interface{}{
		"screen_name": screenName,
		"path":        m.path(screenName),
	})
	return cp, nil
}

// Load returns the checkpoint of screenName, or nil when there is none
func (m *Manager) Load(screenName string) (*Checkpoint, error) {
	file, err := os.Open(m.path(screenName))
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
	if cp.Version != currentVersion {
		m.logger.WarnWithFields("Ignoring checkpoint with unknown version", map[string]interface{}{
			"screen_name": screenName,
			"version":     cp.Version,
		})
		return nil, nil
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"screen_name": cp.ScreenName,
		"pages":       cp.Pages,
		"max_id":      cp.MaxID,
		"updated_at":  cp.UpdatedAt,
	})
	return &cp, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()
	target := m.path(cp.ScreenName)

	tempPath := target + ".tmp"
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

	if err := os.Rename(tempPath, target); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"screen_name": cp.ScreenName,
		"pages":       cp.Pages,
		"max_id":      cp.MaxID,
	})
	return nil
}

// Advance records that pages up to maxID have been queued
func (m *Manager) Advance(cp *Checkpoint, maxID int64, statuses, media int) error {
	cp.MaxID = maxID
	cp.Pages++
	cp.Statuses += statuses
	cp.Media += media
	return m.Save(cp)
}

// Delete removes the checkpoint of screenName
func (m *Manager) Delete(screenName string) error {
	if err := os.Remove(m.path(screenName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists(screenName string) bool {
	_, err := os.Stat(m.path(screenName))
	return err == nil
}

func (m *Manager) path(screenName string) string {
	name := strings.ToLower(filepath.Base(screenName))
	return filepath.Join(m.dir, name+".checkpoint.json")
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "describer")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "describer")
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "describer")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "describer")
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
