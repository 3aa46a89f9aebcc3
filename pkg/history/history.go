package history

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"describer/pkg/logger"
)

// Ledger is the set of candidate ids a bot has already posted. The file is
// newline separated; duplicates and blank lines are dropped on load.
type Ledger struct {
	path   string
	ids    map[string]struct{}
	added  []string
	mu     sync.RWMutex
	logger logger.Logger
}

// Load reads the ledger at path. A missing file is an empty ledger.
func Load(path string, log logger.Logger) (*Ledger, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	l := &Ledger{
		path:   path,
		ids:    make(map[string]struct{}),
		logger: log.WithField("component", "history"),
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.InfoWithFields("No history file, starting empty", map[string]interface{}{
				"path": path,
			})
			return l, nil
		}
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			l.ids[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	l.logger.DebugWithFields("History loaded", map[string]interface{}{
		"path":    path,
		"entries": len(l.ids),
	})
	return l, nil
}

// Path returns the file backing the ledger
func (l *Ledger) Path() string { return l.path }

// Contains reports whether id was used before
func (l *Ledger) Contains(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[id]
	return ok
}

// Add records id as used. It is only persisted by Save.
func (l *Ledger) Add(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ids[id]; ok {
		return
	}
	l.ids[id] = struct{}{}
	l.added = append(l.added, id)
}

// Len returns the number of distinct ids
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

// IDs returns all ids, sorted
func (l *Ledger) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.ids))
	for id := range l.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Added returns the ids added since Load, in order
func (l *Ledger) Added() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.added...)
}

// Save rewrites the whole file through a temp file and rename
func (l *Ledger) Save() error {
	ids := l.IDs()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	tempPath := l.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary history file: %w", err)
	}

	w := bufio.NewWriter(file)
	for _, id := range ids {
		if _, err := w.WriteString(id + "\n"); err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to write history: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write history: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync history file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close history file: %w", err)
	}

	if err := os.Rename(tempPath, l.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace history file: %w", err)
	}

	l.logger.DebugWithFields("History saved", map[string]interface{}{
		"path":    l.path,
		"entries": len(ids),
	})
	return nil
}
