package source

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"describer/pkg/config"
	"describer/pkg/models"
)

// Folder picks images from a directory filled by the harvest command. File
// names follow "<screen>-<status id>-<media id>.<ext>".
type Folder struct {
	dir          string
	statusURLFmt string
	shuffle      func(n int, swap func(i, j int))
}

// NewFolder creates a folder source
func NewFolder(cfg config.FolderConfig) *Folder {
	return &Folder{
		dir:          cfg.Directory,
		statusURLFmt: cfg.StatusURLFormat,
		shuffle:      rand.Shuffle,
	}
}

func (f *Folder) Name() string { return config.SourceFolder }

// NextBatch lists the folder in random order
func (f *Folder) NextBatch(ctx context.Context) ([]models.Candidate, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image folder: %w", err)
	}

	out := make([]models.Candidate, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		c := models.Candidate{
			ID:      e.Name(),
			Locator: filepath.Join(f.dir, e.Name()),
			Source:  f.Name(),
		}
		if screen, status, ok := ParseMediaFileName(e.Name()); ok && f.statusURLFmt != "" {
			c.PostURL = fmt.Sprintf(f.statusURLFmt, screen, status)
		}
		out = append(out, c)
	}

	f.shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}

// MediaFileName names a harvested image
func MediaFileName(screenName, statusID, mediaID, ext string) string {
	return fmt.Sprintf("%s-%s-%s.%s", screenName, statusID, mediaID, ext)
}

// ParseMediaFileName splits a harvested file name into screen name and status id
func ParseMediaFileName(name string) (screenName, statusID string, ok bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(base, "-")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
