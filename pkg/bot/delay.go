package bot

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// ReadDelay reads the start delay in seconds from the first line of path.
// A missing file means no delay.
func ReadDelay(path string) (time.Duration, bool, error) {
	if path == "" {
		return 0, false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to open delay file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return 0, true, fmt.Errorf("failed to read delay file: %w", err)
		}
		return 0, true, fmt.Errorf("delay file %s is empty", path)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(scanner.Text()), 64)
	if err != nil {
		return 0, true, fmt.Errorf("invalid delay in %s: %w", path, err)
	}
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, true, nil
	}

	return time.Duration(seconds * float64(time.Second)), true, nil
}
