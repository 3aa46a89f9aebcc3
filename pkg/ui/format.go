package ui

import (
	"fmt"
	"strings"
	"time"

	"describer/pkg/models"
)

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatBytes formats bytes with binary units
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// PrintRecord prints the outcome of a publish run
func PrintRecord(record *models.PublishedRecord) {
	if record == nil {
		return
	}

	if record.DryRun {
		PrintHighlight("[DRY RUN] nothing was posted")
	} else {
		PrintSuccess("Posted " + record.StatusID)
	}
	PrintInfo("Candidate", record.CandidateID)
	PrintInfo("Text", record.Text)
	PrintInfo("Image", FormatBytes(record.Bytes))
	PrintInfo("Attempts", fmt.Sprint(record.Attempts))
	if loc := record.Location; loc != nil {
		PrintInfo("Location", fmt.Sprintf("%s (%.4f, %.4f)", loc.Name, loc.Latitude, loc.Longitude))
	}
}

// Truncate shortens s to n runes, marking the cut with "..."
func Truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if n <= 3 || len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
