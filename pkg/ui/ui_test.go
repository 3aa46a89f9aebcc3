package ui

import (
	"bytes"
	"testing"
	"time"

	"describer/pkg/models"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetNoColor(true)
	t.Cleanup(func() {
		SetOutput(nil)
		SetNoColor(false)
		SetQuietMode(false)
	})
	return &buf
}

func TestPrintHelpers(t *testing.T) {
	buf := capture(t)

	PrintInfo("Source", "reddit")
	PrintWarning("No delay file", "delay.tmp")
	PrintError("Run failed", "boom")
	PrintSuccess("done")

	assert.Equal(t, "Source: reddit\nNo delay file: delay.tmp\nRun failed: boom\ndone\n", buf.String())
}

func TestQuietModeKeepsErrors(t *testing.T) {
	buf := capture(t)
	SetQuietMode(true)
	assert.True(t, IsQuietMode())

	PrintInfo("Source", "reddit")
	PrintHighlight("hello")
	PrintError("bad")

	assert.Equal(t, "bad\n", buf.String())
}

func TestColors(t *testing.T) {
	SetNoColor(false)
	assert.Equal(t, "\033[32mok\033[0m", Green("ok"))
	SetNoColor(true)
	defer SetNoColor(false)
	assert.Equal(t, "ok", Green("ok"))
}

func TestPrintRecord(t *testing.T) {
	buf := capture(t)

	PrintRecord(&models.PublishedRecord{
		CandidateID: "t3_abc",
		StatusID:    "1001",
		Text:        "a city at night",
		Bytes:       2048,
		Attempts:    3,
		Location:    &models.Location{Name: "Kyoto, Japan", Latitude: 35.0116, Longitude: 135.7681},
	})

	out := buf.String()
	assert.Contains(t, out, "Posted 1001")
	assert.Contains(t, out, "Image: 2.0 KB")
	assert.Contains(t, out, "Location: Kyoto, Japan (35.0116, 135.7681)")

	buf.Reset()
	PrintRecord(&models.PublishedRecord{DryRun: true})
	assert.Contains(t, buf.String(), "[DRY RUN]")

	buf.Reset()
	PrintRecord(nil)
	assert.Empty(t, buf.String())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "2.9 MB", FormatBytes(3_000_000))
	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h30m", FormatDuration(90*time.Minute))
	assert.Equal(t, "abc...", Truncate("abcdefghij", 6))
	assert.Equal(t, "short", Truncate("short", 10))
}
