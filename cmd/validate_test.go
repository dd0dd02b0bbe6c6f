package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeswarm/refactor-swarm/internal/config"
	"github.com/codeswarm/refactor-swarm/internal/telemetry"
)

// writeValidDocument produces a finalized telemetry document for CLI tests.
func writeValidDocument(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	tracker := telemetry.NewTracker(nil)
	require.NoError(t, tracker.Initialize(dir))
	_, err := tracker.TrackEvent(telemetry.EventQualityMetric, "Judge",
		telemetry.Fields{"score": 8.0, "file": "main.py"})
	require.NoError(t, err)
	require.NoError(t, tracker.Finalize())
	return filepath.Join(dir, telemetry.TelemetryFileName)
}

func TestValidateCommandWritesReportFile(t *testing.T) {
	docPath := writeValidDocument(t)
	reportPath := filepath.Join(t.TempDir(), "report.txt")

	runValidateCommand([]string{"-file", docPath, "-report", reportPath})

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "VALIDATION REPORT")
	assert.Contains(t, string(data), "VALIDATION PASSED")
	assert.Contains(t, string(data), docPath)
}

func TestHistoryDefaultMatchesRunArchiveDefault(t *testing.T) {
	// The run command archives into the config default; the history
	// subcommand's --db flag must point at the same file.
	t.Setenv("SWARM_HISTORY_DB", "")
	assert.Equal(t, config.DefaultHistoryPath, config.Default().History.Path)
}
