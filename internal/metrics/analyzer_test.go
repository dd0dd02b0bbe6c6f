package metrics_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/codeswarm/refactor-swarm/internal/metrics"
	"github.com/codeswarm/refactor-swarm/internal/telemetry"
)

// buildSession writes a finalized telemetry document exercising two
// agents across two iterations and returns its path.
func buildSession(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	tracker := telemetry.NewTracker(nil, telemetry.WithTrackerFlushEvery(1))
	require.NoError(t, tracker.Initialize(dir))

	tracker.StartIteration(1)
	_, err := tracker.TrackEvent(telemetry.EventCodeAnalysis, "A",
		telemetry.Fields{"file": "main.py"},
		telemetry.WithDuration(100))
	require.NoError(t, err)
	_, err = tracker.TrackEvent(telemetry.EventCodeAnalysis, "A",
		telemetry.Fields{"file": "util.py"},
		telemetry.WithDuration(300))
	require.NoError(t, err)
	_, err = tracker.TrackEvent(telemetry.EventQualityMetric, "B",
		telemetry.Fields{"score": 6.5, "file": "main.py"})
	require.NoError(t, err)
	tracker.EndIteration(1, false)

	tracker.StartIteration(2)
	_, err = tracker.TrackEvent(telemetry.EventTestExecution, "A",
		telemetry.Fields{"file": "main.py"},
		telemetry.WithErrorMessage("2 tests failed"))
	require.NoError(t, err)
	_, err = tracker.TrackEvent(telemetry.EventQualityMetric, "B",
		telemetry.Fields{"score": 8.25, "file": "main.py"})
	require.NoError(t, err)
	tracker.EndIteration(2, true)

	require.NoError(t, tracker.Finalize())
	return filepath.Join(dir, telemetry.TelemetryFileName)
}

func TestAgentPerformanceRates(t *testing.T) {
	a, err := metrics.NewAnalyzer(buildSession(t))
	require.NoError(t, err)

	perf := a.GetAgentPerformance()
	require.Contains(t, perf, "A")
	require.Contains(t, perf, "B")

	// A: two successful analyses plus one failed test run.
	assert.Equal(t, 3, perf["A"].TotalActions)
	assert.Equal(t, 2, perf["A"].SuccessfulActions)
	assert.Equal(t, 1, perf["A"].FailedActions)
	assert.InDelta(t, 2.0/3.0, perf["A"].SuccessRate, 1e-9)
	assert.InDelta(t, 200, perf["A"].AverageDurationMS, 1e-9)
	assert.Equal(t, 2, perf["A"].EventTypes["code_analysis"])

	// B only reported quality metrics, all successful.
	assert.Equal(t, 1.0, perf["B"].SuccessRate)
	assert.Zero(t, perf["B"].AverageDurationMS)
}

func TestIterationAnalysisOrderedAndGrouped(t *testing.T) {
	a, err := metrics.NewAnalyzer(buildSession(t))
	require.NoError(t, err)

	iters := a.GetIterationAnalysis()
	require.Len(t, iters, 2)

	one, two := iters[0], iters[1]
	assert.Equal(t, 1, one.Iteration)
	assert.Equal(t, 2, two.Iteration)

	// start/end markers plus the real events, system included.
	assert.Equal(t, 5, one.EventsCount)
	assert.Equal(t, []string{"A", "B", "system"}, one.AgentsInvolved)
	assert.LessOrEqual(t, one.StartTime, one.EndTime)

	// iteration 1 failed its end marker, iteration 2 did not.
	assert.Equal(t, 1, one.FailedEvents)
	assert.Equal(t, 1, two.FailedEvents) // the test_execution failure
}

func TestQualityEvolution(t *testing.T) {
	a, err := metrics.NewAnalyzer(buildSession(t))
	require.NoError(t, err)

	points := a.GetQualityEvolution()
	require.Len(t, points, 2)
	assert.Equal(t, 6.5, points[0].Score)
	assert.Equal(t, 8.25, points[1].Score)
	assert.Equal(t, "main.py", points[0].File)
	assert.LessOrEqual(t, points[0].Timestamp, points[1].Timestamp)
}

func TestQualityEvolutionDefaultsFile(t *testing.T) {
	dir := t.TempDir()
	tracker := telemetry.NewTracker(nil)
	require.NoError(t, tracker.Initialize(dir))
	_, err := tracker.TrackEvent(telemetry.EventQualityMetric, "B",
		telemetry.Fields{"score": 5})
	require.NoError(t, err)
	require.NoError(t, tracker.Finalize())

	a, err := metrics.NewAnalyzer(filepath.Join(dir, telemetry.TelemetryFileName))
	require.NoError(t, err)
	points := a.GetQualityEvolution()
	require.Len(t, points, 1)
	assert.Equal(t, "unknown", points[0].File)
}

func TestErrorAnalysis(t *testing.T) {
	a, err := metrics.NewAnalyzer(buildSession(t))
	require.NoError(t, err)

	errs := a.GetErrorAnalysis()
	// The failed iteration-1 end marker carries no message, so only the
	// test-execution failure counts.
	assert.Equal(t, 1, errs.TotalErrors)
	require.Len(t, errs.ErrorsByAgent["A"], 1)
	assert.Equal(t, "2 tests failed", errs.ErrorsByAgent["A"][0].ErrorMessage)
	assert.Equal(t, 1, errs.ErrorsByType["test_execution"])
}

func TestSummaryReport(t *testing.T) {
	a, err := metrics.NewAnalyzer(buildSession(t))
	require.NoError(t, err)

	report := a.SummaryReport()
	assert.Contains(t, report, "SESSION SUMMARY REPORT")
	assert.Contains(t, report, "AGENT PERFORMANCE")
	assert.Contains(t, report, "QUALITY EVOLUTION")
	assert.Contains(t, report, "2 tests failed")
}

func TestExportForVisualization(t *testing.T) {
	a, err := metrics.NewAnalyzer(buildSession(t))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "viz.json")
	require.NoError(t, a.ExportForVisualization(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, gjson.GetBytes(data, "agent_performance.A").Exists())
	assert.True(t, gjson.GetBytes(data, "iteration_analysis").IsArray())
	assert.Equal(t, int64(1), gjson.GetBytes(data, "error_analysis.total_errors").Int())
}

func TestNewAnalyzerMissingFile(t *testing.T) {
	_, err := metrics.NewAnalyzer(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
