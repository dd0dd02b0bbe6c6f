package orchestrator_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeswarm/refactor-swarm/internal/agents"
	"github.com/codeswarm/refactor-swarm/internal/llm"
	"github.com/codeswarm/refactor-swarm/internal/orchestrator"
	"github.com/codeswarm/refactor-swarm/internal/sandbox"
	"github.com/codeswarm/refactor-swarm/internal/telemetry"
	"github.com/codeswarm/refactor-swarm/internal/tools"
)

const (
	auditJSON = `{"issues": [{"file": "main.py", "line": 1, "type": "STYLE", "description": "x"}],
	              "refactoring_plan": ["clean up"]}`
	fixJSON     = `{"files_fixed": {"main.py": "def add(a, b):\n    return a + b\n"}, "summary": "cleaned"}`
	successJSON = `{"verdict": "SUCCESS", "reason": "tests pass"}`
	failJSON    = `{"verdict": "FAIL", "reason": "still broken"}`
)

type fixture struct {
	deps    agents.Deps
	logger  *telemetry.Logger
	logDir  string
	tracker *telemetry.Tracker
}

func newFixture(t *testing.T, provider llm.Provider, scoreAfter float64, testsPass bool) *fixture {
	t.Helper()
	guard, err := sandbox.NewGuard(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, guard.WriteFile("main.py", []byte("def add(a,b): return a+b\n")))

	logDir := t.TempDir()
	logger := telemetry.NewLogger()
	require.NoError(t, logger.Initialize(logDir))
	tracker := telemetry.NewTracker(logger)
	require.NoError(t, tracker.Initialize(logDir))

	firstLint := true
	deps := agents.Deps{
		Provider: provider,
		Guard:    guard,
		Tracker:  tracker,
		RunPylint: func(ctx context.Context, dir string) (*tools.PylintResult, error) {
			if firstLint {
				firstLint = false
				return &tools.PylintResult{Score: 5.0, Output: "before"}, nil
			}
			return &tools.PylintResult{Score: scoreAfter, Output: "after"}, nil
		},
		RunPytest: func(ctx context.Context, dir string) (*tools.PytestResult, error) {
			return &tools.PytestResult{Passed: testsPass, Output: "stubbed"}, nil
		},
	}
	return &fixture{deps: deps, logger: logger, logDir: logDir, tracker: tracker}
}

func TestRunCompletesOnFirstAcceptedVerdict(t *testing.T) {
	provider := llm.NewReplayProvider([]*llm.CompletionResponse{
		{Content: auditJSON, Model: "mock-model"},
		{Content: fixJSON, Model: "mock-model"},
		{Content: successJSON, Model: "mock-model"},
	})
	fx := newFixture(t, provider, 8.5, true)

	o := orchestrator.New(fx.deps, fx.logger, orchestrator.Options{MaxIterations: 3})
	result, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Completed)
	assert.True(t, result.TestsPassed)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 5.0, result.QualityScoreBefore)
	assert.Equal(t, 8.5, result.QualityScoreAfter)
	assert.Equal(t, fx.tracker.SessionID(), result.SessionID)
	assert.Equal(t, 3, provider.GetCallCount())
}

func TestRunExhaustsIterationBudget(t *testing.T) {
	provider := llm.NewMockProvider([]*llm.CompletionResponse{
		{Content: auditJSON},
		{Content: fixJSON},
		{Content: failJSON},
		{Content: fixJSON},
		{Content: failJSON},
	}, nil)
	fx := newFixture(t, provider, 4.0, false)

	o := orchestrator.New(fx.deps, fx.logger, orchestrator.Options{MaxIterations: 2})
	result, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Completed)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, 2, result.FixAttempts)
}

func TestRunHonorsTargetScore(t *testing.T) {
	// Judge accepts but the score stays below target, so the loop retries.
	provider := llm.NewReplayProvider([]*llm.CompletionResponse{
		{Content: auditJSON},
		{Content: fixJSON},
		{Content: successJSON},
		{Content: fixJSON},
		{Content: successJSON},
	})
	fx := newFixture(t, provider, 6.0, true)

	o := orchestrator.New(fx.deps, fx.logger,
		orchestrator.Options{MaxIterations: 2, TargetScore: 9.0})
	result, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Completed)
	assert.Equal(t, 2, result.Iterations)
}

func TestRunFinalizesBothDocuments(t *testing.T) {
	provider := llm.NewReplayProvider([]*llm.CompletionResponse{
		{Content: auditJSON},
		{Content: fixJSON},
		{Content: successJSON},
	})
	fx := newFixture(t, provider, 8.5, true)

	o := orchestrator.New(fx.deps, fx.logger, orchestrator.Options{MaxIterations: 3})
	_, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(fx.logDir, telemetry.ExperimentFileName))
	assert.FileExists(t, filepath.Join(fx.logDir, telemetry.TelemetryFileName))

	// Lifecycle entries plus the forwarded agent activity made it into
	// the experiment log.
	stats := fx.logger.Stats()
	assert.Contains(t, stats.Agents, "Orchestrator")
	assert.Contains(t, stats.Agents, "Auditor")
}

func TestRunSurfacesAuditFailure(t *testing.T) {
	provider := llm.NewMockProvider(nil, []error{assert.AnError})
	fx := newFixture(t, provider, 5.0, true)

	o := orchestrator.New(fx.deps, fx.logger, orchestrator.Options{MaxIterations: 2})
	_, err := o.Run(context.Background())
	assert.Error(t, err)
}
