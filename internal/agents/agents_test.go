package agents_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeswarm/refactor-swarm/internal/agents"
	"github.com/codeswarm/refactor-swarm/internal/llm"
	"github.com/codeswarm/refactor-swarm/internal/sandbox"
	"github.com/codeswarm/refactor-swarm/internal/telemetry"
	"github.com/codeswarm/refactor-swarm/internal/tools"
)

func testDeps(t *testing.T, provider llm.Provider, score float64, testsPass bool) agents.Deps {
	t.Helper()
	guard, err := sandbox.NewGuard(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, guard.WriteFile("main.py", []byte("def add(a, b):\n    return a + b\n")))

	tracker := telemetry.NewTracker(nil)
	require.NoError(t, tracker.Initialize(t.TempDir()))

	return agents.Deps{
		Provider: provider,
		Guard:    guard,
		Tracker:  tracker,
		RunPylint: func(ctx context.Context, dir string) (*tools.PylintResult, error) {
			return &tools.PylintResult{Score: score, Output: "stubbed"}, nil
		},
		RunPytest: func(ctx context.Context, dir string) (*tools.PytestResult, error) {
			return &tools.PytestResult{Passed: testsPass, Output: "stubbed"}, nil
		},
	}
}

func TestAuditorProducesReport(t *testing.T) {
	provider := llm.NewMockProvider([]*llm.CompletionResponse{{
		Content: `{"issues": [{"file": "main.py", "line": 1, "type": "STYLE", "description": "missing docstring"}],
		           "refactoring_plan": ["add docstrings"]}`,
		Model: "mock-model",
	}}, nil)
	deps := testDeps(t, provider, 6.5, true)

	report, err := agents.NewAuditor(deps).Analyze(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Issues, 1)
	assert.Equal(t, []string{"add docstrings"}, report.RefactoringPlan)
	assert.Equal(t, 6.5, report.QualityScoreBefore)
	assert.Equal(t, 1, report.FilesAnalyzed)

	// The code under analysis reached the prompt.
	last := provider.LastRequest
	require.NotNil(t, last)
	assert.Contains(t, last.Messages[0].Content, "main.py")
}

func TestAuditorToleratesFencedJSON(t *testing.T) {
	provider := llm.NewMockProvider([]*llm.CompletionResponse{{
		Content: "```json\n{\"issues\": [], \"refactoring_plan\": []}\n```",
	}}, nil)
	deps := testDeps(t, provider, 7.0, true)

	report, err := agents.NewAuditor(deps).Analyze(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Issues)
}

func TestAuditorRejectsNonJSON(t *testing.T) {
	provider := llm.NewMockProvider([]*llm.CompletionResponse{{
		Content: "I cannot analyze this code.",
	}}, nil)
	deps := testDeps(t, provider, 7.0, true)

	_, err := agents.NewAuditor(deps).Analyze(context.Background())
	assert.Error(t, err)
}

func TestFixerWritesFilesInsideSandbox(t *testing.T) {
	provider := llm.NewMockProvider([]*llm.CompletionResponse{{
		Content: `{"files_fixed": {"main.py": "def add(a, b):\n    \"\"\"Add two numbers.\"\"\"\n    return a + b\n"},
		           "summary": "added docstring"}`,
	}}, nil)
	deps := testDeps(t, provider, 6.5, true)

	report := &agents.AuditReport{RefactoringPlan: []string{"add docstrings"}}
	result, err := agents.NewFixer(deps).Fix(context.Background(), report, 1)
	require.NoError(t, err)
	assert.Equal(t, "added docstring", result.Summary)

	data, err := deps.Guard.ReadFile("main.py")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Add two numbers")
}

func TestFixerSkipsEscapingPaths(t *testing.T) {
	provider := llm.NewMockProvider([]*llm.CompletionResponse{{
		Content: `{"files_fixed": {"../evil.py": "import os\n"}, "summary": "escape attempt"}`,
	}}, nil)
	deps := testDeps(t, provider, 6.5, true)

	_, err := agents.NewFixer(deps).Fix(context.Background(), &agents.AuditReport{}, 1)
	require.NoError(t, err)
	assert.False(t, deps.Guard.Allowed("../evil.py"))
}

func TestJudgeAcceptsPassingRun(t *testing.T) {
	provider := llm.NewMockProvider([]*llm.CompletionResponse{{
		Content: `{"verdict": "SUCCESS", "reason": "all tests pass and quality improved"}`,
	}}, nil)
	deps := testDeps(t, provider, 8.0, true)

	verdict, err := agents.NewJudge(deps).Validate(context.Background(), 6.5, 1)
	require.NoError(t, err)
	assert.True(t, verdict.Accepted())
	assert.InDelta(t, 1.5, verdict.Improvement, 1e-9)
}

func TestJudgeOverrulesModelOnFailingTests(t *testing.T) {
	provider := llm.NewMockProvider([]*llm.CompletionResponse{{
		Content: `{"verdict": "SUCCESS", "reason": "looks fine to me"}`,
	}}, nil)
	deps := testDeps(t, provider, 8.0, false)

	verdict, err := agents.NewJudge(deps).Validate(context.Background(), 6.5, 1)
	require.NoError(t, err)
	assert.Equal(t, "FAIL", verdict.Verdict)
	assert.False(t, verdict.Accepted())
}

func TestJudgeDegradesProviderErrorToFail(t *testing.T) {
	provider := llm.NewMockProvider(nil, []error{assert.AnError})
	deps := testDeps(t, provider, 8.0, true)

	verdict, err := agents.NewJudge(deps).Validate(context.Background(), 6.5, 1)
	require.NoError(t, err)
	assert.Equal(t, "FAIL", verdict.Verdict)
	assert.Contains(t, verdict.Reason, "validation error")
}

func TestJudgeEmitsQualityMetric(t *testing.T) {
	provider := llm.NewMockProvider([]*llm.CompletionResponse{{
		Content: `{"verdict": "SUCCESS", "reason": "ok"}`,
	}}, nil)
	deps := testDeps(t, provider, 9.0, true)

	_, err := agents.NewJudge(deps).Validate(context.Background(), 8.0, 1)
	require.NoError(t, err)

	metrics := deps.Tracker.Metrics()
	assert.Equal(t, 1, metrics.EventTypesDistribution["quality_metric"])
	assert.Equal(t, 1, metrics.EventTypesDistribution["test_execution"])
}
