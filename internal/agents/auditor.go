package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codeswarm/refactor-swarm/internal/llm"
	"github.com/codeswarm/refactor-swarm/internal/telemetry"
)

const auditorSystemPrompt = `You are the Auditor in an automated code-repair workflow.
Analyze the given Python code for bugs, code smells and style problems.
Respond with ONLY a JSON object of this shape:
{
  "issues": [{"file": "name.py", "line": 1, "type": "BUG|SMELL|STYLE", "description": "..."}],
  "refactoring_plan": ["step 1", "step 2"]
}`

// Auditor reads the target code, scores it and produces a repair plan.
type Auditor struct {
	deps Deps
}

// NewAuditor builds an Auditor over deps.
func NewAuditor(deps Deps) *Auditor {
	return &Auditor{deps: deps}
}

// Analyze inspects the sandboxed code and returns the audit report.
func (a *Auditor) Analyze(ctx context.Context) (*AuditReport, error) {
	guard := a.deps.Guard

	files, err := guard.ListFiles(".py")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("agents: no Python files found in %s", guard.Root())
	}

	lint, err := a.deps.pylint(ctx, guard.Root())
	if err != nil {
		return nil, err
	}
	log.Info().Int("files", len(files)).Float64("score", lint.Score).
		Msg("auditor: static analysis complete")

	var sb strings.Builder
	for i, name := range files {
		if i >= maxFilesInPrompt {
			break
		}
		content, readErr := guard.ReadFile(name)
		if readErr != nil {
			return nil, readErr
		}
		fmt.Fprintf(&sb, "## File: %s\n```python\n%s\n```\n\n", name, content)
	}
	userMessage := fmt.Sprintf(`Analyze the following Python code for quality and correctness:

%s
Also consider these metrics:
- Pylint score: %.2f/10
- Number of files: %d

Provide your analysis in the JSON format specified.`, sb.String(), lint.Score, len(files))

	resp, err := a.deps.Provider.Complete(ctx, &llm.CompletionRequest{
		Model:        a.deps.model(),
		SystemPrompt: auditorSystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: userMessage}},
	})
	if err != nil {
		a.trackFailure(userMessage, err)
		return nil, err
	}

	var report AuditReport
	if err := parseModelJSON(resp.Content, &report); err != nil {
		a.trackFailure(userMessage, err)
		return nil, err
	}
	report.QualityScoreBefore = lint.Score
	report.FilesAnalyzed = len(files)
	report.PylintOutput = lint.Output

	if a.deps.Tracker != nil {
		_, trackErr := a.deps.Tracker.TrackEvent(telemetry.EventCodeAnalysis, "Auditor",
			telemetry.Fields{
				"file":            guard.Root(),
				"input_prompt":    excerpt(userMessage),
				"output_response": excerpt(resp.Content),
				"issues_found":    len(report.Issues),
				"quality_score":   lint.Score,
			},
			telemetry.WithModel(resp.Model),
			telemetry.WithDuration(resp.DurationMS))
		if trackErr != nil {
			log.Warn().Err(trackErr).Msg("auditor: telemetry append failed")
		}
	}

	log.Info().Int("issues", len(report.Issues)).
		Int("plan_steps", len(report.RefactoringPlan)).
		Msg("auditor: analysis finished")
	return &report, nil
}

func (a *Auditor) trackFailure(prompt string, cause error) {
	if a.deps.Tracker == nil {
		return
	}
	_, err := a.deps.Tracker.TrackEvent(telemetry.EventCodeAnalysis, "Auditor",
		telemetry.Fields{
			"file":            a.deps.Guard.Root(),
			"input_prompt":    excerpt(prompt),
			"output_response": cause.Error(),
		},
		telemetry.WithModel(a.deps.model()),
		telemetry.WithErrorMessage(cause.Error()))
	if err != nil {
		log.Warn().Err(err).Msg("auditor: telemetry append failed")
	}
}
