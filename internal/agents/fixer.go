package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/encoding/json"

	"github.com/codeswarm/refactor-swarm/internal/llm"
	"github.com/codeswarm/refactor-swarm/internal/telemetry"
)

const fixerSystemPrompt = `You are the Fixer in an automated code-repair workflow.
Rewrite the given Python files according to the Auditor's plan, changing
only what the plan requires and keeping behavior intact.
Respond with ONLY a JSON object of this shape:
{
  "files_fixed": {"filename.py": "corrected code here"},
  "summary": "What was changed"
}`

// Fixer rewrites the target code according to an audit report.
type Fixer struct {
	deps Deps
}

// NewFixer builds a Fixer over deps.
func NewFixer(deps Deps) *Fixer {
	return &Fixer{deps: deps}
}

// Fix applies the audit report to the sandboxed code and writes the
// corrected files back.
func (f *Fixer) Fix(ctx context.Context, report *AuditReport, iteration int) (*FixResult, error) {
	guard := f.deps.Guard

	files, err := guard.ListFiles(".py")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("agents: no Python files found in %s", guard.Root())
	}

	current := make(map[string]string, len(files))
	for i, name := range files {
		if i >= maxFilesInPrompt {
			break
		}
		content, readErr := guard.ReadFile(name)
		if readErr != nil {
			return nil, readErr
		}
		current[name] = string(content)
	}

	plan, _ := json.MarshalIndent(report.RefactoringPlan, "", "  ")
	issues, _ := json.MarshalIndent(report.Issues, "", "  ")
	code, _ := json.MarshalIndent(current, "", "  ")
	userMessage := fmt.Sprintf(`Here's the refactoring plan from the Auditor:

%s

And the identified issues:

%s

Current code files:
%s

Please fix the code according to the plan. Return ONLY the corrected files as JSON.`,
		plan, issues, code)

	resp, err := f.deps.Provider.Complete(ctx, &llm.CompletionRequest{
		Model:        f.deps.model(),
		SystemPrompt: fixerSystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: userMessage}},
	})
	if err != nil {
		f.trackFailure(userMessage, iteration, err)
		return nil, err
	}

	var result FixResult
	if err := parseModelJSON(resp.Content, &result); err != nil {
		f.trackFailure(userMessage, iteration, err)
		return nil, err
	}

	written := 0
	for name, content := range result.FilesFixed {
		if writeErr := guard.WriteFile(name, []byte(content)); writeErr != nil {
			log.Warn().Err(writeErr).Str("file", name).Msg("fixer: write rejected")
			continue
		}
		written++
	}

	if f.deps.Tracker != nil {
		_, trackErr := f.deps.Tracker.TrackEvent(telemetry.EventCodeModification, "Fixer",
			telemetry.Fields{
				"file":            guard.Root(),
				"input_prompt":    excerpt(userMessage),
				"output_response": excerpt(resp.Content),
				"files_fixed":     written,
				"summary":         result.Summary,
			},
			telemetry.WithModel(resp.Model),
			telemetry.WithDuration(resp.DurationMS))
		if trackErr != nil {
			log.Warn().Err(trackErr).Msg("fixer: telemetry append failed")
		}
	}

	log.Info().Int("iteration", iteration).Int("files_written", written).
		Str("summary", result.Summary).Msg("fixer: refactoring applied")
	return &result, nil
}

func (f *Fixer) trackFailure(prompt string, iteration int, cause error) {
	if f.deps.Tracker == nil {
		return
	}
	_, err := f.deps.Tracker.TrackEvent(telemetry.EventCodeModification, "Fixer",
		telemetry.Fields{
			"file":            f.deps.Guard.Root(),
			"iteration":       iteration,
			"input_prompt":    excerpt(prompt),
			"output_response": cause.Error(),
		},
		telemetry.WithModel(f.deps.model()),
		telemetry.WithErrorMessage(cause.Error()))
	if err != nil {
		log.Warn().Err(err).Msg("fixer: telemetry append failed")
	}
}
