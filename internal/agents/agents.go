// Package agents implements the three workflow roles: the Auditor that
// analyzes the target code, the Fixer that rewrites it and the Judge
// that renders the verdict. Each role talks to a completion backend,
// works through the sandbox and records its activity with the tracker.
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/segmentio/encoding/json"

	"github.com/codeswarm/refactor-swarm/internal/llm"
	"github.com/codeswarm/refactor-swarm/internal/sandbox"
	"github.com/codeswarm/refactor-swarm/internal/telemetry"
	"github.com/codeswarm/refactor-swarm/internal/tools"
)

const (
	// Reading whole repos into a prompt blows the context window, so
	// only the first few files go verbatim.
	maxFilesInPrompt = 5
	// Prompt and response excerpts stored in the experiment log are
	// capped to keep documents reviewable.
	logExcerptLen = 500
)

// Deps bundles what every agent needs. The tool runners are injectable
// so orchestration tests run without the Python toolchain installed.
type Deps struct {
	Provider llm.Provider
	Guard    *sandbox.Guard
	Tracker  *telemetry.Tracker
	Model    string // overrides the provider default when set

	RunPylint func(ctx context.Context, dir string) (*tools.PylintResult, error)
	RunPytest func(ctx context.Context, dir string) (*tools.PytestResult, error)
}

func (d *Deps) model() string {
	if d.Model != "" {
		return d.Model
	}
	return d.Provider.DefaultModel()
}

func (d *Deps) pylint(ctx context.Context, dir string) (*tools.PylintResult, error) {
	if d.RunPylint != nil {
		return d.RunPylint(ctx, dir)
	}
	return tools.RunPylint(ctx, dir)
}

func (d *Deps) pytest(ctx context.Context, dir string) (*tools.PytestResult, error) {
	if d.RunPytest != nil {
		return d.RunPytest(ctx, dir)
	}
	return tools.RunPytest(ctx, dir)
}

// Issue is one problem the Auditor found.
type Issue struct {
	File        string `json:"file"`
	Line        int    `json:"line"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// AuditReport is the Auditor's output.
type AuditReport struct {
	Issues             []Issue  `json:"issues"`
	RefactoringPlan    []string `json:"refactoring_plan"`
	QualityScoreBefore float64  `json:"quality_score_before"`
	FilesAnalyzed      int      `json:"files_analyzed"`
	PylintOutput       string   `json:"pylint_output"`
}

// FixResult is the Fixer's output.
type FixResult struct {
	FilesFixed map[string]string `json:"files_fixed"`
	Summary    string            `json:"summary"`
}

// Verdict is the Judge's output.
type Verdict struct {
	Verdict            string  `json:"verdict"` // "SUCCESS" or "FAIL"
	Reason             string  `json:"reason"`
	TestsPassed        bool    `json:"tests_passed"`
	QualityScoreBefore float64 `json:"quality_score_before"`
	QualityScoreAfter  float64 `json:"quality_score_after"`
	Improvement        float64 `json:"improvement"`
}

// Accepted reports whether the verdict ends the repair loop.
func (v *Verdict) Accepted() bool {
	return v.TestsPassed && strings.EqualFold(v.Verdict, "SUCCESS")
}

// parseModelJSON extracts a JSON object from a completion response,
// tolerating markdown code fences around it.
func parseModelJSON(content string, out any) error {
	s := strings.TrimSpace(content)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("agents: no JSON object in model response")
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), out); err != nil {
		return fmt.Errorf("agents: parse model response: %w", err)
	}
	return nil
}

func excerpt(s string) string {
	if len(s) > logExcerptLen {
		return s[:logExcerptLen]
	}
	return s
}
