package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/codeswarm/refactor-swarm/internal/llm"
	"github.com/codeswarm/refactor-swarm/internal/telemetry"
)

const judgeSystemPrompt = `You are the Judge in an automated code-repair workflow.
You receive test results and quality scores for refactored Python code.
If any test fails, or the quality score decreased, the verdict is FAIL.
Respond with ONLY a JSON object of this shape:
{
  "verdict": "SUCCESS" or "FAIL",
  "reason": "one-sentence justification"
}`

// Judge runs the target's test suite, re-scores it and renders a verdict.
type Judge struct {
	deps Deps
}

// NewJudge builds a Judge over deps.
func NewJudge(deps Deps) *Judge {
	return &Judge{deps: deps}
}

// Validate checks the refactored code. The returned verdict is FAIL
// whenever tests fail, regardless of what the model said.
func (j *Judge) Validate(ctx context.Context, scoreBefore float64, iteration int) (*Verdict, error) {
	guard := j.deps.Guard

	tests, err := j.deps.pytest(ctx, guard.Root())
	if err != nil {
		return nil, err
	}
	lint, err := j.deps.pylint(ctx, guard.Root())
	if err != nil {
		return nil, err
	}
	improvement := lint.Score - scoreBefore
	log.Info().Bool("tests_passed", tests.Passed).
		Float64("score_after", lint.Score).Float64("improvement", improvement).
		Msg("judge: verification complete")

	testStatus := "FAILED"
	if tests.Passed {
		testStatus = "PASSED"
	}
	userMessage := fmt.Sprintf(`Here are the validation results:

**Tests:**
- Status: %s
- Output:
%s

**Code Quality:**
- Score before: %.2f/10
- Score after: %.2f/10
- Improvement: %+.1f points

Based on these results, decide:
- If ANY test fails -> verdict: FAIL
- If pylint score decreased -> verdict: FAIL
- Else -> verdict: SUCCESS

Return JSON response only.`, testStatus, excerpt(tests.Output), scoreBefore, lint.Score, improvement)

	resp, err := j.deps.Provider.Complete(ctx, &llm.CompletionRequest{
		Model:        j.deps.model(),
		SystemPrompt: judgeSystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: userMessage}},
	})
	if err != nil {
		j.trackFailure(userMessage, iteration, err)
		return j.failureVerdict(scoreBefore, lint.Score, err), nil
	}

	var verdict Verdict
	if err := parseModelJSON(resp.Content, &verdict); err != nil {
		j.trackFailure(userMessage, iteration, err)
		return j.failureVerdict(scoreBefore, lint.Score, err), nil
	}
	verdict.TestsPassed = tests.Passed
	verdict.QualityScoreBefore = scoreBefore
	verdict.QualityScoreAfter = lint.Score
	verdict.Improvement = improvement
	// Failing tests are a hard gate; the model cannot overrule them.
	if !tests.Passed {
		verdict.Verdict = "FAIL"
	}

	if j.deps.Tracker != nil {
		opts := []telemetry.EventOption{telemetry.WithModel(resp.Model), telemetry.WithDuration(resp.DurationMS)}
		if !tests.Passed {
			opts = append(opts, telemetry.WithSuccess(false))
		}
		_, trackErr := j.deps.Tracker.TrackEvent(telemetry.EventTestExecution, "Judge",
			telemetry.Fields{
				"file":                guard.Root(),
				"input_prompt":        excerpt(userMessage),
				"output_response":     excerpt(resp.Content),
				"tests_passed":        tests.Passed,
				"quality_improvement": improvement,
				"verdict":             verdict.Verdict,
			}, opts...)
		if trackErr != nil {
			log.Warn().Err(trackErr).Msg("judge: telemetry append failed")
		}

		_, trackErr = j.deps.Tracker.TrackEvent(telemetry.EventQualityMetric, "Judge",
			telemetry.Fields{
				"score": lint.Score,
				"file":  guard.Root(),
			})
		if trackErr != nil {
			log.Warn().Err(trackErr).Msg("judge: telemetry append failed")
		}
	}

	log.Info().Str("verdict", verdict.Verdict).Str("reason", verdict.Reason).
		Msg("judge: verdict rendered")
	return &verdict, nil
}

// failureVerdict degrades a judging error into a FAIL verdict so the
// loop can retry instead of aborting.
func (j *Judge) failureVerdict(before, after float64, cause error) *Verdict {
	return &Verdict{
		Verdict:            "FAIL",
		Reason:             fmt.Sprintf("validation error: %v", cause),
		TestsPassed:        false,
		QualityScoreBefore: before,
		QualityScoreAfter:  after,
		Improvement:        after - before,
	}
}

func (j *Judge) trackFailure(prompt string, iteration int, cause error) {
	if j.deps.Tracker == nil {
		return
	}
	_, err := j.deps.Tracker.TrackEvent(telemetry.EventTestExecution, "Judge",
		telemetry.Fields{
			"file":            j.deps.Guard.Root(),
			"iteration":       iteration,
			"input_prompt":    excerpt(prompt),
			"output_response": cause.Error(),
		},
		telemetry.WithModel(j.deps.model()),
		telemetry.WithErrorMessage(cause.Error()))
	if err != nil {
		log.Warn().Err(err).Msg("judge: telemetry append failed")
	}
}
