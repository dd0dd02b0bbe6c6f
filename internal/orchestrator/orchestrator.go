// Package orchestrator drives the repair loop: the Auditor analyzes the
// target once, then the Fixer and Judge alternate until the Judge accepts
// the code or the iteration budget runs out.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/codeswarm/refactor-swarm/internal/agents"
	"github.com/codeswarm/refactor-swarm/internal/telemetry"
)

// Result summarizes one completed run.
type Result struct {
	SessionID          string  `json:"session_id"`
	Iterations         int     `json:"iterations"`
	FixAttempts        int     `json:"fix_attempts"`
	TestsPassed        bool    `json:"tests_passed"`
	Completed          bool    `json:"completed"` // Judge accepted before the budget ran out
	QualityScoreBefore float64 `json:"quality_score_before"`
	QualityScoreAfter  float64 `json:"quality_score_after"`
	Improvement        float64 `json:"improvement"`
}

// Orchestrator wires the three agents to the shared telemetry pipeline.
type Orchestrator struct {
	auditor *agents.Auditor
	fixer   *agents.Fixer
	judge   *agents.Judge

	logger  *telemetry.Logger
	tracker *telemetry.Tracker

	maxIterations int
	targetScore   float64
}

// Options tunes a run.
type Options struct {
	MaxIterations int
	TargetScore   float64 // reaching it with passing tests ends the loop early
}

// New builds an Orchestrator. The logger may be nil when experiment
// logging is disabled.
func New(deps agents.Deps, logger *telemetry.Logger, opts Options) *Orchestrator {
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 3
	}
	return &Orchestrator{
		auditor:       agents.NewAuditor(deps),
		fixer:         agents.NewFixer(deps),
		judge:         agents.NewJudge(deps),
		logger:        logger,
		tracker:       deps.Tracker,
		maxIterations: opts.MaxIterations,
		targetScore:   opts.TargetScore,
	}
}

// Run executes the full repair loop and finalizes both logs before
// returning, whatever the outcome.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	o.logLifecycle(telemetry.ActionStartup, "run starting")
	defer func() {
		o.logLifecycle(telemetry.ActionShutdown, "run finished")
		if o.tracker != nil {
			if err := o.tracker.Finalize(); err != nil {
				log.Warn().Err(err).Msg("orchestrator: telemetry finalize failed")
			}
		}
		if o.logger != nil {
			if err := o.logger.Finalize(); err != nil {
				log.Warn().Err(err).Msg("orchestrator: experiment log finalize failed")
			}
		}
	}()

	report, err := o.auditor.Analyze(ctx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: audit failed: %w", err)
	}

	result := &Result{
		QualityScoreBefore: report.QualityScoreBefore,
		QualityScoreAfter:  report.QualityScoreBefore,
	}
	if o.tracker != nil {
		result.SessionID = o.tracker.SessionID()
	}

	for iteration := 1; iteration <= o.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Iterations = iteration
		if o.tracker != nil {
			o.tracker.StartIteration(iteration)
		}

		_, fixErr := o.fixer.Fix(ctx, report, iteration)
		result.FixAttempts++
		if fixErr != nil {
			log.Error().Err(fixErr).Int("iteration", iteration).Msg("orchestrator: fix attempt failed")
			if o.tracker != nil {
				o.tracker.EndIteration(iteration, false)
			}
			continue
		}

		verdict, judgeErr := o.judge.Validate(ctx, report.QualityScoreBefore, iteration)
		if judgeErr != nil {
			if o.tracker != nil {
				o.tracker.EndIteration(iteration, false)
			}
			return result, fmt.Errorf("orchestrator: validation failed: %w", judgeErr)
		}

		result.TestsPassed = verdict.TestsPassed
		result.QualityScoreAfter = verdict.QualityScoreAfter
		result.Improvement = verdict.QualityScoreAfter - result.QualityScoreBefore

		accepted := verdict.Accepted()
		if o.tracker != nil {
			o.tracker.EndIteration(iteration, accepted)
		}
		if accepted && (o.targetScore <= 0 || verdict.QualityScoreAfter >= o.targetScore) {
			result.Completed = true
			log.Info().Int("iterations", iteration).
				Float64("score", verdict.QualityScoreAfter).
				Msg("orchestrator: judge accepted, run complete")
			return result, nil
		}
		log.Info().Int("iteration", iteration).Str("verdict", verdict.Verdict).
			Msg("orchestrator: retrying")
	}

	log.Warn().Int("max_iterations", o.maxIterations).
		Msg("orchestrator: iteration budget exhausted")
	return result, nil
}

// logLifecycle records a startup or shutdown entry in the experiment log.
func (o *Orchestrator) logLifecycle(action telemetry.Action, note string) {
	if o.logger == nil {
		return
	}
	_, err := o.logger.LogEntry("Orchestrator", "system", action,
		telemetry.Fields{"note": note}, telemetry.StatusSuccess)
	if err != nil {
		log.Warn().Err(err).Str("action", string(action)).
			Msg("orchestrator: lifecycle entry failed")
	}
}
