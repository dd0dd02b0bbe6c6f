package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"github.com/codeswarm/refactor-swarm/internal/agents"
	"github.com/codeswarm/refactor-swarm/internal/config"
	"github.com/codeswarm/refactor-swarm/internal/history"
	"github.com/codeswarm/refactor-swarm/internal/llm"
	"github.com/codeswarm/refactor-swarm/internal/orchestrator"
	"github.com/codeswarm/refactor-swarm/internal/sandbox"
	"github.com/codeswarm/refactor-swarm/internal/telemetry"
)

// runRepairCommand drives a full repair session on a target directory.
func runRepairCommand(args []string) {
	loadEnvFiles()

	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	target := fs.String("target", "", "directory containing the code to repair")
	maxIterations := fs.Int("max-iterations", 0, "override the iteration budget")
	mock := fs.Bool("mock", false, "use the mock provider instead of a real backend")
	debug := fs.Bool("debug", false, "enable debug logging")
	noBanner := fs.Bool("no-banner", false, "suppress startup banner")
	_ = fs.Parse(args)

	if !*noBanner {
		printBanner()
	}
	setupLogging(*debug)

	if *target == "" {
		log.Fatal().Msg("--target is required")
	}

	cfg, err := resolveConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *maxIterations > 0 {
		cfg.Workflow.MaxIterations = *maxIterations
	}
	if *mock {
		cfg.LLM.Provider = "mock"
	}

	log.Info().
		Str("version", Version).
		Str("target", *target).
		Int("max_iterations", cfg.Workflow.MaxIterations).
		Str("provider", cfg.LLM.Provider).
		Msg("refactor-swarm starting")

	guard, err := sandbox.NewGuard(*target)
	if err != nil {
		log.Fatal().Err(err).Msg("target directory is unusable")
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build completion backend")
	}

	logger := telemetry.NewLogger(loggerOptions(cfg)...)
	if err := logger.Initialize(cfg.Telemetry.LogDir); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize experiment log")
	}
	tracker := telemetry.NewTracker(logger, trackerOptions(cfg)...)
	if err := tracker.Initialize(cfg.Telemetry.LogDir); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	o := orchestrator.New(agents.Deps{
		Provider: provider,
		Guard:    guard,
		Tracker:  tracker,
	}, logger, orchestrator.Options{
		MaxIterations: cfg.Workflow.MaxIterations,
		TargetScore:   cfg.Workflow.TargetScore,
	})

	start := time.Now()
	result, err := o.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("repair run failed")
	}

	archiveRun(cfg, *target, result, tracker.Metrics())
	printRunSummary(result, time.Since(start))
	if !result.Completed {
		os.Exit(1)
	}
}

// resolveConfig loads the config file if given or discoverable, falling
// back to built-in defaults.
func resolveConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	for _, candidate := range []string{"refactor-swarm.yaml", "configs/refactor-swarm.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return config.Load(candidate)
		}
	}
	cfg := config.Default()
	return cfg, cfg.Validate()
}

func buildProvider(cfg *config.Config) (llm.Provider, error) {
	if cfg.LLM.Provider == "mock" {
		return llm.NewMockProvider(nil, nil), nil
	}
	base, err := llm.NewOpenAIProvider(llm.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimitedProvider(base, llm.RateLimiterConfig{
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		Burst:             cfg.LLM.Burst,
		MaxRetries:        cfg.LLM.MaxRetries,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
	})
}

func loggerOptions(cfg *config.Config) []telemetry.LoggerOption {
	var opts []telemetry.LoggerOption
	if cfg.Telemetry.LoggerFlushEvery > 0 {
		opts = append(opts, telemetry.WithFlushEvery(cfg.Telemetry.LoggerFlushEvery))
	}
	return opts
}

func trackerOptions(cfg *config.Config) []telemetry.TrackerOption {
	opts := []telemetry.TrackerOption{telemetry.WithDefaultModel(cfg.LLM.Model)}
	if cfg.Telemetry.TrackerFlushEvery > 0 {
		opts = append(opts, telemetry.WithTrackerFlushEvery(cfg.Telemetry.TrackerFlushEvery))
	}
	return opts
}

// archiveRun records the finished session in the cross-run archive.
// Archive failures are reported but never fail the run.
func archiveRun(cfg *config.Config, target string, result *orchestrator.Result, metrics telemetry.TelemetryMetrics) {
	if cfg.History.Path == "" {
		return
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Warn().Err(err).Msg("run archive unavailable")
		return
	}
	defer store.Close()

	err = store.Record(history.Run{
		SessionID:   result.SessionID,
		TargetDir:   target,
		Iterations:  result.Iterations,
		TotalEvents: metrics.TotalEvents,
		SuccessRate: metrics.SuccessRate,
		FinalScore:  result.QualityScoreAfter,
		Completed:   result.Completed,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to archive run")
	}
}

func printRunSummary(result *orchestrator.Result, elapsed time.Duration) {
	fmt.Println()
	if result.Completed {
		color.Green("REPAIR COMPLETE")
	} else {
		color.Red("REPAIR INCOMPLETE")
	}
	fmt.Printf("  session:     %s\n", result.SessionID)
	fmt.Printf("  iterations:  %d (%d fix attempts)\n", result.Iterations, result.FixAttempts)
	fmt.Printf("  tests:       %v\n", result.TestsPassed)
	fmt.Printf("  quality:     %.2f -> %.2f (%+.2f)\n",
		result.QualityScoreBefore, result.QualityScoreAfter, result.Improvement)
	fmt.Printf("  elapsed:     %s\n", elapsed.Round(time.Second))
}
