package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"github.com/codeswarm/refactor-swarm/internal/config"
	"github.com/codeswarm/refactor-swarm/internal/history"
)

// runHistoryCommand lists archived run summaries.
func runHistoryCommand(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dbPath := fs.String("db", config.DefaultHistoryPath, "run archive database")
	target := fs.String("target", "", "only show runs for this target directory")
	limit := fs.Int("limit", 10, "maximum runs to show")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	setupLogging(*debug)

	// Honor the same env override the run command applies through config.
	if *dbPath == config.DefaultHistoryPath {
		if env := os.Getenv("SWARM_HISTORY_DB"); env != "" {
			*dbPath = env
		}
	}

	store, err := history.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open run archive")
	}
	defer store.Close()

	runs, err := store.Recent(*target, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to query run archive")
	}
	if len(runs) == 0 {
		fmt.Println("no archived runs")
		return
	}

	fmt.Printf("%-28s %-12s %5s %7s %7s %6s  %s\n",
		"WHEN", "SESSION", "ITERS", "EVENTS", "RATE", "SCORE", "TARGET")
	for _, r := range runs {
		line := fmt.Sprintf("%-28s %-12s %5d %7d %6.0f%% %6.2f  %s",
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			shortID(r.SessionID), r.Iterations, r.TotalEvents,
			r.SuccessRate*100, r.FinalScore, r.TargetDir)
		if r.Completed {
			color.Green("%s", line)
		} else {
			color.Red("%s", line)
		}
	}

	if *target != "" {
		count, avg, err := store.TargetStats(*target)
		if err == nil && count > 0 {
			fmt.Printf("\n%d run(s) on %s, average final score %.2f\n", count, *target, avg)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
