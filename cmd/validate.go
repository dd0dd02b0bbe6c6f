package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"github.com/codeswarm/refactor-swarm/internal/metrics"
	"github.com/codeswarm/refactor-swarm/internal/validate"
)

// runValidateCommand checks a telemetry document against the schema and
// business rules, optionally writing the report to a file, printing the
// session summary and exporting the aggregations.
func runValidateCommand(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	file := fs.String("file", "logs/telemetry_data.json", "telemetry document to validate")
	reportPath := fs.String("report", "", "also write the validation report to this path")
	summary := fs.Bool("summary", false, "also print the session summary report")
	export := fs.String("export", "", "write visualization bundle to this path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	setupLogging(*debug)

	valid, errs := validate.ValidateFile(*file)
	report := validate.GenerateReport(*file, valid, errs)
	fmt.Println(report)

	if *reportPath != "" {
		if err := os.WriteFile(*reportPath, []byte(report+"\n"), 0600); err != nil {
			log.Fatal().Err(err).Msg("failed to write validation report")
		}
		log.Info().Str("path", *reportPath).Msg("validation report written")
	}

	if valid {
		color.Green("document is valid")
	} else {
		color.Red("document is invalid")
	}

	if *summary || *export != "" {
		analyzer, err := metrics.NewAnalyzer(*file)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load telemetry document")
		}
		if *summary {
			fmt.Println()
			fmt.Print(analyzer.SummaryReport())
		}
		if *export != "" {
			if err := analyzer.ExportForVisualization(*export); err != nil {
				log.Fatal().Err(err).Msg("export failed")
			}
			log.Info().Str("path", *export).Msg("visualization bundle written")
		}
	}

	if !valid {
		os.Exit(1)
	}
}
