// Package main is the entry point for the refactor-swarm CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// ANSI color codes for the banner
const (
	swarmCyan = "\033[38;2;0;170;190m"
	bold      = "\033[1m"
	reset     = "\033[0m"
)

const banner = `
 ██████╗ ███████╗███████╗ █████╗  ██████╗████████╗ ██████╗ ██████╗       ███████╗██╗    ██╗ █████╗ ██████╗ ███╗   ███╗
 ██╔══██╗██╔════╝██╔════╝██╔══██╗██╔════╝╚══██╔══╝██╔═══██╗██╔══██╗      ██╔════╝██║    ██║██╔══██╗██╔══██╗████╗ ████║
 ██████╔╝█████╗  █████╗  ███████║██║        ██║   ██║   ██║██████╔╝█████╗███████╗██║ █╗ ██║███████║██████╔╝██╔████╔██║
 ██╔══██╗██╔══╝  ██╔══╝  ██╔══██║██║        ██║   ██║   ██║██╔══██╗╚════╝╚════██║██║███╗██║██╔══██║██╔══██╗██║╚██╔╝██║
 ██║  ██║███████╗██║     ██║  ██║╚██████╗   ██║   ╚██████╔╝██║  ██║      ███████║╚███╔███╔╝██║  ██║██║  ██║██║ ╚═╝ ██║
 ╚═╝  ╚═╝╚══════╝╚═╝     ╚═╝  ╚═╝ ╚═════╝   ╚═╝    ╚═════╝ ╚═╝  ╚═╝      ╚══════╝ ╚══╝╚══╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═╝     ╚═╝
`

func printBanner() {
	fmt.Print(swarmCyan + bold + banner + reset + "\n")
}

// loadEnvFiles loads .env from standard locations
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	configEnv := filepath.Join(homeDir, ".config", "refactor-swarm", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	// Local .env can override
	_ = godotenv.Load()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "run":
			runRepairCommand(os.Args[2:])
			return
		case "validate":
			runValidateCommand(os.Args[2:])
			return
		case "history":
			runHistoryCommand(os.Args[2:])
			return
		case "version", "-v", "--version":
			PrintVersion()
			return
		case "help", "-h", "--help":
			printHelp()
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
			printHelp()
			os.Exit(2)
		}
	}
	printHelp()
}

// setupLogging configures zerolog. Console output is pretty-printed only
// when stdout is a terminal.
func setupLogging(debug bool) {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func printHelp() {
	printBanner()
	fmt.Println("refactor-swarm - multi-agent code repair workflow")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  refactor-swarm [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run          Repair a target codebase")
	fmt.Println("  validate     Validate a telemetry log and summarize the session")
	fmt.Println("  history      Show archived run summaries")
	fmt.Println("  version      Print version information")
	fmt.Println("  help         Show this help message")
	fmt.Println()
	fmt.Println("Run Options:")
	fmt.Println("  refactor-swarm run --target DIR [--config FILE] [--max-iterations N] [--mock] [--debug]")
	fmt.Println()
	fmt.Println("Validate Options:")
	fmt.Println("  refactor-swarm validate --file telemetry_data.json [--report FILE] [--summary] [--export FILE]")
	fmt.Println()
	fmt.Println("History Options:")
	fmt.Println("  refactor-swarm history [--db FILE] [--target DIR] [--limit N]")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  refactor-swarm run --target ./broken_project")
	fmt.Println("  refactor-swarm validate --file logs/telemetry_data.json --summary")
	fmt.Println("  refactor-swarm history --target ./broken_project")
}
