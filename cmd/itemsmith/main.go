package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yuripa07/itemsmith/internal/config"
	"github.com/yuripa07/itemsmith/internal/db"
	"github.com/yuripa07/itemsmith/internal/generate"
	"github.com/yuripa07/itemsmith/internal/mcp"
	"github.com/yuripa07/itemsmith/internal/prefs"
	"github.com/yuripa07/itemsmith/internal/session"
	"github.com/yuripa07/itemsmith/internal/tracker"
	"github.com/yuripa07/itemsmith/pkg/logutils"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"generate": true, "submit": true, "config": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _ _                     _ _   _
  (_) |_ ___ _ __  ___ _ _ (_) |_| |_
  | |  _/ -_) '  \(_-< '  \| |  _| ' \
  |_|\__\___|_|_|_/__/_|_|_|_|\__|_||_|

  Meeting notes to work items

  Usage: itemsmith <command> [options]
         itemsmith --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".itemsmith")

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	db.ConfigurePool(database, cfg)

	logger, closeLog, err := logutils.New(os.Getenv("ITEMSMITH_LOG_LEVEL"), os.Getenv("ITEMSMITH_LOG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	logutils.SetGlobal(logger)

	deps := &cliDeps{
		cfg:   cfg,
		store: prefs.New(database),
		newGenerator: func(ctx context.Context) (Generator, error) {
			return generate.New(ctx, os.Getenv("GEMINI_API_KEY"), cfg.Model)
		},
		submitter: tracker.New(cfg.TrackerBaseURL, cfg.TrackerAPIVersion),
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(deps)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'itemsmith --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		fmt.Fprintf(os.Stderr, "error: unknown tools in disabled_tools: %v\n", unknown)
		os.Exit(1)
	}

	gen, err := deps.newGenerator(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	h := mcp.NewHandlers(deps.store, session.New(), gen, deps.submitter)
	if err := mcp.Run(h, cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
