// Package cmd provides CLI commands for kr8-vector.
//
// Commands:
//   - migrate: Apply database migrations (schema + pgvector extension)
//   - ingest: Embed and load documents from files or stdin
//   - search: Similarity search over a collection
//   - optimize: Build the ANN index for a collection
//   - stats: Collection row count and document names
//
// Signal handling and graceful shutdown are implemented for all commands
// via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sreddy75/kr8-vector/internal/log"
)

// Execute is the main entry point for the kr8-vector CLI application.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level, JSON: os.Getenv("LOG_JSON") != ""}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "migrate":
		return runMigrate()
	case "ingest":
		return runIngest(os.Args[2:])
	case "search":
		return runSearch(os.Args[2:])
	case "optimize":
		return runOptimize()
	case "stats":
		return runStats()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("kr8-vector - Multi-tenant pgvector document store")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  kr8-vector migrate            Apply database migrations")
	fmt.Println("  kr8-vector ingest <file>...   Embed and store documents (use - for stdin)")
	fmt.Println("  kr8-vector search <query>     Similarity search the collection")
	fmt.Println("  kr8-vector optimize           Build the ANN index")
	fmt.Println("  kr8-vector stats              Show collection statistics")
	fmt.Println("  kr8-vector --version          Show version information")
	fmt.Println("  kr8-vector --help             Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY                Required for ingest/search: Gemini API key")
	fmt.Println("  DATABASE_URL                  Optional: postgres:// connection URL")
	fmt.Println("  KR8_COLLECTION                Optional: collection name (default: documents)")
	fmt.Println("  KR8_ORG_ID, KR8_USER_ID       Optional: tenant scoping")
	fmt.Println("  DEBUG                         Optional: Enable debug logging")
	fmt.Println()
	fmt.Println("Learn more: https://github.com/sreddy75/kr8-vector")
}
