package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"crmtriage/internal/config"
	"crmtriage/internal/migrate"
	"crmtriage/migrations"
)

func main() {
	// Load .env file (ignore error if not present)
	_ = godotenv.Load()

	fmt.Fprintln(os.Stdout, "=== CRM Triage Migration Runner ===")

	// Parse command
	command := "help"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up", "down", "status", "reset", "seed":
	case "help":
		printUsage()
		os.Exit(0)
	default:
		printUsage()
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fail(nil, fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Connect to database
	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		fail(nil, fmt.Sprintf("Failed to open database connection: %v", err))
	}
	defer db.Close()

	runner := migrate.NewRunner(db, migrations.FS, os.Stdout, os.Stderr)

	if err := db.Ping(); err != nil {
		fail(runner, fmt.Sprintf("Failed to ping database: %v", err))
	}

	if err := runner.Init(); err != nil {
		fail(runner, fmt.Sprintf("Failed to create migration table: %v", err))
	}

	var runErr error
	switch command {
	case "up":
		runErr = runner.Up()
	case "down":
		runErr = runner.Down()
	case "status":
		runErr = runner.Status()
	case "reset":
		runErr = runner.Reset()
	case "seed":
		runErr = runner.Seed()
	}
	if runErr != nil {
		db.Close()
		fail(runner, fmt.Sprintf("%s failed: %v", command, runErr))
	}

	fmt.Fprintln(os.Stdout, "Operation completed successfully")
}

func fail(runner *migrate.Runner, msg string) {
	if runner != nil {
		runner.Error(msg)
	} else {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`Usage: migrate <command>

Commands:
  up      Apply all pending migrations
  down    Roll back the last applied migration
  status  Show applied and pending migrations
  reset   Roll back every migration, then apply them again
  seed    Load demo data from migrations/seed
  help    Show this message

Configuration is read from the environment and an optional .env file.`)
}
