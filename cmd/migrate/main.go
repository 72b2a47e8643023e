// Package main provides the schema migration CLI.
// Usage: migrate [-config file] up
//        migrate down
//        migrate steps -2
//        migrate version
//        migrate force 3
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"stockforecast/internal/infrastructure/storage/postgres"
	"stockforecast/pkg/config"
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fail("load config: %v", err)
	}
	if cfg.Database.DSN == "" {
		fail("database.dsn is required (STOCKFORECAST_DATABASE_DSN)")
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		fail("init logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	m, err := postgres.NewMigrator(cfg.Database.DSN, log)
	if err != nil {
		fail("%v", err)
	}
	defer func() { _ = m.Close() }()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		n, convErr := intArg()
		if convErr != nil {
			fail("steps: %v", convErr)
		}
		err = m.Steps(n)
	case "force":
		v, convErr := intArg()
		if convErr != nil {
			fail("force: %v", convErr)
		}
		err = m.Force(v)
	case "version":
		v, dirty, verErr := m.Version()
		if verErr != nil {
			fail("%v", verErr)
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fail("%v", err)
	}
}

func intArg() (int, error) {
	if flag.NArg() < 2 {
		return 0, fmt.Errorf("missing argument")
	}
	return strconv.Atoi(flag.Arg(1))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`Stock forecast schema migrations

Usage:
  migrate [-config file] <command> [argument]

Commands:
  up         Apply all pending migrations
  down       Roll back all migrations
  steps N    Apply N migrations (negative rolls back)
  version    Print the current schema version
  force V    Set the version without running migrations
  help       Show this help

Environment Variables:
  STOCKFORECAST_DATABASE_DSN   Connection string of the database`)
}
