package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/samijaber1/session-relay/internal/query"
	"github.com/samijaber1/session-relay/internal/session"
	"github.com/samijaber1/session-relay/internal/storage"
	"github.com/samijaber1/session-relay/internal/storage/sqlite"
	"go.uber.org/zap"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validateFile := validateCmd.String("file", "", "dataset JSON file")

	rankedCmd := flag.NewFlagSet("ranked", flag.ExitOnError)
	rankedDB := rankedCmd.String("db", "", "SQLite database path")
	rankedLocation := rankedCmd.String("location", query.DefaultLocation, "location to rank")
	rankedSession := rankedCmd.String("session", session.SessionRace, "session name to rank")

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importDB := importCmd.String("db", "", "SQLite database path")
	importFile := importCmd.String("file", "", "dataset JSON file")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if *validateFile == "" {
			fmt.Fprintln(os.Stderr, "Error: --file flag is required")
			validateCmd.Usage()
			os.Exit(1)
		}
		os.Exit(runValidate(*validateFile, os.Stdout, os.Stderr))
	case "ranked":
		rankedCmd.Parse(os.Args[2:])
		if *rankedDB == "" {
			fmt.Fprintln(os.Stderr, "Error: --db flag is required")
			rankedCmd.Usage()
			os.Exit(1)
		}
		os.Exit(runRanked(*rankedDB, *rankedLocation, *rankedSession, os.Stdout, os.Stderr))
	case "import":
		importCmd.Parse(os.Args[2:])
		if *importDB == "" || *importFile == "" {
			fmt.Fprintln(os.Stderr, "Error: --db and --file flags are required")
			importCmd.Usage()
			os.Exit(1)
		}
		os.Exit(runImport(*importDB, *importFile, os.Stdout, os.Stderr))
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: relay <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  validate --file <path>                             Validate a dataset JSON file")
	fmt.Println("  ranked --db <path> [--location L] [--session S]    Print the ranked view from a database")
	fmt.Println("  import --db <path> --file <path>                   Replace database contents with a dataset file")
	fmt.Println()
}

func runValidate(path string, stdout, stderr io.Writer) int {
	validator, err := session.NewValidator()
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialize validator: %v\n", err)
		return 1
	}

	records, errs := validator.LoadFile(path)
	if len(errs) == 0 {
		fmt.Fprintf(stdout, "✓ %d record(s) are valid\n", len(records))
		return 0
	}

	fmt.Fprintf(stderr, "✗ Validation failed with %d error(s):\n\n", len(errs))
	for _, e := range errs {
		fmt.Fprintln(stderr, e.Error())
	}

	return 1
}

func runRanked(dbPath, location, sessionName string, stdout, stderr io.Writer) int {
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	store, err := sqlite.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	svc := query.NewService(store, location, sessionName, zap.NewNop())
	entries, err := svc.Ranked(context.Background())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}

func runImport(dbPath, path string, stdout, stderr io.Writer) int {
	validator, err := session.NewValidator()
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialize validator: %v\n", err)
		return 1
	}

	records, errs := validator.LoadFile(path)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(stderr, e.Error())
		}
		return 1
	}

	if len(records) == 0 {
		fmt.Fprintln(stderr, "Error: dataset is empty, database left unchanged")
		return 1
	}

	store, err := sqlite.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	ctx := context.Background()
	rec := storage.TransferRecord{
		ID:        uuid.NewString(),
		Outcome:   storage.TransferReady,
		Rows:      len(records),
		StartedAt: time.Now(),
	}

	if err := store.ReplaceAll(ctx, records); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	rec.FinishedAt = time.Now()
	if err := store.RecordTransfer(ctx, rec); err != nil {
		fmt.Fprintf(stderr, "Warning: failed to record transfer: %v\n", err)
	}

	fmt.Fprintf(stdout, "✓ imported %d record(s) into %s\n", len(records), dbPath)
	return 0
}
