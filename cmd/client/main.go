package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	clientapi "github.com/HolyWalley/money-sub000/internal/client/api"
	"github.com/HolyWalley/money-sub000/internal/client/auth"
	"github.com/HolyWalley/money-sub000/internal/client/cli"
	"github.com/HolyWalley/money-sub000/internal/client/data"
	"github.com/HolyWalley/money-sub000/internal/client/iocli"
	"github.com/HolyWalley/money-sub000/internal/client/projection"
	"github.com/HolyWalley/money-sub000/internal/client/storage/boltdb"
	syncsvc "github.com/HolyWalley/money-sub000/internal/client/sync"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	dbPath := flag.String("db", "moneysync-client.db", "Path to local database")
	verbose := flag.Bool("verbose", false, "Enable debug logging")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	stdio := iocli.NewStdio()

	args := flag.Args()
	if len(args) == 0 {
		cli.New(stdio, nil, nil, nil, nil, nil, nil).PrintUsage()
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := context.Background()

	store, err := boltdb.New(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	apiClient := clientapi.NewClient(*serverURL)
	session := auth.NewService(logger, apiClient, store)
	projector := projection.NewProjector(logger, store)
	queries := projection.NewQueries(store)
	dataService := data.NewService(logger, store, projector)
	syncService := syncsvc.NewService(logger, apiClient, session, store, projector)

	app := cli.New(stdio, apiClient, session, dataService, syncService, queries, store)
	if err := app.Run(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("MoneySync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
