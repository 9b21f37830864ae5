// Command prunedb removes index records for screenshots that no longer
// exist on disk. The server exposes the same operation over POST
// /api/prune; this tool covers the offline case where the database
// should be cleaned without running the service.
//
// Like the server, it must be built with -tags 'fts5' because the
// store schema includes an FTS5 virtual table:
//
//	go build -tags 'fts5' -o prunedb ./cmd/prunedb
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"screenshot-search/internal/store"
)

const defaultDatabaseDir = "/database"

func main() {
	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	dbPath := filepath.Join(databaseDir, "screenshots.db")

	st, err := store.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	stats, err := st.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read index stats: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Index contains %d screenshots\n", stats.TotalIndexed)

	pruned, err := st.PruneMissing(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: prune failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Pruned %d missing screenshots\n", pruned)
}
