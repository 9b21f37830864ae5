package handlers

import (
	"time"

	"screenshot-search/internal/scanner"
	"screenshot-search/internal/startup"
	"screenshot-search/internal/store"
)

// Handlers bundles the HTTP handlers with their dependencies.
type Handlers struct {
	store     *store.Store
	scanner   *scanner.Scanner
	rootDir   string
	startTime time.Time
}

func New(st *store.Store, sc *scanner.Scanner, config *startup.Config) *Handlers {
	return &Handlers{
		store:     st,
		scanner:   sc,
		rootDir:   config.ScreenshotsDir,
		startTime: time.Now(),
	}
}
