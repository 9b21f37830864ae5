package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"screenshot-search/internal/logging"
	"screenshot-search/internal/metrics"
	"screenshot-search/internal/workers"
)

// Default timeout for store operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when a record does not exist for a path.
var ErrNotFound = errors.New("record not found")

// Store owns the screenshot records and the full-text index over their
// extracted text. Writes come only from the scanner; readers may query
// concurrently and always observe fully committed records.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (or creates) the store at dbPath and ensures the schema.
// The parent directory must already exist and be writable; use
// startup.LoadConfig() for validation before calling this.
func New(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Store path: %s", dbPath)

	// WAL keeps readers unblocked while the scanner writes;
	// busy_timeout prevents "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(workers.ForIO(25))
	db.SetMaxIdleConns(workers.ForIO(10))
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Store initialized at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	CREATE TABLE IF NOT EXISTS screenshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		folder TEXT NOT NULL,
		mod_time INTEGER NOT NULL,
		extracted_text TEXT NOT NULL DEFAULT '',
		indexed_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_screenshots_folder ON screenshots(folder);
	CREATE INDEX IF NOT EXISTS idx_screenshots_mod_time ON screenshots(mod_time);
	CREATE INDEX IF NOT EXISTS idx_screenshots_indexed_at ON screenshots(indexed_at);

	-- Full-text index over extracted text, kept in sync by triggers
	CREATE VIRTUAL TABLE IF NOT EXISTS screenshots_fts USING fts5(
		extracted_text,
		content='screenshots',
		content_rowid='id'
	);

	CREATE TRIGGER IF NOT EXISTS screenshots_ai AFTER INSERT ON screenshots BEGIN
		INSERT INTO screenshots_fts(rowid, extracted_text) VALUES (new.id, new.extracted_text);
	END;

	CREATE TRIGGER IF NOT EXISTS screenshots_ad AFTER DELETE ON screenshots BEGIN
		INSERT INTO screenshots_fts(screenshots_fts, rowid, extracted_text) VALUES('delete', old.id, old.extracted_text);
	END;

	CREATE TRIGGER IF NOT EXISTS screenshots_au AFTER UPDATE ON screenshots BEGIN
		INSERT INTO screenshots_fts(screenshots_fts, rowid, extracted_text) VALUES('delete', old.id, old.extracted_text);
		INSERT INTO screenshots_fts(rowid, extracted_text) VALUES (new.id, new.extracted_text);
	END;
	`

	_, err = s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces the record for rec.Path in a single
// atomic statement. The write is durable when the call returns.
func (s *Store) Upsert(ctx context.Context, rec *Screenshot) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	indexedAt := rec.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now()
	}

	query := `
	INSERT INTO screenshots (path, folder, mod_time, extracted_text, indexed_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		folder = excluded.folder,
		mod_time = excluded.mod_time,
		extracted_text = excluded.extracted_text,
		indexed_at = excluded.indexed_at
	`

	_, err = s.db.ExecContext(ctx, query,
		rec.Path,
		rec.Folder,
		rec.ModifiedAt.Unix(),
		rec.ExtractedText,
		indexedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", rec.Path, err)
	}
	rec.IndexedAt = indexedAt
	return nil
}

// Fingerprint returns the stored modification time for path, with
// ok=false when the path has never been indexed.
func (s *Store) Fingerprint(ctx context.Context, path string) (time.Time, bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("fingerprint", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var modTime int64
	err = s.db.QueryRowContext(ctx,
		"SELECT mod_time FROM screenshots WHERE path = ?", path,
	).Scan(&modTime)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("fingerprint lookup failed: %w", err)
	}
	return time.Unix(modTime, 0), true, nil
}

// Fingerprints returns the (path, mod_time) pairs of every record.
// The scanner uses this to classify files without loading text.
func (s *Store) Fingerprints(ctx context.Context) (map[string]int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("fingerprints", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT path, mod_time FROM screenshots")
	if err != nil {
		return nil, fmt.Errorf("failed to load fingerprints: %w", err)
	}
	defer rows.Close()

	prints := make(map[string]int64)
	for rows.Next() {
		var path string
		var modTime int64
		if err = rows.Scan(&path, &modTime); err != nil {
			return nil, fmt.Errorf("fingerprint scan failed: %w", err)
		}
		prints[path] = modTime
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("fingerprint rows error: %w", err)
	}
	return prints, nil
}

// Text returns the extracted text for a single path.
// Returns ErrNotFound when the path has not been indexed.
func (s *Store) Text(ctx context.Context, path string) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("text", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var text string
	err = s.db.QueryRowContext(ctx,
		"SELECT extracted_text FROM screenshots WHERE path = ?", path,
	).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("text lookup failed: %w", err)
	}
	return text, nil
}

// Folders returns the distinct folders present in the index, sorted.
func (s *Store) Folders(ctx context.Context) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("folders", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT folder FROM screenshots ORDER BY folder")
	if err != nil {
		return nil, fmt.Errorf("folders query failed: %w", err)
	}
	defer rows.Close()

	var folders []string
	for rows.Next() {
		var f string
		if err = rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("folders scan failed: %w", err)
		}
		folders = append(folders, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("folders rows error: %w", err)
	}
	return folders, nil
}

// Stats returns index statistics.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats Stats

	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM screenshots", &stats.TotalIndexed},
		{"SELECT COUNT(*) FROM screenshots WHERE extracted_text != ''", &stats.WithText},
		{"SELECT COUNT(DISTINCT folder) FROM screenshots", &stats.Folders},
	}

	for _, q := range queries {
		if err = s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return stats, fmt.Errorf("stats query failed: %w", err)
		}
	}

	var lastIndexed sql.NullInt64
	if err = s.db.QueryRowContext(ctx,
		"SELECT MAX(indexed_at) FROM screenshots").Scan(&lastIndexed); err != nil {
		return stats, fmt.Errorf("stats query failed: %w", err)
	}
	if lastIndexed.Valid {
		stats.LastIndexed = time.Unix(0, lastIndexed.Int64)
	}

	return stats, nil
}

// PruneMissing removes records whose files no longer exist on disk.
// Scans never call this; it runs only when explicitly requested.
func (s *Store) PruneMissing(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("prune_missing", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT id, path FROM screenshots")
	if err != nil {
		return 0, fmt.Errorf("prune listing failed: %w", err)
	}

	var missing []int64
	for rows.Next() {
		var id int64
		var path string
		if err = rows.Scan(&id, &path); err != nil {
			rows.Close()
			return 0, fmt.Errorf("prune scan failed: %w", err)
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			missing = append(missing, id)
		}
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("prune rows error: %w", err)
	}
	rows.Close()

	var pruned int64
	for _, id := range missing {
		if _, err = s.db.ExecContext(ctx, "DELETE FROM screenshots WHERE id = ?", id); err != nil {
			return pruned, fmt.Errorf("prune delete failed: %w", err)
		}
		pruned++
	}

	if pruned > 0 {
		logging.Info("Pruned %d records for missing files", pruned)
	}
	return pruned, nil
}

// recordQuery records store query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (s *Store) UpdateDBMetrics() {
	stats := s.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}
