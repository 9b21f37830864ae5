package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"screenshot-search/internal/imagetypes"
	"screenshot-search/internal/logging"
	"screenshot-search/internal/metrics"
	"screenshot-search/internal/ocr"
	"screenshot-search/internal/store"
)

var (
	// ErrScanActive is returned when a scan is requested while one is
	// already running. Concurrent scans are rejected, never queued.
	ErrScanActive = errors.New("scan already in progress")

	// ErrRootUnavailable is returned when the scan root cannot be
	// enumerated at all. Nothing is committed in that case.
	ErrRootUnavailable = errors.New("scan root unavailable")
)

// Progress is one snapshot of a running (or finished) scan.
type Progress struct {
	Scanned   int64     `json:"scanned"`
	Total     int64     `json:"total"`
	Indexed   int64     `json:"indexed"`
	Skipped   int64     `json:"skipped"`
	Failed    int64     `json:"failed"`
	Active    bool      `json:"active"`
	Done      bool      `json:"done"`
	StartedAt time.Time `json:"startedAt,omitempty"`
}

// Summary is the final accounting of one completed scan pass.
type Summary struct {
	Scanned  int64         `json:"scanned"`
	Indexed  int64         `json:"indexed"`
	Skipped  int64         `json:"skipped"`
	Failed   int64         `json:"failed"`
	Duration time.Duration `json:"-"`
}

// candidate is one enumerated image file awaiting classification.
type candidate struct {
	path    string
	modTime time.Time
}

// Scanner brings the store into sync with the filesystem subtree at
// root. One scan runs at a time; files are extracted sequentially
// because the OCR engine is the bottleneck and is not safely
// parallelizable.
type Scanner struct {
	store     *store.Store
	extractor ocr.Extractor
	root      string

	scanMu       sync.Mutex
	isScanning   bool
	lastScanTime time.Time

	scanned atomic.Int64
	indexed atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
	total   atomic.Int64

	progress atomic.Value
	updates  chan Progress
}

// New creates a Scanner over root using the given store and extractor.
func New(st *store.Store, extractor ocr.Extractor, root string) *Scanner {
	s := &Scanner{
		store:     st,
		extractor: extractor,
		root:      root,
		updates:   make(chan Progress, 64),
	}
	s.progress.Store(Progress{})
	return s
}

// Updates returns the progress channel. Snapshots are sent with
// non-blocking writes, so a slow consumer only misses intermediate
// updates and never stalls the scan.
func (s *Scanner) Updates() <-chan Progress {
	return s.updates
}

// Progress returns the latest progress snapshot for polling callers.
func (s *Scanner) Progress() Progress {
	if p, ok := s.progress.Load().(Progress); ok {
		return p
	}
	return Progress{}
}

// IsScanning reports whether a scan is currently in progress.
func (s *Scanner) IsScanning() bool {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	return s.isScanning
}

// LastScanTime returns the completion time of the last scan.
func (s *Scanner) LastScanTime() time.Time {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	return s.lastScanTime
}

// TriggerScan starts a scan in the background. If one is already
// running the trigger is a no-op.
func (s *Scanner) TriggerScan() {
	go func() {
		if _, err := s.Scan(context.Background()); err != nil {
			if errors.Is(err, ErrScanActive) {
				logging.Info("Scan already in progress, skipping trigger")
				return
			}
			logging.Error("Triggered scan failed: %v", err)
		}
	}()
}

// Scan performs one full pass: enumerate the tree, classify each file
// as new, stale or current against the stored fingerprints, extract
// text for new/stale files and upsert the records. A single file's
// failure never aborts the scan; only an unusable root or a store
// write error does. Cancelling ctx stops the pass but keeps every
// record upserted so far.
func (s *Scanner) Scan(ctx context.Context) (Summary, error) {
	if !s.tryStartScan() {
		return Summary{}, ErrScanActive
	}
	defer s.finishScan()

	metrics.ScanIsRunning.Set(1)
	defer metrics.ScanIsRunning.Set(0)
	metrics.ScanRunsTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting scan of %s", s.root)

	s.resetCounters(startTime)

	info, err := os.Stat(s.root)
	if err != nil {
		metrics.ScanErrors.Inc()
		return Summary{}, fmt.Errorf("%w: %s: %v", ErrRootUnavailable, s.root, err)
	}
	if !info.IsDir() {
		metrics.ScanErrors.Inc()
		return Summary{}, fmt.Errorf("%w: %s is not a directory", ErrRootUnavailable, s.root)
	}

	candidates, err := s.enumerate(ctx)
	if err != nil {
		metrics.ScanErrors.Inc()
		return Summary{}, err
	}

	s.total.Store(int64(len(candidates)))
	s.publish(startTime, true, false)

	prints, err := s.store.Fingerprints(ctx)
	if err != nil {
		metrics.ScanErrors.Inc()
		return Summary{}, fmt.Errorf("failed to load fingerprints: %w", err)
	}

	summary, scanErr := s.processCandidates(ctx, candidates, prints, startTime)

	summary.Duration = time.Since(startTime)
	s.finalizeScan(startTime, summary)

	return summary, scanErr
}

// enumerate walks the root collecting files with recognized image
// extensions. Unreadable subpaths are logged and skipped; only a walk
// failure on the root itself is fatal.
func (s *Scanner) enumerate(ctx context.Context) ([]candidate, error) {
	var candidates []candidate

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}

		if err != nil {
			if path == s.root {
				return fmt.Errorf("%w: %v", ErrRootUnavailable, err)
			}
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") && path != s.root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !imagetypes.IsImage(d.Name()) {
			return nil
		}

		fileInfo, err := d.Info()
		if err != nil {
			logging.Warn("Error reading file info for %s: %v", path, err)
			return nil
		}

		candidates = append(candidates, candidate{path: path, modTime: fileInfo.ModTime()})
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return nil, err
	}

	logging.Info("Found %d candidate images under %s", len(candidates), s.root)
	return candidates, nil
}

// processCandidates runs the sequential extract-and-upsert loop.
func (s *Scanner) processCandidates(ctx context.Context, candidates []candidate, prints map[string]int64, startTime time.Time) (Summary, error) {
	for _, c := range candidates {
		select {
		case <-ctx.Done():
			logging.Info("Scan cancelled after %d/%d files, committed records kept",
				s.scanned.Load(), len(candidates))
			return s.summary(), ctx.Err()
		default:
		}

		s.scanned.Add(1)

		if stored, ok := prints[c.path]; ok && stored == c.modTime.Unix() {
			// Current: fingerprint matches, no extractor call.
			s.skipped.Add(1)
			metrics.ScanFilesTotal.WithLabelValues("skipped").Inc()
			s.publish(startTime, true, false)
			continue
		}

		text, err := s.extractor.Extract(ctx, c.path)
		if err != nil {
			if ctx.Err() != nil {
				return s.summary(), ctx.Err()
			}
			// A failed file is still recorded with empty text so it is
			// covered and never retried on the next scan.
			logging.Warn("Text extraction failed for %s: %v", c.path, err)
			s.failed.Add(1)
			metrics.ScanFilesTotal.WithLabelValues("failed").Inc()
			text = ""
		} else {
			s.indexed.Add(1)
			metrics.ScanFilesTotal.WithLabelValues("indexed").Inc()
		}

		rec := store.Screenshot{
			Path:          c.path,
			Folder:        s.folderOf(c.path),
			ModifiedAt:    c.modTime,
			ExtractedText: text,
		}
		if err := s.store.Upsert(ctx, &rec); err != nil {
			// Store failures are not tolerable: silent data loss is
			// worse than an aborted scan.
			metrics.ScanErrors.Inc()
			return s.summary(), fmt.Errorf("failed to store record for %s: %w", c.path, err)
		}

		s.publish(startTime, true, false)
	}

	return s.summary(), nil
}

// folderOf returns the containing directory relative to the scan
// root, or "" for files directly in the root.
func (s *Scanner) folderOf(path string) string {
	rel, err := filepath.Rel(s.root, filepath.Dir(path))
	if err != nil || rel == "." {
		return ""
	}
	return rel
}

func (s *Scanner) summary() Summary {
	return Summary{
		Scanned: s.scanned.Load(),
		Indexed: s.indexed.Load(),
		Skipped: s.skipped.Load(),
		Failed:  s.failed.Load(),
	}
}

// tryStartScan attempts to start a scan, returns false if one is
// already in progress.
func (s *Scanner) tryStartScan() bool {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	if s.isScanning {
		return false
	}
	s.isScanning = true
	return true
}

func (s *Scanner) finishScan() {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	s.isScanning = false
}

func (s *Scanner) resetCounters(startTime time.Time) {
	s.scanned.Store(0)
	s.indexed.Store(0)
	s.skipped.Store(0)
	s.failed.Store(0)
	s.total.Store(0)
	s.progress.Store(Progress{Active: true, StartedAt: startTime})
}

// finalizeScan records completion state and emits the terminal
// progress snapshot.
func (s *Scanner) finalizeScan(startTime time.Time, summary Summary) {
	s.scanMu.Lock()
	s.lastScanTime = time.Now()
	s.scanMu.Unlock()

	metrics.ScanLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.ScanLastRunDuration.Set(summary.Duration.Seconds())

	s.publish(startTime, false, true)

	logging.Info("Scan complete: %d scanned, %d indexed, %d skipped, %d failed in %v",
		summary.Scanned, summary.Indexed, summary.Skipped, summary.Failed, summary.Duration)
}

// publish stores the current snapshot for polling and offers it on
// the updates channel without blocking.
func (s *Scanner) publish(startTime time.Time, active, done bool) {
	p := Progress{
		Scanned:   s.scanned.Load(),
		Total:     s.total.Load(),
		Indexed:   s.indexed.Load(),
		Skipped:   s.skipped.Load(),
		Failed:    s.failed.Load(),
		Active:    active,
		Done:      done,
		StartedAt: startTime,
	}
	s.progress.Store(p)

	select {
	case s.updates <- p:
	default:
	}
}
