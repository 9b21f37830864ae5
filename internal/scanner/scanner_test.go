package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"screenshot-search/internal/store"
)

// stubExtractor returns canned text per path and counts calls.
type stubExtractor struct {
	mu    sync.Mutex
	calls map[string]int
	text  map[string]string
	fail  map[string]bool

	// block, when non-nil, is closed to release Extract calls.
	block chan struct{}
}

func newStubExtractor() *stubExtractor {
	return &stubExtractor{
		calls: make(map[string]int),
		text:  make(map[string]string),
		fail:  make(map[string]bool),
	}
}

func (e *stubExtractor) Extract(ctx context.Context, path string) (string, error) {
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[path]++
	if e.fail[path] {
		return "", errors.New("extraction blew up")
	}
	return e.text[path], nil
}

func (e *stubExtractor) totalCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		n += c
	}
	return n
}

func (e *stubExtractor) callsFor(path string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[path]
}

// setupScanner builds a scanner over a temp root with a temp store.
func setupScanner(t *testing.T) (*Scanner, *store.Store, *stubExtractor, string) {
	t.Helper()

	root := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := store.New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ext := newStubExtractor()
	return New(st, ext, root), st, ext, root
}

// writeImage creates a file under root and registers its stub text.
func writeImage(t *testing.T, ext *stubExtractor, root, rel, text string) string {
	t.Helper()

	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("fake image bytes"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	ext.mu.Lock()
	ext.text[path] = text
	ext.mu.Unlock()
	return path
}

func TestScanIndexesNewFiles(t *testing.T) {
	sc, st, ext, root := setupScanner(t)
	ctx := context.Background()

	writeImage(t, ext, root, "a.png", "hello world")
	writeImage(t, ext, root, "sub/b.jpg", "nested text")
	writeImage(t, ext, root, "notes.txt", "not an image")

	summary, err := sc.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}

	if summary.Scanned != 2 {
		t.Errorf("Scanned = %d, want 2 (txt file must be ignored)", summary.Scanned)
	}
	if summary.Indexed != 2 {
		t.Errorf("Indexed = %d, want 2", summary.Indexed)
	}
	if summary.Skipped != 0 || summary.Failed != 0 {
		t.Errorf("Skipped/Failed = %d/%d, want 0/0", summary.Skipped, summary.Failed)
	}

	result, err := st.Search(ctx, store.SearchOptions{Term: "nested"})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("search result Total = %d, want 1", result.Total)
	}
	if result.Items[0].Folder != "sub" {
		t.Errorf("Folder = %q, want sub", result.Items[0].Folder)
	}
}

func TestScanIsIdempotent(t *testing.T) {
	sc, _, ext, root := setupScanner(t)
	ctx := context.Background()

	writeImage(t, ext, root, "a.png", "alpha")
	writeImage(t, ext, root, "b.png", "beta")

	if _, err := sc.Scan(ctx); err != nil {
		t.Fatalf("first Scan() failed: %v", err)
	}
	if got := ext.totalCalls(); got != 2 {
		t.Fatalf("extractor calls after first scan = %d, want 2", got)
	}

	summary, err := sc.Scan(ctx)
	if err != nil {
		t.Fatalf("second Scan() failed: %v", err)
	}
	if got := ext.totalCalls(); got != 2 {
		t.Errorf("extractor calls after second scan = %d, want 2 (unchanged files must not re-extract)", got)
	}
	if summary.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", summary.Skipped)
	}
	if summary.Indexed != 0 {
		t.Errorf("Indexed = %d, want 0", summary.Indexed)
	}
}

func TestScanReindexesModifiedFile(t *testing.T) {
	sc, st, ext, root := setupScanner(t)
	ctx := context.Background()

	a := writeImage(t, ext, root, "a.png", "old text")
	writeImage(t, ext, root, "b.png", "stable")

	if _, err := sc.Scan(ctx); err != nil {
		t.Fatalf("first Scan() failed: %v", err)
	}

	// Touch only one file; the mod time must move by at least a full
	// second since fingerprints have second precision.
	ext.mu.Lock()
	ext.text[a] = "new text"
	ext.mu.Unlock()
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(a, future, future); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	summary, err := sc.Scan(ctx)
	if err != nil {
		t.Fatalf("second Scan() failed: %v", err)
	}
	if summary.Indexed != 1 {
		t.Errorf("Indexed = %d, want 1", summary.Indexed)
	}
	if summary.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", summary.Skipped)
	}
	if got := ext.callsFor(a); got != 2 {
		t.Errorf("calls for modified file = %d, want 2", got)
	}

	text, err := st.Text(ctx, a)
	if err != nil {
		t.Fatalf("Text() failed: %v", err)
	}
	if text != "new text" {
		t.Errorf("Text = %q, want %q", text, "new text")
	}
}

func TestScanToleratesExtractionFailure(t *testing.T) {
	sc, st, ext, root := setupScanner(t)
	ctx := context.Background()

	paths := make([]string, 0, 5)
	for _, name := range []string{"a.png", "b.png", "c.png", "d.png", "e.png"} {
		paths = append(paths, writeImage(t, ext, root, name, "text for "+name))
	}
	ext.mu.Lock()
	ext.fail[paths[2]] = true
	ext.mu.Unlock()

	summary, err := sc.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if summary.Scanned != 5 {
		t.Errorf("Scanned = %d, want 5", summary.Scanned)
	}
	if summary.Indexed != 4 {
		t.Errorf("Indexed = %d, want 4", summary.Indexed)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}

	// The failed file is still recorded (with empty text) so the next
	// scan does not retry it.
	text, err := st.Text(ctx, paths[2])
	if err != nil {
		t.Fatalf("failed file has no record: %v", err)
	}
	if text != "" {
		t.Errorf("failed file text = %q, want empty", text)
	}

	summary, err = sc.Scan(ctx)
	if err != nil {
		t.Fatalf("second Scan() failed: %v", err)
	}
	if summary.Skipped != 5 {
		t.Errorf("second scan Skipped = %d, want 5 (failed file must be covered)", summary.Skipped)
	}
	if got := ext.callsFor(paths[2]); got != 1 {
		t.Errorf("calls for failed file = %d, want 1 (no retry)", got)
	}
}

func TestScanEmptyTextIsCovered(t *testing.T) {
	sc, _, ext, root := setupScanner(t)
	ctx := context.Background()

	// OCR legitimately finds no text in some images. That outcome
	// counts as indexed and the file is not re-extracted.
	writeImage(t, ext, root, "blank.png", "")

	summary, err := sc.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if summary.Indexed != 1 {
		t.Errorf("Indexed = %d, want 1", summary.Indexed)
	}

	summary, err = sc.Scan(ctx)
	if err != nil {
		t.Fatalf("second Scan() failed: %v", err)
	}
	if summary.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", summary.Skipped)
	}
}

func TestScanSkipsDotDirectories(t *testing.T) {
	sc, _, ext, root := setupScanner(t)

	writeImage(t, ext, root, "visible.png", "seen")
	writeImage(t, ext, root, ".thumbnails/hidden.png", "unseen")
	writeImage(t, ext, root, ".hidden.png", "unseen")

	summary, err := sc.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if summary.Scanned != 1 {
		t.Errorf("Scanned = %d, want 1 (dot entries must be skipped)", summary.Scanned)
	}
}

func TestScanRejectsConcurrent(t *testing.T) {
	sc, _, ext, root := setupScanner(t)

	writeImage(t, ext, root, "a.png", "text")
	ext.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := sc.Scan(context.Background())
		done <- err
	}()

	// Wait for the first scan to reach the blocked extractor
	deadline := time.After(5 * time.Second)
	for !sc.IsScanning() {
		select {
		case <-deadline:
			t.Fatal("first scan never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := sc.Scan(context.Background()); !errors.Is(err, ErrScanActive) {
		t.Errorf("concurrent Scan() error = %v, want ErrScanActive", err)
	}

	close(ext.block)
	if err := <-done; err != nil {
		t.Fatalf("first Scan() failed: %v", err)
	}

	// After completion a new scan is accepted again
	if _, err := sc.Scan(context.Background()); err != nil {
		t.Errorf("Scan() after completion failed: %v", err)
	}
}

func TestScanRootUnavailable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer st.Close()

	sc := New(st, newStubExtractor(), filepath.Join(t.TempDir(), "does-not-exist"))

	_, err = sc.Scan(context.Background())
	if !errors.Is(err, ErrRootUnavailable) {
		t.Errorf("Scan() error = %v, want ErrRootUnavailable", err)
	}

	// A file as root is just as unusable as a missing directory
	filePath := filepath.Join(t.TempDir(), "file.png")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	sc = New(st, newStubExtractor(), filePath)
	if _, err := sc.Scan(context.Background()); !errors.Is(err, ErrRootUnavailable) {
		t.Errorf("Scan() on file root error = %v, want ErrRootUnavailable", err)
	}
}

// funcExtractor adapts a function to the ocr.Extractor interface.
type funcExtractor func(ctx context.Context, path string) (string, error)

func (f funcExtractor) Extract(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

func TestScanCancellationKeepsCommitted(t *testing.T) {
	root := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer st.Close()

	for _, name := range []string{"a.png", "b.png", "c.png"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
	}
	first := filepath.Join(root, "a.png")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The extractor cancels the scan after its first successful call.
	// Candidates are walked in lexical order, so a.png commits and the
	// scan stops on b.png.
	calls := 0
	ext := funcExtractor(func(ctx context.Context, path string) (string, error) {
		calls++
		if calls == 1 {
			return "first", nil
		}
		cancel()
		return "", ctx.Err()
	})

	sc := New(st, ext, root)
	summary, err := sc.Scan(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Scan() error = %v, want context.Canceled", err)
	}
	if summary.Indexed != 1 {
		t.Errorf("Indexed = %d, want 1", summary.Indexed)
	}

	// The record upserted before cancellation survives
	if _, err := st.Text(context.Background(), first); err != nil {
		t.Errorf("committed record lost after cancellation: %v", err)
	}

	// The scanner is usable again after a cancelled pass
	stub := newStubExtractor()
	sc2 := New(st, stub, root)
	if _, err := sc2.Scan(context.Background()); err != nil {
		t.Errorf("Scan() after cancellation failed: %v", err)
	}
}

func TestScanProgressSnapshots(t *testing.T) {
	sc, _, ext, root := setupScanner(t)

	writeImage(t, ext, root, "a.png", "one")
	writeImage(t, ext, root, "b.png", "two")

	if _, err := sc.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}

	p := sc.Progress()
	if !p.Done {
		t.Error("final Progress.Done = false, want true")
	}
	if p.Active {
		t.Error("final Progress.Active = true, want false")
	}
	if p.Scanned != 2 || p.Total != 2 {
		t.Errorf("final Progress = %d/%d, want 2/2", p.Scanned, p.Total)
	}

	// The updates channel must contain a terminal snapshot
	var sawDone bool
	for {
		select {
		case u := <-sc.Updates():
			if u.Done {
				sawDone = true
			}
			continue
		default:
		}
		break
	}
	if !sawDone {
		t.Error("no Done snapshot observed on updates channel")
	}

	if sc.LastScanTime().IsZero() {
		t.Error("LastScanTime is zero after a completed scan")
	}
}

func TestFolderOf(t *testing.T) {
	root := t.TempDir()
	sc := &Scanner{root: root}

	tests := []struct {
		path string
		want string
	}{
		{filepath.Join(root, "a.png"), ""},
		{filepath.Join(root, "sub", "a.png"), "sub"},
		{filepath.Join(root, "sub", "deep", "a.png"), filepath.Join("sub", "deep")},
	}

	for _, tt := range tests {
		if got := sc.folderOf(tt.path); got != tt.want {
			t.Errorf("folderOf(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestScanEmptyRoot(t *testing.T) {
	sc, _, _, _ := setupScanner(t)

	summary, err := sc.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() on empty root failed: %v", err)
	}
	if summary.Scanned != 0 {
		t.Errorf("Scanned = %d, want 0", summary.Scanned)
	}

	p := sc.Progress()
	if !p.Done {
		t.Error("Progress.Done = false after empty scan, want true")
	}
}
