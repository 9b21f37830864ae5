// Package scanner reconciles the screenshot store with the
// filesystem.
//
// A scan enumerates every recognized image under the configured root
// and classifies each file against the stored (path, mod_time)
// fingerprints: new and stale files go through text extraction and
// are upserted, current files are skipped without touching the
// extractor. A file that fails extraction is stored with empty text
// so it counts as covered and is never retried on later scans.
//
// Scans run one at a time; a second request while one is active is
// rejected with ErrScanActive. Progress snapshots are published on a
// buffered channel and kept available for polling. Cancellation
// preserves all records committed so far, and a re-run resumes
// through the same classification with no duplicated work.
package scanner
