// Package store persists screenshot records and answers search
// queries over their extracted text.
//
// A single SQLite file holds the screenshots table (one row per
// indexed image, keyed by absolute path) and an FTS5 virtual table
// kept in sync by triggers. The scanner is the only writer; query
// callers read concurrently through WAL and never observe a partially
// written record because each upsert is one atomic statement.
//
// Search composes a ranked full-text match with date-window and
// folder filters. Terms are sanitized into FTS5 prefix phrases so
// operator syntax cannot produce a query error; if the parser still
// rejects a term the query degrades to a literal substring match.
//
// FTS5 support in mattn/go-sqlite3 is gated behind a build tag, so
// this package (and anything importing it) must be built with
// -tags 'fts5'. Without the tag the schema setup fails at runtime
// with "no such module: fts5".
package store
