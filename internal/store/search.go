package store

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"screenshot-search/internal/logging"
	"screenshot-search/internal/metrics"
)

const (
	defaultSearchLimit = 100
	maxSearchLimit     = 1000
	snippetTokens      = 30
)

// Search runs one query against the index and returns an ordered
// result set, most relevant first. An empty term matches all records,
// ordered by most recently indexed. All filters AND-compose; an empty
// result set is a valid outcome.
func (s *Store) Search(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	queryStart := time.Now()
	var err error
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.SearchQueriesTotal.WithLabelValues(status).Inc()
		metrics.SearchDuration.Observe(time.Since(queryStart).Seconds())
	}()

	if opts.Limit < 1 {
		opts.Limit = defaultSearchLimit
	}
	if opts.Limit > maxSearchLimit {
		opts.Limit = maxSearchLimit
	}

	term := strings.TrimSpace(opts.Term)
	if term == "" {
		var result *SearchResult
		result, err = s.listAll(ctx, opts)
		return result, err
	}

	var result *SearchResult
	if !hasTokenChars(term) {
		// A symbols-only term tokenizes to nothing, so the FTS query
		// would succeed with zero hits. Match it literally instead.
		result, err = s.searchLiteral(ctx, term, opts)
		return result, err
	}

	result, err = s.searchFTS(ctx, term, opts)
	if err != nil {
		// A term that still breaks the FTS parser after sanitizing
		// degrades to a literal substring match instead of failing.
		logging.Debug("FTS query failed for %q, falling back to literal match: %v", term, err)
		result, err = s.searchLiteral(ctx, term, opts)
	}
	return result, err
}

// hasTokenChars reports whether the term contains anything the FTS
// tokenizer indexes. Letters and digits are token characters under
// unicode61; everything else is a separator.
func hasTokenChars(term string) bool {
	for _, r := range term {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// searchFTS runs a ranked full-text query with a prefix-phrase term.
func (s *Store) searchFTS(ctx context.Context, term string, opts SearchOptions) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT s.path, s.folder, s.mod_time, s.indexed_at, s.extracted_text,
		       snippet(screenshots_fts, 0, '>>>', '<<<', '...', %d)
		FROM screenshots s
		INNER JOIN screenshots_fts fts ON s.id = fts.rowid
		WHERE screenshots_fts MATCH ?
	`, snippetTokens)
	args := []interface{}{prepareSearchTerm(term)}

	query, args = appendFilters(query, args, "s.", opts)
	query += ` ORDER BY bm25(screenshots_fts), s.indexed_at DESC LIMIT ?`
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	items := []Result{}
	for rows.Next() {
		var r Result
		var modTime, indexedAt int64
		if err := rows.Scan(&r.Path, &r.Folder, &modTime, &indexedAt, &r.Text, &r.Snippet); err != nil {
			return nil, fmt.Errorf("search scan failed: %w", err)
		}
		r.ModifiedAt = time.Unix(modTime, 0)
		r.IndexedAt = time.Unix(0, indexedAt)
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search rows error: %w", err)
	}

	return &SearchResult{Items: items, Term: term, Total: len(items)}, nil
}

// searchLiteral is the fallback path: a plain substring match on the
// extracted text with no relevance ranking.
func (s *Store) searchLiteral(ctx context.Context, term string, opts SearchOptions) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
		SELECT path, folder, mod_time, indexed_at, extracted_text
		FROM screenshots
		WHERE extracted_text LIKE ? ESCAPE '\'
	`
	args := []interface{}{"%" + escapeLike(term) + "%"}

	query, args = appendFilters(query, args, "", opts)
	query += ` ORDER BY indexed_at DESC LIMIT ?`
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("literal search failed: %w", err)
	}
	defer rows.Close()

	items := []Result{}
	for rows.Next() {
		var r Result
		var modTime, indexedAt int64
		if err := rows.Scan(&r.Path, &r.Folder, &modTime, &indexedAt, &r.Text); err != nil {
			return nil, fmt.Errorf("literal search scan failed: %w", err)
		}
		r.ModifiedAt = time.Unix(modTime, 0)
		r.IndexedAt = time.Unix(0, indexedAt)
		r.Snippet = excerptAround(r.Text, term)
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("literal search rows error: %w", err)
	}

	return &SearchResult{Items: items, Term: term, Total: len(items)}, nil
}

// listAll returns every record matching the filters, most recently
// indexed first. No ranking applies without a term.
func (s *Store) listAll(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
		SELECT path, folder, mod_time, indexed_at, extracted_text
		FROM screenshots
		WHERE 1=1
	`
	var args []interface{}

	query, args = appendFilters(query, args, "", opts)
	query += ` ORDER BY indexed_at DESC LIMIT ?`
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list query failed: %w", err)
	}
	defer rows.Close()

	items := []Result{}
	for rows.Next() {
		var r Result
		var modTime, indexedAt int64
		if err := rows.Scan(&r.Path, &r.Folder, &modTime, &indexedAt, &r.Text); err != nil {
			return nil, fmt.Errorf("list scan failed: %w", err)
		}
		r.ModifiedAt = time.Unix(modTime, 0)
		r.IndexedAt = time.Unix(0, indexedAt)
		r.Snippet = excerptAround(r.Text, "")
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rows error: %w", err)
	}

	return &SearchResult{Items: items, Total: len(items)}, nil
}

// appendFilters adds the conjunctive date and folder conditions.
// prefix qualifies column names when the query joins the FTS table.
func appendFilters(query string, args []interface{}, prefix string, opts SearchOptions) (string, []interface{}) {
	if bound, ok := opts.Date.lowerBound(time.Now()); ok {
		query += fmt.Sprintf(" AND %smod_time >= ?", prefix)
		args = append(args, bound.Unix())
	}
	if folder := strings.TrimSpace(opts.Folder); folder != "" && !strings.EqualFold(folder, "all") {
		query += fmt.Sprintf(" AND %sfolder = ?", prefix)
		args = append(args, folder)
	}
	return query, args
}

// prepareSearchTerm sanitizes a user term for FTS5. Doubling quotes
// and wrapping the whole term makes operator syntax literal; the
// trailing star turns it into a prefix phrase so "config" matches
// "configuration".
func prepareSearchTerm(term string) string {
	term = strings.ReplaceAll(term, `"`, `""`)
	return `"` + term + `"*`
}

// escapeLike escapes LIKE wildcards in a literal term.
func escapeLike(term string) string {
	term = strings.ReplaceAll(term, `\`, `\\`)
	term = strings.ReplaceAll(term, `%`, `\%`)
	term = strings.ReplaceAll(term, `_`, `\_`)
	return term
}

// excerptAround returns a short window of text centered on the first
// occurrence of term, or the head of the text when term is absent.
func excerptAround(text, term string) string {
	const window = 160

	if text == "" {
		return ""
	}

	idx := -1
	if term != "" {
		idx = strings.Index(strings.ToLower(text), strings.ToLower(term))
	}
	if idx < 0 {
		if len(text) <= window {
			return text
		}
		return text[:runeFloor(text, window)] + "..."
	}

	begin := idx - window/2
	if begin < 0 {
		begin = 0
	}
	begin = runeFloor(text, begin)
	end := begin + window
	if end > len(text) {
		end = len(text)
	}
	end = runeFloor(text, end)

	excerpt := text[begin:end]
	if begin > 0 {
		excerpt = "..." + excerpt
	}
	if end < len(text) {
		excerpt += "..."
	}
	return excerpt
}

// runeFloor moves a byte offset back to the nearest rune boundary so
// slicing never splits a multi-byte character.
func runeFloor(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
