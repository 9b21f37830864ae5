package store

import (
	"strings"
	"time"
)

// Screenshot is one indexed image record. Path is the unique key.
// ExtractedText may be empty, which means "scanned, no text found" and
// is distinct from the record being absent.
type Screenshot struct {
	ID            int64     `json:"id"`
	Path          string    `json:"path"`
	Folder        string    `json:"folder"`
	ModifiedAt    time.Time `json:"modifiedAt"`
	ExtractedText string    `json:"extractedText"`
	IndexedAt     time.Time `json:"indexedAt"`
}

// DateFilter restricts results to records whose file modification time
// falls inside a window ending now.
type DateFilter string

const (
	DateAll       DateFilter = ""
	DateToday     DateFilter = "today"
	DateLast7Days DateFilter = "week"
	DateLast30    DateFilter = "month"
	DateLastYear  DateFilter = "year"
)

// ParseDateFilter normalizes a user-supplied filter value. Unknown
// values are treated as "no filter" rather than rejected.
func ParseDateFilter(s string) DateFilter {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "today":
		return DateToday
	case "week", "7days", "last7days":
		return DateLast7Days
	case "month", "30days", "last30days":
		return DateLast30
	case "year", "lastyear":
		return DateLastYear
	default:
		return DateAll
	}
}

// lowerBound returns the inclusive lower bound of the filter window
// relative to now, and whether a bound applies at all.
func (f DateFilter) lowerBound(now time.Time) (time.Time, bool) {
	switch f {
	case DateToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case DateLast7Days:
		return now.AddDate(0, 0, -7), true
	case DateLast30:
		return now.AddDate(0, 0, -30), true
	case DateLastYear:
		return now.AddDate(0, 0, -365), true
	default:
		return time.Time{}, false
	}
}

// SearchOptions describes one query against the index. All filters
// compose conjunctively.
type SearchOptions struct {
	// Term is the full-text search term. Empty matches all records.
	Term string
	// Date is the modification-time window.
	Date DateFilter
	// Folder filters to an exact folder. Empty or "All" disables it.
	Folder string
	// Limit caps the number of results. Zero selects the default.
	Limit int
}

// Result is one search hit: the record plus a display snippet of the
// extracted text around the match.
type Result struct {
	Path       string    `json:"path"`
	Folder     string    `json:"folder"`
	ModifiedAt time.Time `json:"modifiedAt"`
	IndexedAt  time.Time `json:"indexedAt"`
	Text       string    `json:"text"`
	Snippet    string    `json:"snippet"`
}

// SearchResult is an ordered result set, most relevant first.
type SearchResult struct {
	Items []Result `json:"items"`
	Term  string   `json:"term"`
	Total int      `json:"total"`
}

// Stats summarizes the state of the index.
type Stats struct {
	TotalIndexed int       `json:"totalIndexed"`
	WithText     int       `json:"withText"`
	Folders      int       `json:"folders"`
	LastIndexed  time.Time `json:"lastIndexed,omitempty"`
}
