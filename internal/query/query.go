// Package query provides read-only projections over the record store:
// filtered information listings, call-log pages, and summary
// statistics. Nothing in this package mutates the document.
package query

import (
	"sort"

	"github.com/calldeck/calldeck/internal/store"
)

// Engine answers queries against a store's document.
type Engine struct {
	store *store.Store
}

// NewEngine creates a query engine over the given store.
func NewEngine(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Filter narrows an information listing. Zero-valued fields are
// ignored; Category and CallerID are exact matches and AND-combined
// when both are set.
type Filter struct {
	Category string
	CallerID string
	// Limit bounds the returned page. Zero means an empty page;
	// negative values are treated as zero.
	Limit int
}

// Information returns the newest-first page of records matching the
// filter, plus the unfiltered log length. The total lets callers
// distinguish "found N of M" from a hard page limit.
func (e *Engine) Information(f Filter) (page []store.InformationRecord, total int) {
	doc := e.store.Document()
	total = len(doc.InformationShared)

	matched := make([]store.InformationRecord, 0, total)
	for _, rec := range doc.InformationShared {
		if f.Category != "" && rec.Category != f.Category {
			continue
		}
		if f.CallerID != "" && rec.CallerID != f.CallerID {
			continue
		}
		matched = append(matched, rec)
	}

	// Timestamps use a fixed-width layout, so lexicographic order is
	// chronological order.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp > matched[j].Timestamp
	})

	limit := f.Limit
	if limit < 0 {
		limit = 0
	}
	if limit > len(matched) {
		limit = len(matched)
	}
	return matched[:limit], total
}

// CallLogs returns call records sorted by end time, newest first,
// truncated to limit.
func (e *Engine) CallLogs(limit int) []store.CallRecord {
	doc := e.store.Document()

	logs := append([]store.CallRecord(nil), doc.CallLogs...)
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].EndTime > logs[j].EndTime
	})

	if limit < 0 {
		limit = 0
	}
	if limit > len(logs) {
		limit = len(logs)
	}
	return logs[:limit]
}

// Summary aggregates the document in a single pass over the
// information log.
type Summary struct {
	TotalInformationShared int            `json:"total_information_shared"`
	TotalSessions          int            `json:"total_sessions"`
	TotalCalls             int            `json:"total_calls"`
	CategoryBreakdown      map[string]int `json:"category_breakdown"`
	LastUpdated            *string        `json:"last_updated"`
}

// Summary returns totals and a category histogram.
func (e *Engine) Summary() Summary {
	doc := e.store.Document()

	breakdown := make(map[string]int)
	for _, rec := range doc.InformationShared {
		cat := rec.Category
		if cat == "" {
			cat = "unknown"
		}
		breakdown[cat]++
	}

	return Summary{
		TotalInformationShared: len(doc.InformationShared),
		TotalSessions:          len(doc.Sessions),
		TotalCalls:             len(doc.CallLogs),
		CategoryBreakdown:      breakdown,
		LastUpdated:            doc.Metadata.LastUpdated,
	}
}

// Sessions returns the full session registry. The returned map must
// not be mutated by callers.
func (e *Engine) Sessions() map[string]*store.Session {
	sessions := e.store.Document().Sessions
	if sessions == nil {
		return map[string]*store.Session{}
	}
	return sessions
}

// SessionInfo returns the session for id, or nil for an unknown id.
// Callers render nil as an empty object rather than an error.
func (e *Engine) SessionInfo(id string) *store.Session {
	return e.store.Document().Sessions[id]
}
