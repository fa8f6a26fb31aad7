package web

import (
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/calldeck/calldeck/internal/buildinfo"
	"github.com/calldeck/calldeck/internal/query"
	"github.com/calldeck/calldeck/internal/store"
)

// categoryCount is one row of the category breakdown table.
type categoryCount struct {
	Category string
	Count    int
}

// DashboardData is the template context for the overview page.
type DashboardData struct {
	Brand       string
	Notes       template.HTML
	Version     string
	Uptime      time.Duration
	Summary     query.Summary
	RecentInfo  []store.InformationRecord
	RecentCalls []store.CallRecord
	Categories  []categoryCount
}

// HandleDashboard renders the overview page at "/". Only exact "/"
// requests get the dashboard; all other paths return 404.
func (s *WebServer) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	summary := s.engine.Summary()
	recentInfo, _ := s.engine.Information(query.Filter{Limit: 10})

	data := DashboardData{
		Brand:       s.brand,
		Notes:       s.notesHTML,
		Version:     buildinfo.Version,
		Uptime:      buildinfo.Uptime().Round(time.Second),
		Summary:     summary,
		RecentInfo:  recentInfo,
		RecentCalls: s.engine.CallLogs(10),
		Categories:  sortedCategories(summary.CategoryBreakdown),
	}

	s.render(w, "dashboard.html", data)
}

// sortedCategories orders the breakdown by count descending, then name,
// so the table is stable across renders.
func sortedCategories(breakdown map[string]int) []categoryCount {
	out := make([]categoryCount, 0, len(breakdown))
	for cat, n := range breakdown {
		out = append(out, categoryCount{Category: cat, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}
