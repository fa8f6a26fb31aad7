// Package web renders the embedded HTML dashboard: a single overview
// page summarizing sessions, shared information, and completed calls.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
)

//go:embed templates/*.html
var templateFiles embed.FS

// templateFuncs provides helper functions available in all templates.
var templateFuncs = template.FuncMap{
	"formatDuration": formatDuration,
	"shortID":        shortID,
	"shortTime":      shortTime,
	"reasonClass":    reasonClass,
	"markdown":       renderMarkdown,
}

// loadTemplates parses the layout and each page template. Each page is
// a clone of the layout with its blocks overridden. Panics on syntax
// errors so that startup fails fast.
func loadTemplates() map[string]*template.Template {
	layout := template.Must(
		template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFiles, "templates/layout.html"),
	)

	pages := []string{"dashboard.html"}
	result := make(map[string]*template.Template, len(pages))

	for _, page := range pages {
		t := template.Must(layout.Clone())
		template.Must(t.ParseFS(templateFiles, "templates/"+page))
		result[page] = t
	}

	return result
}

// render executes a named template with the full layout.
func (s *WebServer) render(w http.ResponseWriter, name string, data any) {
	t, ok := s.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "layout.html", data); err != nil {
		s.logger.Error("template render failed", "template", name, "error", err)
	}
}

// formatDuration renders a duration in whole seconds as a compact
// human-readable string.
func formatDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
}

// shortTime trims a stored timestamp to "2006-01-02 15:04:05" for
// table display.
func shortTime(ts string) string {
	if len(ts) < 19 {
		return ts
	}
	return strings.Replace(ts[:19], "T", " ", 1)
}

// shortID truncates record UUIDs for table display.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// reasonClass picks a CSS class for a call-end reason. Transfer
// outcomes render green, disqualifications red, everything else
// neutral. "not_qualified" must be checked before "qualified" since
// the latter is a substring of the former.
func reasonClass(reason string) string {
	switch {
	case strings.Contains(reason, "not_qualified"):
		return "reason-bad"
	case strings.Contains(reason, "qualified"):
		return "reason-good"
	default:
		return "reason-neutral"
	}
}

// renderMarkdown converts Markdown to HTML. The source is operator
// config, not caller input, so the output is trusted.
func renderMarkdown(md string) template.HTML {
	if md == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}
