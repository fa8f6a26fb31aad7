package web

import (
	"html/template"
	"log/slog"

	"github.com/calldeck/calldeck/internal/config"
	"github.com/calldeck/calldeck/internal/query"
)

// WebServer renders the dashboard pages. It reads through the query
// engine, never the raw document, so it shares filtering and ordering
// semantics with the JSON API.
type WebServer struct {
	engine    *query.Engine
	brand     string
	notesHTML template.HTML
	templates map[string]*template.Template
	logger    *slog.Logger
}

// NewWebServer creates the dashboard server. Template parse errors
// panic: the templates are embedded, so a failure is a build defect.
func NewWebServer(engine *query.Engine, cfg config.DashConfig, logger *slog.Logger) *WebServer {
	if logger == nil {
		logger = slog.Default()
	}
	brand := cfg.Brand
	if brand == "" {
		brand = "Calldeck"
	}
	return &WebServer{
		engine:    engine,
		brand:     brand,
		notesHTML: renderMarkdown(cfg.Notes),
		templates: loadTemplates(),
		logger:    logger,
	}
}
