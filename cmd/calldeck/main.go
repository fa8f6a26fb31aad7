// Calldeck tracks what happens on outbound sales calls.
//
// It dispatches the function calls a voice agent makes mid-call
// (share_information, end_call, get_shared_information) into a
// JSON-backed record store, and serves an HTTP API plus an embedded
// dashboard over that store. Configuration is loaded from a single
// YAML file discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	calldeck serve                  Start the API server and dashboard
//	calldeck init [dir]             Initialize a working directory with defaults
//	calldeck call <function> [json] Invoke a dispatch operation directly
//	calldeck summary                Print store statistics
//	calldeck export <file.db>       Export the store to a SQLite database
//	calldeck version                Print version and build information
//	calldeck -o json summary        Output statistics as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/calldeck/calldeck/examples"
	"github.com/calldeck/calldeck/internal/api"
	"github.com/calldeck/calldeck/internal/buildinfo"
	"github.com/calldeck/calldeck/internal/config"
	"github.com/calldeck/calldeck/internal/dispatch"
	"github.com/calldeck/calldeck/internal/events"
	"github.com/calldeck/calldeck/internal/export"
	"github.com/calldeck/calldeck/internal/query"
	"github.com/calldeck/calldeck/internal/store"
	"github.com/calldeck/calldeck/internal/web"
	"github.com/calldeck/calldeck/internal/webhook"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the calldeck command. All OS-level
// dependencies are injected as parameters:
//
//   - ctx controls the lifetime of the process. Cancelling it triggers
//     graceful shutdown of the server and background goroutines.
//   - stdout and stderr receive all program output. Structured logs go
//     to stdout; fatal error messages go to stderr.
//   - args is os.Args[1:].
//
// Arguments are parsed by hand. The flag package relies on package-level
// globals (flag.CommandLine), which makes it impossible to call run()
// concurrently from tests, and the argument surface here is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var sessionID string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-session" && i+1 < len(args):
			sessionID = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-session="):
			sessionID = strings.TrimPrefix(args[i], "-session=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, stderr, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "call":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: calldeck call <function> [params-json]")
		}
		return runCall(ctx, stdout, configPath, cmdArgs, sessionID)
	case "summary":
		return runSummary(stdout, configPath, outputFmt)
	case "export":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: calldeck export <file.db>")
		}
		return runExport(stdout, configPath, cmdArgs[0])
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runServe handles the "calldeck serve" subcommand: the primary
// operating mode. It loads config, opens the record store, wires the
// dispatcher, webhook notifier, and dashboard into the API server, and
// blocks until a shutdown signal arrives.
//
// The shutdown sequence is:
//  1. SIGINT or SIGTERM cancels the context
//  2. The HTTP server drains in-flight requests
//  3. The webhook notifier finishes its queue and exits
//  4. A final save flushes the document to disk
func runServe(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting Calldeck", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "branch", buildinfo.GitBranch, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	// Reconfigure the logger now that the desired level and format are
	// known. The initial text logger covers only the startup banner.
	{
		level := slog.LevelInfo
		if cfg.LogLevel != "" {
			// Already validated above, so the error path is unreachable.
			level, _ = config.ParseLogLevel(cfg.LogLevel)
		}
		logger = newLogger(stdout, level, cfg.LogFormat)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"store", cfg.Store.Path,
		"dashboard", cfg.DashboardEnabled(),
	)

	st := store.Open(cfg.Store.Path, logger)
	bus := events.New()
	dispatcher := dispatch.New(st, bus, logger)

	notifier := webhook.New(cfg.Webhook, bus, logger)

	var dashboard *web.WebServer
	if cfg.DashboardEnabled() {
		dashboard = web.NewWebServer(query.NewEngine(st), cfg.Dashboard, logger)
	}

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, dispatcher, st, bus, dashboard, logger)

	// NotifyContext wraps the parent context so that SIGINT/SIGTERM
	// cancellation flows through the same ctx used by all components.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notifier.Start(ctx)

	// Cleanup runs before server.Shutdown so that when Start returns
	// (ListenAndServe unblocks once Shutdown completes) the notifier
	// has drained and the final flush is on disk. cleanupDone covers
	// the remaining window between Shutdown returning and the
	// goroutine finishing.
	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		<-ctx.Done()
		logger.Info("shutdown signal received")

		notifier.Stop()

		// Final flush. The document is saved after every dispatch, so
		// this only matters when the last save failed.
		if err := st.Save(); err != nil {
			logger.Error("final save failed", "error", err)
		}

		_ = server.Shutdown(context.Background())
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}
	<-cleanupDone

	logger.Info("Calldeck stopped")
	return nil
}

// runInit handles "calldeck init [dir]": it creates the directory
// layout and writes the commented example config, refusing to
// overwrite an existing one.
func runInit(stdout io.Writer, dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	cfgPath := filepath.Join(dir, "calldeck.yaml")
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("refusing to overwrite existing %s", cfgPath)
	}
	if err := os.WriteFile(cfgPath, examples.ConfigYAML, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Fprintf(stdout, "Initialized %s\n", dir)
	fmt.Fprintf(stdout, "  %s\n", cfgPath)
	fmt.Fprintf(stdout, "  %s\n", filepath.Join(dir, "data")+string(os.PathSeparator))
	fmt.Fprintln(stdout, "Run 'calldeck serve' to start.")
	return nil
}

// runCall handles "calldeck call <function> [params-json]": a one-shot
// dispatch against the configured store, printing the result envelope.
// Useful for smoke tests and for seeding data without the server.
func runCall(ctx context.Context, stdout io.Writer, configPath string, args []string, sessionID string) error {
	logger := newLogger(io.Discard, slog.LevelInfo, "text")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	params := map[string]any{}
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
			return fmt.Errorf("parse params: %w", err)
		}
	}

	st := store.Open(cfg.Store.Path, logger)
	dispatcher := dispatch.New(st, nil, logger)

	env := dispatcher.Handle(ctx, args[0], params, sessionID)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// runSummary handles "calldeck summary": store statistics without the
// server.
func runSummary(stdout io.Writer, configPath string, outputFmt string) error {
	logger := newLogger(io.Discard, slog.LevelInfo, "text")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	st := store.Open(cfg.Store.Path, logger)
	summary := query.NewEngine(st).Summary()

	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(stdout, "Store: %s\n", st.Path())
	fmt.Fprintf(stdout, "  information shared: %d\n", summary.TotalInformationShared)
	fmt.Fprintf(stdout, "  sessions:           %d\n", summary.TotalSessions)
	fmt.Fprintf(stdout, "  calls completed:    %d\n", summary.TotalCalls)
	if summary.LastUpdated != nil {
		fmt.Fprintf(stdout, "  last updated:       %s\n", *summary.LastUpdated)
	}
	if len(summary.CategoryBreakdown) > 0 {
		fmt.Fprintln(stdout, "  categories:")
		cats := make([]string, 0, len(summary.CategoryBreakdown))
		for cat := range summary.CategoryBreakdown {
			cats = append(cats, cat)
		}
		sort.Strings(cats)
		for _, cat := range cats {
			fmt.Fprintf(stdout, "    %-20s %d\n", cat, summary.CategoryBreakdown[cat])
		}
	}
	return nil
}

// runExport handles "calldeck export <file.db>".
func runExport(stdout io.Writer, configPath string, dbPath string) error {
	logger := newLogger(io.Discard, slog.LevelInfo, "text")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	st := store.Open(cfg.Store.Path, logger)
	doc := st.Document()
	if err := export.Snapshot(doc, dbPath, logger); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Exported %d information records, %d sessions, %d calls to %s\n",
		len(doc.InformationShared), len(doc.Sessions), len(doc.CallLogs), dbPath)
	return nil
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w. It is called when
// calldeck is invoked with no arguments, or with -h / --help.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Calldeck - Call session and information tracker")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: calldeck [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                  Start the API server and dashboard")
	fmt.Fprintln(w, "  init [dir]             Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  call <function> [json] Invoke a dispatch operation directly")
	fmt.Fprintln(w, "  summary                Print store statistics")
	fmt.Fprintln(w, "  export <file.db>       Export the store to a SQLite database")
	fmt.Fprintln(w, "  version                Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w, "  -session <id>     Session id for the call command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./calldeck.yaml, ~/.config/calldeck/config.yaml, /etc/calldeck/config.yaml")
	return nil
}

// loadConfig resolves and loads the YAML config, falling back to
// defaults when no file exists and none was explicitly requested.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		// No config anywhere: run on defaults.
		return config.Default(), "(defaults)", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// newLogger creates a structured logger that writes to w at the given
// level and format. Format must be "text" or "json"; any other value
// defaults to text.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
