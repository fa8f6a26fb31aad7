// Package dispatch routes named function calls from the voice pipeline
// (or any other caller) to their handlers, maintains the per-session
// state in the record store, and returns a uniform result envelope for
// every call. The envelope always carries "success" and "session_id";
// failures add "error", successes add function-specific fields.
//
// Handlers never raise past the dispatch boundary: validation problems
// and internal failures alike come back as failure envelopes, so a
// malformed tool call can never take down the caller.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calldeck/calldeck/internal/events"
	"github.com/calldeck/calldeck/internal/query"
	"github.com/calldeck/calldeck/internal/store"
)

// Dispatcher routes function calls to handlers. A single mutex
// serializes dispatches: the document is read-modify-write-saved as a
// whole, so interleaved calls would lose updates.
type Dispatcher struct {
	mu       sync.Mutex
	store    *store.Store
	engine   *query.Engine
	registry *Registry
	bus      *events.Bus
	logger   *slog.Logger
}

// New creates a dispatcher over the given store. The bus may be nil
// (events are then dropped).
func New(s *store.Store, bus *events.Bus, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		store:    s,
		engine:   query.NewEngine(s),
		registry: NewRegistry(),
		bus:      bus,
		logger:   logger,
	}
	d.registerBuiltins()
	return d
}

// Tools returns LLM-ready function definitions for every registered
// operation.
func (d *Dispatcher) Tools() []map[string]any {
	return d.registry.List()
}

// Handle routes a function call and returns its result envelope. An
// empty sessionID gets a freshly generated identifier; the caller must
// capture the returned "session_id" to correlate future calls. Unknown
// function names and handler failures (including panics) produce
// failure envelopes — Handle never panics and never returns nil.
func (d *Dispatcher) Handle(ctx context.Context, name string, params map[string]any, sessionID string) (env map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic", "function", name, "session_id", sessionID, "panic", r)
			env = failure(sessionID, fmt.Sprintf("internal error: %v", r))
		}
		if env != nil {
			if ok, _ := env["success"].(bool); !ok {
				errMsg, _ := env["error"].(string)
				d.publish(events.KindDispatchFailed, map[string]any{
					"function":   name,
					"session_id": sessionID,
					"error":      errMsg,
				})
			}
		}
	}()

	d.logger.Debug("handling function call", "function", name, "session_id", sessionID)

	tool := d.registry.Get(name)
	if tool == nil {
		return failure(sessionID, "Unknown function: "+name)
	}

	result, err := tool.Handler(ctx, params, sessionID)
	if err != nil {
		d.logger.Error("function call failed", "function", name, "session_id", sessionID, "error", err)
		return failure(sessionID, err.Error())
	}
	return result
}

func (d *Dispatcher) handleShareInformation(ctx context.Context, args map[string]any, sessionID string) (map[string]any, error) {
	p := decodeShareParams(args)
	if p.Information == "" {
		return failure(sessionID, "No information provided"), nil
	}

	doc := d.store.Document()
	now := d.store.Now()

	rec := store.InformationRecord{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		CallerID:    p.CallerID,
		Information: p.Information,
		Category:    p.Category,
		Timestamp:   now,
		Status:      store.RecordReceived,
	}

	sess := doc.GetOrCreateSession(sessionID, p.CallerID, now)
	doc.InformationShared = append(doc.InformationShared, rec)
	sess.InformationCount++
	sess.LastActivity = now
	if sess.Status == store.StatusActive {
		if _, ok := doc.ActiveSessions[sessionID]; !ok {
			doc.ActiveSessions[sessionID] = sess.CreatedAt
		}
	}

	d.persist()

	d.logger.Info("information recorded", "session_id", sessionID, "category", p.Category, "info_id", rec.ID)
	d.publish(events.KindInformationShared, map[string]any{
		"session_id":   sessionID,
		"caller_id":    p.CallerID,
		"category":     p.Category,
		"info_id":      rec.ID,
		"total_shared": len(doc.InformationShared),
	})

	return map[string]any{
		"success":      true,
		"message":      fmt.Sprintf("Information received and stored successfully. Category: %s", p.Category),
		"info_id":      rec.ID,
		"session_id":   sessionID,
		"total_shared": len(doc.InformationShared),
	}, nil
}

func (d *Dispatcher) handleEndCall(ctx context.Context, args map[string]any, sessionID string) (map[string]any, error) {
	p := decodeEndParams(args)

	doc := d.store.Document()
	now := d.store.Now()

	// Snapshot of the per-session record count at end-of-call time.
	// Deliberately frozen: later records (there should be none once
	// the session is ended) do not change it.
	sharedCount := doc.CountInformationForSession(sessionID)

	rec := store.CallRecord{
		ID:                     uuid.NewString(),
		SessionID:              sessionID,
		CallerID:               p.CallerID,
		EndTime:                now,
		Reason:                 p.Reason,
		Duration:               p.Duration,
		InformationSharedCount: sharedCount,
	}
	doc.CallLogs = append(doc.CallLogs, rec)

	sess := doc.GetOrCreateSession(sessionID, p.CallerID, now)
	sess.Status = store.StatusEnded
	sess.EndTime = now
	sess.EndReason = p.Reason
	delete(doc.ActiveSessions, sessionID)

	d.persist()

	d.logger.Info("call ended", "session_id", sessionID, "reason", p.Reason, "duration", p.Duration, "information_shared", sharedCount)
	d.publish(events.KindCallEnded, map[string]any{
		"session_id":               sessionID,
		"caller_id":                p.CallerID,
		"reason":                   p.Reason,
		"duration":                 p.Duration,
		"information_shared_count": sharedCount,
		"call_log_id":              rec.ID,
	})

	return map[string]any{
		"success":                  true,
		"message":                  fmt.Sprintf("Call ended successfully. Reason: %s", p.Reason),
		"call_log_id":              rec.ID,
		"session_id":               sessionID,
		"information_shared_count": sharedCount,
		"total_calls":              len(doc.CallLogs),
	}, nil
}

func (d *Dispatcher) handleGetSharedInformation(ctx context.Context, args map[string]any, sessionID string) (map[string]any, error) {
	p := decodeGetParams(args)

	page, total := d.engine.Information(query.Filter{
		Category: p.Category,
		CallerID: p.CallerID,
		Limit:    p.Limit,
	})

	return map[string]any{
		"success":         true,
		"information":     page,
		"count":           len(page),
		"total_available": total,
		"session_id":      sessionID,
	}, nil
}

// persist writes the document. Save failures cost durability, not
// correctness: the in-memory document stays authoritative for the
// process lifetime, so the error is logged and swallowed.
func (d *Dispatcher) persist() {
	if err := d.store.Save(); err != nil {
		d.logger.Error("failed to persist document", "path", d.store.Path(), "error", err)
	}
}

func (d *Dispatcher) publish(kind string, data map[string]any) {
	d.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceDispatcher,
		Kind:      kind,
		Data:      data,
	})
}

// failure builds the uniform failure envelope.
func failure(sessionID, msg string) map[string]any {
	return map[string]any{
		"success":    false,
		"error":      msg,
		"session_id": sessionID,
	}
}
