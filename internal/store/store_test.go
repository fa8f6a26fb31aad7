package store

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenCreatesFreshDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "records.json")

	s := Open(path, discardLogger())

	doc := s.Document()
	if doc.Metadata.CreatedAt == "" {
		t.Error("fresh document missing created_at")
	}
	if doc.Metadata.Version != SchemaVersion {
		t.Errorf("version = %q, want %q", doc.Metadata.Version, SchemaVersion)
	}
	if len(doc.Sessions) != 0 || len(doc.InformationShared) != 0 || len(doc.CallLogs) != 0 {
		t.Error("fresh document should have empty collections")
	}

	// Open persists the fresh document immediately.
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("fresh document not written: %v", err)
	}
}

func TestOpenExistingDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")

	first := Open(path, discardLogger())
	first.Document().GetOrCreateSession("s1", "caller-1", first.Now())
	if err := first.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := Open(path, discardLogger())
	sess, ok := second.Document().Sessions["s1"]
	if !ok {
		t.Fatal("session s1 not loaded")
	}
	if sess.CallerID != "caller-1" || sess.Status != StatusActive {
		t.Errorf("loaded session = %+v", sess)
	}
}

func TestOpenCorruptFileDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := Open(path, discardLogger())

	// Degraded mode: empty document, no panic, and the next save
	// rebuilds a complete document.
	doc := s.Document()
	if len(doc.Sessions) != 0 {
		t.Errorf("degraded document should be empty, got %d sessions", len(doc.Sessions))
	}

	doc.GetOrCreateSession("s1", "caller-1", s.Now())
	if err := s.Save(); err != nil {
		t.Fatalf("Save after degraded load: %v", err)
	}

	reloaded := Open(path, discardLogger())
	if _, ok := reloaded.Document().Sessions["s1"]; !ok {
		t.Error("session written after degraded load not persisted")
	}
}

func TestSaveStampsLastUpdated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	s := Open(path, discardLogger())

	before := s.Document().Metadata.LastUpdated
	s.nowFunc = func() time.Time {
		return time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	after := s.Document().Metadata.LastUpdated
	if after == nil {
		t.Fatal("last_updated not stamped")
	}
	if *after != "2026-03-14T09:26:53.589793Z" {
		t.Errorf("last_updated = %q", *after)
	}
	if before != nil && *before == *after {
		t.Error("last_updated not refreshed")
	}
}

func TestSavedFileIsIndentedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	// Open bootstraps a fresh document and writes it immediately.
	Open(path, discardLogger())

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("saved file is not valid JSON: %v", err)
	}
	for _, key := range []string{"sessions", "information_shared", "call_logs", "active_sessions", "metadata"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("saved document missing key %q", key)
		}
	}
	if data[0] != '{' || data[1] != '\n' {
		t.Error("saved document should be indented (human-readable)")
	}
}

func TestGetOrCreateSession(t *testing.T) {
	doc := NewDocument("2026-01-01T00:00:00.000000Z")

	sess := doc.GetOrCreateSession("s1", "caller-1", "2026-01-01T00:00:01.000000Z")
	if sess.ID != "s1" || sess.Status != StatusActive || sess.InformationCount != 0 {
		t.Errorf("created session = %+v", sess)
	}

	// Second reference returns the same session, untouched.
	sess.InformationCount = 3
	again := doc.GetOrCreateSession("s1", "other-caller", "2026-01-01T00:00:02.000000Z")
	if again != sess {
		t.Error("expected the same session instance")
	}
	if again.CallerID != "caller-1" || again.InformationCount != 3 {
		t.Errorf("existing session mutated: %+v", again)
	}
}

func TestCountInformationForSession(t *testing.T) {
	doc := NewDocument("2026-01-01T00:00:00.000000Z")
	doc.InformationShared = []InformationRecord{
		{ID: "a", SessionID: "s1"},
		{ID: "b", SessionID: "s2"},
		{ID: "c", SessionID: "s1"},
	}

	if got := doc.CountInformationForSession("s1"); got != 2 {
		t.Errorf("count(s1) = %d, want 2", got)
	}
	if got := doc.CountInformationForSession("s3"); got != 0 {
		t.Errorf("count(s3) = %d, want 0", got)
	}
}

// Timestamps are compared lexicographically throughout the query
// engine, so the layout must be fixed-width ordered across sub-second
// and exact-second boundaries.
func TestTimeLayoutSortsLexicographically(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	times := []time.Time{
		base.Add(500 * time.Millisecond),
		base,
		base.Add(time.Second),
		base.Add(50 * time.Millisecond),
		base.Add(999999 * time.Microsecond),
	}

	formatted := make([]string, len(times))
	for i, ts := range times {
		formatted[i] = FormatTime(ts)
	}

	lexical := append([]string(nil), formatted...)
	sort.Strings(lexical)

	chronological := append([]time.Time(nil), times...)
	sort.Slice(chronological, func(i, j int) bool { return chronological[i].Before(chronological[j]) })

	for i := range chronological {
		if want := FormatTime(chronological[i]); lexical[i] != want {
			t.Fatalf("index %d: lexical order %q != chronological order %q", i, lexical[i], want)
		}
	}
}
