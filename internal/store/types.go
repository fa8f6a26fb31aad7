// Package store owns the persisted call-intake document: the session
// registry, the append-only information and call logs, and the JSON
// file they live in. The document is rewritten wholesale on every
// mutating call; records are immutable once appended.
package store

import "time"

// SchemaVersion is stamped into document metadata on creation. There
// is no migration machinery; the stamp exists so future readers can
// tell what they are looking at.
const SchemaVersion = "1.0"

// TimeLayout is the timestamp format used everywhere in the document.
// It is RFC 3339 with fixed-width microseconds so that lexicographic
// comparison of two timestamps equals chronological comparison. Plain
// RFC3339Nano trims trailing zeros and breaks that property at exact
// second boundaries.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTime renders t in the document timestamp layout (always UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	// StatusActive marks a session with activity and no end_call yet.
	StatusActive SessionStatus = "active"
	// StatusEnded marks a session closed by end_call. The transition
	// is one-directional.
	StatusEnded SessionStatus = "ended"
)

// RecordReceived is the status stamped on every information record.
const RecordReceived = "received"

// Session groups events correlated by a caller-supplied or generated
// identifier, from first activity to call end. Sessions are created
// lazily on first reference and never deleted.
type Session struct {
	ID               string        `json:"id"`
	CallerID         string        `json:"caller_id"`
	CreatedAt        string        `json:"created_at"`
	LastActivity     string        `json:"last_activity"`
	InformationCount int           `json:"information_count"`
	Status           SessionStatus `json:"status"`
	EndTime          string        `json:"end_time,omitempty"`
	EndReason        string        `json:"end_reason,omitempty"`
}

// InformationRecord is an immutable fact captured during a session,
// tagged with a caller-supplied free-form category.
type InformationRecord struct {
	ID          string `json:"id"`
	SessionID   string `json:"session_id"`
	CallerID    string `json:"caller_id"`
	Information string `json:"information"`
	Category    string `json:"category"`
	Timestamp   string `json:"timestamp"`
	Status      string `json:"status"`
}

// CallRecord is an immutable summary event marking the end of a
// session. InformationSharedCount is a snapshot taken at end-of-call
// time and is never recomputed from later state.
type CallRecord struct {
	ID                     string `json:"id"`
	SessionID              string `json:"session_id"`
	CallerID               string `json:"caller_id"`
	EndTime                string `json:"end_time"`
	Reason                 string `json:"reason"`
	Duration               int    `json:"duration"`
	InformationSharedCount int    `json:"information_shared_count"`
}

// Metadata carries the document's schema stamp and persistence times.
type Metadata struct {
	CreatedAt   string  `json:"created_at"`
	Version     string  `json:"version"`
	LastUpdated *string `json:"last_updated"`
}

// Document is the single persisted unit.
type Document struct {
	Sessions          map[string]*Session `json:"sessions"`
	InformationShared []InformationRecord `json:"information_shared"`
	CallLogs          []CallRecord        `json:"call_logs"`
	// ActiveSessions maps session id to an opaque marker (we store
	// the first-activity timestamp). Entries are pruned on call end.
	ActiveSessions map[string]string `json:"active_sessions"`
	Metadata       Metadata          `json:"metadata"`
}

// NewDocument returns an empty document stamped with the given
// creation time.
func NewDocument(createdAt string) *Document {
	return &Document{
		Sessions:          make(map[string]*Session),
		InformationShared: []InformationRecord{},
		CallLogs:          []CallRecord{},
		ActiveSessions:    make(map[string]string),
		Metadata: Metadata{
			CreatedAt: createdAt,
			Version:   SchemaVersion,
		},
	}
}

// ensure initializes any nil collections. A document loaded in
// degraded mode (after a parse failure) starts with nil maps; every
// mutation path calls ensure first so handlers never have to care.
func (d *Document) ensure() {
	if d.Sessions == nil {
		d.Sessions = make(map[string]*Session)
	}
	if d.InformationShared == nil {
		d.InformationShared = []InformationRecord{}
	}
	if d.CallLogs == nil {
		d.CallLogs = []CallRecord{}
	}
	if d.ActiveSessions == nil {
		d.ActiveSessions = make(map[string]string)
	}
}

// GetOrCreateSession returns the session for id, materializing it with
// the given caller and timestamp on first reference. An existing
// session is returned as-is; the caller mutates it in place.
func (d *Document) GetOrCreateSession(id, callerID, now string) *Session {
	d.ensure()
	if sess, ok := d.Sessions[id]; ok {
		return sess
	}
	sess := &Session{
		ID:           id,
		CallerID:     callerID,
		CreatedAt:    now,
		LastActivity: now,
		Status:       StatusActive,
	}
	d.Sessions[id] = sess
	return sess
}

// CountInformationForSession returns how many information records are
// attributed to the given session id so far.
func (d *Document) CountInformationForSession(id string) int {
	n := 0
	for i := range d.InformationShared {
		if d.InformationShared[i].SessionID == id {
			n++
		}
	}
	return n
}
