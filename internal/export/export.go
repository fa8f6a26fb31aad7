// Package export writes a point-in-time snapshot of the record store
// to a SQLite database, so the data can be joined and analyzed with
// ordinary SQL tooling instead of scraping the JSON file.
package export

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/calldeck/calldeck/internal/store"
)

// Snapshot exports the document to a SQLite database at dbPath. The
// three tables (sessions, information_shared, call_logs) are dropped
// and rebuilt, so re-exporting to the same file replaces the previous
// snapshot.
func Snapshot(doc *store.Document, dbPath string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for id, sess := range doc.Sessions {
		_, err := tx.Exec(`
			INSERT INTO sessions (id, caller_id, created_at, last_activity, information_count, status, end_time, end_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, sess.CallerID, sess.CreatedAt, sess.LastActivity,
			sess.InformationCount, string(sess.Status), nullable(sess.EndTime), nullable(sess.EndReason),
		)
		if err != nil {
			return fmt.Errorf("insert session %s: %w", id, err)
		}
	}

	for _, rec := range doc.InformationShared {
		_, err := tx.Exec(`
			INSERT INTO information_shared (id, session_id, caller_id, information, category, timestamp, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.SessionID, rec.CallerID, rec.Information, rec.Category, rec.Timestamp, rec.Status,
		)
		if err != nil {
			return fmt.Errorf("insert information %s: %w", rec.ID, err)
		}
	}

	for _, rec := range doc.CallLogs {
		_, err := tx.Exec(`
			INSERT INTO call_logs (id, session_id, caller_id, end_time, reason, duration, information_shared_count)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.SessionID, rec.CallerID, rec.EndTime, rec.Reason, rec.Duration, rec.InformationSharedCount,
		)
		if err != nil {
			return fmt.Errorf("insert call log %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	logger.Info("snapshot exported",
		"path", dbPath,
		"sessions", len(doc.Sessions),
		"information", len(doc.InformationShared),
		"calls", len(doc.CallLogs),
	)
	return nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		DROP TABLE IF EXISTS sessions;
		DROP TABLE IF EXISTS information_shared;
		DROP TABLE IF EXISTS call_logs;

		CREATE TABLE sessions (
			id TEXT PRIMARY KEY,
			caller_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			last_activity TEXT NOT NULL,
			information_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			end_time TEXT,
			end_reason TEXT
		);

		CREATE TABLE information_shared (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			caller_id TEXT NOT NULL,
			information TEXT NOT NULL,
			category TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			status TEXT NOT NULL
		);

		CREATE TABLE call_logs (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			caller_id TEXT NOT NULL,
			end_time TEXT NOT NULL,
			reason TEXT NOT NULL,
			duration INTEGER NOT NULL DEFAULT 0,
			information_shared_count INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX idx_information_session ON information_shared(session_id);
		CREATE INDEX idx_information_category ON information_shared(category);
		CREATE INDEX idx_calls_session ON call_logs(session_id);
	`)
	return err
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
