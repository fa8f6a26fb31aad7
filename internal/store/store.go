package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Store loads and persists the document. It performs no locking of its
// own: the dispatcher serializes all mutating calls, and the backing
// file is the sole shared resource.
type Store struct {
	path   string
	logger *slog.Logger
	doc    *Document

	// nowFunc is swapped in tests for deterministic timestamps.
	nowFunc func() time.Time
}

// Open loads the document at path, creating and persisting a fresh one
// if the file does not exist. A read or parse failure is logged and
// the store continues with an empty in-memory document (degraded mode)
// rather than failing — the dispatcher must stay available even when
// the disk state is bad.
func Open(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:    path,
		logger:  logger,
		nowFunc: time.Now,
	}
	s.doc = s.load()
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Document returns the in-memory document. Callers must serialize
// access; see the dispatcher.
func (s *Store) Document() *Document {
	return s.doc
}

// Now returns the current time in the document timestamp layout.
func (s *Store) Now() string {
	return FormatTime(s.nowFunc())
}

func (s *Store) load() *Document {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		doc := NewDocument(s.Now())
		s.doc = doc
		if saveErr := s.Save(); saveErr != nil {
			s.logger.Error("failed to persist fresh document", "path", s.path, "error", saveErr)
		}
		return doc
	}
	if err != nil {
		s.logger.Error("failed to read document, continuing with empty state", "path", s.path, "error", err)
		return &Document{}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Error("failed to parse document, continuing with empty state", "path", s.path, "error", err)
		return &Document{}
	}
	return &doc
}

// Save stamps metadata.last_updated and rewrites the whole document.
// The write goes to a temp file in the target directory followed by a
// rename, so a crash mid-write leaves either the old or the new
// complete document — never a truncated one. Callers log the returned
// error and proceed with the in-memory document; a failed save costs
// durability, not correctness.
func (s *Store) Save() error {
	s.doc.ensure()

	now := s.Now()
	s.doc.Metadata.LastUpdated = &now
	if s.doc.Metadata.Version == "" {
		s.doc.Metadata.Version = SchemaVersion
	}
	if s.doc.Metadata.CreatedAt == "" {
		s.doc.Metadata.CreatedAt = now
	}

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace document: %w", err)
	}

	s.logger.Debug("document saved", "path", s.path, "bytes", len(data))
	return nil
}
