// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

// Package state persists classification decisions between runs.
//
// The store is a single JSON file plus a rotating set of backups. Saves
// are atomic: write to a temp file, fsync, rename. A corrupt state file
// falls back to the most recent backup. Decisions are keyed by
// "movie:<id>" with one record per collection, alongside the metadata
// hash the decisions were computed against.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tikibozo/kometa-ai/internal/logging"
	"github.com/tikibozo/kometa-ai/internal/metrics"
	"github.com/tikibozo/kometa-ai/internal/version"
)

const (
	stateFileName = "kometa_state.json"
	backupDirName = "backups"
	backupPrefix  = "kometa_state_"
	maxBackups    = 5
	maxChanges    = 100
	maxErrors     = 50
)

// Store manages the persistent decision state.
//
// Thread safety: all methods are mutex guarded; the store may be shared
// between the runner and the reporter.
type Store struct {
	mu        sync.Mutex
	stateDir  string
	stateFile string
	backupDir string
	doc       *document
}

// NewStore creates a store rooted at stateDir, creating the directory
// tree if needed.
func NewStore(stateDir string) (*Store, error) {
	backupDir := filepath.Join(stateDir, backupDirName)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{
		stateDir:  stateDir,
		stateFile: filepath.Join(stateDir, stateFileName),
		backupDir: backupDir,
		doc:       emptyDocument(version.Version),
	}, nil
}

// Load reads the state file. A missing file yields empty state; a corrupt
// file falls back to the newest backup, and empty state if none restores.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.stateFile)
	if os.IsNotExist(err) {
		logging.Info().Str("file", s.stateFile).Msg("state file not found, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	doc := &document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		logging.Err(err).Str("file", s.stateFile).Msg("state file corrupt, trying backups")
		if !s.restoreBackupLocked() {
			logging.Warn().Msg("no usable backup, starting empty")
			s.doc = emptyDocument(version.Version)
		}
		return nil
	}

	if doc.StateFormatVersion != formatVersion {
		logging.Warn().
			Int("expected", formatVersion).
			Int("got", doc.StateFormatVersion).
			Msg("state format version mismatch, migration may be needed")
	}
	s.normalize(doc)
	s.doc = doc

	logging.Info().Int("movies", len(doc.Decisions)).Msg("state loaded")
	metrics.StateDecisions.Set(float64(len(doc.Decisions)))
	return nil
}

// normalize fills nil maps/slices after decoding.
func (s *Store) normalize(doc *document) {
	if doc.Decisions == nil {
		doc.Decisions = map[string]*movieState{}
	}
	for _, ms := range doc.Decisions {
		if ms.Collections == nil {
			ms.Collections = map[string]*DecisionRecord{}
		}
	}
}

// Save persists the state atomically, backing up the previous file first.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.saveLocked()
	metrics.RecordStateSave(err)
	return err
}

func (s *Store) saveLocked() error {
	if _, err := os.Stat(s.stateFile); err == nil {
		s.createBackupLocked()
	}

	s.doc.LastUpdate = time.Now().UTC().Format(time.RFC3339)
	s.doc.Version = version.Version

	encoded, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp, err := os.CreateTemp(s.stateDir, stateFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.stateFile); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	logging.Debug().Int("movies", len(s.doc.Decisions)).Msg("state saved")
	metrics.StateDecisions.Set(float64(len(s.doc.Decisions)))
	return nil
}

// createBackupLocked copies the current state file into the backup dir
// and prunes to the newest maxBackups. Backup failure never blocks a save.
func (s *Store) createBackupLocked() {
	timestamp := time.Now().UTC().Format("20060102150405.000000000")
	backupFile := filepath.Join(s.backupDir, backupPrefix+timestamp+".json")

	raw, err := os.ReadFile(s.stateFile)
	if err != nil {
		logging.Err(err).Msg("failed to read state for backup")
		return
	}
	if err := os.WriteFile(backupFile, raw, 0o644); err != nil {
		logging.Err(err).Msg("failed to write state backup")
		return
	}

	backups, err := filepath.Glob(filepath.Join(s.backupDir, backupPrefix+"*.json"))
	if err != nil {
		return
	}
	sort.Strings(backups)
	for _, old := range backups[:max(0, len(backups)-maxBackups)] {
		if err := os.Remove(old); err != nil {
			logging.Err(err).Str("file", old).Msg("failed to remove old backup")
		}
	}
}

// restoreBackupLocked loads the newest parseable backup.
func (s *Store) restoreBackupLocked() bool {
	backups, err := filepath.Glob(filepath.Join(s.backupDir, backupPrefix+"*.json"))
	if err != nil || len(backups) == 0 {
		return false
	}
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))

	for _, backup := range backups {
		raw, err := os.ReadFile(backup)
		if err != nil {
			continue
		}
		doc := &document{}
		if err := json.Unmarshal(raw, doc); err != nil {
			logging.Err(err).Str("file", backup).Msg("backup also corrupt")
			continue
		}
		s.normalize(doc)
		s.doc = doc
		logging.Warn().Str("file", backup).Int("movies", len(doc.Decisions)).Msg("restored state from backup")
		return true
	}
	return false
}

// Reset replaces the state with an empty document and saves it.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = emptyDocument(version.Version)
	logging.Info().Msg("state reset")
	return s.saveLocked()
}

func movieKey(movieID int) string {
	return fmt.Sprintf("movie:%d", movieID)
}

// GetDecision returns the stored decision for a movie/collection pair,
// or nil if absent.
func (s *Store) GetDecision(movieID int, collectionName string) *DecisionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.doc.Decisions[movieKey(movieID)]
	if !ok {
		return nil
	}
	rec, ok := ms.Collections[collectionName]
	if !ok {
		return nil
	}
	out := *rec
	out.MovieID = movieID
	out.CollectionName = collectionName
	if out.MetadataHash == "" {
		out.MetadataHash = ms.MetadataHash
	}
	return &out
}

// SetDecision stores a decision and updates the movie's metadata hash.
func (s *Store) SetDecision(rec DecisionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := movieKey(rec.MovieID)
	ms, ok := s.doc.Decisions[key]
	if !ok {
		ms = &movieState{Collections: map[string]*DecisionRecord{}}
		s.doc.Decisions[key] = ms
	}

	stored := rec
	name := stored.CollectionName
	// Keyed by collection; avoid storing the identifiers twice.
	stored.MovieID = 0
	stored.CollectionName = ""
	ms.Collections[name] = &stored
	ms.MetadataHash = rec.MetadataHash
}

// GetMetadataHash returns the stored metadata hash for a movie, or empty
// string if the movie is unknown.
func (s *Store) GetMetadataHash(movieID int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ms, ok := s.doc.Decisions[movieKey(movieID)]; ok {
		return ms.MetadataHash
	}
	return ""
}

// LogChange appends an applied tag mutation, bounded to the newest 100.
func (s *Store) LogChange(movieID int, title, collection, action, tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Changes = append(s.doc.Changes, ChangeRecord{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		MovieID:    movieID,
		Title:      title,
		Collection: collection,
		Action:     action,
		Tag:        tag,
	})
	if len(s.doc.Changes) > maxChanges {
		s.doc.Changes = s.doc.Changes[len(s.doc.Changes)-maxChanges:]
	}
}

// LogError appends a run error, bounded to the newest 50.
func (s *Store) LogError(context, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Errors = append(s.doc.Errors, ErrorRecord{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Context:   context,
		Message:   message,
	})
	if len(s.doc.Errors) > maxErrors {
		s.doc.Errors = s.doc.Errors[len(s.doc.Errors)-maxErrors:]
	}
}

// Changes returns a copy of the change ring.
func (s *Store) Changes() []ChangeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChangeRecord(nil), s.doc.Changes...)
}

// Errors returns a copy of the error ring.
func (s *Store) Errors() []ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ErrorRecord(nil), s.doc.Errors...)
}

// ClearChanges empties the change ring, typically after reporting.
func (s *Store) ClearChanges() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Changes = []ChangeRecord{}
}

// ClearErrors empties the error ring, typically after reporting.
func (s *Store) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Errors = []ErrorRecord{}
}

// DecisionCount returns the number of movies with stored decisions.
func (s *Store) DecisionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.doc.Decisions)
}

// Dump renders the full state as indented JSON.
func (s *Store) Dump() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}
	return string(encoded), nil
}
