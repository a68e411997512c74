// Package syncinfo keeps the time of the last successful queue sync.
package syncinfo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrNeverSynced is returned by LastSync before the first successful run.
var ErrNeverSynced = errors.New("no successful sync recorded")

// SyncManager reads and writes the last-sync file.
type SyncManager struct {
	mu       sync.RWMutex
	lastSync time.Time
	filename string
}

// NewSyncManager creates the file (and its directory) if needed and loads any
// previously recorded time.
func NewSyncManager(fileName string) (*SyncManager, error) {
	if err := os.MkdirAll(filepath.Dir(fileName), 0o755); err != nil {
		return nil, fmt.Errorf("create syncinfo dir: %w", err)
	}
	file, err := os.OpenFile(fileName, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open syncinfo file: %w", err)
	}
	file.Close()

	sm := &SyncManager{filename: fileName}
	if t, err := sm.readFile(); err == nil {
		sm.lastSync = t
	}
	return sm, nil
}

// Record stores t as the last successful sync, in UTC.
func (sm *SyncManager) Record(t time.Time) error {
	t = t.UTC()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if err := os.WriteFile(sm.filename, []byte(t.Format(time.RFC3339)), 0o644); err != nil {
		return fmt.Errorf("write syncinfo: %w", err)
	}
	sm.lastSync = t
	return nil
}

// LastSync returns the recorded time or ErrNeverSynced.
func (sm *SyncManager) LastSync() (time.Time, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.lastSync.IsZero() {
		return time.Time{}, ErrNeverSynced
	}
	return sm.lastSync, nil
}

// Reload refreshes the cached time from disk. Another process (a one-shot
// `sync` command) may have written it.
func (sm *SyncManager) Reload() (time.Time, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	t, err := sm.readFile()
	if err != nil {
		return time.Time{}, err
	}
	sm.lastSync = t
	return t, nil
}

func (sm *SyncManager) readFile() (time.Time, error) {
	content, err := os.ReadFile(sm.filename)
	if err != nil {
		return time.Time{}, err
	}
	raw := strings.TrimSpace(string(content))
	if raw == "" {
		return time.Time{}, ErrNeverSynced
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse syncinfo: %w", err)
	}
	return t, nil
}
