package services

import (
	"sync"
	"time"
)

// SyncStatus is the coarse state of the last materialize/sync cycle.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncReady   SyncStatus = "ready"
	SyncFailed  SyncStatus = "error"
)

// SyncSnapshot is what /api/sync reports.
type SyncSnapshot struct {
	Status    SyncStatus `json:"status"`
	LastError string     `json:"lastError,omitempty"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	Generated int        `json:"generated"`
}

// SyncState is safe for concurrent use.
type SyncState struct {
	mu   sync.RWMutex
	snap SyncSnapshot
}

func NewSyncState() *SyncState {
	return &SyncState{snap: SyncSnapshot{Status: SyncIdle}}
}

func (s *SyncState) Begin() {
	s.mu.Lock()
	s.snap.Status = SyncSyncing
	s.mu.Unlock()
}

// Finish records the outcome of a run finished at now.
func (s *SyncState) Finish(now time.Time, generated int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastRun = &now
	s.snap.Generated = generated
	if err != nil {
		s.snap.Status = SyncFailed
		s.snap.LastError = err.Error()
		return
	}
	s.snap.Status = SyncReady
	s.snap.LastError = ""
}

func (s *SyncState) Snapshot() SyncSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Healthy is false only after a failed run.
func (s *SyncState) Healthy() bool {
	return s.Snapshot().Status != SyncFailed
}
