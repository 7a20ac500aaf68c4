// Package memory provides an in-memory version store for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/version-radar/internal/radar"
)

// Store keeps version records in a map guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	records map[string]radar.VersionRecord
}

// New constructs an empty Store.
func New() *Store {
	return &Store{records: make(map[string]radar.VersionRecord)}
}

// Session returns a handle on the shared map. Closing it is a no-op.
func (s *Store) Session(_ context.Context) (radar.Session, error) {
	return session{store: s}, nil
}

// Close satisfies radar.Store.
func (s *Store) Close(_ context.Context) error {
	return nil
}

// Len reports how many records are held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

type session struct {
	store *Store
}

func (ss session) Get(_ context.Context, softwareName string) (radar.VersionRecord, error) {
	ss.store.mu.RLock()
	defer ss.store.mu.RUnlock()
	rec, ok := ss.store.records[softwareName]
	if !ok {
		return radar.VersionRecord{}, radar.ErrNotFound
	}
	return rec, nil
}

func (ss session) Upsert(_ context.Context, softwareName, version string, at time.Time) (radar.VersionRecord, error) {
	ss.store.mu.Lock()
	defer ss.store.mu.Unlock()
	rec, ok := ss.store.records[softwareName]
	if !ok {
		rec = radar.VersionRecord{SoftwareName: softwareName, CreatedAt: at}
	}
	rec.Version = version
	rec.UpdatedAt = at
	ss.store.records[softwareName] = rec
	return rec, nil
}

func (ss session) Close(_ context.Context) error {
	return nil
}
