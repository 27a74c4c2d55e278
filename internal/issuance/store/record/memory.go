// Package record persists minted creature records keyed by cohort rank.
package record

import (
	"context"
	"math/big"
	"sync"

	"bestiary/internal/issuance/models"
	"bestiary/pkg/platform/sentinel"
)

// InMemory is the test/dev record store. All methods are safe for concurrent
// use; CreateIfAbsent is the atomic exists-check-plus-insert the mint path
// relies on.
type InMemory struct {
	mu      sync.RWMutex
	records map[uint64]models.Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[uint64]models.Record)}
}

// CreateIfAbsent stores the record unless one already exists at its ID, in
// which case it returns sentinel.ErrConflict and leaves the stored record
// untouched.
func (s *InMemory) CreateIfAbsent(_ context.Context, rec models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.ID]; ok && existing.Exists() {
		return sentinel.ErrConflict
	}
	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

// FindByID returns the record at id or sentinel.ErrNotFound.
func (s *InMemory) FindByID(_ context.Context, id uint64) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok || !rec.Exists() {
		return models.Record{}, sentinel.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// Count returns how many records have been minted.
func (s *InMemory) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.records)), nil
}

// cloneRecord copies the one pointer-typed field so callers cannot mutate
// stored state through the returned value.
func cloneRecord(rec models.Record) models.Record {
	if rec.Cost != nil {
		rec.Cost = new(big.Int).Set(rec.Cost)
	}
	return rec
}
