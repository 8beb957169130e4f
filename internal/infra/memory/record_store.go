package memory

import (
	"context"
	"sync"

	"docquiz/internal/domain"
)

// RecordStore is the in-process implementation of timer.RecordStore. State
// lives and dies with the client process, matching the ephemeral per-run
// scope the timer expects by default.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]domain.TimerRecord
}

func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]domain.TimerRecord)}
}

func (s *RecordStore) Load(_ context.Context, identity string) (domain.TimerRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[identity]
	return record, ok, nil
}

func (s *RecordStore) Save(_ context.Context, record domain.TimerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Identity] = record
	return nil
}

func (s *RecordStore) Clear(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identity)
	return nil
}
