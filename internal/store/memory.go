package store

import (
	"context"
	"sync"

	"github.com/lablabs/cloudflare-analytics-export/internal/models"
)

// MemoryStore keeps credentials in process memory. Used for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.CredentialRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]models.CredentialRecord{}}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (models.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID]
	if !ok {
		return models.CredentialRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Upsert(_ context.Context, rec models.CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UserID] = rec
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
