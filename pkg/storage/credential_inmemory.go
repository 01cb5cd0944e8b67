package storage

import (
	"context"
	"sync"

	"github.com/autowar/autowar/pkg/credentials"
	"github.com/pkg/errors"
)

type InMemoryCredentialStorage struct {
	sync.RWMutex
	records map[string]credentials.Record
}

func NewInMemoryCredentialStorage() *InMemoryCredentialStorage {
	return &InMemoryCredentialStorage{records: map[string]credentials.Record{}}
}

func (s *InMemoryCredentialStorage) Put(ctx context.Context, r credentials.Record) error {
	s.Lock()
	defer s.Unlock()
	s.records[r.ID] = r
	return nil
}

func (s *InMemoryCredentialStorage) Get(ctx context.Context, id string) (*credentials.Record, error) {
	s.RLock()
	defer s.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *InMemoryCredentialStorage) List(ctx context.Context) ([]credentials.Record, error) {
	s.RLock()
	defer s.RUnlock()
	out := []credentials.Record{}
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

func (s *InMemoryCredentialStorage) MarkExpired(ctx context.Context, id string, deletedAt int64) error {
	return s.update(id, func(r *credentials.Record) {
		r.Status = credentials.StatusExpired
		r.DeletedAt = deletedAt
	})
}

func (s *InMemoryCredentialStorage) MarkRotated(ctx context.Context, id string, rotatedAt int64) error {
	return s.update(id, func(r *credentials.Record) {
		r.LastRotatedTS = rotatedAt
		r.RotationDue = 0
	})
}

func (s *InMemoryCredentialStorage) MarkRotationDue(ctx context.Context, id string, ts int64) error {
	return s.update(id, func(r *credentials.Record) {
		r.RotationDue = ts
	})
}

func (s *InMemoryCredentialStorage) UpdateSessionExpiry(ctx context.Context, id string, expiryTS, rotatedAt int64) error {
	return s.update(id, func(r *credentials.Record) {
		r.ExpiryTS = expiryTS
		r.LastRotatedTS = rotatedAt
		r.RotationDue = 0
	})
}

func (s *InMemoryCredentialStorage) update(id string, fn func(r *credentials.Record)) error {
	s.Lock()
	defer s.Unlock()
	r, ok := s.records[id]
	if !ok {
		return errors.Errorf("credential record %s not found", id)
	}
	fn(&r)
	s.records[id] = r
	return nil
}
