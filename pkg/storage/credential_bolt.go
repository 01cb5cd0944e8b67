package storage

import (
	"context"

	"github.com/asdine/storm/v3"
	"github.com/autowar/autowar/pkg/credentials"
	"github.com/pkg/errors"
)

type BoltCredentialStorage struct {
	db *storm.DB
}

func NewBoltCredentialStorage(db *storm.DB) *BoltCredentialStorage {
	return &BoltCredentialStorage{db: db}
}

func (s *BoltCredentialStorage) Put(ctx context.Context, r credentials.Record) error {
	return errors.Wrap(s.db.Save(&r), "boltdb save credential record")
}

func (s *BoltCredentialStorage) Get(ctx context.Context, id string) (*credentials.Record, error) {
	var r credentials.Record
	err := s.db.One("ID", id, &r)
	if err == storm.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "boltdb get credential record")
	}
	return &r, nil
}

func (s *BoltCredentialStorage) List(ctx context.Context) ([]credentials.Record, error) {
	records := []credentials.Record{}
	if err := s.db.All(&records); err != nil {
		return nil, errors.Wrap(err, "boltdb list credential records")
	}
	return records, nil
}

func (s *BoltCredentialStorage) MarkExpired(ctx context.Context, id string, deletedAt int64) error {
	return s.update(id, func(r *credentials.Record) {
		r.Status = credentials.StatusExpired
		r.DeletedAt = deletedAt
	})
}

func (s *BoltCredentialStorage) MarkRotated(ctx context.Context, id string, rotatedAt int64) error {
	return s.update(id, func(r *credentials.Record) {
		r.LastRotatedTS = rotatedAt
		r.RotationDue = 0
	})
}

func (s *BoltCredentialStorage) MarkRotationDue(ctx context.Context, id string, ts int64) error {
	return s.update(id, func(r *credentials.Record) {
		r.RotationDue = ts
	})
}

func (s *BoltCredentialStorage) UpdateSessionExpiry(ctx context.Context, id string, expiryTS, rotatedAt int64) error {
	return s.update(id, func(r *credentials.Record) {
		r.ExpiryTS = expiryTS
		r.LastRotatedTS = rotatedAt
		r.RotationDue = 0
	})
}

func (s *BoltCredentialStorage) update(id string, fn func(r *credentials.Record)) error {
	var r credentials.Record
	if err := s.db.One("ID", id, &r); err != nil {
		return errors.Wrap(err, "boltdb get credential record")
	}
	fn(&r)
	return errors.Wrap(s.db.Save(&r), "boltdb save credential record")
}
