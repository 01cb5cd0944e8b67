package storage

import (
	"context"

	"github.com/asdine/storm/v3"
	"github.com/autowar/autowar/pkg/clients"
	"github.com/pkg/errors"
)

type BoltClientStorage struct {
	db *storm.DB
}

func NewBoltClientStorage(db *storm.DB) *BoltClientStorage {
	return &BoltClientStorage{db: db}
}

func (s *BoltClientStorage) Put(ctx context.Context, c clients.Client) error {
	return errors.Wrap(s.db.Save(&c), "boltdb save client record")
}

func (s *BoltClientStorage) Get(ctx context.Context, id string) (*clients.Client, error) {
	var c clients.Client
	err := s.db.One("ID", id, &c)
	if err == storm.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "boltdb get client record")
	}
	return &c, nil
}

func (s *BoltClientStorage) List(ctx context.Context) ([]clients.Client, error) {
	records := []clients.Client{}
	if err := s.db.All(&records); err != nil {
		return nil, errors.Wrap(err, "boltdb list client records")
	}
	return records, nil
}
