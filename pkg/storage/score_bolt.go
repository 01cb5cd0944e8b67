package storage

import (
	"context"

	"github.com/asdine/storm/v3"
	"github.com/autowar/autowar/pkg/scores"
	"github.com/pkg/errors"
)

type BoltScoreStorage struct {
	db *storm.DB
}

func NewBoltScoreStorage(db *storm.DB) *BoltScoreStorage {
	return &BoltScoreStorage{db: db}
}

func (s *BoltScoreStorage) Put(ctx context.Context, sc scores.Score) error {
	return errors.Wrap(s.db.Save(&sc), "boltdb save score record")
}

func (s *BoltScoreStorage) Get(ctx context.Context, id string) (*scores.Score, error) {
	var sc scores.Score
	err := s.db.One("ID", id, &sc)
	if err == storm.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "boltdb get score record")
	}
	return &sc, nil
}

func (s *BoltScoreStorage) ListForEvaluation(ctx context.Context, evaluationID string, limit int) ([]scores.Score, error) {
	all := []scores.Score{}
	if err := s.db.All(&all); err != nil {
		return nil, errors.Wrap(err, "boltdb list score records")
	}
	out := []scores.Score{}
	for _, sc := range all {
		if sc.EvaluationID != evaluationID {
			continue
		}
		out = append(out, sc)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
