package storage

import (
	"context"
	"sync"

	"github.com/autowar/autowar/pkg/scores"
)

type InMemoryScoreStorage struct {
	sync.RWMutex
	scores map[string]scores.Score
}

func NewInMemoryScoreStorage() *InMemoryScoreStorage {
	return &InMemoryScoreStorage{scores: map[string]scores.Score{}}
}

func (s *InMemoryScoreStorage) Put(ctx context.Context, sc scores.Score) error {
	s.Lock()
	defer s.Unlock()
	s.scores[sc.ID] = sc
	return nil
}

func (s *InMemoryScoreStorage) Get(ctx context.Context, id string) (*scores.Score, error) {
	s.RLock()
	defer s.RUnlock()
	sc, ok := s.scores[id]
	if !ok {
		return nil, nil
	}
	return &sc, nil
}

func (s *InMemoryScoreStorage) ListForEvaluation(ctx context.Context, evaluationID string, limit int) ([]scores.Score, error) {
	s.RLock()
	defer s.RUnlock()
	out := []scores.Score{}
	for _, sc := range s.scores {
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
