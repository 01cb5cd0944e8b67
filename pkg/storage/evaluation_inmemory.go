package storage

import (
	"context"
	"sync"

	"github.com/autowar/autowar/pkg/evaluation"
	"github.com/autowar/autowar/pkg/validation"
)

type InMemoryEvaluationStorage struct {
	sync.RWMutex
	evaluations map[string]evaluation.Evaluation
}

func NewInMemoryEvaluationStorage() *InMemoryEvaluationStorage {
	return &InMemoryEvaluationStorage{evaluations: map[string]evaluation.Evaluation{}}
}

func (s *InMemoryEvaluationStorage) Put(ctx context.Context, e evaluation.Evaluation) error {
	s.Lock()
	defer s.Unlock()
	s.evaluations[e.ID] = e
	return nil
}

func (s *InMemoryEvaluationStorage) Get(ctx context.Context, id string) (*evaluation.Evaluation, error) {
	s.RLock()
	defer s.RUnlock()
	e, ok := s.evaluations[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *InMemoryEvaluationStorage) ListForClient(ctx context.Context, clientID string, limit int) ([]evaluation.Evaluation, error) {
	s.RLock()
	defer s.RUnlock()
	out := []evaluation.Evaluation{}
	for _, e := range s.evaluations {
		if e.ClientID != clientID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryEvaluationStorage) Complete(ctx context.Context, id string, results []validation.Verdict, completedAt int64) error {
	s.Lock()
	defer s.Unlock()
	e, ok := s.evaluations[id]
	if !ok {
		return evaluation.ErrAlreadyCompleted
	}
	if e.Status == evaluation.StatusCompleted {
		return evaluation.ErrAlreadyCompleted
	}
	e.Status = evaluation.StatusCompleted
	e.Results = results
	e.CompletedAt = completedAt
	s.evaluations[id] = e
	return nil
}

type InMemoryEvidenceStorage struct {
	sync.RWMutex
	entries []evaluation.EvidenceEntry
}

func NewInMemoryEvidenceStorage() *InMemoryEvidenceStorage {
	return &InMemoryEvidenceStorage{entries: []evaluation.EvidenceEntry{}}
}

func (s *InMemoryEvidenceStorage) Put(ctx context.Context, e evaluation.EvidenceEntry) error {
	s.Lock()
	defer s.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *InMemoryEvidenceStorage) ListForEvaluation(ctx context.Context, evaluationID string) ([]evaluation.EvidenceEntry, error) {
	s.RLock()
	defer s.RUnlock()
	out := []evaluation.EvidenceEntry{}
	for _, e := range s.entries {
		if e.EvaluationID == evaluationID {
			out = append(out, e)
		}
	}
	return out, nil
}
