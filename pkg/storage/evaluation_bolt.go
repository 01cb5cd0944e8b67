package storage

import (
	"context"
	"sync"

	"github.com/asdine/storm/v3"
	"github.com/autowar/autowar/pkg/evaluation"
	"github.com/autowar/autowar/pkg/validation"
	"github.com/pkg/errors"
)

type BoltEvaluationStorage struct {
	db *storm.DB

	// completeMu serialises the PENDING to COMPLETED check-and-set, which
	// storm cannot express as a single conditional write.
	completeMu sync.Mutex
}

func NewBoltEvaluationStorage(db *storm.DB) *BoltEvaluationStorage {
	return &BoltEvaluationStorage{db: db}
}

func (s *BoltEvaluationStorage) Put(ctx context.Context, e evaluation.Evaluation) error {
	return errors.Wrap(s.db.Save(&e), "boltdb save evaluation")
}

func (s *BoltEvaluationStorage) Get(ctx context.Context, id string) (*evaluation.Evaluation, error) {
	var e evaluation.Evaluation
	err := s.db.One("ID", id, &e)
	if err == storm.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "boltdb get evaluation")
	}
	return &e, nil
}

func (s *BoltEvaluationStorage) ListForClient(ctx context.Context, clientID string, limit int) ([]evaluation.Evaluation, error) {
	all := []evaluation.Evaluation{}
	if err := s.db.All(&all); err != nil {
		return nil, errors.Wrap(err, "boltdb list evaluations")
	}
	out := []evaluation.Evaluation{}
	for _, e := range all {
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

func (s *BoltEvaluationStorage) Complete(ctx context.Context, id string, results []validation.Verdict, completedAt int64) error {
	s.completeMu.Lock()
	defer s.completeMu.Unlock()

	var e evaluation.Evaluation
	if err := s.db.One("ID", id, &e); err != nil {
		return errors.Wrap(err, "boltdb get evaluation")
	}
	if e.Status == evaluation.StatusCompleted {
		return evaluation.ErrAlreadyCompleted
	}
	e.Status = evaluation.StatusCompleted
	e.Results = results
	e.CompletedAt = completedAt
	return errors.Wrap(s.db.Save(&e), "boltdb save evaluation")
}

type BoltEvidenceStorage struct {
	db *storm.DB
}

func NewBoltEvidenceStorage(db *storm.DB) *BoltEvidenceStorage {
	return &BoltEvidenceStorage{db: db}
}

func (s *BoltEvidenceStorage) Put(ctx context.Context, e evaluation.EvidenceEntry) error {
	return errors.Wrap(s.db.Save(&e), "boltdb save evidence entry")
}

func (s *BoltEvidenceStorage) ListForEvaluation(ctx context.Context, evaluationID string) ([]evaluation.EvidenceEntry, error) {
	all := []evaluation.EvidenceEntry{}
	if err := s.db.All(&all); err != nil {
		return nil, errors.Wrap(err, "boltdb list evidence entries")
	}
	out := []evaluation.EvidenceEntry{}
	for _, e := range all {
		if e.EvaluationID == evaluationID {
			out = append(out, e)
		}
	}
	return out, nil
}
