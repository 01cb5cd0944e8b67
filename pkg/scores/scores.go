// Package scores stores per-best-practice score records for evaluations.
package scores

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Score records the grading of one best practice within an evaluation. Total
// is derived, the sum of the individual score values.
type Score struct {
	ID             string             `json:"id" dynamodbav:"id"`
	EvaluationID   string             `json:"evaluationId" dynamodbav:"evaluation_id"`
	BestPracticeID string             `json:"bpId" dynamodbav:"bp_id"`
	Scores         map[string]float64 `json:"scores" dynamodbav:"scores"`
	Total          float64            `json:"total" dynamodbav:"total"`
	CreatedAt      int64              `json:"createdAt" dynamodbav:"created_at"`
}

// Storage persists score records.
type Storage interface {
	Put(ctx context.Context, s Score) error
	Get(ctx context.Context, id string) (*Score, error)
	ListForEvaluation(ctx context.Context, evaluationID string, limit int) ([]Score, error)
}

// Service creates and reads score records.
type Service struct {
	log   *zap.SugaredLogger
	store Storage
	now   func() time.Time
}

type ServiceOpts struct {
	Log   *zap.SugaredLogger
	Store Storage
	Now   func() time.Time
}

func NewService(opts ServiceOpts) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{log: opts.Log, store: opts.Store, now: now}
}

type CreateInput struct {
	EvaluationID   string
	BestPracticeID string
	Scores         map[string]float64
}

// Create stores a new score record, deriving its total from the supplied
// score values.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Score, error) {
	if input.EvaluationID == "" {
		return nil, errors.New("evaluationId is required")
	}

	total := 0.0
	for _, v := range input.Scores {
		total += v
	}

	score := Score{
		ID:             uuid.NewString(),
		EvaluationID:   input.EvaluationID,
		BestPracticeID: input.BestPracticeID,
		Scores:         input.Scores,
		Total:          total,
		CreatedAt:      s.now().Unix(),
	}
	if err := s.store.Put(ctx, score); err != nil {
		return nil, errors.Wrap(err, "persisting score record")
	}
	return &score, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Score, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListForEvaluation(ctx context.Context, evaluationID string, limit int) ([]Score, error) {
	return s.store.ListForEvaluation(ctx, evaluationID, limit)
}
