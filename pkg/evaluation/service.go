package evaluation

import (
	"context"
	"time"

	"github.com/autowar/autowar/pkg/queue"
	"github.com/autowar/autowar/pkg/validation"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// WorkItem is the queue message handed to the evaluation worker.
type WorkItem struct {
	EvaluationID string       `json:"evaluationId"`
	Item         WorkItemBody `json:"item"`
}

// WorkItemBody carries the inputs the worker needs to run the checks.
type WorkItemBody struct {
	Targets   []validation.ResourceTarget `json:"targets,omitempty"`
	Region    string                      `json:"region,omitempty"`
	AccountID string                      `json:"accountId,omitempty"`
}

// CreateInput is the caller-supplied content of a new evaluation.
type CreateInput struct {
	ClientID     string                      `json:"clientId"`
	AccountID    string                      `json:"accountId,omitempty"`
	Region       string                      `json:"region,omitempty"`
	Targets      []validation.ResourceTarget `json:"targets,omitempty"`
	Summary      string                      `json:"summary,omitempty"`
	PillarScores map[string]float64          `json:"pillarScores,omitempty"`
}

// Service creates and reads evaluation records.
type Service struct {
	log      *zap.SugaredLogger
	store    Storage
	registry *validation.Registry

	// queue is nil when no work queue is configured; creation then falls
	// back to running the validators synchronously.
	queue queue.Publisher

	now func() time.Time
}

type ServiceOpts struct {
	Log      *zap.SugaredLogger
	Store    Storage
	Registry *validation.Registry
	Queue    queue.Publisher
	// Now overrides the clock in tests.
	Now func() time.Time
}

func NewService(opts ServiceOpts) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		log:      opts.Log,
		store:    opts.Store,
		registry: opts.Registry,
		queue:    opts.Queue,
		now:      now,
	}
}

// Create persists a PENDING evaluation and hands it to the work queue.
//
// When no queue is configured the validators run synchronously in-process
// and, if they produce results, the record transitions to COMPLETED before
// returning. This path exists so synchronous callers get an immediate answer
// in deployments without an async worker; it is not a queue retry.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Evaluation, error) {
	e := Evaluation{
		ID:           uuid.NewString(),
		ClientID:     input.ClientID,
		AccountID:    input.AccountID,
		Region:       input.Region,
		Targets:      input.Targets,
		Summary:      input.Summary,
		PillarScores: input.PillarScores,
		Status:       StatusPending,
		CreatedAt:    s.now().Unix(),
	}
	if err := s.store.Put(ctx, e); err != nil {
		return nil, errors.Wrap(err, "persisting evaluation")
	}

	if s.queue != nil {
		item := WorkItem{
			EvaluationID: e.ID,
			Item: WorkItemBody{
				Targets:   e.Targets,
				Region:    e.Region,
				AccountID: e.AccountID,
			},
		}
		if err := s.queue.Publish(ctx, item); err != nil {
			// the record stays PENDING; the caller can re-submit
			s.log.With("evaluation", e.ID, zap.Error(err)).Error("enqueueing evaluation failed")
		}
		return &e, nil
	}

	results := s.registry.RunForEvaluation(ctx, e.Targets, e.Region, e.AccountID)
	if len(results) > 0 {
		completedAt := s.now().Unix()
		if err := s.store.Complete(ctx, e.ID, results, completedAt); err != nil {
			s.log.With("evaluation", e.ID, zap.Error(err)).Error("completing evaluation synchronously failed")
			return &e, nil
		}
		e.Status = StatusCompleted
		e.Results = results
		e.CompletedAt = completedAt
	}
	return &e, nil
}

// Get fetches an evaluation by id, returning nil when it does not exist.
func (s *Service) Get(ctx context.Context, id string) (*Evaluation, error) {
	return s.store.Get(ctx, id)
}

// ListForClient lists a client's evaluations, most recent first.
func (s *Service) ListForClient(ctx context.Context, clientID string, limit int) ([]Evaluation, error) {
	return s.store.ListForClient(ctx, clientID, limit)
}
