// Package evaluation contains the evaluation record model and the
// orchestration logic that runs best-practice checks and persists their
// outcomes.
package evaluation

import (
	"context"

	"github.com/autowar/autowar/pkg/validation"
	"github.com/pkg/errors"
)

const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
)

// ErrAlreadyCompleted is returned by Storage.Complete when the evaluation
// has already transitioned to COMPLETED. Duplicate queue deliveries treat
// it as a no-op.
var ErrAlreadyCompleted = errors.New("evaluation already completed")

// Evaluation is a single run of the best-practice checks against a client
// account. It is created PENDING and becomes COMPLETED exactly once, when
// its full result set is persisted.
type Evaluation struct {
	ID           string                      `json:"id" dynamodbav:"id"`
	ClientID     string                      `json:"clientId" dynamodbav:"client_id"`
	AccountID    string                      `json:"accountId,omitempty" dynamodbav:"account_id,omitempty"`
	Region       string                      `json:"region,omitempty" dynamodbav:"region,omitempty"`
	Targets      []validation.ResourceTarget `json:"targets,omitempty" dynamodbav:"targets,omitempty"`
	Status       string                      `json:"status" dynamodbav:"status"`
	Results      []validation.Verdict        `json:"results,omitempty" dynamodbav:"results,omitempty"`
	Summary      string                      `json:"summary,omitempty" dynamodbav:"summary,omitempty"`
	PillarScores map[string]float64          `json:"pillarScores,omitempty" dynamodbav:"pillar_scores,omitempty"`
	CreatedAt    int64                       `json:"createdAt" dynamodbav:"created_at"`
	CompletedAt  int64                       `json:"completedAt,omitempty" dynamodbav:"completed_at,omitempty"`
}

// EvidenceEntry is an append-only projection of one verdict, persisted
// separately so evidence can be queried independently of its evaluation.
type EvidenceEntry struct {
	// ID is <evaluationID>#<validator>#<timestamp>.
	ID           string                 `json:"id" dynamodbav:"id"`
	EvaluationID string                 `json:"evaluationId" dynamodbav:"evaluation_id"`
	Validator    string                 `json:"validator" dynamodbav:"validator"`
	Resource     string                 `json:"resource,omitempty" dynamodbav:"resource,omitempty"`
	Status       validation.Status      `json:"status" dynamodbav:"status"`
	Details      map[string]interface{} `json:"details,omitempty" dynamodbav:"details,omitempty"`
	CreatedAt    int64                  `json:"createdAt" dynamodbav:"created_at"`
}

// Storage persists evaluation records.
type Storage interface {
	Put(ctx context.Context, e Evaluation) error
	Get(ctx context.Context, id string) (*Evaluation, error)
	ListForClient(ctx context.Context, clientID string, limit int) ([]Evaluation, error)
	// Complete transitions an evaluation from PENDING to COMPLETED with its
	// results, as a single conditional write. It returns ErrAlreadyCompleted
	// if the transition already happened.
	Complete(ctx context.Context, id string, results []validation.Verdict, completedAt int64) error
}

// EvidenceStorage persists evidence entries.
type EvidenceStorage interface {
	Put(ctx context.Context, e EvidenceEntry) error
	ListForEvaluation(ctx context.Context, evaluationID string) ([]EvidenceEntry, error)
}

// ReportMarker records that a report is pending for a completed evaluation.
// The full report model lives in the reports package.
type ReportMarker interface {
	PutPending(ctx context.Context, evaluationID string, createdAt int64) error
}
