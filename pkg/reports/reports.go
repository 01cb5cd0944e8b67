// Package reports renders completed evaluations into report artifacts and
// tracks their lifecycle.
package reports

import "context"

const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
)

// Record tracks one evaluation's report. It is created PENDING when the
// evaluation completes and becomes COMPLETED once the artifact is stored.
type Record struct {
	EvaluationID string `json:"evaluationId" dynamodbav:"evaluation_id"`
	Status       string `json:"status" dynamodbav:"status"`
	Location     string `json:"location,omitempty" dynamodbav:"location,omitempty"`
	GeneratedAt  int64  `json:"generatedAt,omitempty" dynamodbav:"generated_at,omitempty"`
	CreatedAt    int64  `json:"createdAt" dynamodbav:"created_at"`
}

// Storage persists report records.
type Storage interface {
	PutPending(ctx context.Context, evaluationID string, createdAt int64) error
	Get(ctx context.Context, evaluationID string) (*Record, error)
	MarkCompleted(ctx context.Context, evaluationID, location string, generatedAt int64) error
}
