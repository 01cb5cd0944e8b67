package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/autowar/autowar/pkg/queue"
	"github.com/autowar/autowar/pkg/validation"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ReportJob is the queue message handed to the report generator.
type ReportJob struct {
	EvaluationID string `json:"evaluationId"`
}

// Worker processes queued evaluations: it runs the validators, persists the
// completed record and its evidence, and triggers report generation.
type Worker struct {
	log      *zap.SugaredLogger
	store    Storage
	evidence EvidenceStorage
	reports  ReportMarker
	registry *validation.Registry

	// reportQueue is nil when report generation is not configured.
	reportQueue queue.Publisher

	now func() time.Time
}

type WorkerOpts struct {
	Log         *zap.SugaredLogger
	Store       Storage
	Evidence    EvidenceStorage
	Reports     ReportMarker
	Registry    *validation.Registry
	ReportQueue queue.Publisher
	Now         func() time.Time
}

func NewWorker(opts WorkerOpts) *Worker {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Worker{
		log:         opts.Log,
		store:       opts.Store,
		evidence:    opts.Evidence,
		reports:     opts.Reports,
		registry:    opts.Registry,
		reportQueue: opts.ReportQueue,
		now:         now,
	}
}

// HandleSQSMessage adapts Process to the queue server's handler signature.
func (w *Worker) HandleSQSMessage(ctx context.Context, msg *types.Message) error {
	if msg.Body == nil {
		return errors.New("message has no body")
	}
	var item WorkItem
	if err := json.Unmarshal([]byte(*msg.Body), &item); err != nil {
		return errors.Wrap(err, "unmarshalling evaluation work item")
	}
	return w.Process(ctx, item)
}

// Process handles one evaluation work item.
//
// The PENDING to COMPLETED transition is a single conditional write; when it
// reports the evaluation as already completed (a duplicate delivery), the
// whole item is a no-op. Evidence writes, the pending report record and the
// report job enqueue are each best-effort: their failure is logged but never
// fails the evaluation.
func (w *Worker) Process(ctx context.Context, item WorkItem) error {
	if item.EvaluationID == "" {
		return errors.New("work item has no evaluationId")
	}
	log := w.log.With("evaluation", item.EvaluationID)

	results := w.registry.RunForEvaluation(ctx, item.Item.Targets, item.Item.Region, item.Item.AccountID)

	completedAt := w.now().Unix()
	err := w.store.Complete(ctx, item.EvaluationID, results, completedAt)
	if errors.Cause(err) == ErrAlreadyCompleted {
		log.Info("evaluation already completed, skipping")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "completing evaluation")
	}

	for _, r := range results {
		entry := EvidenceEntry{
			ID:           fmt.Sprintf("%s#%s#%d", item.EvaluationID, r.Name, completedAt),
			EvaluationID: item.EvaluationID,
			Validator:    r.Name,
			Resource:     r.Resource,
			Status:       r.Status,
			Details:      r.Details,
			CreatedAt:    completedAt,
		}
		if err := w.evidence.Put(ctx, entry); err != nil {
			log.With("validator", r.Name, zap.Error(err)).Error("writing evidence entry failed")
		}
	}

	if w.reports != nil {
		if err := w.reports.PutPending(ctx, item.EvaluationID, completedAt); err != nil {
			log.With(zap.Error(err)).Error("writing pending report record failed")
		}
	}
	if w.reportQueue != nil {
		if err := w.reportQueue.Publish(ctx, ReportJob{EvaluationID: item.EvaluationID}); err != nil {
			log.With(zap.Error(err)).Error("enqueueing report job failed")
		}
	}

	log.With("results", len(results)).Info("evaluation completed")
	return nil
}
