package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/autowar/autowar/pkg/evaluation"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Job is the queue message that requests a report for an evaluation. Its
// wire shape matches evaluation.ReportJob.
type Job struct {
	EvaluationID string `json:"evaluationId"`
}

// EvaluationSource reads completed evaluations. evaluation.Storage
// satisfies it.
type EvaluationSource interface {
	Get(ctx context.Context, id string) (*evaluation.Evaluation, error)
}

// Generator turns completed evaluations into stored report artifacts.
//
// Rendering is delegated to an external renderer; when none is configured
// or the renderer fails for any reason, the report payload itself is stored
// as a JSON artifact so a report is always produced.
type Generator struct {
	log       *zap.SugaredLogger
	evals     EvaluationSource
	store     Storage
	artifacts ArtifactStorer

	// renderer is nil when no external renderer is configured.
	renderer Renderer

	now func() time.Time
}

type GeneratorOpts struct {
	Log       *zap.SugaredLogger
	Evals     EvaluationSource
	Store     Storage
	Artifacts ArtifactStorer
	Renderer  Renderer
	Now       func() time.Time
}

func NewGenerator(opts GeneratorOpts) *Generator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Generator{
		log:       opts.Log,
		evals:     opts.Evals,
		store:     opts.Store,
		artifacts: opts.Artifacts,
		renderer:  opts.Renderer,
		now:       now,
	}
}

// HandleSQSMessage adapts Process to the queue server's handler signature.
func (g *Generator) HandleSQSMessage(ctx context.Context, msg *types.Message) error {
	if msg.Body == nil {
		return errors.New("message has no body")
	}
	var job Job
	if err := json.Unmarshal([]byte(*msg.Body), &job); err != nil {
		return errors.Wrap(err, "unmarshalling report job")
	}
	return g.Process(ctx, job.EvaluationID)
}

// Process generates and stores the report for one evaluation.
func (g *Generator) Process(ctx context.Context, evaluationID string) error {
	if evaluationID == "" {
		return errors.New("report job has no evaluationId")
	}
	log := g.log.With("evaluation", evaluationID)

	eval, err := g.evals.Get(ctx, evaluationID)
	if err != nil {
		return errors.Wrap(err, "loading evaluation")
	}
	if eval == nil {
		return errors.Errorf("evaluation %s not found", evaluationID)
	}

	payload := Payload{
		EvaluationID: eval.ID,
		CreatedAt:    eval.CreatedAt,
		Results:      eval.Results,
	}

	body, ext, contentType := g.render(ctx, log, payload)

	generatedAt := g.now().Unix()
	key := fmt.Sprintf("reports/%s/%d.%s", evaluationID, generatedAt, ext)
	location, err := g.artifacts.Store(ctx, key, body, contentType)
	if err != nil {
		return errors.Wrap(err, "storing report artifact")
	}

	if err := g.store.MarkCompleted(ctx, evaluationID, location, generatedAt); err != nil {
		return errors.Wrap(err, "completing report record")
	}

	log.With("location", location).Info("report generated")
	return nil
}

// render returns the artifact bytes plus their file extension and content
// type. Any renderer failure falls back to the JSON payload.
func (g *Generator) render(ctx context.Context, log *zap.SugaredLogger, payload Payload) ([]byte, string, string) {
	if g.renderer != nil {
		rendered, err := g.renderer.Render(ctx, payload)
		if err == nil {
			return rendered, "pdf", "application/pdf"
		}
		log.With(zap.Error(err)).Warn("renderer failed, storing JSON fallback")
	}

	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		// Payload is marshalable by construction; keep the report going
		// with whatever we can encode.
		body = []byte(fmt.Sprintf(`{"evaluationId":%q}`, payload.EvaluationID))
	}
	return body, "json", "application/json"
}
