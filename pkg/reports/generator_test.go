package reports

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/autowar/autowar/pkg/evaluation"
	"github.com/autowar/autowar/pkg/validation"
	"github.com/aws/aws-sdk-go-v2/aws"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var reportNow = time.Unix(1_700_000_000, 0)

type memReportStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func newMemReportStore() *memReportStore {
	return &memReportStore{records: map[string]Record{}}
}

func (s *memReportStore) PutPending(ctx context.Context, evaluationID string, createdAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[evaluationID] = Record{EvaluationID: evaluationID, Status: StatusPending, CreatedAt: createdAt}
	return nil
}

func (s *memReportStore) Get(ctx context.Context, evaluationID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[evaluationID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *memReportStore) MarkCompleted(ctx context.Context, evaluationID, location string, generatedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records[evaluationID]
	r.EvaluationID = evaluationID
	r.Status = StatusCompleted
	r.Location = location
	r.GeneratedAt = generatedAt
	s.records[evaluationID] = r
	return nil
}

type capturedArtifact struct {
	key, contentType string
	body             []byte
}

type memArtifactStore struct {
	stored []capturedArtifact
	err    error
}

func (s *memArtifactStore) Store(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.stored = append(s.stored, capturedArtifact{key: key, contentType: contentType, body: body})
	return "s3://reports/" + key, nil
}

type evalSourceFunc func(ctx context.Context, id string) (*evaluation.Evaluation, error)

func (f evalSourceFunc) Get(ctx context.Context, id string) (*evaluation.Evaluation, error) {
	return f(ctx, id)
}

func completedEvaluation() *evaluation.Evaluation {
	return &evaluation.Evaluation{
		ID:        "eval-1",
		ClientID:  "client-1",
		Status:    evaluation.StatusCompleted,
		CreatedAt: reportNow.Unix() - 60,
		Results: []validation.Verdict{
			{Name: "iam-root-mfa", Status: validation.StatusPass},
			{Name: "s3-public-access", Resource: "my-bucket", Status: validation.StatusFail},
		},
	}
}

func sourceFor(eval *evaluation.Evaluation) EvaluationSource {
	return evalSourceFunc(func(ctx context.Context, id string) (*evaluation.Evaluation, error) {
		if eval != nil && eval.ID == id {
			return eval, nil
		}
		return nil, nil
	})
}

func TestProcess_NoRendererStoresJSONFallback(t *testing.T) {
	store := newMemReportStore()
	require.NoError(t, store.PutPending(context.Background(), "eval-1", reportNow.Unix()-60))
	artifacts := &memArtifactStore{}

	g := NewGenerator(GeneratorOpts{
		Log:       zap.NewNop().Sugar(),
		Evals:     sourceFor(completedEvaluation()),
		Store:     store,
		Artifacts: artifacts,
		Now:       func() time.Time { return reportNow },
	})

	require.NoError(t, g.Process(context.Background(), "eval-1"))

	require.Len(t, artifacts.stored, 1)
	got := artifacts.stored[0]
	assert.Equal(t, "reports/eval-1/1700000000.json", got.key)
	assert.Equal(t, "application/json", got.contentType)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(got.body, &payload), "fallback artifact is valid JSON")
	assert.Equal(t, "eval-1", payload["evaluationId"])
	assert.NotNil(t, payload["createdAt"])
	results, ok := payload["results"].([]interface{})
	require.True(t, ok)
	assert.Len(t, results, 2)

	rec, err := store.Get(context.Background(), "eval-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, "s3://reports/reports/eval-1/1700000000.json", rec.Location)
	assert.Equal(t, reportNow.Unix(), rec.GeneratedAt)
}

func TestProcess_RendererProducesPDFArtifact(t *testing.T) {
	var gotRequest renderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotRequest))
		w.Write([]byte("%PDF-1.4 rendered"))
	}))
	defer srv.Close()

	store := newMemReportStore()
	artifacts := &memArtifactStore{}

	g := NewGenerator(GeneratorOpts{
		Log:       zap.NewNop().Sugar(),
		Evals:     sourceFor(completedEvaluation()),
		Store:     store,
		Artifacts: artifacts,
		Renderer:  NewHTTPRenderer(srv.URL, srv.Client()),
		Now:       func() time.Time { return reportNow },
	})

	require.NoError(t, g.Process(context.Background(), "eval-1"))

	assert.Equal(t, "pdf", gotRequest.Format)
	assert.Equal(t, "eval-1", gotRequest.Payload.EvaluationID)
	assert.Len(t, gotRequest.Payload.Results, 2)

	require.Len(t, artifacts.stored, 1)
	assert.Equal(t, "reports/eval-1/1700000000.pdf", artifacts.stored[0].key)
	assert.Equal(t, "application/pdf", artifacts.stored[0].contentType)
	assert.Equal(t, []byte("%PDF-1.4 rendered"), artifacts.stored[0].body)
}

func TestProcess_RendererFailureFallsBackToJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "renderer exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := newMemReportStore()
	artifacts := &memArtifactStore{}

	g := NewGenerator(GeneratorOpts{
		Log:       zap.NewNop().Sugar(),
		Evals:     sourceFor(completedEvaluation()),
		Store:     store,
		Artifacts: artifacts,
		Renderer:  NewHTTPRenderer(srv.URL, srv.Client()),
		Now:       func() time.Time { return reportNow },
	})

	require.NoError(t, g.Process(context.Background(), "eval-1"))

	require.Len(t, artifacts.stored, 1)
	assert.Equal(t, "application/json", artifacts.stored[0].contentType)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(artifacts.stored[0].body, &payload))
	assert.Equal(t, "eval-1", payload["evaluationId"])
}

func TestProcess_UnknownEvaluationFails(t *testing.T) {
	g := NewGenerator(GeneratorOpts{
		Log:       zap.NewNop().Sugar(),
		Evals:     sourceFor(nil),
		Store:     newMemReportStore(),
		Artifacts: &memArtifactStore{},
	})
	err := g.Process(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestProcess_ArtifactFailureLeavesRecordPending(t *testing.T) {
	store := newMemReportStore()
	require.NoError(t, store.PutPending(context.Background(), "eval-1", reportNow.Unix()))

	g := NewGenerator(GeneratorOpts{
		Log:       zap.NewNop().Sugar(),
		Evals:     sourceFor(completedEvaluation()),
		Store:     store,
		Artifacts: &memArtifactStore{err: errors.New("bucket gone")},
	})

	err := g.Process(context.Background(), "eval-1")
	require.Error(t, err)

	rec, err := store.Get(context.Background(), "eval-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status, "record stays PENDING for redelivery")
}

func TestHandleSQSMessage(t *testing.T) {
	store := newMemReportStore()
	artifacts := &memArtifactStore{}
	g := NewGenerator(GeneratorOpts{
		Log:       zap.NewNop().Sugar(),
		Evals:     sourceFor(completedEvaluation()),
		Store:     store,
		Artifacts: artifacts,
		Now:       func() time.Time { return reportNow },
	})

	err := g.HandleSQSMessage(context.Background(), &sqstypes.Message{
		Body: aws.String(`{"evaluationId":"eval-1"}`),
	})
	require.NoError(t, err)
	assert.Len(t, artifacts.stored, 1)

	err = g.HandleSQSMessage(context.Background(), &sqstypes.Message{Body: aws.String("not json")})
	assert.Error(t, err)
}
