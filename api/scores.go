package api

import (
	"net/http"

	"github.com/autowar/autowar/api/io"
	"github.com/autowar/autowar/pkg/scores"
	"github.com/go-chi/chi"
)

type createScoreBody struct {
	EvaluationID   string             `json:"evaluationId"`
	BestPracticeID string             `json:"bpId"`
	Scores         map[string]float64 `json:"scores"`
}

func (h *Handlers) CreateScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var b createScoreBody

	if err := io.DecodeJSONBody(w, r, &b); err != nil {
		io.RespondError(ctx, h.Log, w, err)
		return
	}

	score, err := h.Scores.Create(ctx, scores.CreateInput{
		EvaluationID:   b.EvaluationID,
		BestPracticeID: b.BestPracticeID,
		Scores:         b.Scores,
	})
	if err != nil {
		io.RespondError(ctx, h.Log, w, io.NewRequestError(err, http.StatusBadRequest))
		return
	}
	io.RespondJSON(ctx, h.Log, w, score, http.StatusCreated)
}

func (h *Handlers) GetScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "scoreID")

	score, err := h.Scores.Get(ctx, id)
	if err != nil {
		io.RespondError(ctx, h.Log, w, err)
		return
	}
	if score == nil {
		io.RespondText(ctx, h.Log, w, "score not found", http.StatusNotFound)
		return
	}
	io.RespondJSON(ctx, h.Log, w, score, http.StatusOK)
}

func (h *Handlers) ListScoresForEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "evaluationID")

	got, err := h.Scores.ListForEvaluation(ctx, id, listLimit(r))
	if err != nil {
		io.RespondError(ctx, h.Log, w, err)
		return
	}
	io.RespondJSON(ctx, h.Log, w, got, http.StatusOK)
}
