package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/autowar/autowar/api/io"
	"github.com/autowar/autowar/pkg/evaluation"
	"github.com/go-chi/chi"
)

const defaultListLimit = 50

// CreateEvaluation creates a PENDING evaluation and hands it to the work
// queue (or runs the checks synchronously when no queue is configured).
func (h *Handlers) CreateEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var input evaluation.CreateInput

	if err := io.DecodeJSONBody(w, r, &input); err != nil {
		io.RespondError(ctx, h.Log, w, err)
		return
	}
	if input.ClientID == "" {
		io.RespondError(ctx, h.Log, w, io.NewRequestError(errors.New("clientId is required"), http.StatusBadRequest))
		return
	}

	e, err := h.Evaluations.Create(ctx, input)
	if err != nil {
		io.RespondError(ctx, h.Log, w, err)
		return
	}
	io.RespondJSON(ctx, h.Log, w, e, http.StatusCreated)
}

func (h *Handlers) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "evaluationID")

	e, err := h.Evaluations.Get(ctx, id)
	if err != nil {
		io.RespondError(ctx, h.Log, w, err)
		return
	}
	if e == nil {
		io.RespondText(ctx, h.Log, w, "evaluation not found", http.StatusNotFound)
		return
	}
	io.RespondJSON(ctx, h.Log, w, e, http.StatusOK)
}

func (h *Handlers) ListEvaluationsForClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := chi.URLParam(r, "clientID")

	evals, err := h.Evaluations.ListForClient(ctx, clientID, listLimit(r))
	if err != nil {
		io.RespondError(ctx, h.Log, w, err)
		return
	}
	io.RespondJSON(ctx, h.Log, w, evals, http.StatusOK)
}

func (h *Handlers) ListEvidenceForEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "evaluationID")

	entries, err := h.Evidence.ListForEvaluation(ctx, id)
	if err != nil {
		io.RespondError(ctx, h.Log, w, err)
		return
	}
	io.RespondJSON(ctx, h.Log, w, entries, http.StatusOK)
}

func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "evaluationID")

	rec, err := h.Reports.Get(ctx, id)
	if err != nil {
		io.RespondError(ctx, h.Log, w, err)
		return
	}
	if rec == nil {
		io.RespondText(ctx, h.Log, w, "report not found", http.StatusNotFound)
		return
	}
	io.RespondJSON(ctx, h.Log, w, rec, http.StatusOK)
}

func listLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			return limit
		}
	}
	return defaultListLimit
}
