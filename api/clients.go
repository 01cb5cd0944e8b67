package api

import (
	"net/http"
	"time"

	"github.com/autowar/autowar/api/io"
	"github.com/autowar/autowar/pkg/clients"
)

func (h *Handlers) CreateClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var c clients.Client

	if err := io.DecodeJSONBody(w, r, &c); err != nil {
		io.RespondError(ctx, h.Log, w, err)
		return
	}

	created, err := clients.Register(ctx, h.Clients, c, time.Now())
	if err != nil {
		io.RespondError(ctx, h.Log, w, io.NewRequestError(err, http.StatusBadRequest))
		return
	}
	io.RespondJSON(ctx, h.Log, w, created, http.StatusCreated)
}

type listClientsResponse struct {
	Count int              `json:"count"`
	Items []clients.Client `json:"items"`
}

func (h *Handlers) ListClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := h.Clients.List(ctx)
	if err != nil {
		io.RespondError(ctx, h.Log, w, err)
		return
	}
	io.RespondJSON(ctx, h.Log, w, listClientsResponse{Count: len(items), Items: items}, http.StatusOK)
}
