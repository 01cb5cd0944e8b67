package api

import (
	"net/http"

	"github.com/autowar/autowar/api/io"
)

// Health validates the service is healthy and ready to accept requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := struct {
		Status string `json:"status"`
	}{Status: "ok"}

	io.RespondJSON(ctx, h.Log, w, health, http.StatusOK)
}
