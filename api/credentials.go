package api

import (
	"errors"
	"net/http"

	"github.com/autowar/autowar/api/io"
	"github.com/autowar/autowar/pkg/credentials"
	"github.com/go-chi/chi"
)

type registerCredentialBody struct {
	ClientID string `json:"clientId"`

	// role registration
	RoleARN         string `json:"roleArn,omitempty"`
	ExternalID      string `json:"externalId,omitempty"`
	DurationSeconds int32  `json:"durationSeconds,omitempty"`

	// static key registration
	AccessKeyID     string `json:"accessKeyId,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty"`
	SessionToken    string `json:"sessionToken,omitempty"`
	Region          string `json:"region,omitempty"`
	IAMUser         string `json:"iamUser,omitempty"`
	SaveSecret      bool   `json:"saveSecret,omitempty"`

	RotationIntervalDays int `json:"rotationIntervalDays,omitempty"`
}

// RegisterCredential validates and stores a delegated credential, either an
// assumable role or a static access key pair.
func (h *Handlers) RegisterCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var b registerCredentialBody

	if err := io.DecodeJSONBody(w, r, &b); err != nil {
		io.RespondError(ctx, h.Log, w, err)
		return
	}
	if b.ClientID == "" {
		io.RespondError(ctx, h.Log, w, io.NewRequestError(errors.New("clientId is required"), http.StatusBadRequest))
		return
	}

	var rec *credentials.Record
	var err error
	switch {
	case b.RoleARN != "":
		rec, err = h.Registrar.RegisterRole(ctx, credentials.RegisterRoleInput{
			ClientID:             b.ClientID,
			RoleARN:              b.RoleARN,
			ExternalID:           b.ExternalID,
			DurationSeconds:      b.DurationSeconds,
			RotationIntervalDays: b.RotationIntervalDays,
		})
	case b.AccessKeyID != "" && b.SecretAccessKey != "":
		rec, err = h.Registrar.RegisterKeys(ctx, credentials.RegisterKeysInput{
			ClientID:             b.ClientID,
			AccessKeyID:          b.AccessKeyID,
			SecretAccessKey:      b.SecretAccessKey,
			SessionToken:         b.SessionToken,
			Region:               b.Region,
			IAMUser:              b.IAMUser,
			SaveSecret:           b.SaveSecret,
			RotationIntervalDays: b.RotationIntervalDays,
		})
	default:
		err = io.NewRequestError(errors.New("either roleArn or accessKeyId and secretAccessKey must be provided"), http.StatusBadRequest)
	}
	if err != nil {
		io.RespondError(ctx, h.Log, w, err)
		return
	}

	// never echo key material back; the record carries only references
	io.RespondJSON(ctx, h.Log, w, rec, http.StatusCreated)
}

func (h *Handlers) GetCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "credentialID")

	rec, err := h.Credentials.Get(ctx, id)
	if err != nil {
		io.RespondError(ctx, h.Log, w, err)
		return
	}
	if rec == nil {
		io.RespondText(ctx, h.Log, w, "credential not found", http.StatusNotFound)
		return
	}
	io.RespondJSON(ctx, h.Log, w, rec, http.StatusOK)
}
