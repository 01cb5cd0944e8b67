// Package api contains the HTTP handlers for the evaluation, credential,
// score and client endpoints.
package api

import (
	"github.com/autowar/autowar/pkg/clients"
	"github.com/autowar/autowar/pkg/credentials"
	"github.com/autowar/autowar/pkg/evaluation"
	"github.com/autowar/autowar/pkg/reports"
	"github.com/autowar/autowar/pkg/scores"
	"go.uber.org/zap"
)

// Handlers is the configuration for the handlers with required objects
type Handlers struct {
	Log         *zap.SugaredLogger
	Evaluations *evaluation.Service
	Evidence    evaluation.EvidenceStorage
	Reports     reports.Storage
	Registrar   *credentials.Registrar
	Credentials credentials.Storage
	Scores      *scores.Service
	Clients     clients.Storage
}
