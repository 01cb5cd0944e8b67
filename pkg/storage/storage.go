// Package storage provides the persistence backends for evaluations,
// evidence, credentials, reports, scores and clients.
package storage

import (
	"github.com/asdine/storm/v3"
	"github.com/autowar/autowar/pkg/clients"
	"github.com/autowar/autowar/pkg/credentials"
	"github.com/autowar/autowar/pkg/evaluation"
	"github.com/autowar/autowar/pkg/reports"
	"github.com/autowar/autowar/pkg/scores"
)

// Tables names the DynamoDB tables backing each store.
type Tables struct {
	Evaluations string
	Evidence    string
	Credentials string
	Reports     string
	Scores      string
	Clients     string
}

// Storage aggregates the application's stores so commands can wire one
// value through their components.
type Storage struct {
	Evaluations evaluation.Storage
	Evidence    evaluation.EvidenceStorage
	Credentials credentials.Storage
	Reports     reports.Storage
	Scores      scores.Storage
	Clients     clients.Storage
}

// BuildDynamoDBStorage builds the storage layer with DynamoDB as the driver.
func BuildDynamoDBStorage(client DynamoDBAPI, tables Tables) *Storage {
	return &Storage{
		Evaluations: NewDynamoDBEvaluationStorage(client, tables.Evaluations),
		Evidence:    NewDynamoDBEvidenceStorage(client, tables.Evidence),
		Credentials: NewDynamoDBCredentialStorage(client, tables.Credentials),
		Reports:     NewDynamoDBReportStorage(client, tables.Reports),
		Scores:      NewDynamoDBScoreStorage(client, tables.Scores),
		Clients:     NewDynamoDBClientStorage(client, tables.Clients),
	}
}

// BuildBoltStorage builds the storage layer with the embedded BoltDB driver
// used by local mode.
func BuildBoltStorage(db *storm.DB) *Storage {
	return &Storage{
		Evaluations: NewBoltEvaluationStorage(db),
		Evidence:    NewBoltEvidenceStorage(db),
		Credentials: NewBoltCredentialStorage(db),
		Reports:     NewBoltReportStorage(db),
		Scores:      NewBoltScoreStorage(db),
		Clients:     NewBoltClientStorage(db),
	}
}

// BuildInMemoryStorage builds the storage layer using in-memory maps.
func BuildInMemoryStorage() *Storage {
	return &Storage{
		Evaluations: NewInMemoryEvaluationStorage(),
		Evidence:    NewInMemoryEvidenceStorage(),
		Credentials: NewInMemoryCredentialStorage(),
		Reports:     NewInMemoryReportStorage(),
		Scores:      NewInMemoryScoreStorage(),
		Clients:     NewInMemoryClientStorage(),
	}
}
