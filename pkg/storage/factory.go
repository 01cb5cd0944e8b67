package storage

import (
	"flag"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/pkg/errors"
)

// Factory builds the storage layer from CLI flags.
type Factory struct {
	Backend  string
	BoltFile string
	Tables   Tables
}

func NewFactory() *Factory {
	return &Factory{}
}

// AddFlags configures CLI flags
func (f *Factory) AddFlags(fs *flag.FlagSet) {
	fs.StringVar(&f.Backend, "storage-backend", "dynamodb", "storage backend (must be 'dynamodb', 'bolt' or 'inmemory')")
	fs.StringVar(&f.BoltFile, "storage-bolt-file", "", "the BoltDB file path (only for the bolt backend, defaults to ~/.autowar/autowar.db)")
	fs.StringVar(&f.Tables.Evaluations, "storage-dynamodb-evaluations-table", "autowar-evaluations", "the evaluations table name (only for the DynamoDB backend)")
	fs.StringVar(&f.Tables.Evidence, "storage-dynamodb-evidence-table", "autowar-evidence", "the evidence table name (only for the DynamoDB backend)")
	fs.StringVar(&f.Tables.Credentials, "storage-dynamodb-credentials-table", "autowar-credentials", "the credentials table name (only for the DynamoDB backend)")
	fs.StringVar(&f.Tables.Reports, "storage-dynamodb-reports-table", "autowar-reports", "the reports table name (only for the DynamoDB backend)")
	fs.StringVar(&f.Tables.Scores, "storage-dynamodb-scores-table", "autowar-scores", "the scores table name (only for the DynamoDB backend)")
	fs.StringVar(&f.Tables.Clients, "storage-dynamodb-clients-table", "autowar-clients", "the clients table name (only for the DynamoDB backend)")
}

// GetStorage builds the storage layer for the configured backend. The AWS
// config is only used by the DynamoDB backend.
func (f *Factory) GetStorage(cfg aws.Config) (*Storage, error) {
	switch f.Backend {
	case "dynamodb":
		return BuildDynamoDBStorage(dynamodb.NewFromConfig(cfg), f.Tables), nil
	case "bolt":
		db, err := OpenBoltDB(f.BoltFile)
		if err != nil {
			return nil, errors.Wrap(err, "opening bolt database")
		}
		return BuildBoltStorage(db), nil
	case "inmemory":
		return BuildInMemoryStorage(), nil
	default:
		return nil, errors.Errorf("storage backend %s is not supported (must be 'dynamodb', 'bolt' or 'inmemory')", f.Backend)
	}
}
