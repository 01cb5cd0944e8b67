package storage

import (
	"os"
	"path"

	"github.com/asdine/storm/v3"
	"github.com/autowar/autowar/pkg/clients"
	"github.com/autowar/autowar/pkg/credentials"
	"github.com/autowar/autowar/pkg/evaluation"
	"github.com/autowar/autowar/pkg/scores"
)

// OpenBoltDB opens (creating if needed) the embedded database used by local
// mode. When file is empty it defaults to ~/.autowar/autowar.db.
func OpenBoltDB(file string) (*storm.DB, error) {
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		folder := path.Join(home, ".autowar")
		if _, err := os.Stat(folder); os.IsNotExist(err) {
			if err := os.Mkdir(folder, os.FileMode(0700)); err != nil {
				return nil, err
			}
		}
		file = path.Join(folder, "autowar.db")
	}

	db, err := storm.Open(file)
	if err != nil {
		return nil, err
	}

	for _, model := range []interface{}{
		&evaluation.Evaluation{},
		&evaluation.EvidenceEntry{},
		&credentials.Record{},
		&boltReport{},
		&scores.Score{},
		&clients.Client{},
	} {
		if err := db.Init(model); err != nil {
			return nil, err
		}
	}

	return db, nil
}
