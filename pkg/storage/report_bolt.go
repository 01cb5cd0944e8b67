package storage

import (
	"context"

	"github.com/asdine/storm/v3"
	"github.com/autowar/autowar/pkg/reports"
	"github.com/pkg/errors"
)

// boltReport wraps a report record with the identifier field storm keys on.
type boltReport struct {
	ID     string `storm:"id"`
	Record reports.Record
}

type BoltReportStorage struct {
	db *storm.DB
}

func NewBoltReportStorage(db *storm.DB) *BoltReportStorage {
	return &BoltReportStorage{db: db}
}

func (s *BoltReportStorage) PutPending(ctx context.Context, evaluationID string, createdAt int64) error {
	r := boltReport{
		ID: evaluationID,
		Record: reports.Record{
			EvaluationID: evaluationID,
			Status:       reports.StatusPending,
			CreatedAt:    createdAt,
		},
	}
	return errors.Wrap(s.db.Save(&r), "boltdb save report record")
}

func (s *BoltReportStorage) Get(ctx context.Context, evaluationID string) (*reports.Record, error) {
	var r boltReport
	err := s.db.One("ID", evaluationID, &r)
	if err == storm.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "boltdb get report record")
	}
	return &r.Record, nil
}

func (s *BoltReportStorage) MarkCompleted(ctx context.Context, evaluationID, location string, generatedAt int64) error {
	var r boltReport
	err := s.db.One("ID", evaluationID, &r)
	if err != nil && err != storm.ErrNotFound {
		return errors.Wrap(err, "boltdb get report record")
	}
	r.ID = evaluationID
	r.Record.EvaluationID = evaluationID
	r.Record.Status = reports.StatusCompleted
	r.Record.Location = location
	r.Record.GeneratedAt = generatedAt
	return errors.Wrap(s.db.Save(&r), "boltdb save report record")
}
