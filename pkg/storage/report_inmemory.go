package storage

import (
	"context"
	"sync"

	"github.com/autowar/autowar/pkg/reports"
)

type InMemoryReportStorage struct {
	sync.RWMutex
	records map[string]reports.Record
}

func NewInMemoryReportStorage() *InMemoryReportStorage {
	return &InMemoryReportStorage{records: map[string]reports.Record{}}
}

func (s *InMemoryReportStorage) PutPending(ctx context.Context, evaluationID string, createdAt int64) error {
	s.Lock()
	defer s.Unlock()
	s.records[evaluationID] = reports.Record{
		EvaluationID: evaluationID,
		Status:       reports.StatusPending,
		CreatedAt:    createdAt,
	}
	return nil
}

func (s *InMemoryReportStorage) Get(ctx context.Context, evaluationID string) (*reports.Record, error) {
	s.RLock()
	defer s.RUnlock()
	r, ok := s.records[evaluationID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *InMemoryReportStorage) MarkCompleted(ctx context.Context, evaluationID, location string, generatedAt int64) error {
	s.Lock()
	defer s.Unlock()
	r := s.records[evaluationID]
	r.EvaluationID = evaluationID
	r.Status = reports.StatusCompleted
	r.Location = location
	r.GeneratedAt = generatedAt
	s.records[evaluationID] = r
	return nil
}
