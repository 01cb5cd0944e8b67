package storage

import (
	"context"
	"sync"

	"github.com/autowar/autowar/pkg/clients"
)

type InMemoryClientStorage struct {
	sync.RWMutex
	clients map[string]clients.Client
}

func NewInMemoryClientStorage() *InMemoryClientStorage {
	return &InMemoryClientStorage{clients: map[string]clients.Client{}}
}

func (s *InMemoryClientStorage) Put(ctx context.Context, c clients.Client) error {
	s.Lock()
	defer s.Unlock()
	s.clients[c.ID] = c
	return nil
}

func (s *InMemoryClientStorage) Get(ctx context.Context, id string) (*clients.Client, error) {
	s.RLock()
	defer s.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *InMemoryClientStorage) List(ctx context.Context) ([]clients.Client, error) {
	s.RLock()
	defer s.RUnlock()
	out := []clients.Client{}
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out, nil
}
