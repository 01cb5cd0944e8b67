package clients

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memClientStore struct {
	mu      sync.Mutex
	clients map[string]Client
}

func (s *memClientStore) Put(ctx context.Context, c Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients == nil {
		s.clients = map[string]Client{}
	}
	s.clients[c.ID] = c
	return nil
}

func (s *memClientStore) Get(ctx context.Context, id string) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *memClientStore) List(ctx context.Context) ([]Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Client{}
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out, nil
}

func TestRegister(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := &memClientStore{}

	c, err := Register(context.Background(), store, Client{ID: "client-1", Name: "Acme", Industry: "retail"}, now)
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), c.CreatedAt)

	stored, err := store.Get(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, *c, *stored)
}

func TestRegister_Validation(t *testing.T) {
	store := &memClientStore{}
	now := time.Now()

	_, err := Register(context.Background(), store, Client{Name: "Acme"}, now)
	assert.Error(t, err)

	_, err = Register(context.Background(), store, Client{ID: "client-1"}, now)
	assert.Error(t, err)
}
