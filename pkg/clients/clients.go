// Package clients holds the registry of client accounts evaluations run
// against.
package clients

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Client is one registered client organisation. IDs are caller-assigned so
// external systems can use their own identifiers.
type Client struct {
	ID        string `json:"id" dynamodbav:"id"`
	Name      string `json:"name" dynamodbav:"name"`
	Industry  string `json:"industry,omitempty" dynamodbav:"industry,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty" dynamodbav:"created_at,omitempty"`
}

// Storage persists client records.
type Storage interface {
	Put(ctx context.Context, c Client) error
	Get(ctx context.Context, id string) (*Client, error)
	List(ctx context.Context) ([]Client, error)
}

// Register validates and stores a client record.
func Register(ctx context.Context, store Storage, c Client, now time.Time) (*Client, error) {
	if c.ID == "" {
		return nil, errors.New("client id is required")
	}
	if c.Name == "" {
		return nil, errors.New("client name is required")
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = now.Unix()
	}
	if err := store.Put(ctx, c); err != nil {
		return nil, errors.Wrap(err, "persisting client record")
	}
	return &c, nil
}
