package transcript

import (
	"context"
	"strings"
	"time"
)

// Turn is one user or assistant message in the companion conversation.
type Turn struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists the conversation so each voice turn can send the full prior
// history to the inference endpoint.
type Store interface {
	Append(ctx context.Context, turn Turn) error
	// History returns all turns in chronological order.
	History(ctx context.Context) ([]Turn, error)
	Clear(ctx context.Context) error
	Close() error
}

// NewStore creates a postgres-backed store when configured, otherwise
// in-memory.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
