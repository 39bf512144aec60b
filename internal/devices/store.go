package devices

import (
	"context"
	"strings"
	"time"
)

// DefaultCap bounds the remembered device list.
const DefaultCap = 5

// RememberedDevice is a durable record of a previously connected device. It
// is a reconnect hint, not a reconnect token.
type RememberedDevice struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	LastConnectedAt time.Time `json:"last_connected_at"`
}

// Store keeps a bounded, most-recently-connected-first device list.
//
// Load never fails on absent or unreadable storage; it returns an empty list.
// Upsert dedupes by ID, moves the entry to the front, and evicts beyond the
// bound. Writes are all-or-nothing: a failed write leaves the prior list
// intact.
type Store interface {
	Load(ctx context.Context) ([]RememberedDevice, error)
	Upsert(ctx context.Context, device RememberedDevice) error
	Remove(ctx context.Context, id string) error
	Close() error
}

// NewStore creates a sqlite-backed store when a path is configured, otherwise
// in-memory.
func NewStore(path string, cap int) (Store, error) {
	if strings.TrimSpace(path) == "" {
		return NewInMemoryStore(cap), nil
	}
	return NewSQLiteStore(path, cap)
}
