// Package persistence provides persistent storage for collaboration
// discussions.
//
// Supported backends:
// - Memory: For development and testing (default)
// - File: For single-node deployments
// - Redis: For distributed deployments
// - SQL: gorm-backed table for postgres, mysql and sqlite
package persistence

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound          = errors.New("not found")
	ErrStoreClosed       = errors.New("store is closed")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid discussion status transition")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQL    StoreType = "sql"
)

const (
	// DefaultListLimit is used when ListByRoom is called with limit <= 0
	DefaultListLimit = 50
	// MaxListLimit caps ListByRoom results
	MaxListLimit = 500
)

// StoreConfig is the configuration shared by all store implementations
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type"`

	// BaseDir is the base directory for file-based storage
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// KeyPrefix is the prefix for all Redis keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`

	// TTL expires Redis entries; zero keeps them forever
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:      StoreTypeMemory,
		BaseDir:   "./data",
		KeyPrefix: "chika:",
	}
}

// Store is the base interface for all persistent stores
type Store interface {
	// Close closes the store and releases resources
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}

// DiscussionStore persists collaboration discussions.
type DiscussionStore interface {
	Store

	// Create stores a new discussion and returns its ID. An empty ID is
	// replaced with a generated one; timestamps are set by the store.
	Create(ctx context.Context, d *Discussion) (string, error)

	// Update overwrites an existing discussion. Moving a discussion out of
	// a terminal status fails with ErrInvalidTransition.
	Update(ctx context.Context, d *Discussion) error

	// Get returns a copy of the discussion with the given ID
	Get(ctx context.Context, id string) (*Discussion, error)

	// ListByRoom returns the newest discussions of a room first
	ListByRoom(ctx context.Context, roomID string, limit int) ([]*Discussion, error)
}

// prepareCreate validates d and returns a copy with ID, status and timestamps
// filled. d itself is left untouched until commit.
func prepareCreate(d *Discussion, now time.Time) (*Discussion, error) {
	if d == nil || d.RoomID == "" || len(d.Participants) < 2 {
		return nil, ErrInvalidInput
	}
	if d.ID != "" && !validID(d.ID) {
		return nil, ErrInvalidInput
	}
	if d.Status != "" && !d.Status.Valid() {
		return nil, ErrInvalidInput
	}

	c := d.Clone()
	if c.ID == "" {
		c.ID = newDiscussionID()
	}
	if c.Status == "" {
		c.Status = StatusOngoing
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	return c, nil
}

// prepareUpdate validates d and returns a copy with UpdatedAt bumped.
func prepareUpdate(d *Discussion, now time.Time) (*Discussion, error) {
	if d == nil || !validID(d.ID) || !d.Status.Valid() {
		return nil, ErrInvalidInput
	}
	c := d.Clone()
	c.UpdatedAt = now
	return c, nil
}

// commit copies the store-assigned fields of a written record back to the
// caller's discussion.
func commit(d, written *Discussion) {
	d.ID = written.ID
	d.Status = written.Status
	d.CreatedAt = written.CreatedAt
	d.UpdatedAt = written.UpdatedAt
}

// checkTransition rejects status changes out of a terminal state.
func checkTransition(from, to DiscussionStatus) error {
	if from.Terminal() && from != to {
		return ErrInvalidTransition
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// validID accepts generated UUIDs and similar opaque tokens. It keeps IDs
// safe to use as file names and Redis key suffixes.
func validID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
