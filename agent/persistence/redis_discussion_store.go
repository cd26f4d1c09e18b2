package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDiscussionStore is a Redis-based implementation of DiscussionStore.
// Suitable for distributed deployments. Each discussion is a JSON string;
// a per-room sorted set scored by creation time serves ListByRoom.
type RedisDiscussionStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

// NewRedisDiscussionStore creates a Redis-based discussion store on an
// existing client. The client is owned by the caller.
func NewRedisDiscussionStore(client redis.UniversalClient, config StoreConfig) *RedisDiscussionStore {
	keyPrefix := config.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "chika:"
	}
	return &RedisDiscussionStore{
		client:    client,
		keyPrefix: keyPrefix + "discussion:",
		ttl:       config.TTL,
		now:       time.Now,
	}
}

// Close is a no-op; the client is shared.
func (s *RedisDiscussionStore) Close() error { return nil }

// Ping checks if the store is healthy
func (s *RedisDiscussionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// dataKey returns the Redis key for a discussion
func (s *RedisDiscussionStore) dataKey(id string) string {
	return s.keyPrefix + "data:" + id
}

// roomKey returns the Redis key for a room's discussion index
func (s *RedisDiscussionStore) roomKey(roomID string) string {
	return s.keyPrefix + "room:" + roomID
}

// Create stores a new discussion
func (s *RedisDiscussionStore) Create(ctx context.Context, d *Discussion) (string, error) {
	c, err := prepareCreate(d, s.now())
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal discussion: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.dataKey(c.ID), data, s.ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInvalidInput
	}

	score := float64(c.CreatedAt.UnixNano())
	if err := s.client.ZAdd(ctx, s.roomKey(c.RoomID), redis.Z{Score: score, Member: c.ID}).Err(); err != nil {
		return "", err
	}
	commit(d, c)
	return c.ID, nil
}

// Update overwrites an existing discussion
func (s *RedisDiscussionStore) Update(ctx context.Context, d *Discussion) error {
	c, err := prepareUpdate(d, s.now())
	if err != nil {
		return err
	}

	old, err := s.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	if err := checkTransition(old.Status, c.Status); err != nil {
		return err
	}

	c.CreatedAt = old.CreatedAt
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal discussion: %w", err)
	}
	if err := s.client.Set(ctx, s.dataKey(c.ID), data, s.ttl).Err(); err != nil {
		return err
	}
	commit(d, c)
	return nil
}

// Get retrieves a discussion by ID
func (s *RedisDiscussionStore) Get(ctx context.Context, id string) (*Discussion, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	data, err := s.client.Get(ctx, s.dataKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var d Discussion
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByRoom returns the newest discussions of a room first. Index entries
// whose data has expired are pruned.
func (s *RedisDiscussionStore) ListByRoom(ctx context.Context, roomID string, limit int) ([]*Discussion, error) {
	limit = normalizeLimit(limit)

	ids, err := s.client.ZRevRange(ctx, s.roomKey(roomID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*Discussion, 0, len(ids))
	var stale []any
	for _, id := range ids {
		d, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}

	if len(stale) > 0 {
		s.client.ZRem(ctx, s.roomKey(roomID), stale...)
	}
	return result, nil
}
