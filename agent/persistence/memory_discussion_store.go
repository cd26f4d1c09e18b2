package persistence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryDiscussionStore is an in-memory implementation of DiscussionStore.
// Suitable for development and testing. Data is lost on restart.
type MemoryDiscussionStore struct {
	discussions map[string]*Discussion
	mu          sync.RWMutex
	closed      bool
	now         func() time.Time
}

// NewMemoryDiscussionStore creates a new in-memory discussion store
func NewMemoryDiscussionStore() *MemoryDiscussionStore {
	return &MemoryDiscussionStore{
		discussions: make(map[string]*Discussion),
		now:         time.Now,
	}
}

// Close closes the store
func (s *MemoryDiscussionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy
func (s *MemoryDiscussionStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Create stores a new discussion
func (s *MemoryDiscussionStore) Create(ctx context.Context, d *Discussion) (string, error) {
	c, err := prepareCreate(d, s.now())
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrStoreClosed
	}
	if _, exists := s.discussions[c.ID]; exists {
		return "", ErrInvalidInput
	}

	s.discussions[c.ID] = c
	commit(d, c)
	return c.ID, nil
}

// Update overwrites an existing discussion
func (s *MemoryDiscussionStore) Update(ctx context.Context, d *Discussion) error {
	c, err := prepareUpdate(d, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	old, ok := s.discussions[c.ID]
	if !ok {
		return ErrNotFound
	}
	if err := checkTransition(old.Status, c.Status); err != nil {
		return err
	}

	c.CreatedAt = old.CreatedAt
	s.discussions[c.ID] = c
	commit(d, c)
	return nil
}

// Get retrieves a discussion by ID
func (s *MemoryDiscussionStore) Get(ctx context.Context, id string) (*Discussion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	d, ok := s.discussions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

// ListByRoom returns the newest discussions of a room first
func (s *MemoryDiscussionStore) ListByRoom(ctx context.Context, roomID string, limit int) ([]*Discussion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	result := make([]*Discussion, 0)
	for _, d := range s.discussions {
		if d.RoomID == roomID {
			result = append(result, d.Clone())
		}
	}
	sortNewestFirst(result)

	if limit = normalizeLimit(limit); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// sortNewestFirst orders by CreatedAt descending, ties broken by ID
func sortNewestFirst(ds []*Discussion) {
	sort.Slice(ds, func(i, j int) bool {
		if !ds[i].CreatedAt.Equal(ds[j].CreatedAt) {
			return ds[i].CreatedAt.After(ds[j].CreatedAt)
		}
		return ds[i].ID > ds[j].ID
	})
}
