package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
)

// discussionRecord is the row layout of the discussions table. Participants
// and messages are stored as JSON text so the schema stays portable across
// postgres, mysql and sqlite.
type discussionRecord struct {
	ID           string     `gorm:"primaryKey;size:64"`
	RoomID       string     `gorm:"size:128;index:idx_discussions_room_created,priority:1;not null"`
	Participants string     `gorm:"type:text;not null"`
	Topic        string     `gorm:"type:text;not null"`
	Messages     string     `gorm:"type:text;not null"`
	Status       string     `gorm:"size:16;index;not null"`
	Consensus    string     `gorm:"type:text"`
	ResolvedAt   *time.Time `gorm:"column:resolved_at"`
	CreatedAt    time.Time  `gorm:"index:idx_discussions_room_created,priority:2;not null"`
	UpdatedAt    time.Time  `gorm:"not null"`
}

func (discussionRecord) TableName() string { return "discussions" }

func toRecord(d *Discussion) (*discussionRecord, error) {
	participants, err := json.Marshal(d.Participants)
	if err != nil {
		return nil, err
	}
	messages := d.Messages
	if messages == nil {
		messages = []DiscussionMessage{}
	}
	msgs, err := json.Marshal(messages)
	if err != nil {
		return nil, err
	}
	return &discussionRecord{
		ID:           d.ID,
		RoomID:       d.RoomID,
		Participants: string(participants),
		Topic:        d.Topic,
		Messages:     string(msgs),
		Status:       string(d.Status),
		Consensus:    d.Consensus,
		ResolvedAt:   d.ResolvedAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

func (r *discussionRecord) toDiscussion() (*Discussion, error) {
	d := &Discussion{
		ID:         r.ID,
		RoomID:     r.RoomID,
		Topic:      r.Topic,
		Status:     DiscussionStatus(r.Status),
		Consensus:  r.Consensus,
		ResolvedAt: r.ResolvedAt,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.Participants), &d.Participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Messages), &d.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages of %s: %w", r.ID, err)
	}
	return d, nil
}

// SQLDiscussionStore stores discussions in a relational table through gorm.
// The *gorm.DB is owned by the caller; Close only detaches the store.
type SQLDiscussionStore struct {
	db     *gorm.DB
	mu     sync.RWMutex
	closed bool
	now    func() time.Time
}

// NewSQLDiscussionStore creates a gorm-backed discussion store. When
// autoMigrate is true the table is created or altered with gorm's
// AutoMigrate; production deployments run the versioned migrations instead.
func NewSQLDiscussionStore(db *gorm.DB, autoMigrate bool) (*SQLDiscussionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sql discussion store requires a database")
	}
	if autoMigrate {
		if err := db.AutoMigrate(&discussionRecord{}); err != nil {
			return nil, fmt.Errorf("failed to migrate discussions table: %w", err)
		}
	}
	return &SQLDiscussionStore{db: db, now: time.Now}, nil
}

func (s *SQLDiscussionStore) conn(ctx context.Context) (*gorm.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.db.WithContext(ctx), nil
}

// Close detaches the store
func (s *SQLDiscussionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks the underlying connection pool
func (s *SQLDiscussionStore) Ping(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Create inserts a new discussion row
func (s *SQLDiscussionStore) Create(ctx context.Context, d *Discussion) (string, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return "", err
	}
	c, err := prepareCreate(d, s.now())
	if err != nil {
		return "", err
	}
	rec, err := toRecord(c)
	if err != nil {
		return "", err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&discussionRecord{}).Where("id = ?", c.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrInvalidInput
		}
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to insert discussion: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	commit(d, c)
	return c.ID, nil
}

// Update overwrites an existing row inside a transaction that also checks
// the status transition.
func (s *SQLDiscussionStore) Update(ctx context.Context, d *Discussion) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	c, err := prepareUpdate(d, s.now())
	if err != nil {
		return err
	}
	rec, err := toRecord(c)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var old discussionRecord
		if err := tx.Select("id", "status", "created_at").Where("id = ?", c.ID).Take(&old).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := checkTransition(DiscussionStatus(old.Status), c.Status); err != nil {
			return err
		}
		c.CreatedAt = old.CreatedAt
		return tx.Model(&discussionRecord{}).Where("id = ?", c.ID).Updates(map[string]any{
			"participants": rec.Participants,
			"topic":        rec.Topic,
			"messages":     rec.Messages,
			"status":       rec.Status,
			"consensus":    rec.Consensus,
			"resolved_at":  rec.ResolvedAt,
			"updated_at":   rec.UpdatedAt,
		}).Error
	})
	if err != nil {
		return err
	}
	commit(d, c)
	return nil
}

// Get retrieves a discussion by ID
func (s *SQLDiscussionStore) Get(ctx context.Context, id string) (*Discussion, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rec discussionRecord
	if err := db.Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec.toDiscussion()
}

// ListByRoom returns the newest discussions of a room first
func (s *SQLDiscussionStore) ListByRoom(ctx context.Context, roomID string, limit int) ([]*Discussion, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var recs []discussionRecord
	err = db.Where("room_id = ?", roomID).
		Order("created_at DESC").Order("id DESC").
		Limit(normalizeLimit(limit)).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	result := make([]*Discussion, 0, len(recs))
	for i := range recs {
		d, err := recs[i].toDiscussion()
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, nil
}
