package persistence

import (
	"time"

	"github.com/google/uuid"
)

// DiscussionStatus is the lifecycle state of a discussion.
type DiscussionStatus string

const (
	StatusOngoing  DiscussionStatus = "ongoing"
	StatusResolved DiscussionStatus = "resolved"
	StatusTimeout  DiscussionStatus = "timeout"
)

// Valid reports whether s is a known status.
func (s DiscussionStatus) Valid() bool {
	switch s {
	case StatusOngoing, StatusResolved, StatusTimeout:
		return true
	}
	return false
}

// Terminal reports whether s is resolved or timeout.
func (s DiscussionStatus) Terminal() bool {
	return s == StatusResolved || s == StatusTimeout
}

// DiscussionMessage is one contribution to a discussion.
type DiscussionMessage struct {
	Responder string    `json:"responder"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Discussion records a negotiation between responders that disagreed.
type Discussion struct {
	ID           string              `json:"id"`
	RoomID       string              `json:"room_id"`
	Participants []string            `json:"participants"`
	Topic        string              `json:"topic"`
	Messages     []DiscussionMessage `json:"messages"`
	Status       DiscussionStatus    `json:"status"`
	Consensus    string              `json:"consensus,omitempty"`
	ResolvedAt   *time.Time          `json:"resolved_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// AddMessage appends a message. Terminal discussions are read-only.
func (d *Discussion) AddMessage(responder, content string, at time.Time) error {
	if d.Status.Terminal() {
		return ErrInvalidTransition
	}
	d.Messages = append(d.Messages, DiscussionMessage{Responder: responder, Content: content, Timestamp: at})
	return nil
}

// Resolve marks the discussion resolved with the agreed consensus.
func (d *Discussion) Resolve(consensus string, at time.Time) error {
	return d.finish(StatusResolved, consensus, at)
}

// Expire marks the discussion timed out; consensus is the best answer so far.
func (d *Discussion) Expire(consensus string, at time.Time) error {
	return d.finish(StatusTimeout, consensus, at)
}

func (d *Discussion) finish(status DiscussionStatus, consensus string, at time.Time) error {
	if d.Status.Terminal() {
		return ErrInvalidTransition
	}
	d.Status = status
	d.Consensus = consensus
	d.ResolvedAt = &at
	return nil
}

// LastMessage returns the most recent message, if any.
func (d *Discussion) LastMessage() (DiscussionMessage, bool) {
	if len(d.Messages) == 0 {
		return DiscussionMessage{}, false
	}
	return d.Messages[len(d.Messages)-1], true
}

// Clone returns a deep copy.
func (d *Discussion) Clone() *Discussion {
	if d == nil {
		return nil
	}
	c := *d
	c.Participants = append([]string(nil), d.Participants...)
	c.Messages = append([]DiscussionMessage(nil), d.Messages...)
	if d.ResolvedAt != nil {
		t := *d.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

func newDiscussionID() string {
	return uuid.New().String()
}
