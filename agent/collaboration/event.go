package collaboration

import "time"

// EventType 协作事件类型
type EventType string

const (
	EventStateChanged EventType = "state"     // 进入 reviewing / discussing
	EventMessage      EventType = "message"   // 讨论中新增一条发言
	EventCompleted    EventType = "completed" // 协作结束，携带 Result
)

// Event 协作过程中的事件，供 WebSocket 推送
type Event struct {
	Type         EventType `json:"type"`
	RoomID       string    `json:"room_id"`
	State        State     `json:"state,omitempty"`
	DiscussionID string    `json:"discussion_id,omitempty"`
	Responder    string    `json:"responder,omitempty"`
	Content      string    `json:"content,omitempty"`
	Round        int       `json:"round,omitempty"`
	Result       *Result   `json:"result,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
