// Package types provides core types used across CHIKA.
// This package has ZERO dependencies on other CHIKA packages to avoid circular imports.
package types

import (
	"strings"
	"time"
)

// Role represents the role of a conversation participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AuthorUser is the author label of turns written by the human in the room.
const AuthorUser = "user"

// Turn is one entry of a room conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Author    string    `json:"author,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// NewUserTurn creates a turn written by the user.
func NewUserTurn(content string) Turn {
	return Turn{Role: RoleUser, Author: AuthorUser, Content: content, Timestamp: time.Now()}
}

// NewResponderTurn creates an assistant turn attributed to a responder.
func NewResponderTurn(responder, content string) Turn {
	return Turn{Role: RoleAssistant, Author: responder, Content: content, Timestamp: time.Now()}
}

// Responder names known to the service.
const (
	ResponderClaude = "claude"
	ResponderGPT    = "gpt"
	ResponderGemini = "gemini"
	ResponderGrok   = "grok"
	ResponderOllama = "ollama"
)

// KnownResponders lists every responder a room may activate.
var KnownResponders = []string{
	ResponderClaude,
	ResponderGPT,
	ResponderGemini,
	ResponderGrok,
	ResponderOllama,
}

// IsKnownResponder reports whether name (case-insensitive) is a known responder.
func IsKnownResponder(name string) bool {
	name = strings.ToLower(name)
	for _, r := range KnownResponders {
		if r == name {
			return true
		}
	}
	return false
}
