package model

import "time"

// Conversation role constants.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Agent names recorded on assistant turns.
const (
	AgentDiscovery = "discovery"
)

// ConversationMessage is one persisted turn of a session's conversation.
type ConversationMessage struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	Role      string    `json:"role"`            // user | assistant
	Agent     *string   `json:"agent,omitempty"` // set on assistant turns
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
