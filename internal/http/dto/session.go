package dto

import (
	"time"

	"airoi.app/assessor/internal/model"
)

type CreateSessionRequest struct {
	CompanyName string `json:"company_name" binding:"required,min=1,max=255"`
}

type SessionResponse struct {
	ID          int64     `json:"id,string"`
	CompanyName string    `json:"company_name"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func ToSessionResponse(s *model.Session) *SessionResponse {
	return &SessionResponse{
		ID:          s.ID,
		CompanyName: s.CompanyName,
		Status:      string(s.Status),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

type ChatRequest struct {
	Content string `json:"content" binding:"required,min=1,max=20000"`
}

type MessageResponse struct {
	ID        int64     `json:"id,string"`
	Role      string    `json:"role"`
	Agent     *string   `json:"agent,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func ToMessageResponse(m *model.ConversationMessage) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Role:      m.Role,
		Agent:     m.Agent,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

type ConversationResponse struct {
	SessionID int64             `json:"session_id,string"`
	Messages  []MessageResponse `json:"messages"`
}

func ToConversationResponse(sessionID int64, turns []model.ConversationMessage) *ConversationResponse {
	messages := make([]MessageResponse, 0, len(turns))
	for i := range turns {
		messages = append(messages, ToMessageResponse(&turns[i]))
	}
	return &ConversationResponse{SessionID: sessionID, Messages: messages}
}
