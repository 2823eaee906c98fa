package model

import "time"

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusAssessing SessionStatus = "assessing"
	SessionStatusAssessed  SessionStatus = "assessed"
)

// Session is one company's discovery conversation and the assessments run over it.
type Session struct {
	ID          int64         `json:"id"`
	CompanyName string        `json:"company_name"`
	Status      SessionStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
