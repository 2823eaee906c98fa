package dto

import (
	"time"

	"airoi.app/assessor/internal/model"
)

type AssessmentRequestedResponse struct {
	AssessmentID int64  `json:"assessment_id,string"`
	Status       string `json:"status"`
}

type AssessmentResponse struct {
	ID            int64                    `json:"id,string"`
	SessionID     int64                    `json:"session_id,string"`
	Status        string                   `json:"status"`
	Package       *model.AssessmentPackage `json:"package,omitempty"`
	FailedState   *string                  `json:"failed_state,omitempty"`
	FailureReason *string                  `json:"failure_reason,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	CompletedAt   *time.Time               `json:"completed_at,omitempty"`
}

func ToAssessmentResponse(a *model.Assessment) *AssessmentResponse {
	return &AssessmentResponse{
		ID:            a.ID,
		SessionID:     a.SessionID,
		Status:        string(a.Status),
		Package:       a.Package,
		FailedState:   a.FailedState,
		FailureReason: a.FailureReason,
		CreatedAt:     a.CreatedAt,
		CompletedAt:   a.CompletedAt,
	}
}
