package store

import (
	"context"
	"errors"

	"airoi.app/assessor/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional update matched no row because
// the entity is not in the expected state.
var ErrConflict = errors.New("conflict")

// SessionStore defines the contract for session data access
type SessionStore interface {
	GetByID(ctx context.Context, id int64) (*model.Session, error)
	Create(ctx context.Context, session *model.Session) error
	UpdateStatus(ctx context.Context, id int64, status model.SessionStatus) error
	// MarkAssessing moves a session to assessing unless it already is;
	// ErrConflict means another request got there first.
	MarkAssessing(ctx context.Context, id int64) error
}

// ConversationStore defines the contract for conversation turn data access.
// Turns are append-only and listed in the order they were added.
type ConversationStore interface {
	Append(ctx context.Context, msg *model.ConversationMessage) error
	ListBySession(ctx context.Context, sessionID int64) ([]model.ConversationMessage, error)
}

// AssessmentStore defines the contract for assessment data access
type AssessmentStore interface {
	GetByID(ctx context.Context, id int64) (*model.Assessment, error)
	GetLatestBySession(ctx context.Context, sessionID int64) (*model.Assessment, error)
	Create(ctx context.Context, assessment *model.Assessment) error
	MarkRunning(ctx context.Context, id int64) error // only from pending or running
	Complete(ctx context.Context, id int64, pkg *model.AssessmentPackage) error
	Fail(ctx context.Context, id int64, failedState, reason string) error
}
