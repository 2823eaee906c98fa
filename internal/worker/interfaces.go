package worker

import (
	"context"

	"airoi.app/assessor/common/llm"
	"airoi.app/assessor/internal/orchestrator"
	"airoi.app/assessor/internal/queue"
	"airoi.app/assessor/internal/store"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// Pipeline abstracts the orchestrator for testability.
type Pipeline interface {
	Run(ctx context.Context, history []llm.Message) (*orchestrator.Result, error)
}

// StoreProvider exposes the stores a job touches. *store.Stores satisfies it.
type StoreProvider interface {
	Sessions() store.SessionStore
	Conversations() store.ConversationStore
	Assessments() store.AssessmentStore
}
