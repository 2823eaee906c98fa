package handler_test

import (
	"context"

	"airoi.app/assessor/internal/model"
	"airoi.app/assessor/internal/report"
)

type mockSessionService struct {
	createFn         func(ctx context.Context, companyName string) (*model.Session, error)
	getFn            func(ctx context.Context, id int64) (*model.Session, error)
	startDiscoveryFn func(ctx context.Context, id int64) (*model.ConversationMessage, error)
	chatFn           func(ctx context.Context, id int64, content string) (*model.ConversationMessage, error)
	conversationFn   func(ctx context.Context, id int64) ([]model.ConversationMessage, error)
}

func (m *mockSessionService) Create(ctx context.Context, companyName string) (*model.Session, error) {
	if m.createFn != nil {
		return m.createFn(ctx, companyName)
	}
	return nil, nil
}

func (m *mockSessionService) Get(ctx context.Context, id int64) (*model.Session, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionService) StartDiscovery(ctx context.Context, id int64) (*model.ConversationMessage, error) {
	if m.startDiscoveryFn != nil {
		return m.startDiscoveryFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionService) Chat(ctx context.Context, id int64, content string) (*model.ConversationMessage, error) {
	if m.chatFn != nil {
		return m.chatFn(ctx, id, content)
	}
	return nil, nil
}

func (m *mockSessionService) Conversation(ctx context.Context, id int64) ([]model.ConversationMessage, error) {
	if m.conversationFn != nil {
		return m.conversationFn(ctx, id)
	}
	return nil, nil
}

type mockAssessmentService struct {
	requestFn func(ctx context.Context, sessionID int64) (*model.Assessment, error)
	latestFn  func(ctx context.Context, sessionID int64) (*model.Assessment, error)
	getFn     func(ctx context.Context, id int64) (*model.Assessment, error)
	reportFn  func(ctx context.Context, id int64, format report.Format) ([]byte, error)
}

func (m *mockAssessmentService) Request(ctx context.Context, sessionID int64) (*model.Assessment, error) {
	if m.requestFn != nil {
		return m.requestFn(ctx, sessionID)
	}
	return nil, nil
}

func (m *mockAssessmentService) Latest(ctx context.Context, sessionID int64) (*model.Assessment, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, sessionID)
	}
	return nil, nil
}

func (m *mockAssessmentService) Get(ctx context.Context, id int64) (*model.Assessment, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockAssessmentService) Report(ctx context.Context, id int64, format report.Format) ([]byte, error) {
	if m.reportFn != nil {
		return m.reportFn(ctx, id, format)
	}
	return nil, nil
}
