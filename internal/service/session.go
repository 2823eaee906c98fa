package service

import (
	"context"
	"fmt"
	"log/slog"

	"airoi.app/assessor/common/id"
	"airoi.app/assessor/common/llm"
	"airoi.app/assessor/common/logger"
	"airoi.app/assessor/internal/model"
	"airoi.app/assessor/internal/store"
)

// DiscoveryAgent conducts the interview side of a session.
type DiscoveryAgent interface {
	Start(ctx context.Context) (string, error)
	Continue(ctx context.Context, history []llm.Message) (string, error)
}

type SessionService interface {
	Create(ctx context.Context, companyName string) (*model.Session, error)
	Get(ctx context.Context, id int64) (*model.Session, error)
	StartDiscovery(ctx context.Context, id int64) (*model.ConversationMessage, error)
	Chat(ctx context.Context, id int64, content string) (*model.ConversationMessage, error)
	Conversation(ctx context.Context, id int64) ([]model.ConversationMessage, error)
}

type sessionService struct {
	sessionStore      store.SessionStore
	conversationStore store.ConversationStore
	txRunner          TxRunner
	discovery         DiscoveryAgent
}

func NewSessionService(sessionStore store.SessionStore, conversationStore store.ConversationStore, txRunner TxRunner, discovery DiscoveryAgent) SessionService {
	return &sessionService{
		sessionStore:      sessionStore,
		conversationStore: conversationStore,
		txRunner:          txRunner,
		discovery:         discovery,
	}
}

func (s *sessionService) Create(ctx context.Context, companyName string) (*model.Session, error) {
	session := &model.Session{
		ID:          id.New(),
		CompanyName: companyName,
		Status:      model.SessionStatusActive,
	}

	if err := s.sessionStore.Create(ctx, session); err != nil {
		slog.ErrorContext(ctx, "failed to create session",
			"error", err,
			"company_name", companyName,
		)
		return nil, fmt.Errorf("creating session: %w", err)
	}

	slog.InfoContext(ctx, "session created", "session_id", session.ID)
	return session, nil
}

func (s *sessionService) Get(ctx context.Context, id int64) (*model.Session, error) {
	session, err := s.sessionStore.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return session, nil
}

// StartDiscovery stores the agent's opening turn. It is valid only on an
// empty conversation.
func (s *sessionService) StartDiscovery(ctx context.Context, sessionID int64) (*model.ConversationMessage, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{SessionID: &sessionID})

	if _, err := s.activeSession(ctx, sessionID); err != nil {
		return nil, err
	}

	turns, err := s.conversationStore.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if len(turns) > 0 {
		return nil, fmt.Errorf("%w: discovery already started", ErrInvalidState)
	}

	reply, err := s.discovery.Start(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "discovery agent failed to start", "error", err)
		return nil, fmt.Errorf("starting discovery: %w", err)
	}

	msg := assistantTurn(sessionID, reply)
	if err := s.conversationStore.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("storing discovery opening: %w", err)
	}

	slog.InfoContext(ctx, "discovery started")
	return msg, nil
}

// Chat forwards the user's turn with the full history and stores both turns
// together once the agent has replied, so a failed call leaves no dangling
// user turn behind.
func (s *sessionService) Chat(ctx context.Context, sessionID int64, content string) (*model.ConversationMessage, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{SessionID: &sessionID})

	if _, err := s.activeSession(ctx, sessionID); err != nil {
		return nil, err
	}

	turns, err := s.conversationStore.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}

	history := make([]llm.Message, 0, len(turns)+1)
	for _, t := range turns {
		history = append(history, llm.Message{Role: llm.Role(t.Role), Content: t.Content})
	}
	history = append(history, llm.UserMessage(content))

	reply, err := s.discovery.Continue(ctx, history)
	if err != nil {
		slog.ErrorContext(ctx, "discovery agent failed to reply",
			"error", err,
			"turns", len(history))
		return nil, fmt.Errorf("continuing discovery: %w", err)
	}

	userMsg := &model.ConversationMessage{
		ID:        id.New(),
		SessionID: sessionID,
		Role:      model.RoleUser,
		Content:   content,
	}
	replyMsg := assistantTurn(sessionID, reply)

	err = s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Conversations().Append(ctx, userMsg); err != nil {
			return fmt.Errorf("storing user turn: %w", err)
		}
		if err := stores.Conversations().Append(ctx, replyMsg); err != nil {
			return fmt.Errorf("storing assistant turn: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to store chat turns", "error", err)
		return nil, err
	}

	return replyMsg, nil
}

func (s *sessionService) Conversation(ctx context.Context, sessionID int64) ([]model.ConversationMessage, error) {
	if _, err := s.sessionStore.GetByID(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	turns, err := s.conversationStore.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	return turns, nil
}

// activeSession loads a session that still accepts conversation turns.
func (s *sessionService) activeSession(ctx context.Context, sessionID int64) (*model.Session, error) {
	session, err := s.sessionStore.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	if session.Status == model.SessionStatusAssessing {
		return nil, fmt.Errorf("%w: assessment in progress", ErrInvalidState)
	}
	return session, nil
}

func assistantTurn(sessionID int64, content string) *model.ConversationMessage {
	return &model.ConversationMessage{
		ID:        id.New(),
		SessionID: sessionID,
		Role:      model.RoleAssistant,
		Agent:     logger.Ptr(model.AgentDiscovery),
		Content:   content,
	}
}
