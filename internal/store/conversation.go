package store

import (
	"context"

	"airoi.app/assessor/core/db"
	"airoi.app/assessor/internal/model"
)

type conversationStore struct {
	conn db.DBTX
}

func newConversationStore(conn db.DBTX) ConversationStore {
	return &conversationStore{conn: conn}
}

func (s *conversationStore) Append(ctx context.Context, msg *model.ConversationMessage) error {
	row := s.conn.QueryRow(ctx, `
		INSERT INTO conversation_messages (id, session_id, role, agent, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		msg.ID, msg.SessionID, msg.Role, msg.Agent, msg.Content)

	return row.Scan(&msg.CreatedAt)
}

func (s *conversationStore) ListBySession(ctx context.Context, sessionID int64) ([]model.ConversationMessage, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, session_id, role, agent, content, created_at
		FROM conversation_messages
		WHERE session_id = $1
		ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []model.ConversationMessage{}
	for rows.Next() {
		var msg model.ConversationMessage
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Agent, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
