package store

import (
	"airoi.app/assessor/core/db"
)

type Stores struct {
	conn db.DBTX
}

func NewStores(conn db.DBTX) *Stores {
	return &Stores{conn: conn}
}

func (s *Stores) Sessions() SessionStore {
	return newSessionStore(s.conn)
}

func (s *Stores) Conversations() ConversationStore {
	return newConversationStore(s.conn)
}

func (s *Stores) Assessments() AssessmentStore {
	return newAssessmentStore(s.conn)
}
