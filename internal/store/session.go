package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"airoi.app/assessor/core/db"
	"airoi.app/assessor/internal/model"
)

type sessionStore struct {
	conn db.DBTX
}

func newSessionStore(conn db.DBTX) SessionStore {
	return &sessionStore{conn: conn}
}

func (s *sessionStore) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT id, company_name, status, created_at, updated_at
		FROM sessions
		WHERE id = $1`, id)

	var (
		session model.Session
		status  string
	)
	if err := row.Scan(&session.ID, &session.CompanyName, &status, &session.CreatedAt, &session.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	session.Status = model.SessionStatus(status)
	return &session, nil
}

func (s *sessionStore) Create(ctx context.Context, session *model.Session) error {
	if session.Status == "" {
		session.Status = model.SessionStatusActive
	}
	row := s.conn.QueryRow(ctx, `
		INSERT INTO sessions (id, company_name, status)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		session.ID, session.CompanyName, string(session.Status))

	return row.Scan(&session.CreatedAt, &session.UpdatedAt)
}

func (s *sessionStore) UpdateStatus(ctx context.Context, id int64, status model.SessionStatus) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE sessions SET status = $2, updated_at = NOW()
		WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sessionStore) MarkAssessing(ctx context.Context, id int64) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE sessions SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> $2`, id, string(model.SessionStatusAssessing))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}
