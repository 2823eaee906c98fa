package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"airoi.app/assessor/core/db"
	"airoi.app/assessor/internal/model"
)

const assessmentColumns = `id, session_id, status, package, failed_state, failure_reason, created_at, updated_at, completed_at`

type assessmentStore struct {
	conn db.DBTX
}

func newAssessmentStore(conn db.DBTX) AssessmentStore {
	return &assessmentStore{conn: conn}
}

func (s *assessmentStore) GetByID(ctx context.Context, id int64) (*model.Assessment, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id)
	return scanAssessment(row)
}

func (s *assessmentStore) GetLatestBySession(ctx context.Context, sessionID int64) (*model.Assessment, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+assessmentColumns+`
		FROM assessments
		WHERE session_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, sessionID)
	return scanAssessment(row)
}

func (s *assessmentStore) Create(ctx context.Context, a *model.Assessment) error {
	if a.Status == "" {
		a.Status = model.AssessmentStatusPending
	}
	row := s.conn.QueryRow(ctx, `
		INSERT INTO assessments (id, session_id, status)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		a.ID, a.SessionID, string(a.Status))

	return row.Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (s *assessmentStore) MarkRunning(ctx context.Context, id int64) error {
	return s.update(ctx, `
		UPDATE assessments SET status = 'running', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'running')`, id)
}

func (s *assessmentStore) Complete(ctx context.Context, id int64, pkg *model.AssessmentPackage) error {
	raw, err := json.Marshal(pkg)
	if err != nil {
		return fmt.Errorf("encoding assessment package: %w", err)
	}
	return s.update(ctx, `
		UPDATE assessments
		SET status = 'complete', package = $2, failed_state = NULL, failure_reason = NULL,
		    completed_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id, raw)
}

func (s *assessmentStore) Fail(ctx context.Context, id int64, failedState, reason string) error {
	return s.update(ctx, `
		UPDATE assessments
		SET status = 'failed', package = NULL, failed_state = NULLIF($2, ''), failure_reason = $3,
		    completed_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id, failedState, reason)
}

func (s *assessmentStore) update(ctx context.Context, sql string, args ...any) error {
	tag, err := s.conn.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAssessment(row pgx.Row) (*model.Assessment, error) {
	var (
		a           model.Assessment
		status      string
		pkg         []byte
		completedAt *time.Time
	)
	err := row.Scan(&a.ID, &a.SessionID, &status, &pkg, &a.FailedState, &a.FailureReason,
		&a.CreatedAt, &a.UpdatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	a.Status = model.AssessmentStatus(status)
	a.CompletedAt = completedAt
	if len(pkg) > 0 {
		a.Package = &model.AssessmentPackage{}
		if err := json.Unmarshal(pkg, a.Package); err != nil {
			return nil, fmt.Errorf("decoding assessment package %d: %w", a.ID, err)
		}
	}
	return &a, nil
}
