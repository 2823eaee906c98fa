package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"airoi.app/assessor/common/id"
	"airoi.app/assessor/common/logger"
	"airoi.app/assessor/internal/model"
	"airoi.app/assessor/internal/queue"
	"airoi.app/assessor/internal/report"
	"airoi.app/assessor/internal/store"
)

type AssessmentService interface {
	// Request records a pending assessment and hands it to the worker.
	Request(ctx context.Context, sessionID int64) (*model.Assessment, error)
	Latest(ctx context.Context, sessionID int64) (*model.Assessment, error)
	Get(ctx context.Context, id int64) (*model.Assessment, error)
	Report(ctx context.Context, id int64, format report.Format) ([]byte, error)
}

type assessmentService struct {
	sessionStore      store.SessionStore
	conversationStore store.ConversationStore
	assessmentStore   store.AssessmentStore
	txRunner          TxRunner
	producer          queue.Producer
}

func NewAssessmentService(
	sessionStore store.SessionStore,
	conversationStore store.ConversationStore,
	assessmentStore store.AssessmentStore,
	txRunner TxRunner,
	producer queue.Producer,
) AssessmentService {
	return &assessmentService{
		sessionStore:      sessionStore,
		conversationStore: conversationStore,
		assessmentStore:   assessmentStore,
		txRunner:          txRunner,
		producer:          producer,
	}
}

func (s *assessmentService) Request(ctx context.Context, sessionID int64) (*model.Assessment, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{SessionID: &sessionID})

	session, err := s.sessionStore.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	if session.Status == model.SessionStatusAssessing {
		return nil, fmt.Errorf("%w: assessment already in progress", ErrInvalidState)
	}

	turns, err := s.conversationStore.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("%w: conversation is empty", ErrInvalidState)
	}

	assessment := &model.Assessment{
		ID:        id.New(),
		SessionID: sessionID,
		Status:    model.AssessmentStatusPending,
	}

	err = s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Sessions().MarkAssessing(ctx, sessionID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("%w: assessment already in progress", ErrInvalidState)
			}
			return fmt.Errorf("marking session assessing: %w", err)
		}
		if err := stores.Assessments().Create(ctx, assessment); err != nil {
			return fmt.Errorf("creating assessment: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to record assessment request", "error", err)
		return nil, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{AssessmentID: &assessment.ID})

	job := queue.AssessmentJob{AssessmentID: assessment.ID, SessionID: sessionID, Attempt: 1}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		job.TraceID = logger.Ptr(sc.TraceID().String())
	}

	if err := s.producer.Enqueue(ctx, job); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue assessment job", "error", err)
		if failErr := s.assessmentStore.Fail(ctx, assessment.ID, "", "could not be queued"); failErr != nil {
			slog.ErrorContext(ctx, "failed to mark unqueued assessment", "error", failErr)
		}
		if statusErr := s.sessionStore.UpdateStatus(ctx, sessionID, model.SessionStatusActive); statusErr != nil {
			slog.ErrorContext(ctx, "failed to reopen session", "error", statusErr)
		}
		return nil, fmt.Errorf("enqueuing assessment: %w", err)
	}

	slog.InfoContext(ctx, "assessment requested", "turns", len(turns))
	return assessment, nil
}

func (s *assessmentService) Latest(ctx context.Context, sessionID int64) (*model.Assessment, error) {
	assessment, err := s.assessmentStore.GetLatestBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("getting latest assessment: %w", err)
	}
	return assessment, nil
}

func (s *assessmentService) Get(ctx context.Context, id int64) (*model.Assessment, error) {
	assessment, err := s.assessmentStore.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting assessment: %w", err)
	}
	return assessment, nil
}

func (s *assessmentService) Report(ctx context.Context, id int64, format report.Format) ([]byte, error) {
	assessment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if assessment.Status != model.AssessmentStatusComplete || assessment.Package == nil {
		return nil, fmt.Errorf("%w: assessment is %s", ErrInvalidState, assessment.Status)
	}

	out, err := report.Render(assessment.Package, format)
	if err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return out, nil
}
