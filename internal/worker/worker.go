package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"airoi.app/assessor/common/llm"
	"airoi.app/assessor/common/logger"
	"airoi.app/assessor/common/metrics"
	"airoi.app/assessor/internal/model"
	"airoi.app/assessor/internal/orchestrator"
	"airoi.app/assessor/internal/queue"
	"airoi.app/assessor/internal/store"
)

type Config struct {
	MaxAttempts int
	RunTimeout  time.Duration // bound on one pipeline run; zero means none
}

type Worker struct {
	consumer Consumer
	stores   StoreProvider
	pipeline Pipeline
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, stores StoreProvider, pipeline Pipeline, cfg Config) *Worker {
	return &Worker{
		consumer:  consumer,
		stores:    stores,
		pipeline:  pipeline,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "assessor.worker"})
	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
				case <-w.stopCh:
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			if ctx.Err() != nil {
				// Shutting down; the entry stays pending for the reclaimer.
				slog.WarnContext(ctx, "message left pending on shutdown", "message_id", msg.ID)
				return nil
			}
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"assessment_id", msg.AssessmentID)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"assessment_id", msg.AssessmentID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage runs the pipeline for one job and persists the outcome.
// Pipeline failures are recorded on the assessment and acked; only
// infrastructure errors are returned, so the job is retried.
// Exported so it can be reused by the reclaimer.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		AssessmentID: logger.Ptr(msg.AssessmentID),
		SessionID:    logger.Ptr(msg.SessionID),
		MessageID:    logger.Ptr(msg.ID),
	})
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_message")
	defer sc.End()
	ctx = sc.Context()

	slog.InfoContext(ctx, "processing message", "attempt", msg.Attempt)

	assessments := w.stores.Assessments()
	assessment, err := assessments.GetByID(ctx, msg.AssessmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "assessment not found, dropping job")
			w.ack(ctx, msg)
			return nil
		}
		return fmt.Errorf("loading assessment: %w", err)
	}
	if assessment.IsTerminal() {
		slog.InfoContext(ctx, "assessment already finished, skipping", "status", assessment.Status)
		w.ack(ctx, msg)
		return nil
	}

	if err := assessments.MarkRunning(ctx, msg.AssessmentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.ack(ctx, msg)
			return nil
		}
		return fmt.Errorf("marking assessment running: %w", err)
	}
	if err := w.stores.Sessions().UpdateStatus(ctx, msg.SessionID, model.SessionStatusAssessing); err != nil {
		return fmt.Errorf("marking session assessing: %w", err)
	}

	turns, err := w.stores.Conversations().ListBySession(ctx, msg.SessionID)
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}

	runCtx := ctx
	if w.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.cfg.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	result, runErr := w.pipeline.Run(runCtx, History(turns))
	if runErr != nil {
		var phaseErr *orchestrator.PhaseError
		if !errors.As(runErr, &phaseErr) {
			return fmt.Errorf("running pipeline: %w", runErr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := assessments.Fail(ctx, msg.AssessmentID, string(phaseErr.State), phaseErr.Reason); err != nil {
			return fmt.Errorf("recording failed assessment: %w", err)
		}
		if err := w.stores.Sessions().UpdateStatus(ctx, msg.SessionID, model.SessionStatusActive); err != nil {
			return fmt.Errorf("reopening session: %w", err)
		}

		metrics.Jobs.WithLabelValues("failed").Inc()
		slog.WarnContext(ctx, "assessment failed",
			"failed_state", phaseErr.State,
			"reason", phaseErr.Reason,
			"duration_ms", time.Since(start).Milliseconds())
		w.ack(ctx, msg)
		return nil
	}

	if err := assessments.Complete(ctx, msg.AssessmentID, result.Package); err != nil {
		return fmt.Errorf("storing assessment package: %w", err)
	}
	if err := w.stores.Sessions().UpdateStatus(ctx, msg.SessionID, model.SessionStatusAssessed); err != nil {
		return fmt.Errorf("marking session assessed: %w", err)
	}

	metrics.Jobs.WithLabelValues("complete").Inc()
	slog.InfoContext(ctx, "assessment complete",
		"opportunities", len(result.Package.Opportunities),
		"guides", len(result.Package.ImplementationGuides),
		"degradations", len(result.Package.Degradations),
		"duration_ms", time.Since(start).Milliseconds())

	w.ack(ctx, msg)
	return nil
}

func (w *Worker) ack(ctx context.Context, msg queue.Message) {
	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The reclaimer will see it again; processing is idempotent on terminal assessments.
		slog.WarnContext(ctx, "failed to ACK message",
			"error", err,
			"message_id", msg.ID)
	}
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"assessment_id", msg.AssessmentID,
			"attempts", msg.Attempt)
		metrics.Jobs.WithLabelValues("dead_lettered").Inc()
		if failErr := w.stores.Assessments().Fail(ctx, msg.AssessmentID, "", "processing failed: "+err.Error()); failErr != nil {
			slog.ErrorContext(ctx, "failed to mark dead-lettered assessment", "error", failErr)
		}
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	metrics.Jobs.WithLabelValues("requeued").Inc()
	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"assessment_id", msg.AssessmentID,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}

// History converts stored turns to provider messages, preserving order.
func History(turns []model.ConversationMessage) []llm.Message {
	history := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		history = append(history, llm.Message{Role: llm.Role(t.Role), Content: t.Content})
	}
	return history
}
