package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"airoi.app/assessor/common/logger"
	"airoi.app/assessor/common/metrics"
	"airoi.app/assessor/internal/queue"
	"airoi.app/assessor/internal/store"
)

type RedisReclaimerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	MinIdle   time.Duration // must exceed one full assessment run
	Interval  time.Duration
	BatchSize int64

	// MaxDeliveries dead-letters a job that has already been delivered this
	// many times without an ack, which is what a job that kills its worker
	// looks like. Zero disables the bound.
	MaxDeliveries int64
}

// RedisReclaimer picks up assessment jobs left pending by a worker that died
// mid-run. Before re-running a job it checks the assessment itself: finished
// or deleted assessments are acked away, and jobs past MaxDeliveries are
// failed and dead-lettered.
type RedisReclaimer struct {
	client      *redis.Client
	cfg         RedisReclaimerConfig
	consumer    Consumer
	assessments store.AssessmentStore
	processor   queue.MessageProcessor

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRedisReclaimer(
	client *redis.Client,
	cfg RedisReclaimerConfig,
	consumer Consumer,
	assessments store.AssessmentStore,
	processor queue.MessageProcessor,
) *RedisReclaimer {
	return &RedisReclaimer{
		client:      client,
		cfg:         cfg,
		consumer:    consumer,
		assessments: assessments,
		processor:   processor,
		stopCh:      make(chan struct{}),
		stoppedCh:   make(chan struct{}),
	}
}

type reclaimAction int

const (
	reclaimRun reclaimAction = iota
	reclaimDrop
	reclaimSkip
	reclaimDeadLetter
)

func (a reclaimAction) String() string {
	switch a {
	case reclaimDrop:
		return "dropped"
	case reclaimSkip:
		return "skipped"
	case reclaimDeadLetter:
		return "dead_lettered"
	}
	return "reclaimed"
}

// Run blocks until Stop is called or ctx is done.
func (r *RedisReclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "assessor.worker.reclaimer",
	})
	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"max_deliveries", r.cfg.MaxDeliveries)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			if err := r.sweep(ctx); err != nil {
				slog.ErrorContext(ctx, "reclaim sweep failed", "error", err)
			}
		}
	}
}

func (r *RedisReclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// sweep handles every entry idle for at least MinIdle. Failures on one
// entry leave it pending for the next sweep.
func (r *RedisReclaimer) sweep(ctx context.Context) error {
	stale, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.cfg.Stream,
		Group:  r.cfg.Group,
		Idle:   r.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  r.cfg.BatchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("listing stale jobs: %w", err)
	}

	for _, p := range stale {
		if err := r.reclaim(ctx, p); err != nil {
			slog.ErrorContext(ctx, "failed to reclaim job",
				"error", err,
				"message_id", p.ID,
				"previous_consumer", p.Consumer)
		}
	}
	return nil
}

func (r *RedisReclaimer) reclaim(ctx context.Context, pending redis.XPendingExt) error {
	msgID := pending.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: &msgID})

	claimed, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   r.cfg.Stream,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.MinIdle,
		Messages: []string{pending.ID},
	}).Result()
	if err != nil {
		return fmt.Errorf("claiming job: %w", err)
	}
	if len(claimed) == 0 {
		// Another reclaimer won it.
		return nil
	}

	msg, err := queue.ParseMessage(claimed[0])
	if err != nil {
		slog.ErrorContext(ctx, "unreadable job, acknowledging", "error", err)
		return r.consumer.Ack(ctx, queue.Message{ID: claimed[0].ID, Raw: claimed[0]})
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		AssessmentID: &msg.AssessmentID,
		SessionID:    &msg.SessionID,
	})

	action, err := r.decide(ctx, msg, pending.RetryCount)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "stale job found",
		"action", action.String(),
		"previous_consumer", pending.Consumer,
		"idle", pending.Idle,
		"deliveries", pending.RetryCount)

	switch action {
	case reclaimDrop, reclaimSkip:
		metrics.Jobs.WithLabelValues(action.String()).Inc()
		return r.consumer.Ack(ctx, msg)
	case reclaimDeadLetter:
		metrics.Jobs.WithLabelValues(action.String()).Inc()
		reason := fmt.Sprintf("abandoned after %d deliveries", pending.RetryCount)
		if err := r.assessments.Fail(ctx, msg.AssessmentID, "", reason); err != nil {
			return fmt.Errorf("failing abandoned assessment: %w", err)
		}
		return r.consumer.SendDLQ(ctx, msg, reason)
	}

	metrics.Jobs.WithLabelValues(action.String()).Inc()
	if err := r.processor(ctx, msg); err != nil {
		return fmt.Errorf("processing reclaimed job: %w", err)
	}
	return nil
}

func (r *RedisReclaimer) decide(ctx context.Context, msg queue.Message, deliveries int64) (reclaimAction, error) {
	assessment, err := r.assessments.GetByID(ctx, msg.AssessmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return reclaimDrop, nil
		}
		return reclaimRun, fmt.Errorf("loading assessment: %w", err)
	}
	if assessment.IsTerminal() {
		return reclaimSkip, nil
	}
	if r.cfg.MaxDeliveries > 0 && deliveries >= r.cfg.MaxDeliveries {
		return reclaimDeadLetter, nil
	}
	return reclaimRun, nil
}
