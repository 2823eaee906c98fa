package worker_test

import (
	"context"
	"errors"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"airoi.app/assessor/common/llm"
	"airoi.app/assessor/internal/model"
	"airoi.app/assessor/internal/orchestrator"
	"airoi.app/assessor/internal/queue"
	"airoi.app/assessor/internal/store"
	"airoi.app/assessor/internal/worker"
)

func pendingAssessment(id int64) *model.Assessment {
	return &model.Assessment{ID: id, SessionID: 7, Status: model.AssessmentStatusPending}
}

var _ = Describe("Worker", func() {
	var (
		ctx      context.Context
		consumer *mockConsumer
		stores   *mockStores
		pipeline *mockPipeline
		w        *worker.Worker
		msg      queue.Message
	)

	BeforeEach(func() {
		ctx = context.Background()
		consumer = &mockConsumer{}
		stores = newMockStores()
		stores.assessments.getByIDFn = func(ctx context.Context, id int64) (*model.Assessment, error) {
			return pendingAssessment(id), nil
		}
		stores.conversations.listBySessionFn = func(ctx context.Context, sessionID int64) ([]model.ConversationMessage, error) {
			return []model.ConversationMessage{
				{Role: model.RoleAssistant, Content: "What systems do you use?"},
				{Role: model.RoleUser, Content: "SAP and spreadsheets."},
			}, nil
		}
		pipeline = &mockPipeline{
			runFn: func(ctx context.Context, history []llm.Message) (*orchestrator.Result, error) {
				return &orchestrator.Result{
					State:   orchestrator.StateComplete,
					Package: &model.AssessmentPackage{AuditData: model.AuditData{CompanyName: "Acme"}},
				}, nil
			},
		}
		w = worker.New(consumer, stores, pipeline, worker.Config{MaxAttempts: 3, RunTimeout: time.Minute})
		msg = queue.Message{ID: "1-0", AssessmentID: 11, SessionID: 7, Attempt: 1}
	})

	Describe("ProcessMessage", func() {
		It("runs the pipeline over the stored conversation and persists the package", func() {
			Expect(w.ProcessMessage(ctx, msg)).To(Succeed())

			Expect(pipeline.history).To(Equal([]llm.Message{
				llm.AssistantMessage("What systems do you use?"),
				llm.UserMessage("SAP and spreadsheets."),
			}))
			Expect(stores.assessments.completed).To(HaveLen(1))
			Expect(stores.assessments.completed[0].AuditData.CompanyName).To(Equal("Acme"))
			Expect(stores.sessions.statuses).To(Equal([]model.SessionStatus{
				model.SessionStatusAssessing,
				model.SessionStatusAssessed,
			}))
			Expect(consumer.ackedIDs()).To(Equal([]string{"1-0"}))
		})

		It("records a pipeline failure on the assessment and acks without retrying", func() {
			pipeline.runFn = func(ctx context.Context, history []llm.Message) (*orchestrator.Result, error) {
				return &orchestrator.Result{State: orchestrator.StateFailed}, &orchestrator.PhaseError{
					State:  orchestrator.StateIdle,
					Reason: orchestrator.ReasonNoAuditData,
				}
			}

			Expect(w.ProcessMessage(ctx, msg)).To(Succeed())

			Expect(stores.assessments.failed).To(Equal([]failCall{{
				id:          11,
				failedState: string(orchestrator.StateIdle),
				reason:      orchestrator.ReasonNoAuditData,
			}}))
			Expect(stores.assessments.completed).To(BeEmpty())
			Expect(stores.sessions.statuses).To(Equal([]model.SessionStatus{
				model.SessionStatusAssessing,
				model.SessionStatusActive,
			}))
			Expect(consumer.ackedIDs()).To(Equal([]string{"1-0"}))
		})

		It("returns infrastructure errors without acking", func() {
			stores.conversations.listBySessionFn = func(ctx context.Context, sessionID int64) ([]model.ConversationMessage, error) {
				return nil, errors.New("connection reset")
			}

			err := w.ProcessMessage(ctx, msg)
			Expect(err).To(MatchError(ContainSubstring("loading conversation")))
			Expect(pipeline.calls).To(BeZero())
			Expect(consumer.ackedIDs()).To(BeEmpty())
		})

		It("returns non-phase pipeline errors for retry", func() {
			pipeline.runFn = func(ctx context.Context, history []llm.Message) (*orchestrator.Result, error) {
				return nil, errors.New("unexpected")
			}

			Expect(w.ProcessMessage(ctx, msg)).To(MatchError(ContainSubstring("running pipeline")))
			Expect(consumer.ackedIDs()).To(BeEmpty())
		})

		It("drops jobs whose assessment no longer exists", func() {
			stores.assessments.getByIDFn = func(ctx context.Context, id int64) (*model.Assessment, error) {
				return nil, store.ErrNotFound
			}

			Expect(w.ProcessMessage(ctx, msg)).To(Succeed())
			Expect(pipeline.calls).To(BeZero())
			Expect(consumer.ackedIDs()).To(Equal([]string{"1-0"}))
		})

		It("skips assessments that already finished", func() {
			stores.assessments.getByIDFn = func(ctx context.Context, id int64) (*model.Assessment, error) {
				a := pendingAssessment(id)
				a.Status = model.AssessmentStatusComplete
				return a, nil
			}

			Expect(w.ProcessMessage(ctx, msg)).To(Succeed())
			Expect(pipeline.calls).To(BeZero())
			Expect(stores.sessions.statuses).To(BeEmpty())
			Expect(consumer.ackedIDs()).To(Equal([]string{"1-0"}))
		})

		It("bounds the pipeline run with the configured timeout", func() {
			w = worker.New(consumer, stores, pipeline, worker.Config{MaxAttempts: 3, RunTimeout: 50 * time.Millisecond})
			var deadline time.Time
			var hasDeadline bool
			pipeline.runFn = func(ctx context.Context, history []llm.Message) (*orchestrator.Result, error) {
				deadline, hasDeadline = ctx.Deadline()
				return &orchestrator.Result{State: orchestrator.StateComplete, Package: &model.AssessmentPackage{}}, nil
			}

			Expect(w.ProcessMessage(ctx, msg)).To(Succeed())
			Expect(hasDeadline).To(BeTrue())
			Expect(deadline).To(BeTemporally("~", time.Now(), time.Second))
		})
	})

	Describe("Run", func() {
		runUntilDrained := func() {
			done := make(chan error, 1)
			go func() { done <- w.Run(ctx) }()
			Eventually(func() int {
				consumer.mu.Lock()
				defer consumer.mu.Unlock()
				return len(consumer.messages)
			}).Should(BeZero())
			// Stop waits for the in-flight batch.
			w.Stop()
			Expect(<-done).To(Succeed())
		}

		It("requeues messages that fail with infrastructure errors", func() {
			stores.assessments.markRunningFn = func(ctx context.Context, id int64) error {
				return errors.New("db down")
			}
			consumer.messages = [][]queue.Message{{msg}}

			runUntilDrained()

			consumer.mu.Lock()
			defer consumer.mu.Unlock()
			Expect(consumer.requeued).To(Equal([]string{"1-0"}))
			Expect(consumer.dlq).To(BeEmpty())
		})

		It("dead-letters and fails the assessment once attempts are exhausted", func() {
			stores.assessments.markRunningFn = func(ctx context.Context, id int64) error {
				return errors.New("db down")
			}
			msg.Attempt = 3
			consumer.messages = [][]queue.Message{{msg}}

			runUntilDrained()

			consumer.mu.Lock()
			defer consumer.mu.Unlock()
			Expect(consumer.dlq).To(Equal([]string{"1-0"}))
			Expect(consumer.requeued).To(BeEmpty())
			Expect(stores.assessments.failed).To(HaveLen(1))
			Expect(stores.assessments.failed[0].reason).To(ContainSubstring("db down"))
		})

		It("recovers from a panicking pipeline", func() {
			pipeline.runFn = func(ctx context.Context, history []llm.Message) (*orchestrator.Result, error) {
				panic("boom")
			}
			consumer.messages = [][]queue.Message{{msg}}

			runUntilDrained()

			consumer.mu.Lock()
			defer consumer.mu.Unlock()
			Expect(consumer.requeued).To(Equal([]string{"1-0"}))
		})
	})
})

var _ = Describe("History", func() {
	It("preserves turn order and roles", func() {
		history := worker.History([]model.ConversationMessage{
			{Role: model.RoleUser, Content: "hi"},
			{Role: model.RoleAssistant, Content: "hello"},
		})
		Expect(history).To(Equal([]llm.Message{llm.UserMessage("hi"), llm.AssistantMessage("hello")}))
	})
})

var _ = Describe("RedisReclaimer", func() {
	var (
		ctx         context.Context
		client      *redis.Client
		cfg         queue.ConsumerConfig
		consumer    *queue.RedisConsumer
		assessments *mockAssessmentStore
		processed   chan queue.Message
	)

	BeforeEach(func() {
		mr, err := miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(mr.Close)

		ctx = context.Background()
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		cfg = queue.ConsumerConfig{
			Stream:    "assessment_jobs",
			Group:     "assessor_group",
			Consumer:  "worker-live",
			DLQStream: "assessment_jobs_dlq",
			BatchSize: 1,
			Block:     10 * time.Millisecond,
		}
		consumer, err = queue.NewRedisConsumer(client, cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(queue.NewRedisProducer(client, cfg.Stream, nil).Enqueue(ctx, queue.AssessmentJob{AssessmentID: 21, SessionID: 4})).To(Succeed())

		// A consumer that read the job and died before acking.
		_, err = client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    cfg.Group,
			Consumer: "worker-dead",
			Streams:  []string{cfg.Stream, ">"},
			Count:    1,
		}).Result()
		Expect(err).NotTo(HaveOccurred())

		assessments = &mockAssessmentStore{}
		processed = make(chan queue.Message, 1)
	})

	start := func(maxDeliveries int64) *worker.RedisReclaimer {
		reclaimer := worker.NewRedisReclaimer(client, worker.RedisReclaimerConfig{
			Stream:        cfg.Stream,
			Group:         cfg.Group,
			Consumer:      cfg.Consumer,
			Interval:      10 * time.Millisecond,
			BatchSize:     10,
			MaxDeliveries: maxDeliveries,
		}, consumer, assessments, func(ctx context.Context, msg queue.Message) error {
			processed <- msg
			return consumer.Ack(ctx, msg)
		})
		go reclaimer.Run(ctx)
		return reclaimer
	}

	pendingCount := func() int64 {
		summary, err := client.XPending(ctx, cfg.Stream, cfg.Group).Result()
		Expect(err).NotTo(HaveOccurred())
		return summary.Count
	}

	It("re-runs a stale job whose assessment is still running", func() {
		assessments.getByIDFn = func(_ context.Context, id int64) (*model.Assessment, error) {
			return &model.Assessment{ID: id, SessionID: 4, Status: model.AssessmentStatusRunning}, nil
		}
		reclaimer := start(3)
		defer reclaimer.Stop()

		var got queue.Message
		Eventually(processed).Should(Receive(&got))
		Expect(got.AssessmentID).To(Equal(int64(21)))
		Expect(got.SessionID).To(Equal(int64(4)))
	})

	It("acknowledges a stale job whose assessment already finished", func() {
		assessments.getByIDFn = func(_ context.Context, id int64) (*model.Assessment, error) {
			return &model.Assessment{ID: id, SessionID: 4, Status: model.AssessmentStatusComplete}, nil
		}
		reclaimer := start(3)

		Eventually(pendingCount).Should(BeZero())
		reclaimer.Stop()
		Expect(processed).NotTo(Receive())
	})

	It("acknowledges a stale job whose assessment no longer exists", func() {
		assessments.getByIDFn = func(context.Context, int64) (*model.Assessment, error) {
			return nil, store.ErrNotFound
		}
		reclaimer := start(3)

		Eventually(pendingCount).Should(BeZero())
		reclaimer.Stop()
		Expect(processed).NotTo(Receive())
	})

	It("fails and dead-letters a job delivered too many times", func() {
		assessments.getByIDFn = func(_ context.Context, id int64) (*model.Assessment, error) {
			return &model.Assessment{ID: id, SessionID: 4, Status: model.AssessmentStatusRunning}, nil
		}
		reclaimer := start(1)

		Eventually(func() int64 {
			return client.XLen(ctx, cfg.DLQStream).Val()
		}).Should(Equal(int64(1)))
		reclaimer.Stop()

		Expect(processed).NotTo(Receive())
		Expect(pendingCount()).To(BeZero())
		Expect(assessments.failed).To(ConsistOf(failCall{id: 21, reason: "abandoned after 1 deliveries"}))
	})

	It("leaves the job pending when the assessment cannot be loaded", func() {
		assessments.getByIDFn = func(context.Context, int64) (*model.Assessment, error) {
			return nil, errors.New("db down")
		}
		reclaimer := start(3)

		Consistently(processed, 50*time.Millisecond).ShouldNot(Receive())
		reclaimer.Stop()
		Expect(pendingCount()).To(Equal(int64(1)))
	})
})
