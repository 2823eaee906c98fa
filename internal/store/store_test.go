package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"airoi.app/assessor/internal/model"
	"airoi.app/assessor/internal/store"
)

var _ = Describe("Stores", func() {
	var (
		db     *fakeDB
		stores *store.Stores
		ctx    context.Context
		now    time.Time
	)

	BeforeEach(func() {
		db = &fakeDB{}
		stores = store.NewStores(db)
		ctx = context.Background()
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	})

	Describe("SessionStore", func() {
		It("creates an active session and reads back the timestamps", func() {
			db.row = []any{now, now}
			session := &model.Session{ID: 42, CompanyName: "Northwind Retail"}

			Expect(stores.Sessions().Create(ctx, session)).To(Succeed())
			Expect(session.Status).To(Equal(model.SessionStatusActive))
			Expect(session.CreatedAt).To(Equal(now))
			Expect(db.lastCall().args).To(Equal([]any{int64(42), "Northwind Retail", "active"}))
		})

		It("maps a missing row to ErrNotFound", func() {
			db.rowErr = pgx.ErrNoRows

			_, err := stores.Sessions().GetByID(ctx, 7)
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("scans a session", func() {
			db.row = []any{int64(7), "Acme", "assessing", now, now}

			session, err := stores.Sessions().GetByID(ctx, 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Status).To(Equal(model.SessionStatusAssessing))
			Expect(session.CompanyName).To(Equal("Acme"))
		})

		It("reports a status update on a missing session", func() {
			db.execTag = "UPDATE 0"

			err := stores.Sessions().UpdateStatus(ctx, 7, model.SessionStatusAssessed)
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("marks a session assessing only when it is not already", func() {
			db.execTag = "UPDATE 1"

			Expect(stores.Sessions().MarkAssessing(ctx, 7)).To(Succeed())
			Expect(db.lastCall().sql).To(ContainSubstring("status <> $2"))
			Expect(db.lastCall().args).To(Equal([]any{int64(7), "assessing"}))
		})

		It("reports a conflict when the session is already assessing", func() {
			db.execTag = "UPDATE 0"

			err := stores.Sessions().MarkAssessing(ctx, 7)
			Expect(err).To(MatchError(store.ErrConflict))
		})
	})

	Describe("ConversationStore", func() {
		It("appends a turn", func() {
			db.row = []any{now}
			agent := model.AgentDiscovery
			msg := &model.ConversationMessage{ID: 1, SessionID: 42, Role: model.RoleAssistant, Agent: &agent, Content: "Hello"}

			Expect(stores.Conversations().Append(ctx, msg)).To(Succeed())
			Expect(msg.CreatedAt).To(Equal(now))
			Expect(db.lastCall().args).To(Equal([]any{int64(1), int64(42), "assistant", &agent, "Hello"}))
		})

		It("lists turns in stored order", func() {
			agent := model.AgentDiscovery
			db.rows = [][]any{
				{int64(1), int64(42), "assistant", &agent, "What systems do you use?", now},
				{int64(2), int64(42), "user", nil, "Shopify", now.Add(time.Second)},
			}

			messages, err := stores.Conversations().ListBySession(ctx, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(messages).To(HaveLen(2))
			Expect(messages[0].Role).To(Equal(model.RoleAssistant))
			Expect(*messages[0].Agent).To(Equal("discovery"))
			Expect(messages[1].Agent).To(BeNil())
			Expect(db.lastCall().sql).To(ContainSubstring("ORDER BY created_at, id"))
		})

		It("returns an empty list for a new session", func() {
			messages, err := stores.Conversations().ListBySession(ctx, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(messages).NotTo(BeNil())
			Expect(messages).To(BeEmpty())
		})

		It("propagates query errors", func() {
			db.queryErr = errors.New("connection reset")

			_, err := stores.Conversations().ListBySession(ctx, 42)
			Expect(err).To(MatchError("connection reset"))
		})
	})

	Describe("AssessmentStore", func() {
		It("creates a pending assessment", func() {
			db.row = []any{now, now}
			a := &model.Assessment{ID: 9, SessionID: 42}

			Expect(stores.Assessments().Create(ctx, a)).To(Succeed())
			Expect(a.Status).To(Equal(model.AssessmentStatusPending))
			Expect(db.lastCall().args).To(Equal([]any{int64(9), int64(42), "pending"}))
		})

		It("decodes a stored package", func() {
			guide := "do this"
			pkg := model.AssessmentPackage{
				AuditData:            model.AuditData{CompanyName: "Acme"},
				Opportunities:        []model.Opportunity{},
				Roadmap:              model.Roadmap{Content: "plan", CreatedAt: now},
				ImplementationGuides: map[string]*string{"Invoice capture": &guide, "Email triage": nil},
				GeneratedAt:          now,
			}
			raw, err := json.Marshal(pkg)
			Expect(err).NotTo(HaveOccurred())
			completed := now
			db.row = []any{int64(9), int64(42), "complete", raw, nil, nil, now, now, &completed}

			a, err := stores.Assessments().GetByID(ctx, 9)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Status).To(Equal(model.AssessmentStatusComplete))
			Expect(a.IsTerminal()).To(BeTrue())
			Expect(a.Package.AuditData.CompanyName).To(Equal("Acme"))
			Expect(a.Package.ImplementationGuides).To(HaveKeyWithValue("Email triage", BeNil()))
			Expect(*a.Package.ImplementationGuides["Invoice capture"]).To(Equal("do this"))
			Expect(a.CompletedAt).NotTo(BeNil())
		})

		It("leaves the package nil for a failed assessment", func() {
			state, reason := "idle", "no audit data extractable"
			db.row = []any{int64(9), int64(42), "failed", nil, &state, &reason, now, now, nil}

			a, err := stores.Assessments().GetLatestBySession(ctx, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Package).To(BeNil())
			Expect(*a.FailureReason).To(Equal("no audit data extractable"))
			Expect(db.lastCall().sql).To(ContainSubstring("LIMIT 1"))
		})

		It("stores the package as JSON on completion", func() {
			db.execTag = "UPDATE 1"
			pkg := &model.AssessmentPackage{AuditData: model.AuditData{CompanyName: "Acme"}}

			Expect(stores.Assessments().Complete(ctx, 9, pkg)).To(Succeed())
			args := db.lastCall().args
			Expect(args[0]).To(Equal(int64(9)))

			var stored map[string]any
			Expect(json.Unmarshal(args[1].([]byte), &stored)).To(Succeed())
			Expect(stored).To(HaveKey("audit_data"))
		})

		It("records failures", func() {
			db.execTag = "UPDATE 1"

			Expect(stores.Assessments().Fail(ctx, 9, "idle", "cancelled")).To(Succeed())
			Expect(db.lastCall().args).To(Equal([]any{int64(9), "idle", "cancelled"}))
		})

		It("refuses to mark a finished assessment as running", func() {
			db.execTag = "UPDATE 0"

			Expect(stores.Assessments().MarkRunning(ctx, 9)).To(MatchError(store.ErrNotFound))
		})
	})
})
