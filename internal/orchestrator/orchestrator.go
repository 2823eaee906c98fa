// Package orchestrator sequences the four agents into one assessment run:
// Idle → DiscoveryExtracted → Analyzed → Roadmapped → Complete, with Failed
// reachable from every state. Only a failed discovery is fatal; later phases
// degrade and record what was lost.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"airoi.app/assessor/common/llm"
	"airoi.app/assessor/common/logger"
	"airoi.app/assessor/common/metrics"
	"airoi.app/assessor/internal/agent"
	"airoi.app/assessor/internal/capability"
	"airoi.app/assessor/internal/extract"
	"airoi.app/assessor/internal/model"
)

type Discoverer interface {
	Extract(ctx context.Context, history []llm.Message) (model.AuditData, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, audit model.AuditData) (agent.AnalysisResult, error)
}

type Strategist interface {
	CreateRoadmap(ctx context.Context, audit model.AuditData, opportunities []model.Opportunity) (model.Roadmap, error)
}

// GuideWriter must be safe for concurrent use.
type GuideWriter interface {
	GenerateGuide(ctx context.Context, opportunity model.Opportunity) (string, error)
}

type Agents struct {
	Discovery   Discoverer
	Analyzer    Analyzer
	Strategist  Strategist
	Implementer GuideWriter
}

type Config struct {
	MaxAttempts        int
	ExtractionAttempts int
	BaseBackoff        time.Duration
	MaxGuides          int
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:        3,
		ExtractionAttempts: 2,
		BaseBackoff:        time.Second,
		MaxGuides:          3,
	}
}

type Option func(*Orchestrator)

// WithSleep replaces the backoff wait. The function must return early with
// ctx.Err() when ctx is done.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		o.sleep = sleep
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// Orchestrator holds no per-run state; one instance serves concurrent runs.
type Orchestrator struct {
	agents Agents
	cfg    Config
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

func New(agents Agents, cfg Config, opts ...Option) *Orchestrator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.ExtractionAttempts < 1 {
		cfg.ExtractionAttempts = 1
	}
	if cfg.MaxGuides < 0 {
		cfg.MaxGuides = 0
	}

	o := &Orchestrator{
		agents: agents,
		cfg:    cfg,
		sleep:  sleepContext,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewFromClient wires the four production agents over one provider client.
func NewFromClient(client llm.Client, matrix capability.Matrix, cfg Config, opts ...Option) *Orchestrator {
	return New(Agents{
		Discovery:   agent.NewDiscovery(client),
		Analyzer:    agent.NewOpportunityAnalyzer(client, matrix),
		Strategist:  agent.NewRoadmapStrategist(client),
		Implementer: agent.NewImplementationAssistant(client),
	}, cfg, opts...)
}

// run is the private state of one Run call.
type run struct {
	o           *Orchestrator
	state       State
	transitions []Transition
	enteredAt   time.Time
}

func (r *run) advance(ctx context.Context, to State) {
	now := r.o.now()
	metrics.PipelinePhaseDuration.WithLabelValues(string(to)).Observe(now.Sub(r.enteredAt).Seconds())
	r.transitions = append(r.transitions, Transition{From: r.state, To: to, At: now})

	slog.InfoContext(ctx, "pipeline state changed",
		"from", r.state,
		"to", to,
		"phase_duration_ms", now.Sub(r.enteredAt).Milliseconds())

	r.state = to
	r.enteredAt = now
}

func (r *run) fail(ctx context.Context, reason string, err error) (*Result, error) {
	failedIn := r.state
	r.advance(ctx, StateFailed)
	metrics.PipelineRuns.WithLabelValues(string(StateFailed)).Inc()

	slog.ErrorContext(ctx, "assessment pipeline failed",
		"failed_state", failedIn,
		"reason", reason,
		"error", err)

	return &Result{State: StateFailed, Transitions: r.transitions}, &PhaseError{State: failedIn, Reason: reason, Err: err}
}

// Run drives one conversation history through all phases. On failure the
// result carries the Failed state and the transition log, the package is nil
// and the error is a *PhaseError.
func (o *Orchestrator) Run(ctx context.Context, history []llm.Message) (*Result, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "assessor.orchestrator"})
	sc := logger.StartSpan(ctx, "orchestrator.run")
	defer sc.End()
	ctx = sc.Context()
	sc.SetAttributes(attribute.Int("history.length", len(history)))

	start := o.now()
	r := &run{o: o, state: StateIdle, enteredAt: start}

	slog.InfoContext(ctx, "assessment pipeline starting", "history_length", len(history))

	audit, err := o.discover(ctx, history)
	if err != nil {
		sc.RecordError(err)
		switch {
		case ctx.Err() != nil:
			return r.fail(ctx, ReasonCancelled, ctx.Err())
		case errors.Is(err, extract.ErrExtraction):
			return r.fail(ctx, ReasonNoAuditData, err)
		default:
			return r.fail(ctx, ReasonDiscoveryUnavailable, err)
		}
	}
	r.advance(ctx, StateDiscoveryExtracted)

	var degradations []model.Degradation

	opportunities, lost := o.analyze(ctx, audit)
	if ctx.Err() != nil {
		return r.fail(ctx, ReasonCancelled, ctx.Err())
	}
	degradations = append(degradations, lost...)
	r.advance(ctx, StateAnalyzed)

	roadmap, lost := o.roadmap(ctx, audit, opportunities)
	if ctx.Err() != nil {
		return r.fail(ctx, ReasonCancelled, ctx.Err())
	}
	degradations = append(degradations, lost...)
	r.advance(ctx, StateRoadmapped)

	guides, lost := o.guides(ctx, opportunities)
	if ctx.Err() != nil {
		return r.fail(ctx, ReasonCancelled, ctx.Err())
	}
	degradations = append(degradations, lost...)

	pkg := &model.AssessmentPackage{
		AuditData:            audit,
		Opportunities:        opportunities,
		Roadmap:              roadmap,
		ImplementationGuides: guides,
		Degradations:         degradations,
		GeneratedAt:          o.now().UTC(),
	}
	r.advance(ctx, StateComplete)
	metrics.PipelineRuns.WithLabelValues(string(StateComplete)).Inc()

	sc.SetAttributes(
		attribute.Int("opportunities.count", len(opportunities)),
		attribute.Int("guides.count", len(guides)),
		attribute.Int("degradations.count", len(degradations)),
	)
	slog.InfoContext(ctx, "assessment pipeline complete",
		"opportunities", len(opportunities),
		"guides", len(guides),
		"degradations", len(degradations),
		"duration_ms", o.now().Sub(start).Milliseconds())

	return &Result{State: StateComplete, Transitions: r.transitions, Package: pkg}, nil
}

func (o *Orchestrator) discover(ctx context.Context, history []llm.Message) (model.AuditData, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{PipelineState: logger.Ptr(string(StateIdle))})
	sc := logger.StartSpan(ctx, "orchestrator.discovery")
	defer sc.End()
	ctx = sc.Context()

	audit, err := withExtractionRetry(ctx, o, "extract_audit", func(ctx context.Context) (model.AuditData, error) {
		return o.agents.Discovery.Extract(ctx, history)
	})
	if err != nil {
		sc.RecordError(err)
	}
	return audit, err
}

func (o *Orchestrator) analyze(ctx context.Context, audit model.AuditData) ([]model.Opportunity, []model.Degradation) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{PipelineState: logger.Ptr(string(StateDiscoveryExtracted))})
	sc := logger.StartSpan(ctx, "orchestrator.analysis")
	defer sc.End()
	ctx = sc.Context()

	result, err := withExtractionRetry(ctx, o, "analyze", func(ctx context.Context) (agent.AnalysisResult, error) {
		return o.agents.Analyzer.Analyze(ctx, audit)
	})
	if err != nil {
		sc.RecordError(err)
		if ctx.Err() == nil {
			slog.WarnContext(ctx, "opportunity analysis failed, continuing with none", "error", err)
		}
		return []model.Opportunity{}, []model.Degradation{{
			Kind:   model.DegradationAnalysisFailed,
			Stage:  "analysis",
			Detail: err.Error(),
		}}
	}

	opportunities := result.Opportunities
	if opportunities == nil {
		opportunities = []model.Opportunity{}
	}

	var degradations []model.Degradation
	if len(result.Dropped) > 0 {
		degradations = append(degradations, model.Degradation{
			Kind:   model.DegradationItemsDropped,
			Stage:  "analysis",
			Count:  len(result.Dropped),
			Detail: fmt.Sprintf("%d opportunities failed validation", len(result.Dropped)),
		})
	}
	sc.SetAttributes(attribute.Int("opportunities.count", len(opportunities)), attribute.Int("opportunities.dropped", len(result.Dropped)))
	return opportunities, degradations
}

func (o *Orchestrator) roadmap(ctx context.Context, audit model.AuditData, opportunities []model.Opportunity) (model.Roadmap, []model.Degradation) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{PipelineState: logger.Ptr(string(StateAnalyzed))})
	sc := logger.StartSpan(ctx, "orchestrator.roadmap")
	defer sc.End()
	ctx = sc.Context()

	roadmap, err := withRetry(ctx, o, "create_roadmap", func(ctx context.Context) (model.Roadmap, error) {
		return o.agents.Strategist.CreateRoadmap(ctx, audit, opportunities)
	})
	if err != nil {
		sc.RecordError(err)
		if ctx.Err() == nil {
			slog.WarnContext(ctx, "roadmap generation failed, using local outline", "error", err)
		}
		return model.Roadmap{
				Content:   fallbackRoadmap(opportunities),
				CreatedAt: o.now().UTC(),
				Fallback:  true,
			}, []model.Degradation{{
				Kind:   model.DegradationRoadmapFailed,
				Stage:  "roadmap",
				Detail: err.Error(),
			}}
	}
	return roadmap, nil
}

// selectQuickWins keeps analysis order and stops at limit.
func selectQuickWins(opportunities []model.Opportunity, limit int) []model.Opportunity {
	var selected []model.Opportunity
	for _, opp := range opportunities {
		if len(selected) >= limit {
			break
		}
		if opp.Phase == model.PhaseQuickWin {
			selected = append(selected, opp)
		}
	}
	return selected
}

type guideResult struct {
	text string
	err  error
}

// guides fans out one generation per selected quick win and joins them all.
// Each task writes only its own slot; the map is built after the join.
func (o *Orchestrator) guides(ctx context.Context, opportunities []model.Opportunity) (map[string]*string, []model.Degradation) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{PipelineState: logger.Ptr(string(StateRoadmapped))})
	sc := logger.StartSpan(ctx, "orchestrator.guides")
	defer sc.End()
	ctx = sc.Context()

	selected := selectQuickWins(opportunities, o.cfg.MaxGuides)
	guides := make(map[string]*string, len(selected))
	if len(selected) == 0 {
		return guides, nil
	}

	results := make([]guideResult, len(selected))
	sem := make(chan struct{}, len(selected))
	var wg sync.WaitGroup

	for i, opp := range selected {
		wg.Add(1)
		go func(i int, opp model.Opportunity) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					slog.ErrorContext(ctx, "guide generation panicked", "title", opp.Title, "panic", rec)
					results[i] = guideResult{err: fmt.Errorf("guide generation panicked: %v", rec)}
				}
			}()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = guideResult{err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			text, err := withRetry(ctx, o, "generate_guide", func(ctx context.Context) (string, error) {
				return o.agents.Implementer.GenerateGuide(ctx, opp)
			})
			results[i] = guideResult{text: text, err: err}
		}(i, opp)
	}
	wg.Wait()

	var degradations []model.Degradation
	for i, opp := range selected {
		res := results[i]
		if _, dup := guides[opp.Title]; dup {
			slog.WarnContext(ctx, "duplicate quick win title, later guide wins", "title", opp.Title)
		}
		if res.err != nil {
			metrics.Guides.WithLabelValues("failed").Inc()
			guides[opp.Title] = nil
			degradations = append(degradations, model.Degradation{
				Kind:   model.DegradationGuideFailed,
				Stage:  "implementation_guides",
				Title:  opp.Title,
				Detail: res.err.Error(),
			})
			continue
		}
		metrics.Guides.WithLabelValues("success").Inc()
		guides[opp.Title] = logger.Ptr(res.text)
	}

	sc.SetAttributes(attribute.Int("guides.selected", len(selected)), attribute.Int("guides.failed", len(degradations)))
	return guides, degradations
}
