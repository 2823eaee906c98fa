package agent

import (
	"context"
	"fmt"
	"log/slog"

	"airoi.app/assessor/common/llm"
	"airoi.app/assessor/common/logger"
	"airoi.app/assessor/internal/extract"
	"airoi.app/assessor/internal/model"
)

// Discovery interviews the client and condenses the conversation into AuditData.
type Discovery struct {
	llm       llm.Client
	extractor *extract.Extractor[model.AuditData]
}

func NewDiscovery(client llm.Client, opts ...extract.Option) *Discovery {
	return &Discovery{
		llm:       client,
		extractor: extract.MustNew[model.AuditData](opts...),
	}
}

// Start asks the provider for the opening message of the audit.
func (d *Discovery) Start(ctx context.Context) (string, error) {
	ctx = d.withFields(ctx)

	reply, err := d.llm.Generate(ctx, []llm.Message{llm.UserMessage(startDirective)}, discoveryPrompt)
	if err != nil {
		return "", fmt.Errorf("starting discovery: %w", err)
	}
	return reply, nil
}

// Continue forwards the accumulated conversation and returns the next assistant turn.
func (d *Discovery) Continue(ctx context.Context, history []llm.Message) (string, error) {
	ctx = d.withFields(ctx)

	if len(history) == 0 {
		return d.Start(ctx)
	}

	reply, err := d.llm.Generate(ctx, history, discoveryPrompt)
	if err != nil {
		return "", fmt.Errorf("continuing discovery: %w", err)
	}
	return reply, nil
}

// Extract appends the summary directive to the history and recovers the
// audit record from the reply. Provider failures come back wrapped so the
// caller can still classify them; structural failures come back as
// *extract.Failure.
func (d *Discovery) Extract(ctx context.Context, history []llm.Message) (model.AuditData, error) {
	ctx = d.withFields(ctx)

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.UserMessage(extractDirective))

	reply, err := d.llm.Generate(ctx, messages, discoveryPrompt)
	if err != nil {
		return model.AuditData{}, fmt.Errorf("requesting audit summary: %w", err)
	}

	audit, err := d.extractor.Object(reply)
	if err != nil {
		slog.WarnContext(ctx, "audit summary not extractable",
			"error", err,
			"response_preview", logger.Truncate(reply, 300))
		return model.AuditData{}, err
	}

	slog.InfoContext(ctx, "audit data extracted",
		"company_name", audit.CompanyName,
		"systems", len(audit.Systems),
		"pain_points", len(audit.PainPoints))
	return audit, nil
}

func (d *Discovery) withFields(ctx context.Context) context.Context {
	return logger.WithLogFields(ctx, logger.LogFields{
		Agent:     logger.Ptr(NameDiscovery),
		Component: "assessor.agent.discovery",
	})
}

const startDirective = "Begin the discovery audit. Introduce yourself and ask the first set of questions."

const extractDirective = "Based on our conversation, please provide the complete structured JSON audit summary."

const discoveryPrompt = `You are the Discovery Agent of AIROI, an AI ROI assessment system.

Your role is to conduct a thorough audit of the client's current state through structured questioning.

FOCUS AREAS:
1. Technology Infrastructure: What systems, platforms, databases are in use?
2. Business Processes: What are the key workflows? Where are bottlenecks?
3. Data Landscape: What data is available? What's its quality and accessibility?
4. Pain Points: Where is the team spending manual effort? What's frustrating?
5. Costs: Current IT costs, operational costs, staffing costs
6. Capabilities: Team's technical skills, existing automation, change readiness

IMPORTANT PRINCIPLES:
- Ask 3-5 targeted questions at a time, not overwhelming lists
- Probe for specifics: "Can you give an example?" "How long does that take?"
- Acknowledge what you've learned and build on it
- Flag areas needing deeper investigation
- Be conversational but systematic

When you have sufficient information, output a structured JSON summary with:
{
  "company_name": "",
  "industry": "",
  "employee_count": 0,
  "systems": [...],
  "processes": [...],
  "data_sources": [...],
  "pain_points": [...],
  "current_costs": {...},
  "technical_capabilities": {...},
  "compliance_requirements": [...]
}`
