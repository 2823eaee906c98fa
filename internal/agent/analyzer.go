package agent

import (
	"context"
	"fmt"
	"log/slog"

	"airoi.app/assessor/common/llm"
	"airoi.app/assessor/common/logger"
	"airoi.app/assessor/common/metrics"
	"airoi.app/assessor/internal/capability"
	"airoi.app/assessor/internal/extract"
	"airoi.app/assessor/internal/model"
)

// AnalysisResult is the surviving opportunities in analysis order plus the
// list items that failed validation.
type AnalysisResult struct {
	Opportunities []model.Opportunity
	Dropped       []extract.ItemError
}

// OpportunityAnalyzer turns AuditData into classified opportunities.
type OpportunityAnalyzer struct {
	llm       llm.Client
	extractor *extract.Extractor[model.Opportunity]
	system    string
}

// NewOpportunityAnalyzer grounds the instruction template in the given
// capability matrix so that can_do/cannot_do claims stay within it.
func NewOpportunityAnalyzer(client llm.Client, matrix capability.Matrix, opts ...extract.Option) *OpportunityAnalyzer {
	return &OpportunityAnalyzer{
		llm:       client,
		extractor: extract.MustNew[model.Opportunity](opts...),
		system:    analyzerPrompt + "\n\n" + matrix.Prompt(),
	}
}

// Analyze calls the provider once. An empty list is a valid result; only a
// response with no parseable list is an error.
func (a *OpportunityAnalyzer) Analyze(ctx context.Context, audit model.AuditData) (AnalysisResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Agent:     logger.Ptr(NameOpportunityAnalyzer),
		Component: "assessor.agent.analyzer",
	})

	auditJSON, err := indentJSON(audit)
	if err != nil {
		return AnalysisResult{}, err
	}

	content := fmt.Sprintf(analyzeRequest, auditJSON, a.extractor.SchemaJSON())
	reply, err := a.llm.Generate(ctx, []llm.Message{llm.UserMessage(content)}, a.system)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("analyzing audit: %w", err)
	}

	list, err := a.extractor.List(reply)
	if err != nil {
		slog.WarnContext(ctx, "opportunity list not extractable",
			"error", err,
			"response_preview", logger.Truncate(reply, 300))
		return AnalysisResult{}, err
	}

	if len(list.Dropped) > 0 {
		metrics.ExtractionItemsDropped.WithLabelValues(NameOpportunityAnalyzer).Add(float64(len(list.Dropped)))
		for _, d := range list.Dropped {
			slog.WarnContext(ctx, "opportunity dropped",
				"index", d.Index,
				"reason", d.Reason,
				"detail", logger.Truncate(d.Detail, 200))
		}
	}

	slog.InfoContext(ctx, "opportunities analyzed",
		"kept", len(list.Items),
		"dropped", len(list.Dropped))

	return AnalysisResult{Opportunities: list.Items, Dropped: list.Dropped}, nil
}

const analyzeRequest = `Analyze this business audit and identify AI/automation opportunities:

%s

Provide a detailed analysis with concrete opportunities.

Return them as a JSON array. Every element must match this JSON schema; phase and confidence values are lowercase and exact:
%s`

const analyzerPrompt = `You are the Opportunity Analyzer of AIROI.

Given audit data about a business, identify AI/automation opportunities with brutal honesty about what AI can and cannot do.

ANALYSIS FRAMEWORK:

For each opportunity, you MUST clearly specify:

1. WHAT AI CAN DO (Concrete Capabilities):
   - Specific tasks AI can reliably automate
   - Pattern recognition capabilities
   - Data processing abilities
   - Quality thresholds it can achieve

2. WHAT AI CANNOT DO (Critical Limitations):
   - Tasks requiring human judgment
   - Edge cases needing human review
   - Compliance/legal decisions
   - Complex negotiations or ethical choices
   - Areas where errors would be unacceptable

3. ROI ESTIMATION:
   - Time savings (hours/week)
   - Cost reduction ($/month)
   - Revenue opportunity (if applicable)
   - Confidence level: low (50-70%), medium (70-85%), high (85%+)
   - Payback period

4. PHASE CLASSIFICATION:
   - quick_win (0-3 months): Simple, proven, low-risk
   - foundation (3-12 months): Infrastructure, moderate complexity
   - strategic (1-3+ years): Transformational, high complexity

5. RISK FACTORS:
   - Technical risks
   - Organizational risks
   - Compliance/regulatory risks
   - Vendor/dependency risks

6. DEPENDENCIES & PREREQUISITES:
   - What must be in place first?
   - What other systems/processes must work?

OUTPUT FORMAT: JSON array of opportunities

CRITICAL: Be conservative in estimates. Under-promise and over-deliver.`
