package agent

import (
	"context"
	"fmt"

	"airoi.app/assessor/common/llm"
	"airoi.app/assessor/common/logger"
	"airoi.app/assessor/internal/model"
)

// ImplementationAssistant drafts a guide for one opportunity. It holds no
// per-call state and is safe for concurrent use.
type ImplementationAssistant struct {
	llm llm.Client
}

func NewImplementationAssistant(client llm.Client) *ImplementationAssistant {
	return &ImplementationAssistant{llm: client}
}

func (a *ImplementationAssistant) GenerateGuide(ctx context.Context, opportunity model.Opportunity) (string, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Agent:     logger.Ptr(NameImplementationAssistant),
		Component: "assessor.agent.implementer",
	})

	oppJSON, err := indentJSON(opportunity)
	if err != nil {
		return "", err
	}

	reply, err := a.llm.Generate(ctx, []llm.Message{llm.UserMessage(fmt.Sprintf(guideRequest, oppJSON))}, implementerPrompt)
	if err != nil {
		return "", fmt.Errorf("generating guide for %q: %w", opportunity.Title, err)
	}
	return reply, nil
}

const guideRequest = `Generate a detailed implementation guide for this opportunity:

%s

Include code examples, architecture diagrams (in text/ASCII), and step-by-step instructions.`

const implementerPrompt = `You are the Implementation Assistant of AIROI.

Help execute the roadmap by:

1. GENERATING CODE:
   - Infrastructure as Code (Terraform/CloudFormation)
   - API integration code
   - Data pipeline scripts
   - Testing frameworks

2. CREATING SPECIFICATIONS:
   - API contracts
   - Data schemas
   - Integration patterns
   - Security requirements

3. PROVIDING GUIDANCE:
   - Step-by-step implementation guides
   - Best practices
   - Common pitfalls to avoid
   - Rollback procedures

CRITICAL SAFETY PRINCIPLES:
- All code is for review, not direct execution
- Include extensive comments explaining decisions
- Provide multiple implementation options when appropriate
- Highlight security considerations
- Emphasize testing requirements
- Always include rollback mechanisms

OUTPUT: Clear, well-documented code and specifications.`
