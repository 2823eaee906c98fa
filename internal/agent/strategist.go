package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"airoi.app/assessor/common/llm"
	"airoi.app/assessor/common/logger"
	"airoi.app/assessor/internal/model"
)

// RoadmapStrategist writes the phased plan. Its output is kept as opaque text.
type RoadmapStrategist struct {
	llm llm.Client
	now func() time.Time
}

func NewRoadmapStrategist(client llm.Client) *RoadmapStrategist {
	return &RoadmapStrategist{llm: client, now: time.Now}
}

func (s *RoadmapStrategist) CreateRoadmap(ctx context.Context, audit model.AuditData, opportunities []model.Opportunity) (model.Roadmap, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Agent:     logger.Ptr(NameRoadmapStrategist),
		Component: "assessor.agent.strategist",
	})

	if opportunities == nil {
		opportunities = []model.Opportunity{}
	}

	auditJSON, err := indentJSON(audit)
	if err != nil {
		return model.Roadmap{}, err
	}
	oppsJSON, err := indentJSON(opportunities)
	if err != nil {
		return model.Roadmap{}, err
	}

	content := fmt.Sprintf(roadmapRequest, auditJSON, oppsJSON)
	reply, err := s.llm.Generate(ctx, []llm.Message{llm.UserMessage(content)}, strategistPrompt)
	if err != nil {
		return model.Roadmap{}, fmt.Errorf("creating roadmap: %w", err)
	}

	slog.InfoContext(ctx, "roadmap created", "opportunities", len(opportunities), "length", len(reply))
	return model.Roadmap{Content: reply, CreatedAt: s.now().UTC()}, nil
}

const roadmapRequest = `Create a detailed implementation roadmap for these opportunities:

AUDIT DATA:
%s

OPPORTUNITIES:
%s

Provide a comprehensive phased roadmap.`

const strategistPrompt = `You are the Roadmap Strategist of AIROI.

Create a phased implementation roadmap that:

1. BUILDS PROGRESSIVELY:
   - Quick wins fund foundation projects
   - Foundation enables strategic initiatives
   - Each phase prepares for the next
   - No dead-end investments

2. ENSURES FUTURE-PROOFING:
   - Modular architecture
   - API-first approach
   - Cloud-native where appropriate
   - Vendor flexibility

3. MANAGES RISK:
   - Rollback plans for each phase
   - Pilot programs before full deployment
   - Parallel running during transitions
   - Clear success metrics

4. MAINTAINS MOMENTUM:
   - Early wins build confidence
   - Consistent progress demonstrations
   - Regular ROI reporting
   - Stakeholder engagement strategy

5. HUMAN OVERSIGHT POINTS:
   - Decision gates requiring approval
   - Quality review checkpoints
   - Compliance validation
   - Performance assessment

OUTPUT: Detailed roadmap with timelines, dependencies, success metrics, and governance.`
