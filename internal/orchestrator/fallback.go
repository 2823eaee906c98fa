package orchestrator

import (
	"fmt"
	"strings"

	"airoi.app/assessor/internal/model"
)

// fallbackRoadmap outlines the opportunities by phase when the strategist
// could not be reached.
func fallbackRoadmap(opportunities []model.Opportunity) string {
	var sb strings.Builder
	sb.WriteString("Roadmap generation was unavailable. This outline was assembled directly from the opportunity analysis and should be reviewed before use.\n")

	if len(opportunities) == 0 {
		sb.WriteString("\nNo automation opportunities were identified. Revisit the discovery findings before planning any AI investment.\n")
		return sb.String()
	}

	pkg := model.AssessmentPackage{Opportunities: opportunities}
	byPhase := pkg.OpportunitiesByPhase()
	for _, phase := range model.Phases() {
		opps := byPhase[phase]
		if len(opps) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s (%s)\n", phaseHeading(phase), phase.Horizon())
		for _, opp := range opps {
			fmt.Fprintf(&sb, "- %s: %d months, %s confidence", opp.Title, opp.TimeframeMonths, opp.Confidence)
			if len(opp.Dependencies) > 0 {
				fmt.Fprintf(&sb, ", depends on %s", strings.Join(opp.Dependencies, ", "))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func phaseHeading(p model.Phase) string {
	switch p {
	case model.PhaseQuickWin:
		return "Quick wins"
	case model.PhaseFoundation:
		return "Foundation"
	case model.PhaseStrategic:
		return "Strategic"
	}
	return string(p)
}
