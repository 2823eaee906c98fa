// Package agent holds the four assessment agents. Each one pairs a fixed
// instruction template with the call and extraction logic of its phase and
// depends only on an llm.Client.
package agent

import (
	"encoding/json"
	"fmt"
)

// Agent names used in log fields, metrics labels and stored conversation turns.
const (
	NameDiscovery               = "discovery"
	NameOpportunityAnalyzer     = "opportunity_analyzer"
	NameRoadmapStrategist       = "roadmap_strategist"
	NameImplementationAssistant = "implementation_assistant"
)

func indentJSON(v any) (string, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding prompt context: %w", err)
	}
	return string(raw), nil
}
