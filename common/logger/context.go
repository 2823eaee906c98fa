package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, so the session and assessment being worked
// on show up in every log line without being passed explicitly.
type LogFields struct {
	SessionID     *int64  // Assessment session ID
	AssessmentID  *int64  // Assessment run ID
	MessageID     *string // Redis stream message ID
	Agent         *string // Agent handling the call (e.g., "discovery", "opportunity_analyzer")
	PipelineState *string // Orchestrator state the run is leaving (e.g., "analyzed")
	Component     string  // Component name (OTel semantic convention style, e.g., "assessor.orchestrator")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'new'.
func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.SessionID != nil {
		result.SessionID = new.SessionID
	}
	if new.AssessmentID != nil {
		result.AssessmentID = new.AssessmentID
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.Agent != nil {
		result.Agent = new.Agent
	}
	if new.PipelineState != nil {
		result.PipelineState = new.PipelineState
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{SessionID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging model output that may run to several kilobytes.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
