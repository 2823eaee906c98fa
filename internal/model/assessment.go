package model

import "time"

// Phase classifies an Opportunity by implementation horizon.
type Phase string

const (
	PhaseQuickWin   Phase = "quick_win"
	PhaseFoundation Phase = "foundation"
	PhaseStrategic  Phase = "strategic"
)

// Phases lists every Phase in horizon order.
func Phases() []Phase {
	return []Phase{PhaseQuickWin, PhaseFoundation, PhaseStrategic}
}

func (p Phase) IsValid() bool {
	switch p {
	case PhaseQuickWin, PhaseFoundation, PhaseStrategic:
		return true
	}
	return false
}

// Horizon is the human-readable timeframe of a phase.
func (p Phase) Horizon() string {
	switch p {
	case PhaseQuickWin:
		return "0-3 months"
	case PhaseFoundation:
		return "3-12 months"
	case PhaseStrategic:
		return "1-3+ years"
	}
	return ""
}

// ConfidenceLevel maps by convention to 50-70% (low), 70-85% (medium) and 85%+ (high).
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

func (c ConfidenceLevel) IsValid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// AuditData is the structured record extracted from a discovery conversation.
// It is either complete or absent; the extractor never returns a partial one.
type AuditData struct {
	CompanyName            string             `json:"company_name" jsonschema:"description=Legal or trading name of the company"`
	Industry               string             `json:"industry"`
	EmployeeCount          int                `json:"employee_count" jsonschema:"minimum=0"`
	Systems                []map[string]any   `json:"systems" jsonschema:"description=Technology systems in use"`
	Processes              []map[string]any   `json:"processes" jsonschema:"description=Key business workflows"`
	DataSources            []map[string]any   `json:"data_sources"`
	PainPoints             []string           `json:"pain_points"`
	CurrentCosts           map[string]float64 `json:"current_costs"`
	TechnicalCapabilities  map[string]string  `json:"technical_capabilities"`
	ComplianceRequirements []string           `json:"compliance_requirements"`
}

// Opportunity is one automation candidate. Every opportunity pairs what AI
// can do with what it cannot; both lists are mandatory and non-empty.
type Opportunity struct {
	Title           string          `json:"title" jsonschema:"minLength=1"`
	Description     string          `json:"description"`
	Phase           Phase           `json:"phase" jsonschema:"enum=quick_win,enum=foundation,enum=strategic"`
	CanDo           []string        `json:"can_do" jsonschema:"minItems=1"`
	CannotDo        []string        `json:"cannot_do" jsonschema:"minItems=1"`
	EstimatedROI    float64         `json:"estimated_roi"`
	Confidence      ConfidenceLevel `json:"confidence" jsonschema:"enum=low,enum=medium,enum=high"`
	TimeframeMonths int             `json:"timeframe_months" jsonschema:"minimum=1"`
	RiskFactors     []string        `json:"risk_factors"`
	Dependencies    []string        `json:"dependencies"`
	NextSteps       []string        `json:"next_steps"`
}

// Roadmap is the strategist's free-form plan. Fallback is set when the plan
// was rendered locally because the strategist call failed.
type Roadmap struct {
	Content   string    `json:"roadmap"`
	CreatedAt time.Time `json:"created_at"`
	Fallback  bool      `json:"fallback,omitempty"`
}

// DegradationKind names a non-fatal loss of output.
type DegradationKind string

const (
	DegradationItemsDropped   DegradationKind = "items_dropped"
	DegradationAnalysisFailed DegradationKind = "analysis_failed"
	DegradationRoadmapFailed  DegradationKind = "roadmap_failed"
	DegradationGuideFailed    DegradationKind = "guide_failed"
)

// Degradation records partial output that did not abort the run.
type Degradation struct {
	Kind   DegradationKind `json:"kind"`
	Stage  string          `json:"stage"`
	Count  int             `json:"count,omitempty"`
	Title  string          `json:"title,omitempty"`
	Detail string          `json:"detail,omitempty"`
}

// AssessmentPackage is the terminal aggregate of one pipeline run.
// A nil guide means generation was attempted for that quick win and failed.
type AssessmentPackage struct {
	AuditData            AuditData          `json:"audit_data"`
	Opportunities        []Opportunity      `json:"opportunities"`
	Roadmap              Roadmap            `json:"roadmap"`
	ImplementationGuides map[string]*string `json:"implementation_guides"`
	Degradations         []Degradation      `json:"degradations,omitempty"`
	GeneratedAt          time.Time          `json:"generated_at"`
}

// Degraded reports whether any output was lost along the way.
func (p *AssessmentPackage) Degraded() bool {
	return len(p.Degradations) > 0
}

// OpportunitiesByPhase groups opportunities preserving their analysis order.
func (p *AssessmentPackage) OpportunitiesByPhase() map[Phase][]Opportunity {
	grouped := make(map[Phase][]Opportunity, 3)
	for _, opp := range p.Opportunities {
		grouped[opp.Phase] = append(grouped[opp.Phase], opp)
	}
	return grouped
}

type AssessmentStatus string

const (
	AssessmentStatusPending  AssessmentStatus = "pending"
	AssessmentStatusRunning  AssessmentStatus = "running"
	AssessmentStatusComplete AssessmentStatus = "complete"
	AssessmentStatusFailed   AssessmentStatus = "failed"
)

// Assessment is the persisted record of one requested pipeline run.
type Assessment struct {
	ID            int64              `json:"id"`
	SessionID     int64              `json:"session_id"`
	Status        AssessmentStatus   `json:"status"`
	Package       *AssessmentPackage `json:"package,omitempty"`
	FailedState   *string            `json:"failed_state,omitempty"`
	FailureReason *string            `json:"failure_reason,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
}

func (a *Assessment) IsTerminal() bool {
	return a.Status == AssessmentStatusComplete || a.Status == AssessmentStatusFailed
}
