package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"airoi.app/assessor/internal/model"
)

// State is a stage of the assessment pipeline.
type State string

const (
	StateIdle               State = "idle"
	StateDiscoveryExtracted State = "discovery_extracted"
	StateAnalyzed           State = "analyzed"
	StateRoadmapped         State = "roadmapped"
	StateComplete           State = "complete"
	StateFailed             State = "failed"
)

func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateFailed
}

// Transition is one entry of a run's state log.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Result is the outcome of one Run. Package is nil unless State is Complete.
type Result struct {
	State       State                    `json:"state"`
	Transitions []Transition             `json:"transitions"`
	Package     *model.AssessmentPackage `json:"package,omitempty"`
}

// Failure reasons carried by PhaseError.
const (
	ReasonNoAuditData          = "no audit data extractable"
	ReasonDiscoveryUnavailable = "discovery provider unavailable"
	ReasonCancelled            = "cancelled"
)

// ErrPhaseFailed matches every *PhaseError via errors.Is.
var ErrPhaseFailed = errors.New("assessment phase failed")

// PhaseError reports which state the run was in when it could not continue.
type PhaseError struct {
	State  State
	Reason string
	Err    error
}

func (e *PhaseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("assessment failed in %s: %s", e.State, e.Reason)
	}
	return fmt.Sprintf("assessment failed in %s: %s: %v", e.State, e.Reason, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

func (e *PhaseError) Is(target error) bool {
	return target == ErrPhaseFailed
}
