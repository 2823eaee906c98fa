package capability

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"airoi.app/assessor/internal/model"
)

//go:embed capabilities.yaml
var defaultMatrix []byte

// Bounds is the honest envelope of AI capability for one phase.
type Bounds struct {
	CanDo    []string `yaml:"can_do" json:"can_do"`
	CannotDo []string `yaml:"cannot_do" json:"cannot_do"`
}

// Matrix holds Bounds per phase. Keys follow the phase horizon names used in
// prompts and over the API (quick_wins, foundation, strategic).
type Matrix struct {
	QuickWins  Bounds `yaml:"quick_wins" json:"quick_wins"`
	Foundation Bounds `yaml:"foundation" json:"foundation"`
	Strategic  Bounds `yaml:"strategic" json:"strategic"`
}

// Default returns the built-in matrix.
func Default() Matrix {
	m, err := Parse(defaultMatrix)
	if err != nil {
		panic(fmt.Sprintf("embedded capability matrix: %v", err))
	}
	return m
}

// Load reads a matrix from a YAML file. An empty path yields Default.
func Load(path string) (Matrix, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Matrix{}, fmt.Errorf("reading capability matrix: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (Matrix, error) {
	var m Matrix
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Matrix{}, fmt.Errorf("parsing capability matrix: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Matrix{}, err
	}
	return m, nil
}

// Validate requires both lists for every phase, mirroring the rule that every
// opportunity states its limits.
func (m Matrix) Validate() error {
	var errs []error
	for _, phase := range model.Phases() {
		b := m.For(phase)
		if len(b.CanDo) == 0 {
			errs = append(errs, fmt.Errorf("%s: can_do is empty", phase))
		}
		if len(b.CannotDo) == 0 {
			errs = append(errs, fmt.Errorf("%s: cannot_do is empty", phase))
		}
	}
	return errors.Join(errs...)
}

func (m Matrix) For(phase model.Phase) Bounds {
	switch phase {
	case model.PhaseQuickWin:
		return m.QuickWins
	case model.PhaseFoundation:
		return m.Foundation
	case model.PhaseStrategic:
		return m.Strategic
	}
	return Bounds{}
}

// Prompt renders the matrix as a plain-text block for agent instructions.
func (m Matrix) Prompt() string {
	var sb strings.Builder
	sb.WriteString("CAPABILITY MATRIX (stay within these bounds):\n")
	for _, phase := range model.Phases() {
		b := m.For(phase)
		fmt.Fprintf(&sb, "\n%s (%s)\n", phase, phase.Horizon())
		sb.WriteString("  AI can:\n")
		for _, item := range b.CanDo {
			fmt.Fprintf(&sb, "    - %s\n", item)
		}
		sb.WriteString("  AI cannot:\n")
		for _, item := range b.CannotDo {
			fmt.Fprintf(&sb, "    - %s\n", item)
		}
	}
	return sb.String()
}
