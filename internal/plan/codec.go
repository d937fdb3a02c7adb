package plan

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zenithsec/helmsman/internal/types"
)

// EncodeYAML writes the plan to w as YAML.
func EncodeYAML(w io.Writer, p *Plan) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return enc.Close()
}

// DecodeYAML reads a plan from r. Missing task statuses and risk levels
// are normalized the same way NewPlan normalizes them, and a missing id
// gets a fresh one, so hand-written plan files stay minimal.
func DecodeYAML(r io.Reader) (*Plan, error) {
	var p Plan
	if err := yaml.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if p.ID.IsZero() {
		p.ID = types.NewID()
	}
	if p.Status == "" {
		p.Status = types.PlanStatusDraft
	}
	if p.Settings == (Settings{}) {
		p.Settings = DefaultSettings()
	}
	for _, t := range p.Tasks {
		if t == nil {
			return nil, fmt.Errorf("plan contains a null task entry")
		}
		if t.Status == "" {
			t.Status = types.TaskStatusPending
		}
		if t.RiskLevel == "" {
			t.RiskLevel = types.RiskLevelLow
		}
	}
	return &p, nil
}

// LoadFile reads and decodes a plan YAML file.
func LoadFile(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan file: %w", err)
	}
	defer f.Close()
	return DecodeYAML(f)
}

// SaveFile encodes the plan to a YAML file, replacing any existing
// content.
func SaveFile(path string, p *Plan) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plan file: %w", err)
	}
	if err := EncodeYAML(f, p); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
