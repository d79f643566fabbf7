package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ParseJSON decodes a plan from JSON. Parsing is deliberately lenient:
// structural executability is the validator's job, so an empty or broken
// plan parses fine and is rejected later with a precise message.
func ParseJSON(data []byte) (*Plan, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON payload")
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse json plan: %w", err)
	}
	normalize(&p)
	return &p, nil
}

// ParseYAML decodes a plan from YAML.
func ParseYAML(data []byte) (*Plan, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty YAML payload")
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse yaml plan: %w", err)
	}
	normalize(&p)
	return &p, nil
}

// MarshalJSON serializes a plan to JSON. Use pretty for indented output.
func MarshalJSON(p *Plan, pretty bool) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("plan is nil")
	}
	if pretty {
		return json.MarshalIndent(p, "", "  ")
	}
	return json.Marshal(p)
}

// MarshalYAML serializes a plan to YAML.
func MarshalYAML(p *Plan) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("plan is nil")
	}
	return yaml.Marshal(p)
}

// Load reads a plan from a YAML or JSON file.
func Load(path string) (*Plan, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("plan path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return parseAuto(data)
	}
}

func parseAuto(data []byte) (*Plan, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if p, err := ParseJSON(data); err == nil {
			return p, nil
		}
	}
	if p, err := ParseYAML(data); err == nil {
		return p, nil
	}
	if p, err := ParseJSON(data); err == nil {
		return p, nil
	}
	return nil, fmt.Errorf("unsupported plan format")
}

// normalize trims action names and output keys and assigns a plan ID when
// the proposer did not supply one.
func normalize(p *Plan) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	for i := range p.Steps {
		p.Steps[i].Action = strings.TrimSpace(p.Steps[i].Action)
		p.Steps[i].OutputKey = strings.TrimSpace(p.Steps[i].OutputKey)
	}
}
