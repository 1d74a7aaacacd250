package spec

import (
	"encoding/json"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cloudwright/internal/errors"
)

// componentWire mirrors Component for decoding. A pointer tier separates
// "absent" from tier 0, which is a valid edge tier.
type componentWire struct {
	ID          string   `yaml:"id" json:"id"`
	Service     string   `yaml:"service" json:"service"`
	Provider    Provider `yaml:"provider" json:"provider"`
	Label       string   `yaml:"label" json:"label"`
	Description string   `yaml:"description" json:"description"`
	Tier        *int     `yaml:"tier" json:"tier"`
	Config      Config   `yaml:"config" json:"config"`
}

func (w componentWire) component() Component {
	tier := DefaultTier
	if w.Tier != nil {
		tier = *w.Tier
	}
	return Component{
		ID:          w.ID,
		Service:     w.Service,
		Provider:    w.Provider,
		Label:       w.Label,
		Description: w.Description,
		Tier:        tier,
		Config:      w.Config,
	}
}

// UnmarshalYAML implements yaml.Unmarshaler
func (c *Component) UnmarshalYAML(node *yaml.Node) error {
	var w componentWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	*c = w.component()
	return nil
}

// UnmarshalJSON implements json.Unmarshaler
func (c *Component) UnmarshalJSON(data []byte) error {
	var w componentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = w.component()
	return nil
}

// Normalize fills defaults for fields the producer left unset
func (s *ArchSpec) Normalize() {
	if s.Version == 0 {
		s.Version = DefaultVersion
	}
	if s.Provider == "" {
		s.Provider = DefaultProvider
	}
	if s.Region == "" {
		s.Region = DefaultRegion
	}
	for _, c := range s.Components {
		if c.Provider == "" {
			c.Provider = s.Provider
		}
	}
	if s.CostEstimate != nil && s.CostEstimate.Currency == "" {
		s.CostEstimate.Currency = DefaultCurrency
	}
}

// ParseYAML decodes, normalizes, and validates a YAML spec
func ParseYAML(data []byte) (*ArchSpec, error) {
	var s ArchSpec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Parsing("invalid spec yaml", err)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseJSON decodes, normalizes, and validates a JSON spec
func ParseJSON(data []byte) (*ArchSpec, error) {
	var s ArchSpec
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Parsing("invalid spec json", err)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Parse sniffs the payload and decodes JSON or YAML accordingly
func Parse(data []byte) (*ArchSpec, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		return ParseJSON(data)
	}
	return ParseYAML(data)
}

// LoadFile reads and parses a spec file
func LoadFile(path string) (*ArchSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.TypeParsing, err, "read spec %s", path)
	}
	return Parse(data)
}

// ToYAML serializes the spec to YAML, the preferred write format.
// Empty maps and lists are omitted.
func (s *ArchSpec) ToYAML() ([]byte, error) {
	return yaml.Marshal(s)
}

// ToJSON serializes the spec to indented JSON
func (s *ArchSpec) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// SaveFile writes the spec as YAML
func (s *ArchSpec) SaveFile(path string) error {
	data, err := s.ToYAML()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
