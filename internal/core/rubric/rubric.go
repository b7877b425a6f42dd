package rubric

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v2"
)

//go:embed rubric.yaml
var rubricYAML []byte

type Dimension struct {
	Field  string `yaml:"field"`
	Column string `yaml:"column"`
}

// Rubric is the fixed evaluation prompt sent with every image, together with
// the answer schema the validator enforces: NameField and each Dimension.Field
// are exact JSON keys, and every score must lie in [MinScore, MaxScore].
type Rubric struct {
	Version      string      `yaml:"version"`
	SystemPrompt string      `yaml:"system_prompt"`
	Instruction  string      `yaml:"instruction"`
	NameField    string      `yaml:"name_field"`
	MinScore     int         `yaml:"min_score"`
	MaxScore     int         `yaml:"max_score"`
	Dimensions   []Dimension `yaml:"dimensions"`
}

const defaultNameField = "Name"

func Load() (*Rubric, error) {
	var r Rubric
	if err := yaml.Unmarshal(rubricYAML, &r); err != nil {
		return nil, fmt.Errorf("error parsing rubric: %w", err)
	}

	if r.SystemPrompt == "" || r.Instruction == "" {
		return nil, fmt.Errorf("rubric %q is missing prompt text", r.Version)
	}
	if len(r.Dimensions) == 0 {
		return nil, fmt.Errorf("rubric %q has no dimensions", r.Version)
	}
	for _, d := range r.Dimensions {
		if d.Field == "" {
			return nil, fmt.Errorf("rubric %q has a dimension without a field", r.Version)
		}
	}
	if r.NameField == "" {
		r.NameField = defaultNameField
	}
	if r.MinScore > r.MaxScore {
		return nil, fmt.Errorf("rubric %q has invalid score range [%d, %d]", r.Version, r.MinScore, r.MaxScore)
	}

	return &r, nil
}

// Columns returns the CSV header: the author name followed by one column per dimension.
func (r *Rubric) Columns() []string {
	cols := []string{"Name"}
	for _, d := range r.Dimensions {
		cols = append(cols, d.Column)
	}
	return cols
}
