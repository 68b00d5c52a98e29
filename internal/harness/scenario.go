package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one scripted draw flow.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// IDs is the fixed sequence of generated IDs, consumed in order:
	// one history ID per committed draw, then one per winner.
	IDs []string `yaml:"ids"`

	// Seed is the store content before the first step.
	Seed Seed `yaml:"seed"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`
}

// Seed describes the initial collections.
type Seed struct {
	Lists  []SeedList  `yaml:"lists"`
	Prizes []SeedPrize `yaml:"prizes"`
}

type SeedList struct {
	ID      string      `yaml:"id"`
	Name    string      `yaml:"name"`
	Entries []SeedEntry `yaml:"entries"`
}

type SeedEntry struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type SeedPrize struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Quantity int    `yaml:"quantity"`
}

// Step is either a draw or an undo. Expect names the error code the step
// must fail with; an empty Expect means the step must succeed.
type Step struct {
	Draw   *DrawStep `yaml:"draw,omitempty"`
	Undo   bool      `yaml:"undo,omitempty"`
	Expect string    `yaml:"expect,omitempty"`
}

// DrawStep configures one draw.
type DrawStep struct {
	Lists         []string `yaml:"lists"`
	Prize         string   `yaml:"prize"`
	Count         int      `yaml:"count"`
	ExcludePrior  bool     `yaml:"exclude_prior,omitempty"`
	RemoveWinners bool     `yaml:"remove_winners,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	for i, step := range s.Steps {
		if step.Draw == nil && !step.Undo {
			return fmt.Errorf("step %d: must be a draw or an undo", i)
		}
		if step.Draw != nil && step.Undo {
			return fmt.Errorf("step %d: cannot be both a draw and an undo", i)
		}
		if step.Draw != nil && step.Draw.Count < 1 {
			return fmt.Errorf("step %d: draw count must be at least 1", i)
		}
	}
	return nil
}
