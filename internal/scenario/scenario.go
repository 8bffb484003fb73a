package scenario

import (
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

// Demand modes.
const (
	ModeFixed  = "fixed"
	ModeRandom = "random"
)

// Scenario describes how trial demands are produced for one half of the experiment.
type Scenario struct {
	Name        string `yaml:"name" toml:"name"`
	Description string `yaml:"description,omitempty" toml:"description,omitempty"`
	Demand      Demand `yaml:"demand" toml:"demand"`
}

// Demand declares the traffic target of each trial in Mbps.
// Fixed demands repeat Mbps; random demands draw uniformly from [MinMbps, MaxMbps].
type Demand struct {
	Mode    string `yaml:"mode" toml:"mode"`
	Mbps    int    `yaml:"mbps,omitempty" toml:"mbps,omitempty"`
	MinMbps int    `yaml:"min_mbps,omitempty" toml:"min_mbps,omitempty"`
	MaxMbps int    `yaml:"max_mbps,omitempty" toml:"max_mbps,omitempty"`
}

// Load reads a YAML list of scenarios from disk.
func Load(path string) ([]Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	var out []Scenario
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse scenarios: %w", err)
	}
	for _, s := range out {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Validate checks that the demand definition can produce values.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario: name required")
	}
	switch s.Demand.Mode {
	case ModeFixed:
		if s.Demand.Mbps <= 0 {
			return fmt.Errorf("scenario %s: fixed demand must be positive, got %d", s.Name, s.Demand.Mbps)
		}
	case ModeRandom:
		if s.Demand.MinMbps <= 0 || s.Demand.MaxMbps < s.Demand.MinMbps {
			return fmt.Errorf("scenario %s: invalid random range [%d, %d]", s.Name, s.Demand.MinMbps, s.Demand.MaxMbps)
		}
	default:
		return fmt.Errorf("scenario %s: unknown demand mode %q", s.Name, s.Demand.Mode)
	}
	return nil
}

// Demands returns n trial demands. Random bounds are inclusive.
func (s Scenario) Demands(n int, rng *rand.Rand) []int {
	out := make([]int, n)
	for i := range out {
		if s.Demand.Mode == ModeRandom {
			out[i] = s.Demand.MinMbps + rng.Intn(s.Demand.MaxMbps-s.Demand.MinMbps+1)
			continue
		}
		out[i] = s.Demand.Mbps
	}
	return out
}

// Known reports whether the scenario's demand is the same for every trial.
func (s Scenario) Known() bool {
	return s.Demand.Mode == ModeFixed
}
