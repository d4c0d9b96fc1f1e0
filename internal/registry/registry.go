// Package registry loads and validates the declarative YAML model
// catalog: models, actions, and per-action routing chains.
package registry

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// ModelConfig is one entry under the top-level "models" key.
type ModelConfig struct {
	ID           string
	Provider     string            `yaml:"provider"`
	Capabilities []string          `yaml:"capabilities"`
	MaxContext   int               `yaml:"max_context"`
	CostPer1K    CostPer1K         `yaml:"cost_per_1k"`
}

type CostPer1K struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// EstimateCost computes the dollar cost of a completion.
func (m ModelConfig) EstimateCost(tokensIn, tokensOut int) float64 {
	return float64(tokensIn)*m.CostPer1K.Input/1000 + float64(tokensOut)*m.CostPer1K.Output/1000
}

// ActionConfig is one entry under "actions".
type ActionConfig struct {
	Description string   `yaml:"description"`
	Requires    []string `yaml:"requires"`
}

type rawFile struct {
	Models  map[string]ModelConfig              `yaml:"models"`
	Actions map[string]ActionConfig             `yaml:"actions"`
	Routing map[string]map[string][]string      `yaml:"routing"`
}

// Registry is the validated, in-memory catalog.
type Registry struct {
	models  map[string]ModelConfig
	actions map[string]ActionConfig
	routing map[string]map[string][]string
}

// Load reads and validates path, returning an accumulated multierror if
// any rule is violated; a bad registry must abort startup.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model registry %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates raw YAML content, for tests and embedded
// catalogs.
func LoadBytes(data []byte) (*Registry, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse model registry: %w", err)
	}

	for id, m := range raw.Models {
		m.ID = id
		raw.Models[id] = m
	}

	reg := &Registry{models: raw.Models, actions: raw.Actions, routing: raw.Routing}

	var result *multierror.Error
	for action, strategies := range raw.Routing {
		actionConfig, actionExists := raw.Actions[action]
		if !actionExists {
			result = multierror.Append(result, fmt.Errorf("routing action %q does not exist in actions", action))
			continue
		}
		if _, hasDefault := strategies["default"]; !hasDefault {
			result = multierror.Append(result, fmt.Errorf("routing action %q has no default strategy", action))
		}
		for strategy, chain := range strategies {
			if len(chain) == 0 {
				result = multierror.Append(result, fmt.Errorf("routing %q/%q has an empty chain", action, strategy))
				continue
			}
			for _, modelID := range chain {
				model, ok := raw.Models[modelID]
				if !ok {
					result = multierror.Append(result, fmt.Errorf("routing %q/%q references unknown model %q", action, strategy, modelID))
					continue
				}
				for _, required := range actionConfig.Requires {
					if !hasCapability(model, required) {
						result = multierror.Append(result, fmt.Errorf(
							"model %q in routing %q/%q is missing required capability %q", modelID, action, strategy, required))
					}
				}
			}
		}
	}

	if result != nil {
		return nil, result.ErrorOrNil()
	}
	return reg, nil
}

func hasCapability(m ModelConfig, capability string) bool {
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// GetChain resolves (action, strategy) to an ordered list of ModelConfig.
// An unknown strategy falls back to "default"; a registry-valid-but-absent
// strategy chain is impossible post-validation, so this never fails for a
// registry that loaded successfully, except for an unknown action.
func (r *Registry) GetChain(action, strategy string) ([]ModelConfig, error) {
	strategies, ok := r.routing[action]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", action)
	}
	chain, ok := strategies[strategy]
	if !ok {
		chain, ok = strategies["default"]
		if !ok {
			return nil, fmt.Errorf("action %q has no default strategy", action)
		}
	}

	resolved := make([]ModelConfig, 0, len(chain))
	for _, modelID := range chain {
		model, ok := r.models[modelID]
		if !ok {
			return nil, fmt.Errorf("chain references unknown model %q", modelID)
		}
		resolved = append(resolved, model)
	}
	return resolved, nil
}

// Model looks up a single model by ID.
func (r *Registry) Model(id string) (ModelConfig, bool) {
	m, ok := r.models[id]
	return m, ok
}
