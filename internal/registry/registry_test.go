package registry

import (
	"testing"

	"github.com/hashicorp/go-multierror"
)

const validYAML = `
models:
  model-a:
    provider: anthropic
    capabilities: [structured_output]
    max_context: 200000
    cost_per_1k: {input: 0.003, output: 0.015}
  model-b:
    provider: openai
    capabilities: [structured_output, vision]
    max_context: 128000
    cost_per_1k: {input: 0.002, output: 0.01}
actions:
  course_structuring:
    description: synthesize a course tree
    requires: [structured_output]
routing:
  course_structuring:
    default: [model-a, model-b]
    quality: [model-b]
`

func TestLoadBytesValid(t *testing.T) {
	reg, err := LoadBytes([]byte(validYAML))
	if err != nil {
		t.Fatal(err)
	}
	chain, err := reg.GetChain("course_structuring", "default")
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 2 || chain[0].ID != "model-a" {
		t.Fatalf("unexpected chain: %+v", chain)
	}
}

func TestGetChainUnknownStrategyFallsBackToDefault(t *testing.T) {
	reg, err := LoadBytes([]byte(validYAML))
	if err != nil {
		t.Fatal(err)
	}
	chain, err := reg.GetChain("course_structuring", "budget")
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 2 {
		t.Fatalf("expected fallback to default chain, got %+v", chain)
	}
}

func TestLoadBytesMissingDefaultStrategyFails(t *testing.T) {
	bad := `
models:
  model-a:
    provider: anthropic
    capabilities: [structured_output]
    cost_per_1k: {input: 0.003, output: 0.015}
actions:
  course_structuring:
    requires: [structured_output]
routing:
  course_structuring:
    quality: [model-a]
`
	_, err := LoadBytes([]byte(bad))
	if err == nil {
		t.Fatalf("expected validation error for missing default strategy")
	}
}

func TestLoadBytesAccumulatesMultipleErrors(t *testing.T) {
	bad := `
models: {}
actions:
  course_structuring:
    requires: [structured_output]
routing:
  unknown_action:
    default: []
  course_structuring:
    quality: [missing-model]
`
	err := func() error {
		_, err := LoadBytes([]byte(bad))
		return err
	}()
	if err == nil {
		t.Fatalf("expected accumulated validation errors")
	}
	merr, ok := err.(*multierror.Error)
	if !ok || len(merr.Errors) < 2 {
		t.Fatalf("expected several accumulated errors, got %v", err)
	}
}

func TestEstimateCost(t *testing.T) {
	m := ModelConfig{CostPer1K: CostPer1K{Input: 1, Output: 2}}
	cost := m.EstimateCost(1000, 500)
	if cost != 2.0 {
		t.Fatalf("expected 2.0, got %f", cost)
	}
}
