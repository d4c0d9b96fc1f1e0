package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/registry"
	"github.com/course-supporter/platform/internal/svcerrors"
)

const testRegistryYAML = `
models:
  model-a:
    provider: fake-a
    capabilities: [structured_output]
    cost_per_1k: {input: 0, output: 0}
  model-b:
    provider: fake-b
    capabilities: [structured_output]
    cost_per_1k: {input: 0, output: 0}
  model-c:
    provider: fake-c
    capabilities: [structured_output]
    cost_per_1k: {input: 0, output: 0}
actions:
  course_structuring:
    requires: [structured_output]
routing:
  course_structuring:
    default: [model-a, model-b, model-c]
`

type scriptedProvider struct {
	name       string
	enabled    bool
	calls      int
	structured func(call int) (map[string]interface{}, Response, error)
}

func (p *scriptedProvider) Name() string { return p.name }
func (p *scriptedProvider) Enabled() bool { return p.enabled }
func (p *scriptedProvider) Disable(reason string) { p.enabled = false }
func (p *scriptedProvider) Enable() { p.enabled = true }

func (p *scriptedProvider) Complete(ctx context.Context, req Request) (Response, error) {
	_, resp, err := p.CompleteStructured(ctx, req, "", nil)
	return resp, err
}

func (p *scriptedProvider) CompleteStructured(ctx context.Context, req Request, schemaName string, schema map[string]interface{}) (map[string]interface{}, Response, error) {
	p.calls++
	return p.structured(p.calls)
}

func TestRouterFallbackScenario(t *testing.T) {
	reg, err := registry.LoadBytes([]byte(testRegistryYAML))
	if err != nil {
		t.Fatal(err)
	}

	a := &scriptedProvider{name: "fake-a", enabled: true, structured: func(call int) (map[string]interface{}, Response, error) {
		return nil, Response{}, svcerrors.StructuredOutputError("fake-a", "schema", fmt.Errorf("bad json"))
	}}
	b := &scriptedProvider{name: "fake-b", enabled: false} // Disabled, skipped without attempts
	cCalls := 0
	c := &scriptedProvider{name: "fake-c", enabled: true, structured: func(call int) (map[string]interface{}, Response, error) {
		cCalls++
		return map[string]interface{}{"ok": true}, Response{}, nil
	}}

	var audited []domain.LLMCall
	router := NewRouter(reg, map[string]Provider{
		"fake-a": a, "fake-b": b, "fake-c": c,
	}, 2, func(ctx context.Context, call domain.LLMCall) {
		audited = append(audited, call)
	})

	parsed, resp, err := router.CompleteStructured(context.Background(), "course_structuring", "default", Request{}, "schema", map[string]interface{}{})
	if err != nil {
		t.Fatalf("expected success via fallback, got %v", err)
	}
	if parsed["ok"] != true {
		t.Fatalf("expected parsed output from model-c, got %+v", parsed)
	}
	if resp.Provider != "fake-c" {
		t.Fatalf("expected final response from fake-c, got %s", resp.Provider)
	}
	if a.calls != 2 {
		t.Fatalf("expected model-a retried max_attempts=2 times, got %d", a.calls)
	}
	if b.calls != 0 {
		t.Fatalf("expected disabled provider to consume zero attempts, got %d", b.calls)
	}

	successCount := 0
	failCount := 0
	for _, call := range audited {
		if call.Success {
			successCount++
		} else {
			failCount++
		}
	}
	if successCount != 1 || failCount != 2 {
		t.Fatalf("expected 2 failed + 1 success audit rows, got success=%d fail=%d", successCount, failCount)
	}
}

func TestRouterAllModelsFailed(t *testing.T) {
	reg, err := registry.LoadBytes([]byte(testRegistryYAML))
	if err != nil {
		t.Fatal(err)
	}

	fail := func(call int) (map[string]interface{}, Response, error) {
		return nil, Response{}, fmt.Errorf("transport error")
	}
	a := &scriptedProvider{name: "fake-a", enabled: true, structured: fail}
	b := &scriptedProvider{name: "fake-b", enabled: true, structured: fail}
	c := &scriptedProvider{name: "fake-c", enabled: true, structured: fail}

	router := NewRouter(reg, map[string]Provider{"fake-a": a, "fake-b": b, "fake-c": c}, 2, nil)
	_, _, err = router.CompleteStructured(context.Background(), "course_structuring", "default", Request{}, "schema", map[string]interface{}{})
	if err == nil {
		t.Fatalf("expected AllModelsFailed")
	}
	se, ok := svcerrors.As(err)
	if !ok || se.Code != svcerrors.CodeAllModelsFailed {
		t.Fatalf("expected AllModelsFailed code, got %v", err)
	}
}
