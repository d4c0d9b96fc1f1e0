// Package providers implements the concrete Provider adapters: Anthropic,
// an OpenAI-compatible gateway, and Gemini. All three share one HTTP
// skeleton with outbound rate limiting so a single misbehaving provider
// cannot starve the process's connection pool.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/course-supporter/platform/internal/llm"
	"github.com/course-supporter/platform/internal/svcerrors"
)

// base carries the HTTP plumbing and runtime enable/disable state common
// to every adapter.
type base struct {
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu      sync.Mutex
	enabled bool
	reason  string
}

func newBase(name string, limiter *rate.Limiter) base {
	return base{
		name:       name,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    limiter,
		enabled:    true,
	}
}

func (b *base) Name() string { return b.name }

func (b *base) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

func (b *base) Disable(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = false
	b.reason = reason
}

func (b *base) Enable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = true
	b.reason = ""
}

func (b *base) doRequest(ctx context.Context, method, url string, headers map[string]string, body []byte) ([]byte, int, error) {
	if !b.Enabled() {
		return nil, 0, svcerrors.ProviderDisabled(b.name, b.reason)
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("%s: rate limiter wait: %w", b.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("%s: build request: %w", b.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: do request: %w", b.name, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: read response: %w", b.name, err)
	}
	return out, resp.StatusCode, nil
}

// embedSchemaPrompt builds the fallback structured-output instruction for
// adapters/models without native JSON mode: embed the schema, ask for bare
// JSON.
func embedSchemaPrompt(systemPrompt, schemaName string, schema map[string]interface{}) string {
	schemaJSON, _ := json.Marshal(schema)
	var b strings.Builder
	if systemPrompt != "" {
		b.WriteString(systemPrompt)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Respond only with JSON matching this schema (%s), no markdown fences, no commentary:\n%s", schemaName, schemaJSON)
	return b.String()
}

// parseStructuredContent strips markdown fences if present and parses into
// a generic object, using gjson first as a cheap "does this already look
// like an object" check before a full json.Unmarshal.
func parseStructuredContent(provider, schemaName, content string) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if !gjson.Valid(trimmed) || !gjson.Parse(trimmed).IsObject() {
		return nil, svcerrors.StructuredOutputError(provider, schemaName, fmt.Errorf("content is not a JSON object"))
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, svcerrors.StructuredOutputError(provider, schemaName, err)
	}
	return parsed, nil
}

var _ llm.Provider = (*Anthropic)(nil)
var _ llm.Provider = (*OpenAICompatible)(nil)
var _ llm.Provider = (*Gemini)(nil)
