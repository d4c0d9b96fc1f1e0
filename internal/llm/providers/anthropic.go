package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/course-supporter/platform/internal/llm"
)

// Anthropic talks to the Messages API using x-api-key auth. Structured
// output embeds the schema in the system prompt; tool use is not used.
type Anthropic struct {
	base
	apiKey       string
	baseURL      string
	defaultModel string
}

func NewAnthropic(apiKey, baseURL, defaultModel string, limiter *rate.Limiter) *Anthropic {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	return &Anthropic{
		base:         newBase("anthropic", limiter),
		apiKey:       apiKey,
		baseURL:      baseURL,
		defaultModel: defaultModel,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string              `json:"model"`
	System    string              `json:"system,omitempty"`
	Messages  []anthropicMessage  `json:"messages"`
	MaxTokens int                 `json:"max_tokens"`
	Temperature float64           `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (a *Anthropic) modelOrDefault(req llm.Request) string {
	if req.ModelID != "" {
		return req.ModelID
	}
	return a.defaultModel
}

func (a *Anthropic) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	body, _ := json.Marshal(anthropicRequest{
		Model:       a.modelOrDefault(req),
		System:      req.SystemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})

	raw, status, err := a.doRequest(ctx, "POST", a.baseURL+"/messages", map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": "2023-06-01",
	}, body)
	if err != nil {
		return llm.Response{}, err
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return llm.Response{}, fmt.Errorf("anthropic: unmarshal response: %w", err)
	}
	if status >= 400 || parsed.Error != nil {
		msg := "unknown error"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return llm.Response{}, fmt.Errorf("anthropic: status %d: %s", status, msg)
	}

	content := ""
	if len(parsed.Content) > 0 {
		content = parsed.Content[0].Text
	}
	tokensIn := parsed.Usage.InputTokens
	tokensOut := parsed.Usage.OutputTokens

	return llm.Response{
		Content:   content,
		ModelID:   a.modelOrDefault(req),
		TokensIn:  &tokensIn,
		TokensOut: &tokensOut,
	}, nil
}

func (a *Anthropic) CompleteStructured(ctx context.Context, req llm.Request, schemaName string, schema map[string]interface{}) (map[string]interface{}, llm.Response, error) {
	req.SystemPrompt = embedSchemaPrompt(req.SystemPrompt, schemaName, schema)
	resp, err := a.Complete(ctx, req)
	if err != nil {
		return nil, resp, err
	}
	parsed, err := parseStructuredContent(a.name, schemaName, resp.Content)
	if err != nil {
		return nil, resp, err
	}
	return parsed, resp, nil
}
