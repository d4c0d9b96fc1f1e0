package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/course-supporter/platform/internal/llm"
)

// OpenAICompatible covers OpenAI itself and any self-hosted
// OpenAI-compatible gateway, using native JSON-mode structured output.
type OpenAICompatible struct {
	base
	apiKey       string
	baseURL      string
	defaultModel string
}

func NewOpenAICompatible(apiKey, baseURL, defaultModel string, limiter *rate.Limiter) *OpenAICompatible {
	return &OpenAICompatible{
		base:         newBase("openai", limiter),
		apiKey:       apiKey,
		baseURL:      baseURL,
		defaultModel: defaultModel,
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (o *OpenAICompatible) modelOrDefault(req llm.Request) string {
	if req.ModelID != "" {
		return req.ModelID
	}
	return o.defaultModel
}

func (o *OpenAICompatible) buildMessages(req llm.Request) []openAIMessage {
	var messages []openAIMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})
	return messages
}

func (o *OpenAICompatible) complete(ctx context.Context, req llm.Request, jsonMode bool) (llm.Response, error) {
	wireReq := openAIRequest{
		Model:       o.modelOrDefault(req),
		Messages:    o.buildMessages(req),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if jsonMode {
		wireReq.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}

	body, _ := json.Marshal(wireReq)
	raw, status, err := o.doRequest(ctx, "POST", o.baseURL+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + o.apiKey,
	}, body)
	if err != nil {
		return llm.Response{}, err
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return llm.Response{}, fmt.Errorf("openai: unmarshal response: %w", err)
	}
	if status >= 400 || parsed.Error != nil {
		msg := "unknown error"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return llm.Response{}, fmt.Errorf("openai: status %d: %s", status, msg)
	}

	content := ""
	if len(parsed.Choices) > 0 {
		content = parsed.Choices[0].Message.Content
	}
	tokensIn := parsed.Usage.PromptTokens
	tokensOut := parsed.Usage.CompletionTokens

	return llm.Response{
		Content:   content,
		ModelID:   o.modelOrDefault(req),
		TokensIn:  &tokensIn,
		TokensOut: &tokensOut,
	}, nil
}

func (o *OpenAICompatible) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	return o.complete(ctx, req, false)
}

func (o *OpenAICompatible) CompleteStructured(ctx context.Context, req llm.Request, schemaName string, schema map[string]interface{}) (map[string]interface{}, llm.Response, error) {
	req.SystemPrompt = embedSchemaPrompt(req.SystemPrompt, schemaName, schema)
	resp, err := o.complete(ctx, req, true)
	if err != nil {
		return nil, resp, err
	}
	parsed, err := parseStructuredContent(o.name, schemaName, resp.Content)
	if err != nil {
		return nil, resp, err
	}
	return parsed, resp, nil
}
