package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/course-supporter/platform/internal/llm"
)

// Gemini talks to the generateContent API, using generationConfig's
// responseSchema for native structured output.
type Gemini struct {
	base
	apiKey       string
	baseURL      string
	defaultModel string
}

func NewGemini(apiKey, baseURL, defaultModel string, limiter *rate.Limiter) *Gemini {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &Gemini{
		base:         newBase("gemini", limiter),
		apiKey:       apiKey,
		baseURL:      baseURL,
		defaultModel: defaultModel,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64                `json:"temperature,omitempty"`
	MaxOutputTokens  int                    `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string                 `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]interface{} `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  geminiGenerationConfig  `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *Gemini) modelOrDefault(req llm.Request) string {
	if req.ModelID != "" {
		return req.ModelID
	}
	return g.defaultModel
}

func (g *Gemini) complete(ctx context.Context, req llm.Request, schema map[string]interface{}) (llm.Response, error) {
	wireReq := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if req.SystemPrompt != "" {
		wireReq.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}
	if schema != nil {
		wireReq.GenerationConfig.ResponseMimeType = "application/json"
		wireReq.GenerationConfig.ResponseSchema = schema
	}

	body, _ := json.Marshal(wireReq)
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.modelOrDefault(req), g.apiKey)
	raw, status, err := g.doRequest(ctx, "POST", url, nil, body)
	if err != nil {
		return llm.Response{}, err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return llm.Response{}, fmt.Errorf("gemini: unmarshal response: %w", err)
	}
	if status >= 400 || parsed.Error != nil {
		msg := "unknown error"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return llm.Response{}, fmt.Errorf("gemini: status %d: %s", status, msg)
	}

	content := ""
	if len(parsed.Candidates) > 0 && len(parsed.Candidates[0].Content.Parts) > 0 {
		content = parsed.Candidates[0].Content.Parts[0].Text
	}
	tokensIn := parsed.UsageMetadata.PromptTokenCount
	tokensOut := parsed.UsageMetadata.CandidatesTokenCount

	return llm.Response{
		Content:   content,
		ModelID:   g.modelOrDefault(req),
		TokensIn:  &tokensIn,
		TokensOut: &tokensOut,
	}, nil
}

func (g *Gemini) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	return g.complete(ctx, req, nil)
}

func (g *Gemini) CompleteStructured(ctx context.Context, req llm.Request, schemaName string, schema map[string]interface{}) (map[string]interface{}, llm.Response, error) {
	resp, err := g.complete(ctx, req, schema)
	if err != nil {
		return nil, resp, err
	}
	parsed, err := parseStructuredContent(g.name, schemaName, resp.Content)
	if err != nil {
		return nil, resp, err
	}
	return parsed, resp, nil
}
