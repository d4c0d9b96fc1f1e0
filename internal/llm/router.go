package llm

import (
	"context"
	"time"

	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/registry"
	"github.com/course-supporter/platform/internal/svcerrors"
)

// LogCallback is invoked once per attempt; failures here must never
// interrupt LLM flow, so the router recovers and discards a panic from it.
type LogCallback func(ctx context.Context, call domain.LLMCall)

// Router resolves (action, strategy) to a chain via the Registry, then
// drives provider adapters through it with bounded per-model retries.
type Router struct {
	registry    *registry.Registry
	providers   map[string]Provider
	maxAttempts int
	onCall      LogCallback
}

func NewRouter(reg *registry.Registry, providers map[string]Provider, maxAttempts int, onCall LogCallback) *Router {
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	return &Router{registry: reg, providers: providers, maxAttempts: maxAttempts, onCall: onCall}
}

// Complete runs the plain-text completion path across the resolved chain.
func (r *Router) Complete(ctx context.Context, action, strategy string, req Request) (Response, error) {
	resp, _, err := r.run(ctx, action, strategy, req, nil, "")
	return resp, err
}

// CompleteStructured runs the schema-validated completion path.
func (r *Router) CompleteStructured(ctx context.Context, action, strategy string, req Request, schemaName string, schema map[string]interface{}) (map[string]interface{}, Response, error) {
	resp, parsed, err := r.run(ctx, action, strategy, req, schema, schemaName)
	return parsed, resp, err
}

func (r *Router) run(ctx context.Context, action, strategy string, req Request, schema map[string]interface{}, schemaName string) (Response, map[string]interface{}, error) {
	chain, err := r.registry.GetChain(action, strategy)
	if err != nil {
		return Response{}, nil, svcerrors.ValidationFailure("%v", err)
	}

	req.Action = action
	req.Strategy = strategy

	reasons := make(map[string]string, len(chain))

	for _, model := range chain {
		provider, ok := r.providers[model.Provider]
		if !ok {
			reasons[model.ID] = "no adapter registered for provider " + model.Provider
			continue
		}

		if !provider.Enabled() {
			reasons[model.ID] = "provider disabled"
			continue // skipped without consuming an attempt
		}

		attemptReq := req
		attemptReq.ModelID = model.ID

		var lastErr error
		for attempt := 1; attempt <= r.maxAttempts; attempt++ {
			start := time.Now()

			var resp Response
			var parsed map[string]interface{}
			var err error
			if schema != nil {
				parsed, resp, err = provider.CompleteStructured(ctx, attemptReq, schemaName, schema)
			} else {
				resp, err = provider.Complete(ctx, attemptReq)
			}

			latency := time.Since(start).Milliseconds()
			if resp.LatencyMS == 0 {
				resp.LatencyMS = latency
			}
			resp.Provider = model.Provider
			resp.ModelID = model.ID
			resp.Timestamp = time.Now().UTC()

			if resp.TokensIn != nil && resp.TokensOut != nil {
				cost := model.EstimateCost(*resp.TokensIn, *resp.TokensOut)
				resp.CostUSD = &cost
			}

			r.audit(ctx, action, strategy, model.Provider, model.ID, resp, err)

			if err == nil {
				return resp, parsed, nil
			}

			lastErr = err

			if se, ok := svcerrors.As(err); ok && se.Code == svcerrors.CodeStructuredOutput {
				continue // retry within the same model
			}
			// Transport or other failure: stop retrying this model.
			break
		}

		if lastErr != nil {
			reasons[model.ID] = lastErr.Error()
		}
	}

	return Response{}, nil, svcerrors.AllModelsFailed(reasons)
}

func (r *Router) audit(ctx context.Context, action, strategy, provider, modelID string, resp Response, callErr error) {
	if r.onCall == nil {
		return
	}
	var errMsg *string
	if callErr != nil {
		msg := callErr.Error()
		errMsg = &msg
	}
	call := domain.LLMCall{
		Action:       action,
		Strategy:     strategy,
		Provider:     provider,
		Model:        modelID,
		TokensIn:     resp.TokensIn,
		TokensOut:    resp.TokensOut,
		LatencyMS:    resp.LatencyMS,
		CostUSD:      resp.CostUSD,
		Success:      callErr == nil,
		ErrorMessage: errMsg,
	}
	// Best-effort: the callback owns its own failure isolation (e.g. a
	// dedicated transaction); the router never blocks on or propagates it.
	func() {
		defer func() { _ = recover() }()
		r.onCall(ctx, call)
	}()
}
