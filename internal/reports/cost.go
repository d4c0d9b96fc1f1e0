// Package reports aggregates LLMCall audit rows into cost summaries.
package reports

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/course-supporter/platform/internal/svcerrors"
)

// Breakdown is one (action, provider, model) slice of a CostSummary.
type Breakdown struct {
	Action    string
	Provider  string
	Model     string
	Calls     int64
	Successes int64
	TokensIn  int64
	TokensOut int64
	CostUSD   float64
}

// CostSummary is the tenant-scoped cost report returned to callers.
type CostSummary struct {
	TotalCalls     int64
	TotalSuccesses int64
	TotalCostUSD   float64
	ByActionModel  []Breakdown
}

// Repository reads aggregates directly; it writes nothing, since LLMCall
// rows are written by the router's audit callback.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Summary aggregates every LLMCall for tenantID, optionally narrowed to a
// single course.
func (r *Repository) Summary(ctx context.Context, tenantID string, courseID *string) (*CostSummary, error) {
	query := `
		SELECT action, provider, model,
		       count(*) AS calls,
		       count(*) FILTER (WHERE success) AS successes,
		       coalesce(sum(tokens_in), 0) AS tokens_in,
		       coalesce(sum(tokens_out), 0) AS tokens_out,
		       coalesce(sum(cost_usd), 0) AS cost_usd
		FROM llm_calls
		WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if courseID != nil {
		query += " AND course_id = $2"
		args = append(args, *courseID)
	}
	query += " GROUP BY action, provider, model ORDER BY cost_usd DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, svcerrors.DatabaseError(err)
	}
	defer rows.Close()

	summary := &CostSummary{}
	for rows.Next() {
		var b Breakdown
		if err := rows.Scan(&b.Action, &b.Provider, &b.Model, &b.Calls, &b.Successes, &b.TokensIn, &b.TokensOut, &b.CostUSD); err != nil {
			return nil, svcerrors.DatabaseError(err)
		}
		summary.ByActionModel = append(summary.ByActionModel, b)
		summary.TotalCalls += b.Calls
		summary.TotalSuccesses += b.Successes
		summary.TotalCostUSD += b.CostUSD
	}
	if err := rows.Err(); err != nil {
		return nil, svcerrors.DatabaseError(err)
	}
	return summary, nil
}

// RecordCall persists a single LLMCall row; called by the router's audit
// callback, which threads tenant/course context the router itself doesn't
// carry.
func (r *Repository) RecordCall(ctx context.Context, tenantID string, courseID *string, action, strategy, provider, model string, tokensIn, tokensOut *int, latencyMS int64, costUSD *float64, success bool, errorMessage *string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO llm_calls (id, tenant_id, course_id, action, strategy, provider, model,
		                        tokens_in, tokens_out, latency_ms, cost_usd, success, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, uuid.NewString(), tenantID, courseID, action, strategy, provider, model, tokensIn, tokensOut, latencyMS, costUSD, success, errorMessage)
	if err != nil {
		return svcerrors.DatabaseError(err)
	}
	return nil
}
