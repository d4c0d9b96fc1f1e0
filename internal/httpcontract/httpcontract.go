// Package httpcontract defines request/response shapes for the HTTP
// surface named in the external interface contract. It holds types only;
// no transport or handler wiring lives here.
package httpcontract

import "github.com/course-supporter/platform/internal/domain"

// CreateCourseRequest is the body of POST /courses.
type CreateCourseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// CourseResponse is the body of GET /courses/{id} and the POST response.
type CourseResponse struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Tree        []MaterialNodeSummary `json:"tree,omitempty"`
}

// MaterialNodeSummary is one node in a course's nested tree response.
type MaterialNodeSummary struct {
	ID       string                 `json:"id"`
	Title    string                 `json:"title"`
	Children []MaterialNodeSummary  `json:"children,omitempty"`
	Entries  []MaterialEntrySummary `json:"entries,omitempty"`
}

// MaterialEntrySummary is one entry under a node in the tree response.
type MaterialEntrySummary struct {
	ID         string                    `json:"id"`
	SourceType domain.SourceType         `json:"source_type"`
	State      domain.MaterialEntryState `json:"state"`
	Filename   *string                   `json:"filename,omitempty"`
}

// CreateMaterialRequest is the non-file portion of the multipart
// POST /courses/{id}/materials body.
type CreateMaterialRequest struct {
	NodeID     string            `json:"node_id"`
	SourceType domain.SourceType `json:"source_type"`
	SourceURL  *string           `json:"source_url,omitempty"`
	Filename   *string           `json:"filename,omitempty"`
}

// MaterialResponse is returned from POST /courses/{id}/materials.
type MaterialResponse struct {
	ID    string  `json:"id"`
	JobID *string `json:"job_id,omitempty"`
}

// CreateSlideMappingRequest is the body of POST /courses/{id}/slide-mapping.
type CreateSlideMappingRequest struct {
	NodeID              string `json:"node_id"`
	PresentationEntryID string `json:"presentation_entry_id"`
	VideoEntryID        string `json:"video_entry_id"`
	SlideNumber         int    `json:"slide_number"`
	VideoTimecodeStartMS int64 `json:"video_timecode_start_ms"`
	VideoTimecodeEndMS  *int64 `json:"video_timecode_end_ms,omitempty"`
}

// JobResponse is the body of GET /jobs/{id}.
type JobResponse struct {
	ID               string             `json:"id"`
	Status           domain.JobStatus   `json:"status"`
	JobType          domain.JobType     `json:"job_type"`
	ResultMaterialID *string            `json:"result_material_id,omitempty"`
	ResultSnapshotID *string            `json:"result_snapshot_id,omitempty"`
	ErrorMessage     *string            `json:"error_message,omitempty"`
	QueuePosition    *int               `json:"queue_position,omitempty"`
	EstimatedStart   *string            `json:"estimated_start,omitempty"`
}

// GenerationConflictDetail is the body shape returned alongside a 409.
type GenerationConflictDetail struct {
	JobID  string  `json:"job_id"`
	NodeID *string `json:"node_id,omitempty"`
	Reason string  `json:"reason"`
}

// CostReportResponse is the body of GET /reports/cost.
type CostReportResponse struct {
	TotalCalls     int64             `json:"total_calls"`
	TotalSuccesses int64             `json:"total_successes"`
	TotalCostUSD   float64           `json:"total_cost_usd"`
	ByActionModel  []CostBreakdownDTO `json:"by_action_model"`
}

// CostBreakdownDTO mirrors reports.Breakdown for wire serialization.
type CostBreakdownDTO struct {
	Action    string  `json:"action"`
	Provider  string  `json:"provider"`
	Model     string  `json:"model"`
	Calls     int64   `json:"calls"`
	Successes int64   `json:"successes"`
	TokensIn  int64   `json:"tokens_in"`
	TokensOut int64   `json:"tokens_out"`
	CostUSD   float64 `json:"cost_usd"`
}
