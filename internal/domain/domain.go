// Package domain holds the plain struct entities shared across
// repositories, state machines, and the orchestration layer. No entity
// here knows how to persist itself.
package domain

import "time"

// Tenant is the isolation and billing boundary.
type Tenant struct {
	ID        string
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// APIKey is the persisted half of an issued credential; the full secret
// is never stored, only its hash and a display prefix.
type APIKey struct {
	ID              string
	TenantID        string
	KeyHash         string
	KeyPrefix       string
	Label           string
	Scopes          []string
	RateLimitPrep   int
	RateLimitCheck  int
	IsActive        bool
	CreatedAt       time.Time
}

// Course owns a material tree, jobs, LLM call history, and snapshots.
type Course struct {
	ID          string
	TenantID    string
	Title       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MaterialNode is a node in the self-referential course tree.
type MaterialNode struct {
	ID              string
	CourseID        string
	ParentID        *string
	Title           string
	Description     string
	Order           int
	NodeFingerprint *string // nil means stale
}

// MaterialEntryState is the richer vocabulary used everywhere except the
// abstract pending/processing/done/error sub-machine named in the
// narrower spec; the mapping is pending≡RAW, processing≡PENDING,
// done≡READY, error≡ERROR, plus INTEGRITY_BROKEN with no narrow analog.
type MaterialEntryState string

const (
	MaterialRaw              MaterialEntryState = "RAW"
	MaterialPending          MaterialEntryState = "PENDING"
	MaterialReady            MaterialEntryState = "READY"
	MaterialError            MaterialEntryState = "ERROR"
	MaterialIntegrityBroken  MaterialEntryState = "INTEGRITY_BROKEN"
)

// SourceType names the kind of content a MaterialEntry wraps.
type SourceType string

const (
	SourceVideo        SourceType = "video"
	SourcePresentation SourceType = "presentation"
	SourceText         SourceType = "text"
	SourceWeb          SourceType = "web"
)

// MaterialEntry is a file or URL attached to a MaterialNode.
type MaterialEntry struct {
	ID                string
	NodeID            string
	SourceType        SourceType
	SourceURL         *string
	Filename          *string
	MimeType          *string
	StorageKey        *string
	State             MaterialEntryState
	ProcessedContent  *string
	ContentFingerprint *string
	ErrorMessage      *string
	ProcessedAt       *time.Time
	CreatedAt         time.Time
}

// JobType distinguishes background work kinds.
type JobType string

const (
	JobTypeIngest           JobType = "ingest"
	JobTypeGenerateStructure JobType = "generate_structure"
)

// JobPriority gates whether a job must wait for the work window.
type JobPriority string

const (
	PriorityNormal    JobPriority = "normal"
	PriorityImmediate JobPriority = "immediate"
)

// JobStatus is the job state machine's discrete state.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobActive    JobStatus = "active"
	JobComplete  JobStatus = "complete"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job is a durable unit of background work.
type Job struct {
	ID                string
	CourseID          string
	NodeID            *string
	JobType           JobType
	Priority          JobPriority
	Status            JobStatus
	ArqJobID          *string
	InputParams       map[string]interface{}
	ResultMaterialID  *string
	ResultSnapshotID  *string
	DependsOn         []string
	ErrorMessage      *string
	QueuedAt          time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	EstimatedAt       *time.Time
}

// LLMCall is the audit record written for every provider invocation.
type LLMCall struct {
	ID        string
	TenantID  string
	CourseID  *string
	Action    string
	Strategy  string
	Provider  string
	Model     string
	TokensIn  *int
	TokensOut *int
	LatencyMS int64
	CostUSD   *float64
	Success   bool
	ErrorMessage *string
	CreatedAt time.Time
}

// GenerationMode selects the structuring style and is part of snapshot
// identity.
type GenerationMode string

const (
	ModeFree   GenerationMode = "free"
	ModeGuided GenerationMode = "guided"
)

// NilUUID is the sentinel used in place of a null node_id in the snapshot
// identity index.
const NilUUID = "00000000-0000-0000-0000-000000000000"

// CourseStructureSnapshot is an immutable, content-addressed generation
// artifact.
type CourseStructureSnapshot struct {
	ID              string
	CourseID        string
	NodeID          *string // stored identity uses NilUUID when nil
	NodeFingerprint string
	Mode            GenerationMode
	Content         map[string]interface{}
	PromptVersion   string
	Model           string
	TokensIn        *int
	TokensOut       *int
	CostUSD         *float64
	CreatedAt       time.Time
}

// ValidationState tracks a SlideVideoMapping's review status.
type ValidationState string

const (
	ValidationValidated ValidationState = "validated"
	ValidationPending   ValidationState = "pending_validation"
	ValidationFailed    ValidationState = "validation_failed"
)

// SlideVideoMapping aligns a presentation slide with a video timecode.
type SlideVideoMapping struct {
	ID                  string
	NodeID              string
	PresentationEntryID string
	VideoEntryID        string
	SlideNumber         int
	VideoTimecodeStart  time.Duration
	VideoTimecodeEnd    *time.Duration
	Order               int
	ValidationState     ValidationState
	BlockingFactors     []string
	ValidationErrors    []string
	ValidatedAt         *time.Time
}
