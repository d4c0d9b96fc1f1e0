package main

import (
	"context"
	"fmt"
	"time"

	"github.com/course-supporter/platform/internal/conflict"
	"github.com/course-supporter/platform/internal/config"
	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/generation"
	"github.com/course-supporter/platform/internal/ingestion"
	"github.com/course-supporter/platform/internal/jobs"
	"github.com/course-supporter/platform/internal/objectstore"
	"github.com/course-supporter/platform/internal/platformlog"
)

// buildObjectStore wires a Supabase-backed bucket store when credentials
// are configured, otherwise an in-memory store suitable for local
// development without external dependencies.
func buildObjectStore(cfg *config.Config) objectstore.ObjectStore {
	var client objectstore.BucketClient
	if cfg.ObjectStore.SupabaseURL != "" && cfg.ObjectStore.SupabaseServiceKey != "" {
		client = objectstore.NewSupabaseClient(cfg.ObjectStore.SupabaseURL, cfg.ObjectStore.SupabaseServiceKey)
	} else {
		client = objectstore.NewMemoryClient()
	}
	return objectstore.NewBucketStore(client, cfg.ObjectStore.Bucket, cfg.ObjectStore.MultipartThreshold, cfg.ObjectStore.PartSize)
}

// auditLogger adapts the router's per-attempt callback to the cost
// reporting repository; tenant/course context travels on the context the
// router was called with, defaulting to the empty tenant when absent (a
// system-initiated call).
func auditLogger(costRepo interface {
	RecordCall(ctx context.Context, tenantID string, courseID *string, action, strategy, provider, model string, tokensIn, tokensOut *int, latencyMS int64, costUSD *float64, success bool, errorMessage *string) error
}, log *platformlog.Logger) func(ctx context.Context, call domain.LLMCall) {
	return func(ctx context.Context, call domain.LLMCall) {
		if err := costRepo.RecordCall(ctx, call.TenantID, call.CourseID, call.Action, call.Strategy, call.Provider, call.Model,
			call.TokensIn, call.TokensOut, call.LatencyMS, call.CostUSD, call.Success, call.ErrorMessage); err != nil {
			log.WithContext(ctx).WithError(err).Warn("failed to persist LLM call audit record")
		}
	}
}

// runWorkerLoop polls the job repository every two seconds for eligible
// ingest and generate_structure jobs and drives each one through its
// orchestrator. Dispatch uses the database as the source of truth (FOR
// UPDATE SKIP LOCKED); the loop does not read the external queue.
func runWorkerLoop(ctx context.Context, cfg *config.Config, jobRepo *jobs.Repository, ingestOrch *ingestion.Orchestrator, genOrch *generation.Orchestrator, log *platformlog.Logger) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.WithContext(ctx).Info("courseapi shutting down")
			return nil
		case <-ticker.C:
			drainOnce(ctx, jobRepo, ingestOrch, genOrch, log)
		}
	}
}

func drainOnce(ctx context.Context, jobRepo *jobs.Repository, ingestOrch *ingestion.Orchestrator, genOrch *generation.Orchestrator, log *platformlog.Logger) {
	for {
		job, err := jobRepo.Dequeue(ctx, domain.JobTypeIngest)
		if err != nil {
			log.WithContext(ctx).WithError(err).Error("dequeue ingest job")
			break
		}
		if job == nil {
			break
		}
		if err := dispatchIngest(ctx, ingestOrch, job); err != nil {
			log.WithContext(ctx).WithError(err).WithField("job_id", job.ID).Warn("ingest job failed")
		}
	}

	for {
		job, err := jobRepo.Dequeue(ctx, domain.JobTypeGenerateStructure)
		if err != nil {
			log.WithContext(ctx).WithError(err).Error("dequeue generation job")
			break
		}
		if job == nil {
			break
		}
		if err := dispatchGeneration(ctx, jobRepo, genOrch, job); err != nil {
			log.WithContext(ctx).WithError(err).WithField("job_id", job.ID).Warn("generation job failed")
		}
	}
}

func dispatchIngest(ctx context.Context, orch *ingestion.Orchestrator, job *domain.Job) error {
	materialID, _ := job.InputParams["material_id"].(string)
	sourceType, _ := job.InputParams["source_type"].(string)
	storageKey, _ := job.InputParams["storage_key"].(string)

	if materialID == "" {
		return fmt.Errorf("ingest job %s missing material_id", job.ID)
	}

	return orch.Run(ctx, ingestion.Input{
		JobID:      job.ID,
		MaterialID: materialID,
		SourceType: domain.SourceType(sourceType),
		StorageKey: storageKey,
		Priority:   job.Priority,
	})
}

func dispatchGeneration(ctx context.Context, jobRepo *jobs.Repository, orch *generation.Orchestrator, job *domain.Job) error {
	mode, _ := job.InputParams["mode"].(string)
	if mode == "" {
		mode = string(domain.ModeFree)
	}

	active, err := jobRepo.ActiveForCourse(ctx, job.CourseID)
	if err != nil {
		return err
	}
	activeJobs := make([]conflict.ActiveJob, 0, len(active))
	for _, a := range active {
		if a.ID == job.ID {
			continue
		}
		activeJobs = append(activeJobs, conflict.ActiveJob{JobID: a.ID, NodeID: a.NodeID})
	}

	return orch.Run(ctx, generation.Input{
		JobID:    job.ID,
		CourseID: job.CourseID,
		NodeID:   job.NodeID,
		Mode:     domain.GenerationMode(mode),
	}, activeJobs)
}
