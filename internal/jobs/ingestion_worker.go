package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
	"github.com/adaptivenexus/scandoq-chatboat/internal/telemetry"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3
)

// IngestionJobRepository defines the interface for ingestion job persistence
type IngestionJobRepository interface {
	// GetPendingJobs retrieves and claims pending ingestion jobs
	GetPendingJobs(ctx context.Context) ([]*domain.IngestionJob, error)

	// UpdateJobStatus updates the status of an ingestion job
	UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg string) error

	// CompleteJob marks a job completed with the outcome of its run
	CompleteJob(ctx context.Context, jobID string, result *domain.IngestResult) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error
}

// Ingester runs ingestion of a single document
type Ingester interface {
	Ingest(ctx context.Context, documentID string) (*domain.IngestResult, error)
}

// IngestionWorker processes ingestion jobs
type IngestionWorker struct {
	repo     IngestionJobRepository
	ingester Ingester
}

// NewIngestionWorker creates a new IngestionWorker instance
func NewIngestionWorker(repo IngestionJobRepository, ingester Ingester) *IngestionWorker {
	return &IngestionWorker{
		repo:     repo,
		ingester: ingester,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestionWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending ingestion jobs", len(jobs))

	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *IngestionWorker) processJob(ctx context.Context, job *domain.IngestionJob) error {
	ctx, span := telemetry.StartTransaction(ctx, "IngestionWorker.processJob", telemetry.OpIngestJob)
	defer span.End()

	log.Printf("Processing job %s for document %s", job.ID, job.DocumentID)
	result, err := w.ingester.Ingest(ctx, job.DocumentID)

	// Job bookkeeping must land even when shutdown cancelled the batch.
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.CompleteJob(ctx, job.ID, result); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	if result.Partial() {
		log.Printf("Job %s completed with %d of %d chunks stored", job.ID, result.ChunkCount, result.TotalChunks)
		return nil
	}
	log.Printf("Job %s completed successfully (%d chunks)", job.ID, result.ChunkCount)
	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *IngestionWorker) handleJobFailure(ctx context.Context, job *domain.IngestionJob, jobErr error) error {
	// Someone else holds the document; try again on a later poll.
	if errors.Is(jobErr, domain.ErrIngestionInProgress) {
		log.Printf("Job %s deferred: document %s is being processed", job.ID, job.DocumentID)
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.JobStatusPending, ""); err != nil {
			return fmt.Errorf("failed to reset job status to pending: %w", err)
		}
		return nil
	}

	log.Printf("Job %s failed: %v", job.ID, jobErr)
	note := job.FailureNote(jobErr, MaxRetries)

	if !domain.IsRetryable(jobErr) {
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.JobStatusFailed, note); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.LastAttempt(MaxRetries) {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.JobStatusFailed, note); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.JobStatusPending, note); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
