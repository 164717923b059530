package domain

import (
	"fmt"
	"time"
)

// JobStatus represents the status of an ingestion job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IngestionJob is one queued run of the ingestion pipeline over a document.
// A completed job keeps how many of the document's chunks were stored.
type IngestionJob struct {
	ID           string
	DocumentID   string
	Status       JobStatus
	Retries      int32
	Error        string
	StoredChunks int
	TotalChunks  int
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// NewIngestionJob queues a fresh run for documentID.
func NewIngestionJob(id, documentID string, createdAt time.Time) *IngestionJob {
	return &IngestionJob{
		ID:         id,
		DocumentID: documentID,
		Status:     JobStatusPending,
		CreatedAt:  createdAt,
	}
}

// Finished reports whether the job reached a terminal status.
func (j *IngestionJob) Finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Degraded reports whether a completed run stored fewer chunks than the
// document produced.
func (j *IngestionJob) Degraded() bool {
	return j.Status == JobStatusCompleted && j.StoredChunks < j.TotalChunks
}

// LastAttempt reports whether a failure of the current run uses up the
// job's retries.
func (j *IngestionJob) LastAttempt(maxRetries int32) bool {
	return j.Retries+1 >= maxRetries
}

// FailureNote is the error text recorded for a failed run.
func (j *IngestionJob) FailureNote(err error, maxRetries int32) string {
	switch {
	case !IsRetryable(err):
		return fmt.Sprintf("permanent failure: %v", err)
	case j.LastAttempt(maxRetries):
		return fmt.Sprintf("max retries exceeded: %v", err)
	default:
		return fmt.Sprintf("retry %d: %v", j.Retries+1, err)
	}
}

// ValidateIngestionJob validates an IngestionJob instance
func ValidateIngestionJob(j *IngestionJob) error {
	if j == nil {
		return fmt.Errorf("ingestion job cannot be nil")
	}
	if j.ID == "" {
		return fmt.Errorf("ingestion job ID is required")
	}
	if j.DocumentID == "" {
		return fmt.Errorf("ingestion job DocumentID is required")
	}
	if !isValidJobStatus(j.Status) {
		return fmt.Errorf("ingestion job Status is invalid: %s", j.Status)
	}
	if j.Retries < 0 {
		return fmt.Errorf("ingestion job Retries cannot be negative")
	}
	if j.StoredChunks < 0 || j.StoredChunks > j.TotalChunks {
		return fmt.Errorf("ingestion job StoredChunks %d out of range for %d chunks", j.StoredChunks, j.TotalChunks)
	}
	return nil
}

func isValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusPending, JobStatusProcessing,
		JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}
