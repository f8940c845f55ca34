package domain

import (
	"fmt"
	"time"
)

// IngestJobStatus represents the status of a failed-chunk retry job
type IngestJobStatus string

const (
	IngestJobStatusPending    IngestJobStatus = "pending"
	IngestJobStatusProcessing IngestJobStatus = "processing"
	IngestJobStatusCompleted  IngestJobStatus = "completed"
	IngestJobStatusFailed     IngestJobStatus = "failed"
)

// IngestJob records a chunk whose embedding or insert failed during
// ingestion. The background worker retries pending jobs until they either
// succeed or exhaust their retries.
type IngestJob struct {
	ID           string
	Title        string
	Content      string
	Source       Source
	Category     Category
	DocumentType DocumentType
	ChunkIndex   int
	TotalChunks  int
	FileURL      string
	Status       IngestJobStatus
	Retries      int32
	Error        string
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// ValidateIngestJob validates an IngestJob instance
func ValidateIngestJob(j *IngestJob) error {
	if j == nil {
		return fmt.Errorf("ingest job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("ingest job ID is required")
	}

	if j.Content == "" {
		return fmt.Errorf("ingest job Content is required")
	}

	if !isValidIngestJobStatus(j.Status) {
		return fmt.Errorf("ingest job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("ingest job Retries cannot be negative")
	}

	return nil
}

func isValidIngestJobStatus(s IngestJobStatus) bool {
	switch s {
	case IngestJobStatusPending, IngestJobStatusProcessing, IngestJobStatusCompleted, IngestJobStatusFailed:
		return true
	}
	return false
}
