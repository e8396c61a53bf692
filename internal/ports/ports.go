package ports

import (
	"context"

	"circularscan/internal/domain"
)

// DocumentSource pulls circular documents from the remote list/detail site.
type DocumentSource interface {
	FetchAll(ctx context.Context) ([]domain.Document, error)
}

// DocumentRepository persists canonical documents keyed by document number.
type DocumentRepository interface {
	SaveDocument(ctx context.Context, doc domain.Document) (int, error)
}

// JobLedger records queued-job state for an external worker to advance.
type JobLedger interface {
	RecordQueueJobStart(ctx context.Context, record domain.QueueJobRecord) error
	UpdateQueueJobStatus(ctx context.Context, jobID string, status domain.QueueStatus) error
	ListQueueJobs(ctx context.Context, limit int) ([]domain.QueueJobRecord, error)
}

// Broker is the narrow capability set any queue backend or test double
// satisfies. EnsureReady never returns an error: an unreachable or
// unconfigured broker reads as not ready.
type Broker interface {
	EnsureReady(ctx context.Context) bool
	Submit(ctx context.Context, jobID string, req domain.OCRJobRequest) error
	Close() error
}

// Extractor mines HS codes and product names out of raw document text.
type Extractor interface {
	Extract(ctx context.Context, rawText string) (domain.Extraction, error)
}

// Scheduler controls when the scrape pipeline executes.
type Scheduler interface {
	Start(ctx context.Context, job func()) error
	Stop(ctx context.Context) error
}
