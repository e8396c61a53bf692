package domain

import (
	"errors"
	"fmt"
	"time"
)

// CanonicalField names one of the fixed attributes of a Document record.
type CanonicalField string

const (
	FieldDocumentNumber CanonicalField = "documentNumber"
	FieldTitle          CanonicalField = "title"
	FieldIssuingAgency  CanonicalField = "issuingAgency"
	FieldIssueDate      CanonicalField = "issueDate"
	FieldFileURL        CanonicalField = "fileUrl"
)

// KnownField reports whether value is a member of the canonical schema.
func KnownField(value string) bool {
	switch CanonicalField(value) {
	case FieldDocumentNumber, FieldTitle, FieldIssuingAgency, FieldIssueDate, FieldFileURL:
		return true
	}
	return false
}

// Document is a customs circular assembled from one list row plus its detail page.
// DocumentNumber is the natural key; FileURL stays empty until the detail page resolves.
type Document struct {
	DocumentNumber string
	Title          string
	IssuingAgency  string
	IssueDate      string
	FileURL        string
	SourceURL      string
}

// PageError reports a recoverable failure for a single list or detail page.
// Documents collected before the failure remain valid.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// ErrInvalidJobRequest flags an OCRJobRequest rejected before any side effect.
var ErrInvalidJobRequest = errors.New("invalid ocr job request")

// OCRJobRequest is the dispatcher input. DocumentID and FileURL are required;
// RawText is already-extracted page text used by the inline path.
type OCRJobRequest struct {
	DocumentID int    `json:"documentId"`
	FileName   string `json:"fileName"`
	FileURL    string `json:"fileUrl"`
	RawText    string `json:"rawText"`
}

// Validate rejects malformed requests before the dispatcher takes any action.
func (r OCRJobRequest) Validate() error {
	if r.DocumentID <= 0 {
		return fmt.Errorf("%w: documentId is required", ErrInvalidJobRequest)
	}
	if r.FileURL == "" {
		return fmt.Errorf("%w: fileUrl is required", ErrInvalidJobRequest)
	}
	return nil
}

// JobStatus is the dispatcher-visible outcome of an enqueue call.
type JobStatus string

const (
	JobProcessed JobStatus = "processed"
	JobQueued    JobStatus = "queued"
)

// Extraction carries the text-mining output of one OCR pass.
type Extraction struct {
	Success      bool     `json:"success"`
	HSCodes      []string `json:"hsCodes"`
	ProductNames []string `json:"productNames"`
}

// OCRJobResult is what Enqueue returns. Result is present exactly when
// Status is JobProcessed; a queued result carries only the job id.
type OCRJobResult struct {
	Status JobStatus   `json:"status"`
	JobID  string      `json:"jobId"`
	Result *Extraction `json:"result,omitempty"`
}

// QueueStatus enumerates ledger states of a queued job. The worker, not the
// dispatcher, drives transitions past pending.
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueDone       QueueStatus = "done"
	QueueFailed     QueueStatus = "failed"
)

// QueueJobRecord is the durable ledger row written before a broker submit.
type QueueJobRecord struct {
	ID         string
	Type       string
	Status     QueueStatus
	DocumentID int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
