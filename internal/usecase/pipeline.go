package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"circularscan/internal/domain"
	"circularscan/internal/ports"
)

// JobDispatcher is the slice of the dispatcher the pipeline needs.
type JobDispatcher interface {
	Enqueue(ctx context.Context, req domain.OCRJobRequest) (domain.OCRJobResult, error)
}

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Source     ports.DocumentSource
	Repository ports.DocumentRepository
	Dispatcher JobDispatcher
	Logger     *slog.Logger
}

// Pipeline implements the circular-ingestion workflow: scan the source,
// persist each document, and hand documents with attachments to the OCR
// dispatcher.
type Pipeline struct {
	source     ports.DocumentSource
	repository ports.DocumentRepository
	dispatcher JobDispatcher
	logger     *slog.Logger
}

// RunSummary reports what one pipeline execution accomplished.
type RunSummary struct {
	Documents int `json:"documents"`
	Queued    int `json:"queued"`
	Processed int `json:"processed"`
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:     deps.Source,
		repository: deps.Repository,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// Run orchestrates one full scrape-and-dispatch cycle. A recoverable page
// failure is logged and the documents collected before it are still
// persisted and dispatched.
func (p *Pipeline) Run(ctx context.Context) (RunSummary, error) {
	var summary RunSummary

	if p.source == nil {
		return summary, nil
	}

	documents, err := p.source.FetchAll(ctx)
	if err != nil {
		var pageErr *domain.PageError
		if !errors.As(err, &pageErr) {
			return summary, fmt.Errorf("fetch documents: %w", err)
		}
		p.warn("page failed, continuing with collected documents",
			"page", pageErr.Page, "error", pageErr.Err, "collected", len(documents))
	}

	for _, doc := range documents {
		docID := 0
		if p.repository != nil {
			docID, err = p.repository.SaveDocument(ctx, doc)
			if err != nil {
				return summary, fmt.Errorf("persist document %s: %w", doc.DocumentNumber, err)
			}
		}
		summary.Documents++

		if p.dispatcher == nil || doc.FileURL == "" {
			continue
		}

		result, err := p.dispatcher.Enqueue(ctx, domain.OCRJobRequest{
			DocumentID: docID,
			FileName:   path.Base(doc.FileURL),
			FileURL:    doc.FileURL,
			RawText:    documentText(doc),
		})
		if err != nil {
			return summary, fmt.Errorf("dispatch document %s: %w", doc.DocumentNumber, err)
		}

		switch result.Status {
		case domain.JobQueued:
			summary.Queued++
		case domain.JobProcessed:
			summary.Processed++
		}
	}

	p.debug("pipeline run complete", "documents", summary.Documents,
		"queued", summary.Queued, "processed", summary.Processed)
	return summary, nil
}

// documentText is the OCR substitute for documents whose attachment has not
// been recognized yet; the title of a circular usually carries the HS codes
// and product names.
func documentText(doc domain.Document) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{doc.Title, doc.IssuingAgency, doc.DocumentNumber} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "\n")
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
