package usecase

import (
	"context"
	"errors"
	"testing"

	"circularscan/internal/domain"
)

type stubSource struct {
	docs []domain.Document
	err  error
}

func (s *stubSource) FetchAll(context.Context) ([]domain.Document, error) {
	return s.docs, s.err
}

type stubRepository struct {
	saved  []domain.Document
	nextID int
	err    error
}

func (r *stubRepository) SaveDocument(_ context.Context, doc domain.Document) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.saved = append(r.saved, doc)
	r.nextID++
	return r.nextID, r.err
}

type stubDispatcher struct {
	requests []domain.OCRJobRequest
	status   domain.JobStatus
}

func (d *stubDispatcher) Enqueue(_ context.Context, req domain.OCRJobRequest) (domain.OCRJobResult, error) {
	d.requests = append(d.requests, req)
	return domain.OCRJobResult{Status: d.status, JobID: "job"}, nil
}

func TestRunPersistsAndDispatches(t *testing.T) {
	t.Parallel()

	source := &stubSource{docs: []domain.Document{
		{DocumentNumber: "1/TB", Title: "Có tệp", FileURL: "https://example.com/1.pdf"},
		{DocumentNumber: "2/TB", Title: "Không có tệp"},
	}}
	repo := &stubRepository{}
	dispatcher := &stubDispatcher{status: domain.JobProcessed}

	p := NewPipeline(PipelineDeps{Source: source, Repository: repo, Dispatcher: dispatcher})

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if summary.Documents != 2 || summary.Processed != 1 || summary.Queued != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(repo.saved) != 2 {
		t.Fatalf("expected both documents persisted, got %d", len(repo.saved))
	}

	// Only documents with an attachment reach the dispatcher.
	if len(dispatcher.requests) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(dispatcher.requests))
	}
	req := dispatcher.requests[0]
	if req.DocumentID != 1 || req.FileURL != "https://example.com/1.pdf" || req.FileName != "1.pdf" {
		t.Fatalf("unexpected job request: %+v", req)
	}
	if req.RawText == "" {
		t.Fatal("raw text substitute must carry document text")
	}
}

func TestRunContinuesAfterPageError(t *testing.T) {
	t.Parallel()

	source := &stubSource{
		docs: []domain.Document{{DocumentNumber: "1/TB", Title: "Trang một"}},
		err:  &domain.PageError{Page: 3, Err: errors.New("timeout")},
	}
	repo := &stubRepository{}

	p := NewPipeline(PipelineDeps{Source: source, Repository: repo})

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("a recoverable page error must not abort the run: %v", err)
	}
	if summary.Documents != 1 || len(repo.saved) != 1 {
		t.Fatalf("collected documents must still be processed: %+v", summary)
	}
}

func TestRunAbortsOnFatalSourceError(t *testing.T) {
	t.Parallel()

	source := &stubSource{err: errors.New("registry missing")}
	p := NewPipeline(PipelineDeps{Source: source})

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("a non-page source error must abort the run")
	}
}

func TestRunCountsQueuedJobs(t *testing.T) {
	t.Parallel()

	source := &stubSource{docs: []domain.Document{
		{DocumentNumber: "1/TB", FileURL: "https://example.com/1.pdf"},
	}}
	dispatcher := &stubDispatcher{status: domain.JobQueued}

	p := NewPipeline(PipelineDeps{Source: source, Repository: &stubRepository{}, Dispatcher: dispatcher})

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if summary.Queued != 1 || summary.Processed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
