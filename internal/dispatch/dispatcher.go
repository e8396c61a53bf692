package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"circularscan/internal/domain"
	"circularscan/internal/extract"
	"circularscan/internal/ports"
)

// Deps wires the dispatcher's collaborators.
type Deps struct {
	Broker    ports.Broker
	Ledger    ports.JobLedger
	Extractor ports.Extractor
	Logger    *slog.Logger
}

// Dispatcher routes OCR work to the broker when one is reachable and runs the
// extraction inline otherwise. Callers never need to know which path ran; the
// result status tells them.
type Dispatcher struct {
	broker    ports.Broker
	ledger    ports.JobLedger
	extractor ports.Extractor
	logger    *slog.Logger

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewDispatcher constructs the dispatcher; a nil Extractor falls back to the
// built-in engine.
func NewDispatcher(deps Deps) *Dispatcher {
	extractor := deps.Extractor
	if extractor == nil {
		extractor = extract.NewEngine()
	}
	return &Dispatcher{
		broker:    deps.Broker,
		ledger:    deps.Ledger,
		extractor: extractor,
		logger:    deps.Logger,
	}
}

// Enqueue validates the request, probes broker readiness fresh, and either
// queues the job or processes it inline.
//
// On the queued path the ledger row is written before the broker submit: a
// crash in between leaves a pending row with no broker entry, which is
// detectable from the ledger alone. The job id doubles as the broker task id
// and the ledger key, so the two records correspond one-to-one.
func (d *Dispatcher) Enqueue(ctx context.Context, req domain.OCRJobRequest) (domain.OCRJobResult, error) {
	if err := req.Validate(); err != nil {
		return domain.OCRJobResult{}, err
	}

	jobID := uuid.NewString()

	ready := d.broker != nil && d.broker.EnsureReady(ctx)
	if ready {
		d.mu.Lock()
		if d.closed {
			ready = false
		} else {
			d.inflight.Add(1)
		}
		d.mu.Unlock()
	}

	if !ready {
		return d.processInline(ctx, jobID, req)
	}
	defer d.inflight.Done()

	record := domain.QueueJobRecord{
		ID:         jobID,
		Type:       "ocr",
		Status:     domain.QueuePending,
		DocumentID: req.DocumentID,
	}
	if err := d.ledger.RecordQueueJobStart(ctx, record); err != nil {
		return domain.OCRJobResult{}, fmt.Errorf("record queue job %s: %w", jobID, err)
	}

	if err := d.broker.Submit(ctx, jobID, req); err != nil {
		// The pending ledger row stays behind on purpose; reconciliation
		// finds it by the absent broker entry.
		return domain.OCRJobResult{}, fmt.Errorf("submit job %s: %w", jobID, err)
	}

	d.debug("job queued", "job_id", jobID, "document_id", req.DocumentID)
	return domain.OCRJobResult{Status: domain.JobQueued, JobID: jobID}, nil
}

func (d *Dispatcher) processInline(ctx context.Context, jobID string, req domain.OCRJobRequest) (domain.OCRJobResult, error) {
	extraction, err := d.extractor.Extract(ctx, req.RawText)
	if err != nil {
		return domain.OCRJobResult{}, fmt.Errorf("extract document %d: %w", req.DocumentID, err)
	}

	d.debug("job processed inline", "job_id", jobID, "document_id", req.DocumentID,
		"hs_codes", len(extraction.HSCodes))
	return domain.OCRJobResult{
		Status: domain.JobProcessed,
		JobID:  jobID,
		Result: &extraction,
	}, nil
}

// Shutdown waits for submits that started before the call, then releases the
// broker connection. Repeated and concurrent calls are safe; only the first
// one closes the connection.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	alreadyClosed := d.closed
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if alreadyClosed || d.broker == nil {
		return nil
	}
	return d.broker.Close()
}

func (d *Dispatcher) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}
