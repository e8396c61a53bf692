package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"circularscan/internal/domain"
	"circularscan/internal/ports"
)

// Handler consumes queued OCR tasks and advances their ledger rows. The
// dispatcher only ever writes pending; every later transition happens here.
type Handler struct {
	ledger    ports.JobLedger
	extractor ports.Extractor
	logger    *log.Logger
}

// NewHandler wires the ledger and the extraction engine.
func NewHandler(ledger ports.JobLedger, extractor ports.Extractor, logger *log.Logger) *Handler {
	return &Handler{ledger: ledger, extractor: extractor, logger: logger}
}

// ProcessTask runs one OCR extraction. The task id equals the ledger key, so
// status updates land on the row the dispatcher created.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	jobID, ok := asynq.GetTaskID(ctx)
	if !ok {
		return fmt.Errorf("task has no id")
	}

	var req domain.OCRJobRequest
	if err := json.Unmarshal(task.Payload(), &req); err != nil {
		h.fail(ctx, jobID)
		return fmt.Errorf("decode job %s: %w", jobID, err)
	}

	return h.run(ctx, jobID, req)
}

func (h *Handler) run(ctx context.Context, jobID string, req domain.OCRJobRequest) error {
	if err := h.ledger.UpdateQueueJobStatus(ctx, jobID, domain.QueueProcessing); err != nil {
		return fmt.Errorf("mark job %s processing: %w", jobID, err)
	}

	extraction, err := h.extractor.Extract(ctx, req.RawText)
	if err != nil {
		h.fail(ctx, jobID)
		return fmt.Errorf("extract job %s: %w", jobID, err)
	}

	if err := h.ledger.UpdateQueueJobStatus(ctx, jobID, domain.QueueDone); err != nil {
		return fmt.Errorf("mark job %s done: %w", jobID, err)
	}

	if h.logger != nil {
		h.logger.Printf("job %s done: document=%d hs_codes=%d product_names=%d",
			jobID, req.DocumentID, len(extraction.HSCodes), len(extraction.ProductNames))
	}
	return nil
}

func (h *Handler) fail(ctx context.Context, jobID string) {
	if err := h.ledger.UpdateQueueJobStatus(ctx, jobID, domain.QueueFailed); err != nil && h.logger != nil {
		h.logger.Printf("job %s: cannot mark failed: %v", jobID, err)
	}
}
