package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"circularscan/internal/domain"
	"circularscan/internal/extract"
)

type recordingLedger struct {
	updateErr error

	mu      sync.Mutex
	updates []domain.QueueStatus
}

func (l *recordingLedger) RecordQueueJobStart(context.Context, domain.QueueJobRecord) error {
	return nil
}

func (l *recordingLedger) UpdateQueueJobStatus(_ context.Context, _ string, status domain.QueueStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.updateErr != nil && status == domain.QueueProcessing {
		return l.updateErr
	}
	l.updates = append(l.updates, status)
	return nil
}

func (l *recordingLedger) ListQueueJobs(context.Context, int) ([]domain.QueueJobRecord, error) {
	return nil, nil
}

func TestRunAdvancesLedger(t *testing.T) {
	t.Parallel()

	ledger := &recordingLedger{}
	h := NewHandler(ledger, extract.NewEngine(), nil)

	req := domain.OCRJobRequest{
		DocumentID: 11,
		FileURL:    "https://example.com/a.pdf",
		RawText:    "Mã HS 6204.62.20 cho áo khoác.",
	}
	if err := h.run(context.Background(), "job-1", req); err != nil {
		t.Fatalf("run error: %v", err)
	}

	want := []domain.QueueStatus{domain.QueueProcessing, domain.QueueDone}
	if len(ledger.updates) != 2 || ledger.updates[0] != want[0] || ledger.updates[1] != want[1] {
		t.Fatalf("unexpected ledger transitions: %v", ledger.updates)
	}
}

func TestRunSurfacesLedgerFailure(t *testing.T) {
	t.Parallel()

	ledger := &recordingLedger{updateErr: errors.New("storage down")}
	h := NewHandler(ledger, extract.NewEngine(), nil)

	err := h.run(context.Background(), "job-2", domain.OCRJobRequest{DocumentID: 1, FileURL: "x"})
	if err == nil {
		t.Fatal("expected the ledger failure to surface for retry")
	}
}
