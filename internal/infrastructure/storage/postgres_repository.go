package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"circularscan/internal/domain"
	"circularscan/internal/ports"
)

// PostgresRepository persists canonical documents and the queue-job ledger.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.DocumentRepository = (*PostgresRepository)(nil)
var _ ports.JobLedger = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// SaveDocument upserts a document keyed by its document number and returns
// the row id used as the OCR job foreign key.
func (r *PostgresRepository) SaveDocument(ctx context.Context, doc domain.Document) (int, error) {
	if r.db == nil {
		return 0, nil
	}

	query, args, err := r.builder.
		Insert("documents").
		Columns("document_number", "title", "issuing_agency", "issue_date", "file_url", "source_url").
		Values(doc.DocumentNumber, doc.Title, doc.IssuingAgency, doc.IssueDate, doc.FileURL, doc.SourceURL).
		Suffix(`ON CONFLICT (document_number) DO UPDATE
            SET title = EXCLUDED.title,
                issuing_agency = EXCLUDED.issuing_agency,
                issue_date = EXCLUDED.issue_date,
                file_url = EXCLUDED.file_url,
                updated_at = NOW()
            RETURNING id`).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build upsert: %w", err)
	}

	var id int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert document %s: %w", doc.DocumentNumber, err)
	}
	return id, nil
}

// RecordQueueJobStart inserts the pending ledger row for a queued job.
func (r *PostgresRepository) RecordQueueJobStart(ctx context.Context, record domain.QueueJobRecord) error {
	if r.db == nil {
		return fmt.Errorf("ledger database is not configured")
	}

	query, args, err := r.builder.
		Insert("queue_jobs").
		Columns("id", "type", "status", "document_id").
		Values(record.ID, record.Type, record.Status, record.DocumentID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert queue job %s: %w", record.ID, err)
	}
	return nil
}

// UpdateQueueJobStatus advances a ledger row; called by the worker, never by
// the dispatcher.
func (r *PostgresRepository) UpdateQueueJobStatus(ctx context.Context, jobID string, status domain.QueueStatus) error {
	if r.db == nil {
		return fmt.Errorf("ledger database is not configured")
	}

	query, args, err := r.builder.
		Update("queue_jobs").
		Set("status", status).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": jobID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update queue job %s: %w", jobID, err)
	}
	return nil
}

// ListQueueJobs returns the most recent ledger rows for the status API.
func (r *PostgresRepository) ListQueueJobs(ctx context.Context, limit int) ([]domain.QueueJobRecord, error) {
	if r.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	query, args, err := r.builder.
		Select("id", "type", "status", "document_id", "created_at", "updated_at").
		From("queue_jobs").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query queue jobs: %w", err)
	}
	defer rows.Close()

	var records []domain.QueueJobRecord
	for rows.Next() {
		var record domain.QueueJobRecord
		if err := rows.Scan(&record.ID, &record.Type, &record.Status, &record.DocumentID,
			&record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan queue job: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return records, nil
}
