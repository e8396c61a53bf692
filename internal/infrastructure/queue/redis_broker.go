package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"circularscan/internal/domain"
	"circularscan/internal/ports"
)

// TaskTypeOCR is the asynq task type consumed by the OCR worker.
const TaskTypeOCR = "ocr:extract"

// OCRQueue is the broker queue circular OCR jobs land on.
const OCRQueue = "ocr"

// RedisBroker owns the single shared broker connection. The handle is built
// lazily on first need and reused for every later call; only construction is
// serialized — submits multiplex over the shared connection.
type RedisBroker struct {
	addr   string
	logger *slog.Logger

	mu     sync.Mutex
	conn   *redis.Client
	client *asynq.Client
}

var _ ports.Broker = (*RedisBroker)(nil)

// NewRedisBroker configures a broker adapter. An empty address is valid and
// reads as permanently not ready.
func NewRedisBroker(addr string, logger *slog.Logger) *RedisBroker {
	return &RedisBroker{addr: addr, logger: logger}
}

// EnsureReady probes broker availability. It never returns an error: an
// unconfigured or unreachable broker reads as not ready. Availability is
// checked fresh on every call since the broker can restart between calls.
func (b *RedisBroker) EnsureReady(ctx context.Context) bool {
	if b.addr == "" {
		return false
	}

	conn, _ := b.connect()
	if conn == nil {
		return false
	}

	if err := conn.Ping(ctx).Err(); err != nil {
		b.debug("broker ping failed", "addr", b.addr, "error", err)
		return false
	}
	return true
}

// Connection returns the cached handle, or nil when no address is configured.
// The same handle is returned across calls within the process lifetime.
func (b *RedisBroker) Connection() *redis.Client {
	if b.addr == "" {
		return nil
	}
	conn, _ := b.connect()
	return conn
}

// Submit enqueues the job payload under the caller-supplied id, so broker-side
// deduplication stays aligned with the ledger key.
func (b *RedisBroker) Submit(ctx context.Context, jobID string, req domain.OCRJobRequest) error {
	_, client := b.connect()
	if client == nil {
		return fmt.Errorf("broker is not configured")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeOCR, payload)
	if _, err := client.EnqueueContext(ctx, task, asynq.TaskID(jobID), asynq.Queue(OCRQueue)); err != nil {
		return fmt.Errorf("enqueue job %s: %w", jobID, err)
	}
	return nil
}

// Close releases the connection if one was opened and clears the cache.
// Safe to call when nothing was opened, and safe to call repeatedly.
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil
	}

	// The asynq client shares the redis handle, so closing the handle
	// releases both.
	err := b.conn.Close()
	b.client = nil
	b.conn = nil
	if err != nil {
		return fmt.Errorf("close broker connection: %w", err)
	}
	return nil
}

func (b *RedisBroker) connect() (*redis.Client, *asynq.Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.addr == "" {
		return nil, nil
	}

	if b.conn == nil {
		b.conn = redis.NewClient(&redis.Options{Addr: b.addr})
		b.client = asynq.NewClientFromRedisClient(b.conn)
	}
	return b.conn, b.client
}

func (b *RedisBroker) debug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}
