package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticket-engine/pkg/util"
)

// ScanJob is the queue envelope for one attachment scan. Delivery is
// at-least-once; the worker's status guard makes re-delivery a no-op.
type ScanJob struct {
	ID           string    `json:"id"`
	AttachmentID string    `json:"attachment_id"`
	Retries      int       `json:"retries,omitempty"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// ScanQueue is the producer side of the scan pipeline. Uploads enqueue here so
// upload latency is decoupled from scan latency.
type ScanQueue struct {
	client *redis.Client
	key    string
}

// NewScanQueue constructs the producer.
func NewScanQueue(client *redis.Client, key string) *ScanQueue {
	return &ScanQueue{client: client, key: key}
}

// Enqueue schedules a scan for the attachment and returns the job id.
func (q *ScanQueue) Enqueue(ctx context.Context, attachmentID string) (string, error) {
	job := ScanJob{
		ID:           uuid.NewString(),
		AttachmentID: attachmentID,
		EnqueuedAt:   time.Now(),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return "", util.NewFatal("marshal scan job", err)
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return "", util.NewTransient("enqueue scan job", err)
	}
	return job.ID, nil
}

func (q *ScanQueue) requeue(ctx context.Context, job ScanJob) error {
	job.Retries++
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.key, payload).Err()
}
