// Package dispatch hands notify and webhook actions to the external delivery
// system. Delivery, retries and failure handling belong to that system; the
// engine only enqueues.
package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/pkg/util"
)

// Envelope is one enqueued action.
type Envelope struct {
	DispatchID string    `json:"dispatch_id"`
	TenantID   string    `json:"tenant_id"`
	TicketID   string    `json:"ticket_id"`
	RuleID     string    `json:"rule_id,omitempty"`
	Type       string    `json:"type"`
	Target     string    `json:"target"`
	CreatedAt  time.Time `json:"created_at"`
}

// Dispatcher enqueues actions for asynchronous delivery and returns the
// dispatch id.
type Dispatcher interface {
	Enqueue(ctx context.Context, envelope Envelope) (string, error)
}

type redisDispatcher struct {
	client *redis.Client
	queue  string
	logger *zap.Logger
}

// NewRedisDispatcher pushes envelopes onto a redis list consumed by the
// delivery system.
func NewRedisDispatcher(client *redis.Client, queue string, logger *zap.Logger) Dispatcher {
	return &redisDispatcher{client: client, queue: queue, logger: logger}
}

func (d *redisDispatcher) Enqueue(ctx context.Context, envelope Envelope) (string, error) {
	if envelope.DispatchID == "" {
		envelope.DispatchID = uuid.NewString()
	}
	if envelope.CreatedAt.IsZero() {
		envelope.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return "", util.NewFatal("marshal dispatch envelope", err)
	}
	if err := d.client.RPush(ctx, d.queue, payload).Err(); err != nil {
		return "", util.NewTransient("enqueue dispatch action", err)
	}
	d.logger.Debug("action enqueued",
		zap.String("dispatch_id", envelope.DispatchID),
		zap.String("ticket_id", envelope.TicketID),
		zap.String("type", envelope.Type))
	return envelope.DispatchID, nil
}

// InMemoryDispatcher collects envelopes for tests.
type InMemoryDispatcher struct {
	mu        sync.Mutex
	Envelopes []Envelope
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() *InMemoryDispatcher {
	return &InMemoryDispatcher{}
}

func (d *InMemoryDispatcher) Enqueue(ctx context.Context, envelope Envelope) (string, error) {
	if envelope.DispatchID == "" {
		envelope.DispatchID = uuid.NewString()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Envelopes = append(d.Envelopes, envelope)
	return envelope.DispatchID, nil
}
