// Package worker consumes the attachment scan queue. Scanning is detached
// from the ticket workflow entirely: the only shared state is the attachment
// row's scan status.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/config"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/internal/repository"
	"github.com/spec-kit/ticket-engine/pkg/util"
)

// eicarSignature is the standard antivirus test signature.
const eicarSignature = `X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`

// maxScanBytes bounds how much of an object the signature scan reads.
const maxScanBytes = 32 << 20

// ObjectFetcher streams attachment content. A nil fetcher disables content
// scanning and attachments pass on metadata alone.
type ObjectFetcher interface {
	Fetch(ctx context.Context, path string) (io.ReadCloser, error)
}

// ScanWorker consumes scan jobs and records verdicts.
type ScanWorker struct {
	client      *redis.Client
	queue       *ScanQueue
	cfg         config.ScanConfig
	attachments repository.AttachmentRepository
	objects     ObjectFetcher
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScanWorker constructs the consumer. objects may be nil.
func NewScanWorker(client *redis.Client, cfg config.ScanConfig, attachments repository.AttachmentRepository, objects ObjectFetcher, logger *zap.Logger, metrics *observability.Metrics) *ScanWorker {
	return &ScanWorker{
		client:      client,
		queue:       NewScanQueue(client, cfg.QueueKey),
		cfg:         cfg,
		attachments: attachments,
		objects:     objects,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
		stopChan:    make(chan struct{}),
	}
}

// Start launches the consume loop.
func (w *ScanWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
	w.logger.Info("scan worker started", zap.String("queue", w.cfg.QueueKey))
}

// Stop requests shutdown and waits for the in-flight job to finish.
func (w *ScanWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}

func (w *ScanWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}
		res, err := w.client.BLPop(ctx, w.cfg.PollTimeout(), w.cfg.QueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Error("scan queue pop failed", zap.Error(err))
			select {
			case <-w.stopChan:
				return
			case <-time.After(w.cfg.PollTimeout()):
			}
			continue
		}
		if len(res) < 2 {
			continue
		}
		w.processPayload(ctx, []byte(res[1]))
	}
}

func (w *ScanWorker) processPayload(ctx context.Context, payload []byte) {
	var job ScanJob
	if err := json.Unmarshal(payload, &job); err != nil {
		w.logger.Error("unmarshal scan job", zap.Error(err))
		return
	}
	if err := w.ProcessJob(ctx, job); err != nil {
		w.logger.Error("scan job failed",
			zap.String("job_id", job.ID),
			zap.String("attachment_id", job.AttachmentID),
			zap.Int("retries", job.Retries),
			zap.Error(err))
	}
}

// ProcessJob scans one attachment. Re-scanning an attachment that already has
// a verdict is a no-op, never an error. Fetch or store failures requeue the
// job up to the retry limit, after which the attachment is marked Failed.
func (w *ScanWorker) ProcessJob(ctx context.Context, job ScanJob) error {
	attachment, err := w.attachments.GetByID(ctx, job.AttachmentID)
	if err != nil {
		if util.IsNotFound(err) {
			w.logger.Warn("scan job for missing attachment dropped", zap.String("attachment_id", job.AttachmentID))
			return nil
		}
		return w.retryOrFail(ctx, job, err)
	}
	if attachment.ScanStatus != domain.ScanStatusPending {
		return nil
	}

	verdict, err := w.scan(ctx, attachment)
	if err != nil {
		return w.retryOrFail(ctx, job, err)
	}

	applied, err := w.attachments.MarkScanned(ctx, attachment.ID, verdict, w.now())
	if err != nil {
		return w.retryOrFail(ctx, job, err)
	}
	if applied {
		w.metrics.RecordScan(string(verdict))
		w.logger.Info("attachment scanned",
			zap.String("attachment_id", attachment.ID),
			zap.String("ticket_id", attachment.TicketID),
			zap.String("verdict", string(verdict)))
	}
	return nil
}

func (w *ScanWorker) retryOrFail(ctx context.Context, job ScanJob, cause error) error {
	if job.Retries < w.cfg.MaxRetries {
		if err := w.queue.requeue(ctx, job); err != nil {
			return errors.Join(cause, err)
		}
		return cause
	}
	if _, err := w.attachments.MarkScanned(ctx, job.AttachmentID, domain.ScanStatusFailed, w.now()); err != nil {
		return errors.Join(cause, err)
	}
	w.metrics.RecordScan(string(domain.ScanStatusFailed))
	return cause
}

func (w *ScanWorker) scan(ctx context.Context, attachment *domain.Attachment) (domain.ScanStatus, error) {
	if w.objects == nil {
		return domain.ScanStatusClean, nil
	}
	reader, err := w.objects.Fetch(ctx, attachment.StoragePath)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	content, err := io.ReadAll(io.LimitReader(reader, maxScanBytes))
	if err != nil {
		return "", err
	}
	if bytes.Contains(content, []byte(eicarSignature)) {
		return domain.ScanStatusInfected, nil
	}
	return domain.ScanStatusClean, nil
}
