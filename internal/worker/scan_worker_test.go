package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/config"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/pkg/util"
)

type fakeAttachmentRepo struct {
	mu          sync.Mutex
	attachments map[string]*domain.Attachment
	marks       int
}

func newFakeAttachmentRepo(attachments ...*domain.Attachment) *fakeAttachmentRepo {
	repo := &fakeAttachmentRepo{attachments: make(map[string]*domain.Attachment)}
	for _, a := range attachments {
		repo.attachments[a.ID] = a
	}
	return repo
}

func (r *fakeAttachmentRepo) Create(ctx context.Context, attachment *domain.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attachment.ScanStatus == "" {
		attachment.ScanStatus = domain.ScanStatusPending
	}
	r.attachments[attachment.ID] = attachment
	return nil
}

func (r *fakeAttachmentRepo) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attachment, ok := r.attachments[id]
	if !ok {
		return nil, util.NewNotFound("attachment", map[string]any{"attachment_id": id})
	}
	clone := *attachment
	return &clone, nil
}

func (r *fakeAttachmentRepo) MarkScanned(ctx context.Context, id string, status domain.ScanStatus, scannedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks++
	attachment, ok := r.attachments[id]
	if !ok || attachment.ScanStatus != domain.ScanStatusPending {
		return false, nil
	}
	attachment.ScanStatus = status
	attachment.ScannedAt = &scannedAt
	return true, nil
}

type staticFetcher struct {
	content []byte
	err     error
}

func (f *staticFetcher) Fetch(ctx context.Context, path string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.content)), nil
}

func pendingAttachment() *domain.Attachment {
	return &domain.Attachment{
		ID:          "att-1",
		TicketID:    "ticket-1",
		FileName:    "report.pdf",
		StoragePath: "tenant-1/ticket-1/report.pdf",
		ScanStatus:  domain.ScanStatusPending,
	}
}

func newTestWorker(repo *fakeAttachmentRepo, fetcher ObjectFetcher, maxRetries int) *ScanWorker {
	cfg := config.ScanConfig{
		QueueKey:           "scan:jobs",
		MaxRetries:         maxRetries,
		PollTimeoutSeconds: 1,
	}
	return NewScanWorker(nil, cfg, repo, fetcher, zap.NewNop(), observability.NewMetrics())
}

func TestProcessJobMarksClean(t *testing.T) {
	repo := newFakeAttachmentRepo(pendingAttachment())
	worker := newTestWorker(repo, &staticFetcher{content: []byte("nothing suspicious here")}, 3)

	err := worker.ProcessJob(context.Background(), ScanJob{ID: "job-1", AttachmentID: "att-1"})
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), "att-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ScanStatusClean, stored.ScanStatus)
	require.NotNil(t, stored.ScannedAt)
	assert.True(t, stored.Servable())
}

func TestProcessJobDetectsSignature(t *testing.T) {
	repo := newFakeAttachmentRepo(pendingAttachment())
	payload := append([]byte("prefix "), []byte(eicarSignature)...)
	worker := newTestWorker(repo, &staticFetcher{content: payload}, 3)

	require.NoError(t, worker.ProcessJob(context.Background(), ScanJob{ID: "job-1", AttachmentID: "att-1"}))

	stored, err := repo.GetByID(context.Background(), "att-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ScanStatusInfected, stored.ScanStatus)
	assert.False(t, stored.Servable())
}

func TestProcessJobRedeliveryIsNoop(t *testing.T) {
	attachment := pendingAttachment()
	attachment.ScanStatus = domain.ScanStatusClean
	repo := newFakeAttachmentRepo(attachment)
	worker := newTestWorker(repo, &staticFetcher{content: []byte(eicarSignature)}, 3)

	require.NoError(t, worker.ProcessJob(context.Background(), ScanJob{ID: "job-1", AttachmentID: "att-1"}))

	// The earlier verdict stands; nothing was re-marked.
	stored, err := repo.GetByID(context.Background(), "att-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ScanStatusClean, stored.ScanStatus)
	assert.Equal(t, 0, repo.marks)
}

func TestProcessJobMissingAttachmentDropped(t *testing.T) {
	repo := newFakeAttachmentRepo()
	worker := newTestWorker(repo, &staticFetcher{}, 3)

	require.NoError(t, worker.ProcessJob(context.Background(), ScanJob{ID: "job-1", AttachmentID: "gone"}))
	assert.Equal(t, 0, repo.marks)
}

func TestProcessJobNilFetcherPasses(t *testing.T) {
	repo := newFakeAttachmentRepo(pendingAttachment())
	worker := newTestWorker(repo, nil, 3)

	require.NoError(t, worker.ProcessJob(context.Background(), ScanJob{ID: "job-1", AttachmentID: "att-1"}))

	stored, err := repo.GetByID(context.Background(), "att-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ScanStatusClean, stored.ScanStatus)
}

func TestProcessJobFetchFailureExhaustsRetries(t *testing.T) {
	repo := newFakeAttachmentRepo(pendingAttachment())
	cause := errors.New("object store down")
	worker := newTestWorker(repo, &staticFetcher{err: cause}, 0)

	// Retry budget of zero: the failure immediately marks the attachment Failed.
	err := worker.ProcessJob(context.Background(), ScanJob{ID: "job-1", AttachmentID: "att-1"})
	assert.ErrorIs(t, err, cause)

	stored, err := repo.GetByID(context.Background(), "att-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ScanStatusFailed, stored.ScanStatus)
	assert.False(t, stored.Servable())
}
