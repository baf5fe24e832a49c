package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/pkg/util"
)

// AttachmentRepository persists attachment metadata and scan verdicts.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	GetByID(ctx context.Context, id string) (*domain.Attachment, error)
	// MarkScanned records the verdict only while the attachment is still
	// Pending. Returns false when another worker already recorded one, which
	// keeps re-delivered scan jobs idempotent.
	MarkScanned(ctx context.Context, id string, status domain.ScanStatus, scannedAt time.Time) (bool, error)
}

type attachmentRepository struct {
	q Querier
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(q Querier) AttachmentRepository {
	return &attachmentRepository{q: q}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO attachments (ticket_id, file_name, storage_path, mime_type, size_bytes, scan_status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	if attachment.ScanStatus == "" {
		attachment.ScanStatus = domain.ScanStatusPending
	}
	return r.q.QueryRow(ctx, query,
		attachment.TicketID,
		attachment.FileName,
		attachment.StoragePath,
		attachment.MimeType,
		attachment.SizeBytes,
		attachment.ScanStatus,
	).Scan(&attachment.ID, &attachment.CreatedAt)
}

func (r *attachmentRepository) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	const query = `
        SELECT id, ticket_id, file_name, storage_path, mime_type, size_bytes, scan_status, scanned_at, created_at
        FROM attachments WHERE id=$1`
	var attachment domain.Attachment
	if err := r.q.QueryRow(ctx, query, id).Scan(
		&attachment.ID,
		&attachment.TicketID,
		&attachment.FileName,
		&attachment.StoragePath,
		&attachment.MimeType,
		&attachment.SizeBytes,
		&attachment.ScanStatus,
		&attachment.ScannedAt,
		&attachment.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("attachment", map[string]any{"attachment_id": id})
		}
		return nil, err
	}
	return &attachment, nil
}

func (r *attachmentRepository) MarkScanned(ctx context.Context, id string, status domain.ScanStatus, scannedAt time.Time) (bool, error) {
	const query = `
        UPDATE attachments SET scan_status=$1, scanned_at=$2
        WHERE id=$3 AND scan_status=$4`
	cmd, err := r.q.Exec(ctx, query, status, scannedAt, id, domain.ScanStatusPending)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
