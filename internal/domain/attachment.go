package domain

import "time"

// ScanStatus tracks the asynchronous malware-scan outcome for an attachment.
type ScanStatus string

const (
	ScanStatusPending  ScanStatus = "PENDING"
	ScanStatusClean    ScanStatus = "CLEAN"
	ScanStatusInfected ScanStatus = "INFECTED"
	ScanStatusFailed   ScanStatus = "FAILED"
)

// Attachment is file metadata tied to a ticket. Created Pending on upload and
// transitioned only by the scan worker.
type Attachment struct {
	ID          string
	TicketID    string
	FileName    string
	StoragePath string
	MimeType    string
	SizeBytes   int64
	ScanStatus  ScanStatus
	ScannedAt   *time.Time
	CreatedAt   time.Time
}

// Servable reports whether the file may be handed to end users. Infected
// attachments are never servable; pending and failed ones wait for a verdict.
func (a *Attachment) Servable() bool {
	return a.ScanStatus == ScanStatusClean
}
