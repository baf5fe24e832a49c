package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/pkg/util"
)

type fakeAppender struct {
	entries []domain.AuditLog
	err     error
}

func (a *fakeAppender) Append(ctx context.Context, entry *domain.AuditLog) error {
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, *entry)
	return nil
}

func TestRecord(t *testing.T) {
	appender := &fakeAppender{}
	recorder := NewRecorder(appender)
	actor := "agent-1"

	entry, err := recorder.Record(context.Background(), "tenant-1", "ticket", "ticket-1", "status_changed", &actor, map[string]any{
		"old_status": "NEW",
		"new_status": "OPEN",
	})
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", entry.TenantID)
	assert.Equal(t, "status_changed", entry.Action)
	require.Len(t, appender.entries, 1)
	assert.Equal(t, "ticket-1", appender.entries[0].EntityID)
}

func TestRecordRejectsIncompleteEntry(t *testing.T) {
	recorder := NewRecorder(&fakeAppender{})

	_, err := recorder.Record(context.Background(), "", "ticket", "ticket-1", "created", nil, nil)
	assert.True(t, util.HasCode(err, util.CodeValidationFailed))

	_, err = recorder.Record(context.Background(), "tenant-1", "ticket", "ticket-1", "", nil, nil)
	assert.True(t, util.HasCode(err, util.CodeValidationFailed))
}

func TestRecordFailsClosed(t *testing.T) {
	appender := &fakeAppender{err: errors.New("disk full")}
	recorder := NewRecorder(appender)

	_, err := recorder.Record(context.Background(), "tenant-1", "ticket", "ticket-1", "created", nil, nil)
	assert.True(t, util.IsTransient(err))
}
