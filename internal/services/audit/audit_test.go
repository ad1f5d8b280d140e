package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuditRepo struct {
	repositories.AuditRepository
	logs []*models.AuditLog
	err  error
}

func (r *fakeAuditRepo) Create(ctx context.Context, log *models.AuditLog) error {
	if r.err != nil {
		return r.err
	}
	r.logs = append(r.logs, log)
	return nil
}

func TestRecorder_Record(t *testing.T) {
	repo := &fakeAuditRepo{}
	rec := NewRecorder(repo)

	rec.Record(context.Background(), Actor{UserID: 4, IP: "10.0.0.2"}, Entry{
		Action:     ActionShareCreated,
		TargetType: TargetShare,
		TargetID:   ID(12),
		Metadata:   map[string]any{"fileId": 7},
	})

	require.Len(t, repo.logs, 1)
	log := repo.logs[0]
	assert.Equal(t, ActionShareCreated, log.Action)
	assert.Equal(t, "12", log.TargetID)
	require.NotNil(t, log.ActorID)
	assert.Equal(t, uint64(4), *log.ActorID)
	require.NotNil(t, log.IP)
	assert.Equal(t, "10.0.0.2", *log.IP)
	assert.Nil(t, log.UserAgent)
	assert.JSONEq(t, `{"fileId":7}`, log.Metadata)
}

func TestRecorder_AnonymousActor(t *testing.T) {
	repo := &fakeAuditRepo{}
	NewRecorder(repo).Record(context.Background(), System, Entry{Action: ActionScanClean, TargetType: TargetFile, TargetID: "1"})

	require.Len(t, repo.logs, 1)
	assert.Nil(t, repo.logs[0].ActorID)
	assert.Equal(t, "{}", repo.logs[0].Metadata)
}

func TestRecorder_ErrorIsSwallowed(t *testing.T) {
	repo := &fakeAuditRepo{err: errors.New("db down")}
	assert.NotPanics(t, func() {
		NewRecorder(repo).Record(context.Background(), Actor{UserID: 1}, Entry{Action: ActionLogin})
	})
}
