package mapper

import (
	"testing"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPageResult_NilItems(t *testing.T) {
	result := NewPageResult[models.File](nil, 0, 1, 20)
	require.NotNil(t, result.Items)
	assert.Empty(t, result.Items)
	assert.Equal(t, 20, result.PageSize)
}

func TestToAuditEntries(t *testing.T) {
	actorID := uint64(3)
	logs := []models.AuditLog{
		{ID: 1, Action: "share.created", ActorID: &actorID, Actor: &models.User{Email: "alice@example.com"}, Metadata: `{"fileId":7}`},
		{ID: 2, Action: "auth.login", Metadata: "not json"},
	}

	entries := ToAuditEntries(logs)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice@example.com", entries[0].ActorEmail)
	assert.Equal(t, float64(7), entries[0].Metadata["fileId"])
	assert.NotNil(t, entries[1].Metadata)
	assert.Empty(t, entries[1].Metadata)
}

func TestToUploadSummaries(t *testing.T) {
	files := []models.File{{ID: 5, Filename: "a.txt", OwnerID: 2, Owner: &models.User{Email: "bob@example.com"}}}
	summaries := ToUploadSummaries(files)
	require.Len(t, summaries, 1)
	assert.Equal(t, "bob@example.com", summaries[0].OwnerEmail)
	assert.Equal(t, uint64(2), summaries[0].OwnerID)
}
