package share

import (
	"testing"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/stretchr/testify/assert"
)

func u32(v uint32) *uint32 { return &v }

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	clean := &models.File{ID: 1, ScanStatus: models.ScanStatusClean}

	cases := []struct {
		name   string
		share  models.Share
		file   *models.File
		reason AvailabilityReason
	}{
		{"missing file", models.Share{}, nil, ReasonFileDeleted},
		{"deleted file", models.Share{}, &models.File{DeletedAt: &past, ScanStatus: models.ScanStatusClean}, ReasonFileDeleted},
		{"pending scan", models.Share{}, &models.File{ScanStatus: models.ScanStatusPending}, ReasonFilePendingScan},
		{"infected", models.Share{}, &models.File{ScanStatus: models.ScanStatusInfected}, ReasonFileInfected},
		{"expired", models.Share{ExpiresAt: &past}, clean, ReasonExpired},
		{"one time consumed", models.Share{OneTime: true, DownloadsCount: 1}, clean, ReasonOneTimeConsumed},
		{"limit reached", models.Share{MaxDownloads: u32(3), DownloadsCount: 3}, clean, ReasonDownloadLimitReached},
		{"available", models.Share{ExpiresAt: &future, MaxDownloads: u32(3), DownloadsCount: 2}, clean, ReasonOK},
		{"scan disabled", models.Share{}, &models.File{ScanStatus: models.ScanStatusDisabled}, ReasonOK},
		// 删除优先于其他所有原因
		{"deleted and expired", models.Share{ExpiresAt: &past}, &models.File{DeletedAt: &past, ScanStatus: models.ScanStatusInfected}, ReasonFileDeleted},
		{"infected and expired", models.Share{ExpiresAt: &past}, &models.File{ScanStatus: models.ScanStatusInfected}, ReasonFileInfected},
		{"expired and consumed", models.Share{ExpiresAt: &past, OneTime: true, DownloadsCount: 1}, clean, ReasonExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(&tc.share, tc.file, now)
			assert.Equal(t, tc.reason, got.Reason)
			assert.Equal(t, tc.reason == ReasonOK, got.Available)
		})
	}
}

func TestEvaluate_ExpiryBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	share := &models.Share{ExpiresAt: &now}
	file := &models.File{ScanStatus: models.ScanStatusClean}

	// 恰好到期的时刻仍然可用
	assert.True(t, Evaluate(share, file, now).Available)
	assert.False(t, Evaluate(share, file, now.Add(time.Nanosecond)).Available)
}

func TestCacheControlFor(t *testing.T) {
	hash := "hash"
	assert.Equal(t, publicCacheControl, CacheControlFor(&models.Share{}))
	assert.Equal(t, privateCacheControl, CacheControlFor(&models.Share{PasswordHash: &hash}))
	assert.Equal(t, privateCacheControl, CacheControlFor(&models.Share{OneTime: true}))
	assert.Equal(t, privateCacheControl, CacheControlFor(&models.Share{MaxDownloads: u32(1)}))
}
