package share

import (
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
)

// AvailabilityReason 分享不可用的原因
type AvailabilityReason string

const (
	ReasonFileDeleted          AvailabilityReason = "file_deleted"
	ReasonFilePendingScan      AvailabilityReason = "file_pending_scan"
	ReasonFileInfected         AvailabilityReason = "file_infected"
	ReasonExpired              AvailabilityReason = "expired"
	ReasonOneTimeConsumed      AvailabilityReason = "one_time_consumed"
	ReasonDownloadLimitReached AvailabilityReason = "download_limit_reached"
	ReasonOK                   AvailabilityReason = "ok"
)

// Availability 分享当前是否可以访问
type Availability struct {
	Available bool               `json:"available"`
	Reason    AvailabilityReason `json:"reason"`
}

func unavailable(reason AvailabilityReason) Availability {
	return Availability{Available: false, Reason: reason}
}

// Evaluate 按固定顺序检查，命中第一个条件即返回
func Evaluate(share *models.Share, file *models.File, now time.Time) Availability {
	if file == nil || file.IsDeleted() {
		return unavailable(ReasonFileDeleted)
	}
	switch file.ScanStatus {
	case models.ScanStatusPending:
		return unavailable(ReasonFilePendingScan)
	case models.ScanStatusInfected:
		return unavailable(ReasonFileInfected)
	}
	if share.ExpiresAt != nil && share.ExpiresAt.Before(now) {
		return unavailable(ReasonExpired)
	}
	if share.OneTime && share.DownloadsCount >= 1 {
		return unavailable(ReasonOneTimeConsumed)
	}
	if share.MaxDownloads != nil && share.DownloadsCount >= *share.MaxDownloads {
		return unavailable(ReasonDownloadLimitReached)
	}
	return Availability{Available: true, Reason: ReasonOK}
}
