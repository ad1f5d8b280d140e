package mapper

import (
	"encoding/json"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/samber/lo"
)

// UploadSummary 管理后台展示的最近上传
type UploadSummary struct {
	ID         uint64            `json:"id"`
	Filename   string            `json:"filename"`
	Size       int64             `json:"size"`
	Mime       string            `json:"mime"`
	ScanStatus models.ScanStatus `json:"scanStatus"`
	OwnerID    uint64            `json:"ownerId"`
	OwnerEmail string            `json:"ownerEmail,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// AuditEntry 审计日志，metadata 以 JSON 对象输出
type AuditEntry struct {
	ID         uint64         `json:"id"`
	Action     string         `json:"action"`
	TargetType string         `json:"targetType"`
	TargetID   string         `json:"targetId"`
	ActorID    *uint64        `json:"actorId"`
	ActorEmail string         `json:"actorEmail,omitempty"`
	IP         *string        `json:"ip"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func ToUploadSummaries(files []models.File) []UploadSummary {
	return lo.Map(files, func(f models.File, _ int) UploadSummary {
		summary := UploadSummary{
			ID:         f.ID,
			Filename:   f.Filename,
			Size:       f.Size,
			Mime:       f.Mime,
			ScanStatus: f.ScanStatus,
			OwnerID:    f.OwnerID,
			CreatedAt:  f.CreatedAt,
		}
		if f.Owner != nil {
			summary.OwnerEmail = f.Owner.Email
		}
		return summary
	})
}

func ToAuditEntries(logs []models.AuditLog) []AuditEntry {
	return lo.Map(logs, func(l models.AuditLog, _ int) AuditEntry {
		entry := AuditEntry{
			ID:         l.ID,
			Action:     l.Action,
			TargetType: l.TargetType,
			TargetID:   l.TargetID,
			ActorID:    l.ActorID,
			IP:         l.IP,
			Metadata:   map[string]any{},
			CreatedAt:  l.CreatedAt,
		}
		if l.Actor != nil {
			entry.ActorEmail = l.Actor.Email
		}
		// 历史数据可能不是合法 JSON，保持空对象
		if l.Metadata != "" {
			_ = json.Unmarshal([]byte(l.Metadata), &entry.Metadata)
		}
		return entry
	})
}

// PageResult 分页列表的统一返回结构
type PageResult[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

func NewPageResult[T any](items []T, total int64, page, pageSize int) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{Items: items, Total: total, Page: page, PageSize: pageSize}
}
