package models

import "time"

// AuditLog 审计日志，ActorID 为空表示匿名操作（例如公开分享下载）
type AuditLog struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorID    *uint64   `gorm:"default:null;index" json:"actorId"`
	Action     string    `gorm:"type:varchar(64);not null;index" json:"action"`
	TargetType string    `gorm:"type:varchar(32);not null" json:"targetType"`
	TargetID   string    `gorm:"type:varchar(64);not null" json:"targetId"`
	IP         *string   `gorm:"type:varchar(64);default:null" json:"ip"`
	UserAgent  *string   `gorm:"type:varchar(512);default:null" json:"userAgent"`
	Metadata   string    `gorm:"type:text" json:"metadata"` // JSON 文本
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"createdAt"`

	Actor *User `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
