package models

import (
	"time"
)

type Share struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID         uint64     `gorm:"not null;index" json:"fileId"`
	// 公开链接中的 token
	Token          string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"token"`
	// 可选：分享密码的哈希值
	PasswordHash   *string    `gorm:"type:varchar(255);default:null" json:"-"`
	ExpiresAt      *time.Time `gorm:"default:null" json:"expiresAt"`
	OneTime        bool       `gorm:"not null;default:false" json:"oneTime"`
	MaxDownloads   *uint32    `gorm:"default:null" json:"maxDownloads"`
	DownloadsCount uint32     `gorm:"not null;default:0" json:"downloadsCount"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`

	// 关系File模型预加载
	File *File `gorm:"foreignKey:FileID" json:"file,omitempty"`
}

// 指定gorm的表名
func (Share) TableName() string {
	return "shares"
}

// HasPassword 分享是否设置了密码
func (s *Share) HasPassword() bool {
	return s.PasswordHash != nil && *s.PasswordHash != ""
}
