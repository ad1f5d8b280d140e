package models

import (
	"time"
)

// Role 用户角色
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User 对应 users 表
type User struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"` // - 表示不输出到 JSON
	Role         Role      `gorm:"type:varchar(16);not null;default:'USER'" json:"role"`
	Banned       bool      `gorm:"not null;default:false" json:"banned"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定 GORM 使用的表名
func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// RefreshToken 持久化的刷新令牌，只保存哈希
type RefreshToken struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement"`
	UserID       uint64     `gorm:"not null;index"`
	TokenHash    string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	UserAgent    *string    `gorm:"type:varchar(512);default:null"`
	IP           *string    `gorm:"type:varchar(64);default:null"`
	ExpiresAt    time.Time  `gorm:"not null"`
	RevokedAt    *time.Time `gorm:"default:null"`
	ReplacedByID *uint64    `gorm:"default:null"`
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// PasswordResetToken 找回密码令牌，只保存哈希
type PasswordResetToken struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement"`
	UserID    uint64     `gorm:"not null;index"`
	TokenHash string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	ExpiresAt time.Time  `gorm:"not null"`
	UsedAt    *time.Time `gorm:"default:null"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
}

func (PasswordResetToken) TableName() string {
	return "password_reset_tokens"
}
