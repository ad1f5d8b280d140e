package models

import (
	"time"
)

// ScanStatus 文件的病毒扫描状态
type ScanStatus string

const (
	ScanStatusPending  ScanStatus = "PENDING"  // 等待扫描
	ScanStatusClean    ScanStatus = "CLEAN"    // 扫描通过
	ScanStatusInfected ScanStatus = "INFECTED" // 检出病毒
	ScanStatusDisabled ScanStatus = "DISABLED" // 扫描未开启
)

// Valid 判断是否为已知状态
func (s ScanStatus) Valid() bool {
	switch s {
	case ScanStatusPending, ScanStatusClean, ScanStatusInfected, ScanStatusDisabled:
		return true
	}
	return false
}

// File 对应 files 表
type File struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID       uint64     `gorm:"not null;index" json:"ownerId"`
	FolderID      *uint64    `gorm:"default:null;index" json:"folderId"` // 根目录为 null
	Filename      string     `gorm:"type:varchar(255);not null" json:"filename"`
	Size          int64      `gorm:"not null;default:0" json:"size"`
	Mime          string     `gorm:"type:varchar(255);not null" json:"mime"`
	StorageKey    string     `gorm:"type:varchar(512);not null;uniqueIndex" json:"-"` // 对象存储中的 key
	Checksum      *string    `gorm:"type:varchar(128);default:null" json:"checksum,omitempty"`
	ScanStatus    ScanStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"scanStatus"`
	ScanSignature *string    `gorm:"type:varchar(255);default:null" json:"scanSignature,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
	// 软删除后分享仍需读取文件行来判定 file_deleted，所以不用 gorm.DeletedAt
	DeletedAt     *time.Time `gorm:"default:null;index" json:"deletedAt,omitempty"`

	// 定义 GORM 关联，方便预加载
	Owner  *User   `gorm:"foreignKey:OwnerID" json:"-"`
	Folder *Folder `gorm:"foreignKey:FolderID" json:"folder,omitempty"`
}

// TableName 指定 GORM 使用的表名
func (File) TableName() string {
	return "files"
}

// IsDeleted 文件是否已被软删除
func (f *File) IsDeleted() bool {
	return f.DeletedAt != nil
}
