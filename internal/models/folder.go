package models

import "time"

// Folder 对应 folders 表，同一用户下名称唯一
type Folder struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID   uint64    `gorm:"not null;uniqueIndex:idx_folder_owner_name" json:"ownerId"`
	Name      string    `gorm:"type:varchar(120);not null;uniqueIndex:idx_folder_owner_name" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Folder) TableName() string {
	return "folders"
}
