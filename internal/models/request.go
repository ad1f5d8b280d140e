package models

import "time"

// RegisterRequest 注册请求体
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=12,max=128"`
}

// LoginRequest 登录请求体
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,max=128"`
}

// ForgotPasswordRequest 找回密码
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest 通过邮件中的令牌重置密码
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required,min=16,max=256"`
	Password string `json:"password" binding:"required,min=12,max=128"`
}

// ChangePasswordRequest 已登录用户修改密码
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required,max=128"`
	NewPassword     string `json:"newPassword" binding:"required,min=12,max=128"`
}

// FileListRequest 文件列表查询参数
type FileListRequest struct {
	Page     int     `form:"page"`
	PageSize int     `form:"pageSize"`
	Query    string  `form:"q" binding:"max=255"`
	FolderID *uint64 `form:"folderId"`
}

// FileUpdateRequest 重命名或移动文件，ClearFolder 为 true 时移回根目录
type FileUpdateRequest struct {
	Filename    *string `json:"filename" binding:"omitempty,min=1,max=255"`
	FolderID    *uint64 `json:"folderId"`
	ClearFolder bool    `json:"clearFolder"`
}

// FolderCreateRequest 创建文件夹
type FolderCreateRequest struct {
	Name string `json:"name" binding:"required,min=1,max=120"`
}

// ShareCreateRequest 创建分享链接
type ShareCreateRequest struct {
	FileID       uint64     `json:"fileId" binding:"required,gt=0"`
	Password     *string    `json:"password" binding:"omitempty,min=6,max=128"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	OneTime      bool       `json:"oneTime"`
	MaxDownloads *uint32    `json:"maxDownloads" binding:"omitempty,gt=0"`
}

// ShareVerifyRequest 校验分享密码
type ShareVerifyRequest struct {
	Password string `json:"password" binding:"required,max=128"`
}

// UserListRequest 管理员查询用户
type UserListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
	Query    string `form:"q" binding:"max=255"`
}

// SetBannedRequest 封禁或解封用户
type SetBannedRequest struct {
	Banned *bool `json:"banned" binding:"required"`
}

// RefreshRequest 非浏览器客户端可以在请求体中携带刷新令牌
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"omitempty,max=2048"`
}
