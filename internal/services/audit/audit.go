package audit

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/repositories"
	"go.uber.org/zap"
)

// 审计动作
const (
	ActionRegister               = "auth.register"
	ActionLogin                  = "auth.login"
	ActionLogout                 = "auth.logout"
	ActionPasswordResetRequested = "auth.password_reset.requested"
	ActionPasswordResetCompleted = "auth.password_reset.completed"
	ActionPasswordChanged        = "auth.password_changed"

	ActionUploadInitiated = "file.upload.initiated"
	ActionUploadCompleted = "file.upload.completed"
	ActionUploadAborted   = "file.upload.aborted"
	ActionFileUpdated     = "file.updated"
	ActionFileDeleted     = "file.deleted"
	ActionScanClean       = "file.scan.clean"
	ActionScanInfected    = "file.scan.infected"

	ActionFolderCreate = "folder.create"
	ActionFolderDelete = "folder.delete"

	ActionShareCreated  = "share.created"
	ActionShareRevoked  = "share.revoked"
	ActionShareDownload = "share.download"

	ActionUserBanned   = "admin.user.banned"
	ActionUserUnbanned = "admin.user.unbanned"
)

// 审计目标类型
const (
	TargetUser   = "user"
	TargetFile   = "file"
	TargetFolder = "folder"
	TargetShare  = "share"
	TargetUpload = "upload"
)

// Actor 发起操作的用户与请求来源，UserID 为 0 表示匿名
type Actor struct {
	UserID    uint64
	Role      models.Role
	IP        string
	UserAgent string
}

// System 后台任务使用的匿名操作者
var System = Actor{}

// Entry 一条待写入的审计记录
type Entry struct {
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

// Recorder 写入审计日志，失败只记录告警，不影响业务
type Recorder interface {
	Record(ctx context.Context, actor Actor, entry Entry)
}

type recorder struct {
	repo repositories.AuditRepository
}

var _ Recorder = (*recorder)(nil)

func NewRecorder(repo repositories.AuditRepository) Recorder {
	return &recorder{repo: repo}
}

func (r *recorder) Record(ctx context.Context, actor Actor, entry Entry) {
	log := &models.AuditLog{
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		Metadata:   "{}",
	}
	if actor.UserID != 0 {
		id := actor.UserID
		log.ActorID = &id
	}
	if actor.IP != "" {
		ip := actor.IP
		log.IP = &ip
	}
	if actor.UserAgent != "" {
		ua := actor.UserAgent
		log.UserAgent = &ua
	}
	if len(entry.Metadata) > 0 {
		if raw, err := json.Marshal(entry.Metadata); err == nil {
			log.Metadata = string(raw)
		}
	}

	if err := r.repo.Create(ctx, log); err != nil {
		logger.Warn("Record: 写入审计日志失败",
			zap.String("action", entry.Action),
			zap.String("targetID", entry.TargetID),
			zap.Error(err))
	}
}

// ID 把数字主键转换为审计目标 ID
func ID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// NopRecorder 丢弃所有审计记录，用于命令行工具与测试
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Actor, Entry) {}
