package share

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/metrics"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fluxshare/internal/repositories"
	"github.com/3Eeeecho/go-fluxshare/internal/services/audit"
	"github.com/lithammer/shortuuid/v4"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	privateCacheControl = "private, no-store"
	publicCacheControl  = "public, max-age=31536000, immutable"
)

// ShareService 定义了文件分享服务需要实现的接口
type ShareService interface {
	// Create 为自己的文件创建分享链接
	Create(ctx context.Context, actor audit.Actor, req *models.ShareCreateRequest) (*CreatedShare, error)
	// GetMetadata 公开的分享信息，不产生任何副作用
	GetMetadata(ctx context.Context, token string) (*Metadata, error)
	// VerifyPassword 校验密码并签发下载用的验证令牌
	VerifyPassword(ctx context.Context, token, password string) (*VerifyResult, error)
	// PrepareDownload 计数一次下载并返回预签名下载地址
	PrepareDownload(ctx context.Context, actor audit.Actor, token, verificationToken string) (string, error)
	// List 列出用户创建的分享链接
	List(ctx context.Context, userID uint64, page utils.Pagination) ([]Summary, int64, error)
	// Revoke 撤销一个分享链接
	Revoke(ctx context.Context, actor audit.Actor, shareID uint64) error
}

// CreatedShare 创建分享的返回值
type CreatedShare struct {
	*models.Share
	URL               string `json:"url"`
	PasswordProtected bool   `json:"passwordProtected"`
}

// SharedFile 公开页面可见的文件信息
type SharedFile struct {
	ID         uint64            `json:"id"`
	Filename   string            `json:"filename"`
	Size       int64             `json:"size"`
	Mime       string            `json:"mime"`
	ScanStatus models.ScanStatus `json:"scanStatus"`
}

// Metadata GET /s/:token 的返回值
type Metadata struct {
	Token            string       `json:"token"`
	File             SharedFile   `json:"file"`
	PasswordRequired bool         `json:"passwordRequired"`
	ExpiresAt        *time.Time   `json:"expiresAt"`
	OneTime          bool         `json:"oneTime"`
	MaxDownloads     *uint32      `json:"maxDownloads"`
	DownloadsCount   uint32       `json:"downloadsCount"`
	Availability     Availability `json:"availability"`
}

// VerifyResult 未设置密码时 VerificationToken 为空
type VerifyResult struct {
	VerificationToken *string `json:"verificationToken"`
	PasswordRequired  bool    `json:"passwordRequired"`
}

// Summary 分享列表中的一项
type Summary struct {
	ID                uint64       `json:"id"`
	Token             string       `json:"token"`
	URL               string       `json:"url"`
	FileID            uint64       `json:"fileId"`
	Filename          string       `json:"filename"`
	PasswordProtected bool         `json:"passwordProtected"`
	ExpiresAt         *time.Time   `json:"expiresAt"`
	OneTime           bool         `json:"oneTime"`
	MaxDownloads      *uint32      `json:"maxDownloads"`
	DownloadsCount    uint32       `json:"downloadsCount"`
	CreatedAt         time.Time    `json:"createdAt"`
	Availability      Availability `json:"availability"`
}

// shareService 是 ShareService 接口的具体实现
type shareService struct {
	shareRepo      repositories.ShareRepository // 分享数据仓库，用于数据库操作
	fileRepo       repositories.FileRepository  // 文件数据仓库
	storageService storage.StorageService
	verifier       *VerificationCodec
	metrics        *metrics.Registry
	audit          audit.Recorder
	cfg            *config.Config // 全局配置
	now            func() time.Time
}

var _ ShareService = (*shareService)(nil)

// NewShareService 创建一个新的 ShareService 实例
func NewShareService(
	shareRepo repositories.ShareRepository,
	fileRepo repositories.FileRepository,
	storageService storage.StorageService,
	verifier *VerificationCodec,
	registry *metrics.Registry,
	recorder audit.Recorder,
	cfg *config.Config,
) ShareService {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &shareService{
		shareRepo:      shareRepo,
		fileRepo:       fileRepo,
		storageService: storageService,
		verifier:       verifier,
		metrics:        registry,
		audit:          recorder,
		cfg:            cfg,
		now:            time.Now,
	}
}

// Create 处理创建文件分享链接的业务逻辑
func (s *shareService) Create(ctx context.Context, actor audit.Actor, req *models.ShareCreateRequest) (*CreatedShare, error) {
	// 1. 验证文件是否存在且属于当前用户
	file, err := s.fileRepo.FindActiveByOwner(ctx, req.FileID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("share service: %w", err)
	}

	// 2. 过期时间必须在未来
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("share service: expiresAt %s: %w", req.ExpiresAt.Format(time.RFC3339), xerr.ErrInvalidExpiry)
	}

	newShare := &models.Share{
		FileID:       file.ID,
		Token:        shortuuid.New(),
		ExpiresAt:    req.ExpiresAt,
		OneTime:      req.OneTime,
		MaxDownloads: req.MaxDownloads,
	}

	// 3. 如果设置了密码，对密码进行哈希处理
	if req.Password != nil && *req.Password != "" {
		hashed, err := utils.HashPassword(*req.Password)
		if err != nil {
			logger.Error("CreateShare: 密码哈希失败", zap.Error(err))
			return nil, fmt.Errorf("share service: hash password: %w", err)
		}
		newShare.PasswordHash = &hashed
	}

	// 4. 将新的分享记录保存到数据库
	if err := s.shareRepo.Create(ctx, newShare); err != nil {
		logger.Error("CreateShare: 创建分享链接记录失败", zap.Error(err))
		return nil, fmt.Errorf("share service: create: %w", err)
	}

	s.audit.Record(ctx, actor, audit.Entry{
		Action:     audit.ActionShareCreated,
		TargetType: audit.TargetShare,
		TargetID:   audit.ID(newShare.ID),
		Metadata: map[string]any{
			"fileId":            file.ID,
			"passwordProtected": newShare.HasPassword(),
			"oneTime":           newShare.OneTime,
			"maxDownloads":      newShare.MaxDownloads,
			"expiresAt":         newShare.ExpiresAt,
		},
	})

	logger.Info("CreateShare: 分享链接创建成功",
		zap.Uint64("shareID", newShare.ID),
		zap.Uint64("fileID", file.ID))

	return &CreatedShare{
		Share:             newShare,
		URL:               s.shareURL(newShare.Token),
		PasswordProtected: newShare.HasPassword(),
	}, nil
}

func (s *shareService) GetMetadata(ctx context.Context, token string) (*Metadata, error) {
	share, err := s.shareRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("share service: %w", err)
	}

	meta := &Metadata{
		Token:            share.Token,
		PasswordRequired: share.HasPassword(),
		ExpiresAt:        share.ExpiresAt,
		OneTime:          share.OneTime,
		MaxDownloads:     share.MaxDownloads,
		DownloadsCount:   share.DownloadsCount,
		Availability:     Evaluate(share, share.File, s.now()),
	}
	if share.File != nil {
		meta.File = SharedFile{
			ID:         share.File.ID,
			Filename:   share.File.Filename,
			Size:       share.File.Size,
			Mime:       share.File.Mime,
			ScanStatus: share.File.ScanStatus,
		}
	}
	return meta, nil
}

func (s *shareService) VerifyPassword(ctx context.Context, token, password string) (*VerifyResult, error) {
	share, err := s.loadAvailable(ctx, token)
	if err != nil {
		return nil, err
	}

	if !share.HasPassword() {
		return &VerifyResult{VerificationToken: nil, PasswordRequired: false}, nil
	}
	if !utils.CheckPasswordHash(password, *share.PasswordHash) {
		logger.Warn("VerifyPassword: 分享密码错误", zap.Uint64("shareID", share.ID))
		return nil, fmt.Errorf("share service: %w", xerr.ErrSharePasswordIncorrect)
	}

	verification, err := s.verifier.Issue(share.ID, share.Token)
	if err != nil {
		return nil, fmt.Errorf("share service: %w", err)
	}
	return &VerifyResult{VerificationToken: &verification, PasswordRequired: true}, nil
}

// PrepareDownload 顺序: 可用性 -> 密码验证 -> 原子计数 -> 预签名
func (s *shareService) PrepareDownload(ctx context.Context, actor audit.Actor, token, verificationToken string) (string, error) {
	share, err := s.loadAvailable(ctx, token)
	if err != nil {
		return "", err
	}

	if share.HasPassword() {
		if verificationToken == "" {
			return "", fmt.Errorf("share service: %w", xerr.ErrPasswordVerificationRequired)
		}
		if !s.verifier.Valid(verificationToken, share.ID, share.Token) {
			return "", fmt.Errorf("share service: %w", xerr.ErrInvalidVerificationToken)
		}
	}

	// 先签名再计数，签名失败不消耗下载次数
	url, err := s.storageService.PresignDownloadURL(ctx, share.File.StorageKey, share.File.Filename, CacheControlFor(share))
	if err != nil {
		logger.Error("PrepareDownload: 生成下载地址失败", zap.Uint64("shareID", share.ID), zap.Error(err))
		return "", fmt.Errorf("share service: presign download: %w", xerr.ErrStorageError)
	}

	// 两个并发下载只可能有一个通过限额检查
	ok, err := s.shareRepo.TryIncrementDownloads(ctx, share, s.now())
	if err != nil {
		return "", fmt.Errorf("share service: increment downloads: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("share service: share %d: %w", share.ID, xerr.ErrShareLimitReached)
	}

	s.metrics.IncShareDownloads()
	// 公开下载不记录操作者
	s.audit.Record(ctx, audit.Actor{IP: actor.IP, UserAgent: actor.UserAgent}, audit.Entry{
		Action:     audit.ActionShareDownload,
		TargetType: audit.TargetShare,
		TargetID:   audit.ID(share.ID),
		Metadata:   map[string]any{"fileId": share.FileID},
	})
	return url, nil
}

func (s *shareService) List(ctx context.Context, userID uint64, page utils.Pagination) ([]Summary, int64, error) {
	page.Normalize()
	shares, total, err := s.shareRepo.ListByOwner(ctx, userID, page.Offset(), page.PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("share service: list: %w", err)
	}

	now := s.now()
	summaries := lo.Map(shares, func(sh models.Share, _ int) Summary {
		summary := Summary{
			ID:                sh.ID,
			Token:             sh.Token,
			URL:               s.shareURL(sh.Token),
			FileID:            sh.FileID,
			PasswordProtected: sh.HasPassword(),
			ExpiresAt:         sh.ExpiresAt,
			OneTime:           sh.OneTime,
			MaxDownloads:      sh.MaxDownloads,
			DownloadsCount:    sh.DownloadsCount,
			CreatedAt:         sh.CreatedAt,
			Availability:      Evaluate(&sh, sh.File, now),
		}
		if sh.File != nil {
			summary.Filename = sh.File.Filename
		}
		return summary
	})
	return summaries, total, nil
}

// Revoke 处理撤销分享链接的业务逻辑
func (s *shareService) Revoke(ctx context.Context, actor audit.Actor, shareID uint64) error {
	share, err := s.shareRepo.FindByIDAndOwner(ctx, shareID, actor.UserID)
	if err != nil {
		return fmt.Errorf("share service: %w", err)
	}
	if err := s.shareRepo.Delete(ctx, share.ID); err != nil {
		logger.Error("RevokeShare: 删除分享链接失败", zap.Uint64("shareID", share.ID), zap.Error(err))
		return fmt.Errorf("share service: revoke: %w", err)
	}

	s.audit.Record(ctx, actor, audit.Entry{
		Action:     audit.ActionShareRevoked,
		TargetType: audit.TargetShare,
		TargetID:   audit.ID(share.ID),
		Metadata:   map[string]any{"fileId": share.FileID},
	})
	logger.Info("RevokeShare: 分享链接已撤销", zap.Uint64("shareID", share.ID))
	return nil
}

// loadAvailable 加载分享并确认当前可用，不可用时错误带上具体原因
func (s *shareService) loadAvailable(ctx context.Context, token string) (*models.Share, error) {
	share, err := s.shareRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("share service: %w", err)
	}
	availability := Evaluate(share, share.File, s.now())
	if !availability.Available {
		return nil, xerr.WithReason(
			fmt.Errorf("share service: share %d: %w", share.ID, xerr.ErrShareUnavailable),
			string(availability.Reason),
		)
	}
	return share, nil
}

func (s *shareService) shareURL(token string) string {
	return strings.TrimRight(s.cfg.Server.WebBaseURL, "/") + "/s/" + token
}

// CacheControlFor 带访问限制的分享不允许被缓存
func CacheControlFor(share *models.Share) string {
	if share.HasPassword() || share.OneTime || share.MaxDownloads != nil || share.ExpiresAt != nil {
		return privateCacheControl
	}
	return publicCacheControl
}
