package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/cache"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/mapper"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fluxshare/internal/repositories"
	"github.com/3Eeeecho/go-fluxshare/internal/services/audit"
	"go.uber.org/zap"
)

const (
	statsCacheTTL      = 30 * time.Second
	recentUploadsLimit = 10
	recentAuditLimit   = 30
)

// Stats 管理后台统计数据
type Stats struct {
	Users         int64                  `json:"users"`
	BannedUsers   int64                  `json:"bannedUsers"`
	Files         int64                  `json:"files"`
	StorageBytes  int64                  `json:"storageBytes"`
	RecentUploads []mapper.UploadSummary `json:"recentUploads"`
	RecentAudit   []mapper.AuditEntry    `json:"recentAudit"`
}

type UserService interface {
	GetUserProfile(ctx context.Context, userID uint64) (*models.User, error)
	ListUsers(ctx context.Context, query string, page utils.Pagination) ([]models.User, int64, error)
	// SetBanned 封禁会同时撤销该用户的全部刷新令牌
	SetBanned(ctx context.Context, actor audit.Actor, userID uint64, banned bool) (*models.User, error)
	Stats(ctx context.Context) (*Stats, error)
}

type userService struct {
	userRepo    repositories.UserRepository
	refreshRepo repositories.RefreshTokenRepository
	fileRepo    repositories.FileRepository
	auditRepo   repositories.AuditRepository
	cache       cache.Cache
	audit       audit.Recorder
	now         func() time.Time
}

var _ UserService = (*userService)(nil)

func NewUserService(
	userRepo repositories.UserRepository,
	refreshRepo repositories.RefreshTokenRepository,
	fileRepo repositories.FileRepository,
	auditRepo repositories.AuditRepository,
	c cache.Cache,
	recorder audit.Recorder,
) UserService {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &userService{
		userRepo:    userRepo,
		refreshRepo: refreshRepo,
		fileRepo:    fileRepo,
		auditRepo:   auditRepo,
		cache:       c,
		audit:       recorder,
		now:         time.Now,
	}
}

func (s *userService) GetUserProfile(ctx context.Context, userID uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		logger.Error("GetUserProfile: Error retrieving user",
			zap.Uint64("userID", userID),
			zap.Error(err))
		return nil, fmt.Errorf("user service: %w", err)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, query string, page utils.Pagination) ([]models.User, int64, error) {
	page.Normalize()
	users, total, err := s.userRepo.List(ctx, query, page.Offset(), page.PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("user service: list: %w", err)
	}
	return users, total, nil
}

func (s *userService) SetBanned(ctx context.Context, actor audit.Actor, userID uint64, banned bool) (*models.User, error) {
	if banned && userID == actor.UserID {
		return nil, fmt.Errorf("user service: %w", xerr.ErrCannotBanSelf)
	}

	if err := s.userRepo.SetBanned(ctx, userID, banned); err != nil {
		return nil, fmt.Errorf("user service: set banned: %w", err)
	}
	if banned {
		if err := s.refreshRepo.RevokeAllForUser(ctx, userID, s.now()); err != nil {
			logger.Error("SetBanned: 撤销刷新令牌失败", zap.Uint64("userID", userID), zap.Error(err))
			return nil, fmt.Errorf("user service: revoke tokens: %w", err)
		}
	}
	s.invalidateStats(ctx)

	action := audit.ActionUserUnbanned
	if banned {
		action = audit.ActionUserBanned
	}
	s.audit.Record(ctx, actor, audit.Entry{
		Action:     action,
		TargetType: audit.TargetUser,
		TargetID:   audit.ID(userID),
	})
	logger.Info("SetBanned: 用户状态已更新", zap.Uint64("userID", userID), zap.Bool("banned", banned))

	return s.userRepo.FindByID(ctx, userID)
}

// Stats 结果在 Redis 中缓存 30 秒
func (s *userService) Stats(ctx context.Context) (*Stats, error) {
	key := cache.GenerateAdminStatsKey()
	if s.cache != nil {
		var cached Stats
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn("Stats: 读取统计缓存失败", zap.Error(err))
		}
	}

	users, banned, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("user service: count users: %w", err)
	}
	files, bytes, err := s.fileRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("user service: file stats: %w", err)
	}
	uploads, err := s.fileRepo.RecentUploads(ctx, recentUploadsLimit)
	if err != nil {
		return nil, fmt.Errorf("user service: recent uploads: %w", err)
	}
	logs, err := s.auditRepo.Recent(ctx, recentAuditLimit)
	if err != nil {
		return nil, fmt.Errorf("user service: recent audit: %w", err)
	}

	stats := &Stats{
		Users:         users,
		BannedUsers:   banned,
		Files:         files,
		StorageBytes:  bytes,
		RecentUploads: mapper.ToUploadSummaries(uploads),
		RecentAudit:   mapper.ToAuditEntries(logs),
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, statsCacheTTL); err != nil {
			logger.Warn("Stats: 写入统计缓存失败", zap.Error(err))
		}
	}
	return stats, nil
}

func (s *userService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cache.GenerateAdminStatsKey()); err != nil {
		logger.Warn("删除统计缓存失败", zap.Error(err))
	}
}
