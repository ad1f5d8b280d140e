package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/cache"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 认证中间件每个请求都会读取用户，缓存时间不宜过长，封禁需要尽快生效
const userCacheTTL = time.Minute

type cachedUserRepository struct {
	next  UserRepository // Next repository in the chain (the db repository)
	cache cache.Cache
}

// NewCachedUserRepository 在 FindByID 外加一层 Redis 缓存
func NewCachedUserRepository(next UserRepository, c cache.Cache) UserRepository {
	return &cachedUserRepository{next: next, cache: c}
}

func (r *cachedUserRepository) WithTx(tx *gorm.DB) UserRepository {
	return &cachedUserRepository{next: r.next.WithTx(tx), cache: r.cache}
}

func (r *cachedUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.next.Create(ctx, user)
}

func (r *cachedUserRepository) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	key := cache.GenerateUserAuthKey(id)

	var cached models.User
	err := r.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn("FindByID: 读取用户缓存失败", zap.Uint64("userID", id), zap.Error(err))
	}

	// Cache miss, get from db
	user, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// PasswordHash 不参与 JSON 序列化，缓存中不会出现
	if err := r.cache.Set(ctx, key, user, userCacheTTL); err != nil {
		logger.Warn("FindByID: 写入用户缓存失败", zap.Uint64("userID", id), zap.Error(err))
	}
	return user, nil
}

func (r *cachedUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.next.FindByEmail(ctx, email)
}

func (r *cachedUserRepository) UpdatePassword(ctx context.Context, id uint64, passwordHash string) error {
	if err := r.next.UpdatePassword(ctx, id, passwordHash); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *cachedUserRepository) SetBanned(ctx context.Context, id uint64, banned bool) error {
	if err := r.next.SetBanned(ctx, id, banned); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *cachedUserRepository) List(ctx context.Context, query string, offset, limit int) ([]models.User, int64, error) {
	return r.next.List(ctx, query, offset, limit)
}

func (r *cachedUserRepository) Count(ctx context.Context) (int64, int64, error) {
	return r.next.Count(ctx)
}

func (r *cachedUserRepository) invalidate(ctx context.Context, id uint64) {
	if err := r.cache.Del(ctx, cache.GenerateUserAuthKey(id)); err != nil {
		logger.Warn("删除用户缓存失败", zap.Uint64("userID", id), zap.Error(err))
	}
}
