package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"gorm.io/gorm"
)

type ShareRepository interface {
	WithTx(tx *gorm.DB) ShareRepository
	Create(ctx context.Context, share *models.Share) error
	// FindByToken 预加载文件，文件可能已被软删除
	FindByToken(ctx context.Context, token string) (*models.Share, error)
	FindByIDAndOwner(ctx context.Context, id, ownerID uint64) (*models.Share, error)
	// ListByOwner 分页列出用户的分享，最新的在前
	ListByOwner(ctx context.Context, ownerID uint64, offset, limit int) ([]models.Share, int64, error)
	Delete(ctx context.Context, id uint64) error
	DeleteByFileID(ctx context.Context, fileID uint64) error
	// TryIncrementDownloads 在同一条 UPDATE 中校验过期时间与次数上限并计数
	// 返回 false 表示条件不满足，没有行被更新
	TryIncrementDownloads(ctx context.Context, share *models.Share, now time.Time) (bool, error)
}

type shareRepository struct {
	db *gorm.DB
}

var _ ShareRepository = (*shareRepository)(nil)

// NewShareRepository 创建新的shareRepository实例
func NewShareRepository(db *gorm.DB) ShareRepository {
	return &shareRepository{db: db}
}

func (r *shareRepository) WithTx(tx *gorm.DB) ShareRepository {
	return &shareRepository{db: tx}
}

// 创建新的数据库记录
func (r *shareRepository) Create(ctx context.Context, share *models.Share) error {
	if err := r.db.WithContext(ctx).Create(share).Error; err != nil {
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}

// 根据token查找记录
func (r *shareRepository) FindByToken(ctx context.Context, token string) (*models.Share, error) {
	var share models.Share
	err := r.db.WithContext(ctx).Preload("File").Where("token = ?", token).First(&share).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrShareNotFound
		}
		return nil, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return &share, nil
}

func (r *shareRepository) FindByIDAndOwner(ctx context.Context, id, ownerID uint64) (*models.Share, error) {
	var share models.Share
	err := r.db.WithContext(ctx).
		Joins("JOIN files ON files.id = shares.file_id").
		Where("shares.id = ? AND files.owner_id = ?", id, ownerID).
		First(&share).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrShareNotFound
		}
		return nil, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return &share, nil
}

// 查找特定用户的所有分享记录
func (r *shareRepository) ListByOwner(ctx context.Context, ownerID uint64, offset, limit int) ([]models.Share, int64, error) {
	var (
		shares []models.Share
		total  int64
	)
	query := r.db.WithContext(ctx).Model(&models.Share{}).
		Joins("JOIN files ON files.id = shares.file_id").
		Where("files.owner_id = ? AND files.deleted_at IS NULL", ownerID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	err := query.Preload("File").
		Order("shares.created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&shares).Error
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return shares, total, nil
}

func (r *shareRepository) Delete(ctx context.Context, id uint64) error {
	if err := r.db.WithContext(ctx).Delete(&models.Share{}, id).Error; err != nil {
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}

func (r *shareRepository) DeleteByFileID(ctx context.Context, fileID uint64) error {
	if err := r.db.WithContext(ctx).Where("file_id = ?", fileID).Delete(&models.Share{}).Error; err != nil {
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}

func (r *shareRepository) TryIncrementDownloads(ctx context.Context, share *models.Share, now time.Time) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Share{}).Where("id = ?", share.ID)
	if share.ExpiresAt != nil {
		query = query.Where("expires_at > ?", now)
	}
	if share.OneTime {
		query = query.Where("downloads_count < ?", 1)
	}
	if share.MaxDownloads != nil {
		query = query.Where("downloads_count < ?", *share.MaxDownloads)
	}

	res := query.UpdateColumn("downloads_count", gorm.Expr("downloads_count + ?", 1))
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, res.Error)
	}
	return res.RowsAffected == 1, nil
}
