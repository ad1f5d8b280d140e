package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FileListQuery 文件列表过滤条件
type FileListQuery struct {
	OwnerID  uint64
	FolderID *uint64
	Query    string   // 文件名模糊匹配
	IDs      []uint64 // 非空时只返回这些文件（来自全文检索）
	Offset   int
	Limit    int
}

type FileRepository interface {
	WithTx(tx *gorm.DB) FileRepository
	Create(ctx context.Context, file *models.File) error
	// FindByID 包含已软删除的文件
	FindByID(ctx context.Context, id uint64) (*models.File, error)
	// FindActiveByOwner 未删除且属于 ownerID 的文件
	FindActiveByOwner(ctx context.Context, id, ownerID uint64) (*models.File, error)
	ExistsByStorageKey(ctx context.Context, storageKey string) (bool, error)
	List(ctx context.Context, q FileListQuery) ([]models.File, int64, error)
	Update(ctx context.Context, id uint64, updates map[string]any) error
	SoftDelete(ctx context.Context, id uint64, now time.Time) error
	// DetachFolder 把文件夹内的文件移回根目录
	DetachFolder(ctx context.Context, folderID uint64) error
	// UpdateScanStatus 仅当文件仍为 PENDING 时写入结果，返回是否写入
	UpdateScanStatus(ctx context.Context, id uint64, status models.ScanStatus, signature *string) (bool, error)
	ListPendingScan(ctx context.Context, limit int) ([]models.File, error)
	Stats(ctx context.Context) (count int64, totalBytes int64, err error)
	RecentUploads(ctx context.Context, limit int) ([]models.File, error)
}

type fileRepository struct {
	db *gorm.DB
}

var _ FileRepository = (*fileRepository)(nil)

func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) WithTx(tx *gorm.DB) FileRepository {
	return &fileRepository{db: tx}
}

func (r *fileRepository) Create(ctx context.Context, file *models.File) error {
	err := r.db.WithContext(ctx).Create(file).Error
	if err != nil {
		logger.Error("Create: Failed to create file in DB", zap.Error(err), zap.Uint64("ownerID", file.OwnerID), zap.String("storageKey", file.StorageKey))
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return xerr.ErrUploadAlreadyCompleted
		}
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}

func (r *fileRepository) FindByID(ctx context.Context, id uint64) (*models.File, error) {
	var file models.File
	err := r.db.WithContext(ctx).First(&file, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrFileNotFound // 文件未找到
		}
		return nil, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return &file, nil
}

func (r *fileRepository) FindActiveByOwner(ctx context.Context, id, ownerID uint64) (*models.File, error) {
	var file models.File
	err := r.db.WithContext(ctx).Preload("Folder").
		Where("id = ? AND owner_id = ? AND deleted_at IS NULL", id, ownerID).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrFileNotFound
		}
		return nil, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return &file, nil
}

func (r *fileRepository) ExistsByStorageKey(ctx context.Context, storageKey string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.File{}).Where("storage_key = ?", storageKey).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return count > 0, nil
}

func (r *fileRepository) List(ctx context.Context, q FileListQuery) ([]models.File, int64, error) {
	var (
		files []models.File
		total int64
	)
	query := r.db.WithContext(ctx).Model(&models.File{}).
		Where("owner_id = ? AND deleted_at IS NULL", q.OwnerID)
	if q.FolderID != nil {
		query = query.Where("folder_id = ?", *q.FolderID)
	}
	if len(q.IDs) > 0 {
		query = query.Where("id IN ?", q.IDs)
	} else if s := strings.TrimSpace(q.Query); s != "" {
		query = query.Where("filename LIKE ?", "%"+s+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	err := query.Preload("Folder").Order("created_at DESC").Offset(q.Offset).Limit(q.Limit).Find(&files).Error
	if err != nil {
		logger.Error("Error listing files from DB", zap.Uint64("ownerID", q.OwnerID), zap.Error(err))
		return nil, 0, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return files, total, nil
}

func (r *fileRepository) Update(ctx context.Context, id uint64, updates map[string]any) error {
	if err := r.db.WithContext(ctx).Model(&models.File{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		logger.Error("Update: Failed to update file in DB", zap.Error(err), zap.Uint64("fileID", id))
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}

func (r *fileRepository) SoftDelete(ctx context.Context, id uint64, now time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.File{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", now).Error
	if err != nil {
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}

func (r *fileRepository) DetachFolder(ctx context.Context, folderID uint64) error {
	err := r.db.WithContext(ctx).Model(&models.File{}).
		Where("folder_id = ?", folderID).
		Update("folder_id", nil).Error
	if err != nil {
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}

func (r *fileRepository) UpdateScanStatus(ctx context.Context, id uint64, status models.ScanStatus, signature *string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.File{}).
		Where("id = ? AND scan_status = ?", id, models.ScanStatusPending).
		Updates(map[string]any{"scan_status": status, "scan_signature": signature})
	if res.Error != nil {
		logger.Error("UpdateScanStatus: Failed to update scan status in DB", zap.Uint64("fileID", id), zap.String("status", string(status)), zap.Error(res.Error))
		return false, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *fileRepository) ListPendingScan(ctx context.Context, limit int) ([]models.File, error) {
	var files []models.File
	err := r.db.WithContext(ctx).
		Where("scan_status = ? AND deleted_at IS NULL", models.ScanStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return files, nil
}

func (r *fileRepository) Stats(ctx context.Context) (int64, int64, error) {
	var result struct {
		Count      int64
		TotalBytes int64
	}
	err := r.db.WithContext(ctx).Model(&models.File{}).
		Select("COUNT(*) AS count, COALESCE(SUM(size), 0) AS total_bytes").
		Where("deleted_at IS NULL").
		Scan(&result).Error
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return result.Count, result.TotalBytes, nil
}

func (r *fileRepository) RecentUploads(ctx context.Context, limit int) ([]models.File, error) {
	var files []models.File
	err := r.db.WithContext(ctx).Preload("Owner").
		Where("deleted_at IS NULL").
		Order("created_at DESC").
		Limit(limit).
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return files, nil
}
