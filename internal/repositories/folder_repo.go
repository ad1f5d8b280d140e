package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"gorm.io/gorm"
)

type FolderRepository interface {
	WithTx(tx *gorm.DB) FolderRepository
	Create(ctx context.Context, folder *models.Folder) error
	FindByIDAndOwner(ctx context.Context, id, ownerID uint64) (*models.Folder, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]models.Folder, error)
	Delete(ctx context.Context, id uint64) error
}

type folderRepository struct {
	db *gorm.DB
}

var _ FolderRepository = (*folderRepository)(nil)

func NewFolderRepository(db *gorm.DB) FolderRepository {
	return &folderRepository{db: db}
}

func (r *folderRepository) WithTx(tx *gorm.DB) FolderRepository {
	return &folderRepository{db: tx}
}

func (r *folderRepository) Create(ctx context.Context, folder *models.Folder) error {
	if err := r.db.WithContext(ctx).Create(folder).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return xerr.ErrFolderAlreadyExists
		}
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}

func (r *folderRepository) FindByIDAndOwner(ctx context.Context, id, ownerID uint64) (*models.Folder, error) {
	var folder models.Folder
	err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&folder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrFolderNotFound
		}
		return nil, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return &folder, nil
}

func (r *folderRepository) ListByOwner(ctx context.Context, ownerID uint64) ([]models.Folder, error) {
	var folders []models.Folder
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("name ASC").Find(&folders).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return folders, nil
}

func (r *folderRepository) Delete(ctx context.Context, id uint64) error {
	if err := r.db.WithContext(ctx).Delete(&models.Folder{}, id).Error; err != nil {
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}
