package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uint64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) error
	SetBanned(ctx context.Context, id uint64, banned bool) error
	// List 按邮箱模糊过滤，新用户在前
	List(ctx context.Context, query string, offset, limit int) ([]models.User, int64, error)
	Count(ctx context.Context) (total int64, banned int64, err error)
}

type userRepository struct {
	db *gorm.DB
}

var _ UserRepository = (*userRepository)(nil)

// NewUserRepository 创建一个新的 UserRepository 实例
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return &userRepository{db: tx}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return xerr.ErrEmailAlreadyExists
		}
		logger.Error("Error creating user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrUserNotFound
		}
		logger.Error("Error getting user by ID", zap.Uint64("userID", id), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) { // 使用 errors.Is 更安全
			return nil, xerr.ErrUserNotFound
		}
		logger.Error("Error getting user by email", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return &user, nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uint64, passwordHash string) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", passwordHash).Error
	if err != nil {
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}

func (r *userRepository) SetBanned(ctx context.Context, id uint64, banned bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("banned", banned)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, res.Error)
	}
	if res.RowsAffected == 0 {
		return xerr.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, query string, offset, limit int) ([]models.User, int64, error) {
	var (
		users []models.User
		total int64
	)
	q := r.db.WithContext(ctx).Model(&models.User{})
	if query = strings.TrimSpace(query); query != "" {
		q = q.Where("email LIKE ?", "%"+query+"%")
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return users, total, nil
}

func (r *userRepository) Count(ctx context.Context) (int64, int64, error) {
	var total, banned int64
	db := r.db.WithContext(ctx).Model(&models.User{})
	if err := db.Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("banned = ?", true).Count(&banned).Error; err != nil {
		return 0, 0, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return total, banned, nil
}
