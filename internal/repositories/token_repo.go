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

// RefreshTokenRepository 刷新令牌只按哈希存取
type RefreshTokenRepository interface {
	WithTx(tx *gorm.DB) RefreshTokenRepository
	Create(ctx context.Context, token *models.RefreshToken) error
	// FindActiveByHash 未撤销且未过期
	FindActiveByHash(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id uint64, replacedByID *uint64, now time.Time) error
	RevokeByHash(ctx context.Context, tokenHash string, now time.Time) error
	RevokeAllForUser(ctx context.Context, userID uint64, now time.Time) error
}

type refreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) WithTx(tx *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: tx}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}

func (r *refreshTokenRepository) FindActiveByHash(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", tokenHash, now).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return &token, nil
}

func (r *refreshTokenRepository) Revoke(ctx context.Context, id uint64, replacedByID *uint64, now time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ?", id).
		Updates(map[string]any{"revoked_at": now, "replaced_by_id": replacedByID}).Error
	if err != nil {
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}

func (r *refreshTokenRepository) RevokeByHash(ctx context.Context, tokenHash string, now time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", tokenHash).
		Update("revoked_at", now).Error
	if err != nil {
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}

func (r *refreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uint64, now time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now).Error
	if err != nil {
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}

type PasswordResetRepository interface {
	WithTx(tx *gorm.DB) PasswordResetRepository
	Create(ctx context.Context, token *models.PasswordResetToken) error
	FindValidByHash(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id uint64, now time.Time) error
}

type passwordResetRepository struct {
	db *gorm.DB
}

func NewPasswordResetRepository(db *gorm.DB) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) WithTx(tx *gorm.DB) PasswordResetRepository {
	return &passwordResetRepository{db: tx}
}

func (r *passwordResetRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}

func (r *passwordResetRepository) FindValidByHash(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", tokenHash, now).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrInvalidResetToken
		}
		return nil, fmt.Errorf("%w: %v", xerr.ErrDatabaseError, err)
	}
	return &token, nil
}

// MarkUsed 只有未使用的令牌才会被标记，并发重置时只有一个成功
func (r *passwordResetRepository) MarkUsed(ctx context.Context, id uint64, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.PasswordResetToken{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", now)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", xerr.ErrDatabaseError, res.Error)
	}
	if res.RowsAffected == 0 {
		return xerr.ErrInvalidResetToken
	}
	return nil
}
