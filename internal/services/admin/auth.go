package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/mailer"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fluxshare/internal/repositories"
	"github.com/3Eeeecho/go-fluxshare/internal/services/audit"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 重置令牌的随机字节数
const resetTokenBytes = 32

// TokenPair 登录或刷新后签发的一对令牌
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type AuthService interface {
	Register(ctx context.Context, actor audit.Actor, email, password string) (*models.User, error)
	Login(ctx context.Context, actor audit.Actor, email, password string) (*models.User, *TokenPair, error)
	// Refresh 轮换刷新令牌，旧令牌被撤销并指向新令牌
	Refresh(ctx context.Context, actor audit.Actor, refreshToken string) (*models.User, *TokenPair, error)
	Logout(ctx context.Context, actor audit.Actor, refreshToken string) error
	// ForgotPassword 无论邮箱是否存在都返回成功
	ForgotPassword(ctx context.Context, actor audit.Actor, email string) error
	ResetPassword(ctx context.Context, actor audit.Actor, token, newPassword string) error
	ChangePassword(ctx context.Context, actor audit.Actor, currentPassword, newPassword string) error
	// ParseAccessToken 校验访问令牌
	ParseAccessToken(token string) (*utils.Claims, error)
	// EnsureBootstrapAdmin 按配置创建初始管理员
	EnsureBootstrapAdmin(ctx context.Context) error
}

type authService struct {
	userRepo    repositories.UserRepository
	refreshRepo repositories.RefreshTokenRepository
	resetRepo   repositories.PasswordResetRepository
	tm          repositories.TransactionManager
	mailer      mailer.Mailer
	audit       audit.Recorder
	cfg         *config.Config
	now         func() time.Time
}

// 确保authService实现了AuthService的方法
var _ AuthService = (*authService)(nil)

// NewAuthService userRepo 必须是直连数据库的实现，缓存中没有密码哈希
func NewAuthService(
	userRepo repositories.UserRepository,
	refreshRepo repositories.RefreshTokenRepository,
	resetRepo repositories.PasswordResetRepository,
	tm repositories.TransactionManager,
	m mailer.Mailer,
	recorder audit.Recorder,
	cfg *config.Config,
) AuthService {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if m == nil {
		m = mailer.LogMailer{}
	}
	return &authService{
		userRepo:    userRepo,
		refreshRepo: refreshRepo,
		resetRepo:   resetRepo,
		tm:          tm,
		mailer:      m,
		audit:       recorder,
		cfg:         cfg,
		now:         time.Now,
	}
}

// NormalizeEmail 邮箱统一小写
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Register(ctx context.Context, actor audit.Actor, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)

	//哈希密码
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("auth service: hash password: %w", err)
	}

	role := models.RoleUser
	if adminEmail := NormalizeEmail(s.cfg.Admin.Email); adminEmail != "" && adminEmail == email {
		role = models.RoleAdmin
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         role,
	}
	// 邮箱唯一索引负责判重
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("auth service: create user: %w", err)
	}

	actor.UserID = user.ID
	s.audit.Record(ctx, actor, audit.Entry{
		Action:     audit.ActionRegister,
		TargetType: audit.TargetUser,
		TargetID:   audit.ID(user.ID),
	})
	logger.Info("Register: 用户注册成功", zap.Uint64("userID", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

func (s *authService) Login(ctx context.Context, actor audit.Actor, email, password string) (*models.User, *TokenPair, error) {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, xerr.ErrUserNotFound) {
			return nil, nil, fmt.Errorf("auth service: %w", xerr.ErrInvalidCredentials)
		}
		return nil, nil, fmt.Errorf("auth service: %w", err)
	}

	//验证密码
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		logger.Warn("Login: 密码错误", zap.Uint64("userID", user.ID))
		return nil, nil, fmt.Errorf("auth service: %w", xerr.ErrInvalidCredentials)
	}
	if user.Banned {
		return nil, nil, fmt.Errorf("auth service: user %d: %w", user.ID, xerr.ErrUserBanned)
	}

	pair, record, err := s.issueTokens(user, actor)
	if err != nil {
		return nil, nil, err
	}
	if err := s.refreshRepo.Create(ctx, record); err != nil {
		return nil, nil, fmt.Errorf("auth service: store refresh token: %w", err)
	}

	actor.UserID = user.ID
	s.audit.Record(ctx, actor, audit.Entry{
		Action:     audit.ActionLogin,
		TargetType: audit.TargetUser,
		TargetID:   audit.ID(user.ID),
	})
	return user, pair, nil
}

func (s *authService) Refresh(ctx context.Context, actor audit.Actor, refreshToken string) (*models.User, *TokenPair, error) {
	if refreshToken == "" {
		return nil, nil, fmt.Errorf("auth service: %w", xerr.ErrInvalidRefreshToken)
	}
	claims, err := utils.ParseToken(refreshToken, utils.TokenTypeRefresh, s.cfg.JWT.RefreshSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("auth service: %v: %w", err, xerr.ErrInvalidRefreshToken)
	}

	now := s.now()
	current, err := s.refreshRepo.FindActiveByHash(ctx, utils.SHA256Hex(refreshToken), now)
	if err != nil {
		return nil, nil, fmt.Errorf("auth service: %w", err)
	}
	if current.UserID != claims.UserID {
		return nil, nil, fmt.Errorf("auth service: token subject mismatch: %w", xerr.ErrInvalidRefreshToken)
	}

	user, err := s.userRepo.FindByID(ctx, current.UserID)
	if err != nil {
		if errors.Is(err, xerr.ErrUserNotFound) {
			return nil, nil, fmt.Errorf("auth service: %w", xerr.ErrInvalidRefreshToken)
		}
		return nil, nil, fmt.Errorf("auth service: %w", err)
	}
	if user.Banned {
		return nil, nil, fmt.Errorf("auth service: user %d: %w", user.ID, xerr.ErrUserBanned)
	}

	pair, record, err := s.issueTokens(user, actor)
	if err != nil {
		return nil, nil, err
	}
	err = s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		repo := s.refreshRepo.WithTx(tx)
		if err := repo.Create(ctx, record); err != nil {
			return err
		}
		return repo.Revoke(ctx, current.ID, &record.ID, now)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("auth service: rotate refresh token: %w", err)
	}
	return user, pair, nil
}

func (s *authService) Logout(ctx context.Context, actor audit.Actor, refreshToken string) error {
	if refreshToken != "" {
		if err := s.refreshRepo.RevokeByHash(ctx, utils.SHA256Hex(refreshToken), s.now()); err != nil {
			return fmt.Errorf("auth service: revoke: %w", err)
		}
	}
	if actor.UserID != 0 {
		s.audit.Record(ctx, actor, audit.Entry{
			Action:     audit.ActionLogout,
			TargetType: audit.TargetUser,
			TargetID:   audit.ID(actor.UserID),
		})
	}
	return nil
}

func (s *authService) ForgotPassword(ctx context.Context, actor audit.Actor, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, xerr.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("auth service: %w", err)
	}

	token, err := utils.RandomHex(resetTokenBytes)
	if err != nil {
		return fmt.Errorf("auth service: generate reset token: %w", err)
	}
	record := &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: utils.SHA256Hex(token),
		ExpiresAt: s.now().Add(s.cfg.JWT.PasswordResetTokenTTL),
	}
	if err := s.resetRepo.Create(ctx, record); err != nil {
		return fmt.Errorf("auth service: store reset token: %w", err)
	}

	link := strings.TrimRight(s.cfg.Server.WebBaseURL, "/") + "/reset-password?token=" + token
	body := fmt.Sprintf("Use the link below to reset your password. It expires in %s.\n\n%s\n", s.cfg.JWT.PasswordResetTokenTTL, link)
	if err := s.mailer.Send(ctx, user.Email, "Reset your password", body); err != nil {
		logger.Warn("ForgotPassword: 发送重置邮件失败", zap.Uint64("userID", user.ID), zap.Error(err))
	}

	s.audit.Record(ctx, actor, audit.Entry{
		Action:     audit.ActionPasswordResetRequested,
		TargetType: audit.TargetUser,
		TargetID:   audit.ID(user.ID),
	})
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, actor audit.Actor, token, newPassword string) error {
	now := s.now()
	record, err := s.resetRepo.FindValidByHash(ctx, utils.SHA256Hex(token), now)
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}

	hashed, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth service: hash password: %w", err)
	}

	err = s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.resetRepo.WithTx(tx).MarkUsed(ctx, record.ID, now); err != nil {
			return err
		}
		if err := s.userRepo.WithTx(tx).UpdatePassword(ctx, record.UserID, hashed); err != nil {
			return err
		}
		return s.refreshRepo.WithTx(tx).RevokeAllForUser(ctx, record.UserID, now)
	})
	if err != nil {
		return fmt.Errorf("auth service: reset password: %w", err)
	}

	s.audit.Record(ctx, actor, audit.Entry{
		Action:     audit.ActionPasswordResetCompleted,
		TargetType: audit.TargetUser,
		TargetID:   audit.ID(record.UserID),
	})
	logger.Info("ResetPassword: 密码已重置", zap.Uint64("userID", record.UserID))
	return nil
}

func (s *authService) ChangePassword(ctx context.Context, actor audit.Actor, currentPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(ctx, actor.UserID)
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}
	if !utils.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return fmt.Errorf("auth service: %w", xerr.ErrInvalidCurrentPassword)
	}

	hashed, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth service: hash password: %w", err)
	}
	now := s.now()
	err = s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.userRepo.WithTx(tx).UpdatePassword(ctx, user.ID, hashed); err != nil {
			return err
		}
		return s.refreshRepo.WithTx(tx).RevokeAllForUser(ctx, user.ID, now)
	})
	if err != nil {
		return fmt.Errorf("auth service: change password: %w", err)
	}

	s.audit.Record(ctx, actor, audit.Entry{
		Action:     audit.ActionPasswordChanged,
		TargetType: audit.TargetUser,
		TargetID:   audit.ID(user.ID),
	})
	return nil
}

func (s *authService) ParseAccessToken(token string) (*utils.Claims, error) {
	claims, err := utils.ParseToken(token, utils.TokenTypeAccess, s.cfg.JWT.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, xerr.ErrTokenInvalid)
	}
	return claims, nil
}

func (s *authService) EnsureBootstrapAdmin(ctx context.Context) error {
	email := NormalizeEmail(s.cfg.Admin.Email)
	if email == "" || s.cfg.Admin.Password == "" {
		return nil
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil {
		if !existing.IsAdmin() {
			logger.Warn("EnsureBootstrapAdmin: 管理员邮箱已被普通用户注册", zap.Uint64("userID", existing.ID))
		}
		return nil
	}
	if !errors.Is(err, xerr.ErrUserNotFound) {
		return fmt.Errorf("auth service: %w", err)
	}

	hashed, err := utils.HashPassword(s.cfg.Admin.Password)
	if err != nil {
		return fmt.Errorf("auth service: hash password: %w", err)
	}
	admin := &models.User{Email: email, PasswordHash: hashed, Role: models.RoleAdmin}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		if errors.Is(err, xerr.ErrEmailAlreadyExists) {
			return nil
		}
		return fmt.Errorf("auth service: create admin: %w", err)
	}
	logger.Info("EnsureBootstrapAdmin: 已创建初始管理员", zap.Uint64("userID", admin.ID))
	return nil
}

// issueTokens 签发访问令牌和刷新令牌，刷新令牌只落库哈希
func (s *authService) issueTokens(user *models.User, actor audit.Actor) (*TokenPair, *models.RefreshToken, error) {
	now := s.now()
	jwtCfg := s.cfg.JWT

	base := utils.Claims{UserID: user.ID, Email: user.Email, Role: string(user.Role)}
	accessToken, err := utils.GenerateToken(base, utils.TokenTypeAccess, jwtCfg.AccessSecret, jwtCfg.Issuer, jwtCfg.AccessTokenTTL, now)
	if err != nil {
		return nil, nil, fmt.Errorf("auth service: %w", err)
	}

	// jti 保证同一秒内签发的刷新令牌哈希不同
	refreshClaims := utils.Claims{UserID: user.ID}
	refreshClaims.ID = uuid.NewString()
	refreshToken, err := utils.GenerateToken(refreshClaims, utils.TokenTypeRefresh, jwtCfg.RefreshSecret, jwtCfg.Issuer, jwtCfg.RefreshTokenTTL, now)
	if err != nil {
		return nil, nil, fmt.Errorf("auth service: %w", err)
	}

	record := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: utils.SHA256Hex(refreshToken),
		ExpiresAt: now.Add(jwtCfg.RefreshTokenTTL),
	}
	if actor.UserAgent != "" {
		ua := actor.UserAgent
		record.UserAgent = &ua
	}
	if actor.IP != "" {
		ip := actor.IP
		record.IP = &ip
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  now.Add(jwtCfg.AccessTokenTTL),
		RefreshExpiresAt: record.ExpiresAt,
	}, record, nil
}
