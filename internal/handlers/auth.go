package handlers

import (
	"net/http"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/handlers/response"
	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fluxshare/internal/services/admin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// csrf 令牌的随机字节数
const csrfTokenBytes = 32

type AuthHandler struct {
	authService admin.AuthService
	cookies     utils.CookieOptions
}

func NewAuthHandler(authService admin.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookies: utils.CookieOptions{
			Domain: cfg.Cookie.Domain,
			Secure: cfg.Cookie.Secure,
		},
	}
}

// SessionResponse 登录与刷新的返回值
type SessionResponse struct {
	User            *models.User `json:"user"`
	AccessToken     string       `json:"accessToken"`
	AccessExpiresAt time.Time    `json:"accessExpiresAt"`
	CSRFToken       string       `json:"csrfToken"`
}

// CSRF 签发双提交校验使用的 csrf 令牌
// @Summary 获取 CSRF 令牌
// @Tags 用户认证
// @Produce json
// @Success 200 {object} response.Response "csrfToken"
// @Router /auth/csrf [get]
func (h *AuthHandler) CSRF(c *gin.Context) {
	token, err := h.issueCSRF(c)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "ok", gin.H{"csrfToken": token})
}

// @Summary 用户注册
// @Description 邮箱不区分大小写，密码长度 12 到 128
// @Tags 用户认证
// @Accept json
// @Produce json
// @Param data body models.RegisterRequest true "注册信息"
// @Success 201 {object} response.Response{data=models.User} "注册成功"
// @Failure 400 {object} response.Response "参数错误"
// @Failure 409 {object} response.Response "邮箱已存在"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), requestActor(c), req.Email, req.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "注册成功", user)
}

// @Summary 用户登录
// @Description 登录成功后写入 access_token、refresh_token 与 csrf_token cookie
// @Tags 用户认证
// @Accept json
// @Produce json
// @Param data body models.LoginRequest true "登录信息"
// @Success 200 {object} response.Response{data=SessionResponse} "登录成功"
// @Failure 401 {object} response.Response "邮箱或密码错误"
// @Failure 403 {object} response.Response "用户已被封禁"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	user, tokens, err := h.authService.Login(c.Request.Context(), requestActor(c), req.Email, req.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}
	h.respondSession(c, "登录成功", user, tokens)
}

// @Summary 刷新令牌
// @Description 优先读取 refresh_token cookie，其次读取请求体；旧的刷新令牌会被撤销
// @Tags 用户认证
// @Accept json
// @Produce json
// @Param data body models.RefreshRequest false "刷新令牌"
// @Success 200 {object} response.Response{data=SessionResponse} "刷新成功"
// @Failure 401 {object} response.Response "刷新令牌无效"
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, ok := h.refreshTokenFromRequest(c)
	if !ok {
		return
	}

	user, tokens, err := h.authService.Refresh(c.Request.Context(), requestActor(c), refreshToken)
	if err != nil {
		h.clearSession(c)
		response.FromError(c, err)
		return
	}
	h.respondSession(c, "刷新成功", user, tokens)
}

// @Summary 退出登录
// @Tags 用户认证
// @Produce json
// @Success 200 {object} response.Response "已退出"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken, _ := c.Cookie(utils.RefreshTokenCookie)
	if refreshToken != "" {
		if err := h.authService.Logout(c.Request.Context(), requestActor(c), refreshToken); err != nil {
			logger.Warn("Logout: 撤销刷新令牌失败", zap.Error(err))
		}
	}
	h.clearSession(c)
	response.Success(c, http.StatusOK, "已退出", nil)
}

// @Summary 找回密码
// @Description 无论邮箱是否注册都返回成功
// @Tags 用户认证
// @Accept json
// @Produce json
// @Param data body models.ForgotPasswordRequest true "邮箱"
// @Success 200 {object} response.Response "如果邮箱存在，重置邮件已发送"
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), requestActor(c), req.Email); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "如果邮箱存在，重置邮件已发送", nil)
}

// @Summary 重置密码
// @Description 重置成功后该用户所有刷新令牌失效
// @Tags 用户认证
// @Accept json
// @Produce json
// @Param data body models.ResetPasswordRequest true "重置令牌与新密码"
// @Success 200 {object} response.Response "密码已重置"
// @Failure 400 {object} response.Response "重置令牌无效或已过期"
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), requestActor(c), req.Token, req.Password); err != nil {
		response.FromError(c, err)
		return
	}
	h.clearSession(c)
	response.Success(c, http.StatusOK, "密码已重置", nil)
}

// ChangePassword 已登录用户修改密码
// @Summary 修改密码
// @Tags 用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param data body models.ChangePasswordRequest true "当前密码与新密码"
// @Success 200 {object} response.Response "密码已修改"
// @Failure 401 {object} response.Response "当前密码错误"
// @Router /api/v1/me/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), actor, req.CurrentPassword, req.NewPassword); err != nil {
		response.FromError(c, err)
		return
	}
	// 刷新令牌已全部撤销
	utils.SetCookie(c, h.cookies, utils.RefreshTokenCookie, "", utils.RefreshCookiePath, time.Time{}, true, http.SameSiteStrictMode)
	response.Success(c, http.StatusOK, "密码已修改", nil)
}

func (h *AuthHandler) refreshTokenFromRequest(c *gin.Context) (string, bool) {
	if token, err := c.Cookie(utils.RefreshTokenCookie); err == nil && token != "" {
		return token, true
	}
	var req models.RefreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BindError(c, err)
			return "", false
		}
	}
	if req.RefreshToken == "" {
		response.FromError(c, xerr.ErrInvalidRefreshToken)
		return "", false
	}
	return req.RefreshToken, true
}

func (h *AuthHandler) respondSession(c *gin.Context, message string, user *models.User, tokens *admin.TokenPair) {
	utils.SetCookie(c, h.cookies, utils.AccessTokenCookie, tokens.AccessToken, "/", tokens.AccessExpiresAt, true, http.SameSiteLaxMode)
	utils.SetCookie(c, h.cookies, utils.RefreshTokenCookie, tokens.RefreshToken, utils.RefreshCookiePath, tokens.RefreshExpiresAt, true, http.SameSiteStrictMode)

	csrfToken, err := h.issueCSRF(c)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, message, SessionResponse{
		User:            user,
		AccessToken:     tokens.AccessToken,
		AccessExpiresAt: tokens.AccessExpiresAt,
		CSRFToken:       csrfToken,
	})
}

// csrf_token 需要被前端脚本读取，所以不设置 HttpOnly
func (h *AuthHandler) issueCSRF(c *gin.Context) (string, error) {
	token, err := utils.RandomHex(csrfTokenBytes)
	if err != nil {
		return "", err
	}
	utils.SetCookie(c, h.cookies, utils.CSRFCookie, token, "/", time.Now().Add(24*time.Hour), false, http.SameSiteLaxMode)
	return token, nil
}

func (h *AuthHandler) clearSession(c *gin.Context) {
	utils.SetCookie(c, h.cookies, utils.AccessTokenCookie, "", "/", time.Time{}, true, http.SameSiteLaxMode)
	utils.SetCookie(c, h.cookies, utils.RefreshTokenCookie, "", utils.RefreshCookiePath, time.Time{}, true, http.SameSiteStrictMode)
	utils.SetCookie(c, h.cookies, utils.CSRFCookie, "", "/", time.Time{}, false, http.SameSiteLaxMode)
}
