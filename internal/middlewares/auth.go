package middlewares

import (
	"context"
	"errors"
	"strings"

	"github.com/3Eeeecho/go-fluxshare/internal/handlers/response"
	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 通过 cookie 认证的请求需要做 CSRF 校验
const contextCookieAuthKey = "cookieAuth"

// TokenParser 校验访问令牌，由 admin.AuthService 实现
type TokenParser interface {
	ParseAccessToken(token string) (*utils.Claims, error)
}

// UserLookup 按 ID 读取用户，生产环境注入带缓存的仓库
type UserLookup interface {
	FindByID(ctx context.Context, id uint64) (*models.User, error)
}

func AuthMiddleware(parser TokenParser, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 优先使用 Authorization 头，其次是 access_token cookie
		tokenString, fromCookie := accessTokenFromRequest(c)
		if tokenString == "" {
			response.AbortWithError(c, xerr.ErrUnauthorized)
			return
		}

		// 2. 解析和验证 Token
		claims, err := parser.ParseAccessToken(tokenString)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}

		// 3. 角色与封禁状态以数据库为准，令牌签发后可能已变化
		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, xerr.ErrUserNotFound) {
				response.AbortWithError(c, xerr.ErrUnauthorized)
				return
			}
			logger.Error("AuthMiddleware: 读取用户失败", zap.Uint64("userID", claims.UserID), zap.Error(err))
			response.AbortWithError(c, err)
			return
		}
		if user.Banned {
			response.AbortWithError(c, xerr.ErrUserBanned)
			return
		}

		// 4. 将用户信息存储到 Gin Context 中，以便后续 Handler 使用
		c.Set(utils.ContextUserIDKey, user.ID)
		c.Set(utils.ContextRoleKey, string(user.Role))
		c.Set(contextCookieAuthKey, fromCookie)

		c.Next()
	}
}

// RequireRole 必须放在 AuthMiddleware 之后
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUserIDFromContext(c); !ok {
			response.AbortWithError(c, xerr.ErrUnauthorized)
			return
		}
		if utils.GetUserRoleFromContext(c) != string(role) {
			response.AbortWithError(c, xerr.ErrForbidden)
			return
		}
		c.Next()
	}
}

func accessTokenFromRequest(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		// Token 格式通常是 "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1]), false
		}
		return "", false
	}
	token, err := c.Cookie(utils.AccessTokenCookie)
	if err != nil {
		return "", false
	}
	return token, true
}
