package utils

import (
	"github.com/3Eeeecho/go-fluxshare/internal/handlers/response"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserIDKey = "userID"
	ContextRoleKey   = "userRole"
)

// GetUserIDFromContext 从 Gin 上下文中获取并验证用户ID
// 如果获取失败或类型不正确，会中止请求并返回错误
func GetUserIDFromContext(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(ContextUserIDKey)
	if !exists {
		response.AbortWithError(c, xerr.ErrUnauthorized)
		return 0, false
	}
	currentUserID, ok := userID.(uint64)
	if !ok {
		response.AbortWithError(c, xerr.ErrUnauthorized)
		return 0, false
	}
	return currentUserID, true
}

// GetUserRoleFromContext 返回认证中间件写入的角色
func GetUserRoleFromContext(c *gin.Context) string {
	return c.GetString(ContextRoleKey)
}
