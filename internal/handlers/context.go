package handlers

import (
	"strconv"

	"github.com/3Eeeecho/go-fluxshare/internal/handlers/response"
	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fluxshare/internal/services/audit"
	"github.com/gin-gonic/gin"
)

// requestActor 匿名请求的审计主体，只包含来源信息
func requestActor(c *gin.Context) audit.Actor {
	return audit.Actor{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// currentActor 从认证中间件写入的上下文构造审计主体
// 未登录时中止请求并返回 false
func currentActor(c *gin.Context) (audit.Actor, bool) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return audit.Actor{}, false
	}
	actor := requestActor(c)
	actor.UserID = userID
	actor.Role = models.Role(utils.GetUserRoleFromContext(c))
	return actor, true
}

// parseIDParam 解析路径中的数字 ID
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.FromError(c, xerr.ErrInvalidParams)
		return 0, false
	}
	return id, true
}
