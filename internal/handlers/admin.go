package handlers

import (
	"net/http"

	"github.com/3Eeeecho/go-fluxshare/internal/handlers/response"
	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/mapper"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fluxshare/internal/services/admin"
	"github.com/gin-gonic/gin"
)

// AdminHandler 管理后台接口，路由组已经过管理员角色校验
type AdminHandler struct {
	userService admin.UserService
}

func NewAdminHandler(userService admin.UserService) *AdminHandler {
	return &AdminHandler{userService: userService}
}

// ListUsers 按邮箱搜索用户
// @Summary 用户列表
// @Tags 管理后台
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Param q query string false "邮箱关键字"
// @Success 200 {object} response.Response{data=mapper.PageResult[models.User]} "成功获取用户列表"
// @Failure 403 {object} response.Response "需要管理员权限"
// @Router /api/v1/admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var req models.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BindError(c, err)
		return
	}
	page := utils.Pagination{Page: req.Page, PageSize: req.PageSize}
	page.Normalize()

	users, total, err := h.userService.ListUsers(c.Request.Context(), req.Query, page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "成功获取用户列表", mapper.NewPageResult(users, total, page.Page, page.PageSize))
}

// SetBanned 封禁或解封用户
// @Summary 封禁用户
// @Description 封禁会撤销该用户的全部刷新令牌，管理员不能封禁自己
// @Tags 管理后台
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Param request body models.SetBannedRequest true "封禁状态"
// @Success 200 {object} response.Response{data=models.User} "用户状态已更新"
// @Failure 400 {object} response.Response "不能封禁自己"
// @Failure 404 {object} response.Response "用户不存在"
// @Router /api/v1/admin/users/{id}/ban [patch]
func (h *AdminHandler) SetBanned(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.SetBannedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	user, err := h.userService.SetBanned(c.Request.Context(), actor, userID, *req.Banned)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "用户状态已更新", user)
}

// Stats 管理后台统计
// @Summary 统计数据
// @Tags 管理后台
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=admin.Stats} "成功获取统计数据"
// @Router /api/v1/admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.userService.Stats(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "成功获取统计数据", stats)
}
