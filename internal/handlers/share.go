package handlers

import (
	"net/http"

	"github.com/3Eeeecho/go-fluxshare/internal/handlers/response"
	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/mapper"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fluxshare/internal/services/share"
	"github.com/gin-gonic/gin"
)

type ShareHandler struct {
	shareService share.ShareService
}

func NewShareHandler(shareService share.ShareService) *ShareHandler {
	return &ShareHandler{
		shareService: shareService,
	}
}

// CreateShare handles creation of a new share link.
// @Summary 创建分享链接
// @Description 为自己的文件创建分享链接，可设置密码、过期时间、一次性下载与下载次数上限
// @Tags 分享
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.ShareCreateRequest true "分享链接信息"
// @Success 201 {object} response.Response{data=share.CreatedShare} "分享链接创建成功"
// @Failure 400 {object} response.Response "请求参数无效或过期时间已过"
// @Failure 404 {object} response.Response "文件未找到"
// @Router /api/v1/shares [post]
func (h *ShareHandler) CreateShare(c *gin.Context) {
	var req models.ShareCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	created, err := h.shareService.Create(c.Request.Context(), actor, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "分享链接创建成功", created)
}

// ListUserShares 获取当前用户创建的所有分享链接
// @Summary 获取我的分享链接
// @Tags 分享
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Success 200 {object} response.Response{data=mapper.PageResult[share.Summary]} "成功获取分享列表"
// @Router /api/v1/shares [get]
func (h *ShareHandler) ListUserShares(c *gin.Context) {
	var page utils.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BindError(c, err)
		return
	}
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}
	page.Normalize()

	items, total, err := h.shareService.List(c.Request.Context(), userID, page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "成功获取分享列表", mapper.NewPageResult(items, total, page.Page, page.PageSize))
}

// RevokeShare 撤销分享链接
// @Summary 撤销分享链接
// @Tags 分享
// @Produce json
// @Security BearerAuth
// @Param id path int true "分享ID"
// @Success 200 {object} response.Response "分享链接已撤销"
// @Failure 404 {object} response.Response "分享链接不存在"
// @Router /api/v1/shares/{id} [delete]
func (h *ShareHandler) RevokeShare(c *gin.Context) {
	shareID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := h.shareService.Revoke(c.Request.Context(), actor, shareID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "分享链接已撤销", nil)
}

// GetShareMetadata 公开的分享信息
// @Summary 获取分享详情
// @Description 返回文件信息、是否需要密码以及当前可用性，不计入下载次数
// @Tags 分享
// @Produce json
// @Param token path string true "分享令牌"
// @Success 200 {object} response.Response{data=share.Metadata} "成功获取分享详情"
// @Failure 404 {object} response.Response "分享链接不存在"
// @Router /s/{token} [get]
func (h *ShareHandler) GetShareMetadata(c *gin.Context) {
	meta, err := h.shareService.GetMetadata(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "成功获取分享详情", meta)
}

// VerifySharePassword 校验分享密码
// @Summary 验证分享密码
// @Description 密码正确时签发短期验证令牌，下载时通过 verificationToken 参数携带
// @Tags 分享
// @Accept json
// @Produce json
// @Param token path string true "分享令牌"
// @Param request body models.ShareVerifyRequest true "分享密码"
// @Success 200 {object} response.Response{data=share.VerifyResult} "验证成功"
// @Failure 401 {object} response.Response "密码错误"
// @Failure 410 {object} response.Response "分享已失效"
// @Router /s/{token}/verify [post]
func (h *ShareHandler) VerifySharePassword(c *gin.Context) {
	var req models.ShareVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.shareService.VerifyPassword(c.Request.Context(), c.Param("token"), req.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "验证成功", result)
}

// DownloadSharedFile 计入一次下载并重定向到预签名地址
// @Summary 下载分享文件
// @Tags 分享
// @Param token path string true "分享令牌"
// @Param verificationToken query string false "密码验证令牌"
// @Success 302 "重定向到对象存储下载地址"
// @Failure 401 {object} response.Response "需要验证密码或验证令牌无效"
// @Failure 410 {object} response.Response "分享已失效或次数已用完"
// @Router /s/{token}/download [get]
func (h *ShareHandler) DownloadSharedFile(c *gin.Context) {
	url, err := h.shareService.PrepareDownload(
		c.Request.Context(),
		requestActor(c),
		c.Param("token"),
		c.Query("verificationToken"),
	)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, url)
}
