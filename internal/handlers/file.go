package handlers

import (
	"net/http"

	"github.com/3Eeeecho/go-fluxshare/internal/handlers/response"
	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/mapper"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fluxshare/internal/services/explorer"
	"github.com/gin-gonic/gin"
)

type FileHandler struct {
	fileService explorer.FileService
}

func NewFileHandler(fileService explorer.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// ListUserFiles 获取用户文件列表
// @Summary 文件列表
// @Description 按上传时间倒序分页返回文件，q 为文件名搜索，folderId 限定文件夹
// @Tags 文件
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Param q query string false "文件名关键字"
// @Param folderId query int false "文件夹ID"
// @Success 200 {object} response.Response{data=mapper.PageResult[models.File]} "成功获取文件列表"
// @Router /api/v1/files [get]
func (h *FileHandler) ListUserFiles(c *gin.Context) {
	var req models.FileListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BindError(c, err)
		return
	}
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	files, total, err := h.fileService.List(c.Request.Context(), userID, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	page := utils.Pagination{Page: req.Page, PageSize: req.PageSize}
	page.Normalize()
	response.Success(c, http.StatusOK, "成功获取文件列表", mapper.NewPageResult(files, total, page.Page, page.PageSize))
}

// UpdateFile 重命名或移动文件
// @Summary 更新文件
// @Tags 文件
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "文件ID"
// @Param request body models.FileUpdateRequest true "新文件名或目标文件夹"
// @Success 200 {object} response.Response{data=models.File} "文件已更新"
// @Failure 404 {object} response.Response "文件或文件夹不存在"
// @Router /api/v1/files/{id} [patch]
func (h *FileHandler) UpdateFile(c *gin.Context) {
	fileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.FileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	file, err := h.fileService.Update(c.Request.Context(), actor, fileID, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "文件已更新", file)
}

// DeleteFile 删除文件，同时删除它的所有分享链接
// @Summary 删除文件
// @Tags 文件
// @Produce json
// @Security BearerAuth
// @Param id path int true "文件ID"
// @Success 200 {object} response.Response "文件已删除"
// @Failure 404 {object} response.Response "文件不存在"
// @Router /api/v1/files/{id} [delete]
func (h *FileHandler) DeleteFile(c *gin.Context) {
	fileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := h.fileService.Delete(c.Request.Context(), actor, fileID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "文件已删除", nil)
}

// DownloadFile 文件所有者下载，重定向到预签名地址
// @Summary 下载文件
// @Tags 文件
// @Security BearerAuth
// @Param id path int true "文件ID"
// @Success 302 "重定向到对象存储下载地址"
// @Failure 403 {object} response.Response "文件检出病毒"
// @Failure 404 {object} response.Response "文件不存在"
// @Failure 423 {object} response.Response "文件等待扫描"
// @Router /api/v1/files/{id}/download [get]
func (h *FileHandler) DownloadFile(c *gin.Context) {
	fileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	url, err := h.fileService.GetPresignedURLForDownload(c.Request.Context(), userID, fileID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, url)
}
