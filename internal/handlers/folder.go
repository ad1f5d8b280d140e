package handlers

import (
	"net/http"

	"github.com/3Eeeecho/go-fluxshare/internal/handlers/response"
	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fluxshare/internal/services/explorer"
	"github.com/gin-gonic/gin"
)

type FolderHandler struct {
	folderService explorer.FolderService
}

func NewFolderHandler(folderService explorer.FolderService) *FolderHandler {
	return &FolderHandler{folderService: folderService}
}

// ListFolders 按名称升序返回当前用户的文件夹
// @Summary 文件夹列表
// @Tags 文件夹
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.Folder} "成功获取文件夹列表"
// @Router /api/v1/folders [get]
func (h *FolderHandler) ListFolders(c *gin.Context) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return
	}

	folders, err := h.folderService.List(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "成功获取文件夹列表", folders)
}

// CreateFolder 创建文件夹
// @Summary 创建文件夹
// @Tags 文件夹
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.FolderCreateRequest true "文件夹名称"
// @Success 201 {object} response.Response{data=models.Folder} "文件夹创建成功"
// @Failure 409 {object} response.Response "同名文件夹已存在"
// @Router /api/v1/folders [post]
func (h *FolderHandler) CreateFolder(c *gin.Context) {
	var req models.FolderCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	folder, err := h.folderService.Create(c.Request.Context(), actor, req.Name)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "文件夹创建成功", folder)
}

// DeleteFolder 删除文件夹，其中的文件移回根目录
// @Summary 删除文件夹
// @Tags 文件夹
// @Produce json
// @Security BearerAuth
// @Param id path int true "文件夹ID"
// @Success 200 {object} response.Response "文件夹已删除"
// @Failure 404 {object} response.Response "文件夹不存在"
// @Router /api/v1/folders/{id} [delete]
func (h *FolderHandler) DeleteFolder(c *gin.Context) {
	folderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := h.folderService.Delete(c.Request.Context(), actor, folderID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "文件夹已删除", nil)
}
