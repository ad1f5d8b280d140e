package handlers

import (
	"net/http"

	"github.com/3Eeeecho/go-fluxshare/internal/handlers/response"
	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/services/explorer"
	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	uploadService explorer.UploadService
}

func NewUploadHandler(uploadService explorer.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// Initiate 处理上传初始化请求
// @Summary 初始化分块上传
// @Description 校验文件大小与类型，创建分块上传并返回会话令牌与每个分片的预签名地址
// @Tags 文件上传
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.UploadInitRequest true "上传初始化参数"
// @Success 201 {object} response.Response{data=models.UploadInitResponse} "上传初始化成功"
// @Failure 400 {object} response.Response "参数错误或分片过多"
// @Failure 404 {object} response.Response "文件夹不存在"
// @Failure 413 {object} response.Response "文件过大"
// @Failure 415 {object} response.Response "文件类型不被允许"
// @Router /api/v1/uploads/initiate [post]
func (h *UploadHandler) Initiate(c *gin.Context) {
	var req models.UploadInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	resp, err := h.uploadService.Initiate(c.Request.Context(), actor, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "上传已初始化", resp)
}

// Resume 重新签发未完成分片的上传地址
// @Summary 恢复分块上传
// @Description 不传 partNumbers 时返回全部分片的地址，越界与重复的分片号会被忽略
// @Tags 文件上传
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.UploadResumeRequest true "会话令牌与分片号"
// @Success 200 {object} response.Response{data=models.UploadInitResponse} "签发成功"
// @Failure 400 {object} response.Response "会话令牌无效"
// @Failure 403 {object} response.Response "无权操作该上传"
// @Router /api/v1/uploads/resume [post]
func (h *UploadHandler) Resume(c *gin.Context) {
	var req models.UploadResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	resp, err := h.uploadService.Resume(c.Request.Context(), actor, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "分片地址已签发", resp)
}

// Complete 处理分片合并请求
// @Summary 完成分块上传
// @Description 合并分片、校验文件内容类型并创建文件记录，开启扫描时文件进入 PENDING 状态
// @Tags 文件上传
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.UploadCompleteRequest true "上传完成参数"
// @Success 201 {object} response.Response{data=models.UploadCompleteResponse} "文件上传完成"
// @Failure 400 {object} response.Response "参数错误"
// @Failure 409 {object} response.Response "上传已完成"
// @Failure 415 {object} response.Response "文件内容类型不被允许"
// @Failure 502 {object} response.Response "存储合并失败"
// @Router /api/v1/uploads/complete [post]
func (h *UploadHandler) Complete(c *gin.Context) {
	var req models.UploadCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	file, err := h.uploadService.Complete(c.Request.Context(), actor, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "文件上传完成", models.UploadCompleteResponse{File: file})
}

// Abort 放弃分块上传并释放已上传的分片
// @Summary 放弃分块上传
// @Tags 文件上传
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.UploadAbortRequest true "会话令牌"
// @Success 200 {object} response.Response "已放弃"
// @Failure 400 {object} response.Response "会话令牌无效"
// @Router /api/v1/uploads/abort [post]
func (h *UploadHandler) Abort(c *gin.Context) {
	var req models.UploadAbortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := h.uploadService.Abort(c.Request.Context(), actor, &req); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "上传已放弃", nil)
}
