package response

import (
	"errors"
	"net/http"
	"strings"

	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Response 是通用 JSON 响应结构
type Response struct {
	Code    int               `json:"code"`              // 业务状态码
	Message string            `json:"message"`           // 消息
	Reason  string            `json:"reason,omitempty"`  // 机器可读的错误原因
	Details map[string]string `json:"details,omitempty"` // 参数校验失败的字段
	Data    any               `json:"data"`              // 响应数据
}

// JSONResponse 发送标准 JSON 响应
func JSONResponse(c *gin.Context, httpStatus int, code int, message string, data any) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success 成功响应
func Success(c *gin.Context, httpStatus int, message string, data any) {
	JSONResponse(c, httpStatus, xerr.SuccessCode, message, data)
}

// Error 错误响应
func Error(c *gin.Context, httpStatus int, code int, message string) {
	JSONResponse(c, httpStatus, code, message, nil)
}

// FromError 根据错误注册表选择状态码与业务码
// 未注册的错误记录日志并返回 500，不向客户端暴露内部信息
func FromError(c *gin.Context, err error) {
	def, ok := xerr.Describe(err)
	if !ok {
		logger.Error("unhandled error",
			zap.String("path", c.FullPath()),
			zap.String("method", c.Request.Method),
			zap.Error(err))
		def = xerr.Internal()
	} else if def.HTTPStatus >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("reason", def.Reason),
			zap.Error(err))
	}

	c.JSON(def.HTTPStatus, Response{
		Code:    def.Code,
		Message: def.Message,
		Reason:  def.Reason,
	})
}

// AbortWithError 终止请求并发送错误响应
func AbortWithError(c *gin.Context, err error) {
	FromError(c, err)
	c.Abort() // 终止后续的 HandlerFunc
}

// BindError 请求体绑定或校验失败
func BindError(c *gin.Context, err error) {
	resp := Response{
		Code:    xerr.ValidationFailedCode,
		Message: xerr.ErrValidationFailed.Error(),
		Reason:  "validation_failed",
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Details = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			resp.Details[lowerFirst(fe.Field())] = fe.Tag()
		}
	} else {
		resp.Message = "请求参数解析失败: " + err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
