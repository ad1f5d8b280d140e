package middlewares

import (
	"crypto/subtle"
	"net/http"

	"github.com/3Eeeecho/go-fluxshare/internal/handlers/response"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
)

// CSRFMiddleware 双提交校验：csrf_token cookie 必须与 X-CSRF-Token 头一致
// 只校验携带会话 cookie 的非安全请求，Bearer 令牌请求不受影响
func CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) || !usesSessionCookie(c) {
			c.Next()
			return
		}

		cookie, err := c.Cookie(utils.CSRFCookie)
		header := c.GetHeader(utils.CSRFHeader)
		if err != nil || cookie == "" || header == "" ||
			subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			response.AbortWithError(c, xerr.ErrCSRFInvalid)
			return
		}
		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func usesSessionCookie(c *gin.Context) bool {
	if c.GetHeader("Authorization") != "" {
		return false
	}
	if c.GetBool(contextCookieAuthKey) {
		return true
	}
	for _, name := range []string{utils.AccessTokenCookie, utils.RefreshTokenCookie} {
		if value, err := c.Cookie(name); err == nil && value != "" {
			return true
		}
	}
	return false
}
