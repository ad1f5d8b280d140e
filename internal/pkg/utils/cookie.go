package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	CSRFCookie         = "csrf_token"
	CSRFHeader         = "X-CSRF-Token"

	// 刷新令牌 cookie 只发往 /auth 下的接口
	RefreshCookiePath = "/auth"
)

// CookieOptions 写 cookie 时共用的域名与 Secure 设置
type CookieOptions struct {
	Domain string
	Secure bool
}

// SetCookie 写入 cookie，expires 为零值时删除
func SetCookie(c *gin.Context, opts CookieOptions, name, value, path string, expires time.Time, httpOnly bool, sameSite http.SameSite) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   opts.Domain,
		Secure:   opts.Secure,
		HttpOnly: httpOnly,
		SameSite: sameSite,
	}
	if expires.IsZero() {
		cookie.MaxAge = -1
	} else {
		cookie.Expires = expires
	}
	http.SetCookie(c.Writer, cookie)
}
