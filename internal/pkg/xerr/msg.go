package xerr

import "errors"

var (
	// 通用错误
	ErrInternalServer = errors.New("服务器内部错误")

	// 客户端请求错误
	ErrInvalidParams          = errors.New("无效的请求参数")
	ErrValidationFailed       = errors.New("参数验证失败")
	ErrFileTooLarge           = errors.New("上传文件过大，超出限制")
	ErrTooManyParts           = errors.New("分片数量超出上限")
	ErrUnsupportedMediaType   = errors.New("不支持的文件类型")
	ErrInvalidExpiry          = errors.New("过期时间必须晚于当前时间")
	ErrInvalidUploadToken     = errors.New("上传会话令牌无效或已过期")
	ErrInvalidResetToken      = errors.New("重置密码链接无效或已过期")
	ErrCannotBanSelf          = errors.New("不能封禁自己")
	ErrUploadAlreadyCompleted = errors.New("该上传已完成")

	// 认证与授权错误
	ErrUnauthorized                 = errors.New("用户未授权")
	ErrTokenInvalid                 = errors.New("认证 Token 无效或已过期")
	ErrInvalidCredentials           = errors.New("邮箱或密码不正确")
	ErrInvalidRefreshToken          = errors.New("刷新令牌无效或已过期")
	ErrInvalidCurrentPassword       = errors.New("当前密码不正确")
	ErrSharePasswordIncorrect       = errors.New("分享链接密码不正确")
	ErrPasswordVerificationRequired = errors.New("下载前需要验证分享密码")
	ErrInvalidVerificationToken     = errors.New("分享验证令牌无效或已过期")

	// 权限错误
	ErrForbidden    = errors.New("禁止访问")
	ErrCSRFInvalid  = errors.New("CSRF 校验失败")
	ErrUserBanned   = errors.New("用户已被封禁")
	ErrFileInfected = errors.New("文件检出病毒，禁止下载")

	// 资源未找到错误
	ErrNotFound       = errors.New("资源不存在")
	ErrUserNotFound   = errors.New("用户不存在")
	ErrFileNotFound   = errors.New("文件不存在")
	ErrFolderNotFound = errors.New("文件夹不存在")
	ErrShareNotFound  = errors.New("分享链接不存在")

	// 业务逻辑冲突
	ErrEmailAlreadyExists  = errors.New("邮箱已被注册")
	ErrFolderAlreadyExists = errors.New("同名文件夹已存在")

	ErrShareUnavailable  = errors.New("分享链接已失效")
	ErrShareLimitReached = errors.New("分享链接下载次数已用完")
	ErrFilePendingScan   = errors.New("文件正在等待安全扫描")
	ErrTooManyRequests   = errors.New("请求过于频繁，请稍后再试")

	// 数据库与外部服务错误
	ErrDatabaseError        = errors.New("数据库操作失败")
	ErrStorageError         = errors.New("存储服务操作失败")
	ErrMQError              = errors.New("消息队列操作失败")
	ErrUploadFinalizeFailed = errors.New("合并上传分片失败")
	ErrScanTransportFailure = errors.New("病毒扫描服务不可用")
)
