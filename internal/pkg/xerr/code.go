package xerr

// 定义了统一的业务错误码
const (
	SuccessCode = 20000 // 通用成功码

	// --- 客户端请求错误系列 (400xx) ---
	InvalidParamsCode          = 40000 // 无效的请求参数
	ValidationFailedCode       = 40001 // 参数验证失败
	FileTooLargeCode           = 40003 // 文件过大
	TooManyPartsCode           = 40013 // 分片数量超出上限
	InvalidExpiryCode          = 40014 // 过期时间必须晚于当前时间
	InvalidUploadTokenCode     = 40015 // 上传会话令牌无效
	InvalidResetTokenCode      = 40016 // 重置密码令牌无效
	CannotBanSelfCode          = 40017 // 管理员不能封禁自己
	UnsupportedMediaTypeCode   = 41500 // 文件类型不被允许
	UploadAlreadyCompletedCode = 40906 // 上传已完成

	// --- 认证与授权错误系列 (401xx) ---
	UnauthorizedCode                 = 40100 // 通用未授权
	TokenInvalidCode                 = 40101 // Token 无效或过期
	InvalidCredentialsCode           = 40102 // 用户名或密码错误
	InvalidRefreshTokenCode          = 40103 // 刷新令牌无效
	InvalidCurrentPasswordCode       = 40104 // 当前密码错误
	SharePasswordIncorrectCode       = 40105 // 分享密码不正确
	PasswordVerificationRequiredCode = 40106 // 分享下载需要先验证密码
	InvalidVerificationTokenCode     = 40107 // 分享验证令牌无效

	// --- 权限错误系列 (403xx) ---
	ForbiddenCode    = 40300 // 通用无权限
	CSRFInvalidCode  = 40304 // CSRF 校验失败
	UserBannedCode   = 40305 // 用户已被封禁
	FileInfectedCode = 40306 // 文件检出病毒

	// --- 资源未找到错误系列 (404xx) ---
	NotFoundCode       = 40400 // 通用资源未找到
	UserNotFoundCode   = 40401 // 用户不存在
	FileNotFoundCode   = 40402 // 文件不存在
	FolderNotFoundCode = 40403 // 文件夹不存在
	ShareNotFoundCode  = 40404 // 分享链接不存在

	// --- 业务逻辑冲突系列 (409xx) ---
	EmailAlreadyExistsCode  = 40901 // 邮箱已存在
	FolderAlreadyExistsCode = 40905 // 文件夹已存在

	// --- 资源不可用 (410xx) ---
	ShareUnavailableCode  = 41000 // 分享已失效
	ShareLimitReachedCode = 41001 // 分享下载次数已用完

	FilePendingScanCode = 42300 // 文件等待扫描
	TooManyRequestsCode = 42900 // 请求过于频繁

	// --- 服务器内部错误系列 (500xx) ---
	InternalServerErrorCode  = 50000 // 服务器内部通用错误
	DatabaseErrorCode        = 50001 // 数据库操作失败
	StorageErrorCode         = 50002 // 存储服务操作失败（如MinIO）
	MQErrorCode              = 50003 // 消息队列操作失败
	UploadFinalizeFailedCode = 50201 // 合并分片失败
	ScanTransportFailureCode = 50202 // 扫描服务不可用
)
