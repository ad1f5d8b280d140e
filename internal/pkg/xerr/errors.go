package xerr

import (
	"errors"
	"net/http"
)

// CodeError 结构体用于在服务层传递带有业务码的错误
// 它实现了 error 接口
type CodeError struct {
	Code int   // 业务错误码
	Err  error // 被包裹的底层错误
}

// Error 实现 error 接口
func (e *CodeError) Error() string {
	return e.Err.Error()
}

// Unwrap 返回被包裹的底层错误，支持 errors.Unwrap
func (e *CodeError) Unwrap() error {
	return e.Err
}

// NewCodeError 创建一个 CodeError 实例
func NewCodeError(code int, err error) *CodeError {
	return &CodeError{Code: code, Err: err}
}

// ReasonError 携带机器可读的 reason，例如分享失效的具体原因
type ReasonError struct {
	Reason string
	Err    error
}

func (e *ReasonError) Error() string {
	return e.Err.Error()
}

func (e *ReasonError) Unwrap() error {
	return e.Err
}

// WithReason 为错误附加 reason，覆盖注册表中的默认值
func WithReason(err error, reason string) error {
	return &ReasonError{Reason: reason, Err: err}
}

// Is 判断错误是否为指定的错误类型
// 如果 err 是 *CodeError，则会解包后与 target 比较
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Definition 错误对应的 HTTP 状态、业务码与 reason
type Definition struct {
	HTTPStatus int
	Code       int
	Reason     string
	Message    string // 注册的错误文本，不含服务层附加的上下文
}

type rule struct {
	status int
	code   int
	reason string
}

type entry struct {
	err  error
	rule rule
}

// 顺序即匹配优先级
var registry = []entry{
	{ErrValidationFailed, rule{http.StatusBadRequest, ValidationFailedCode, "validation_failed"}},
	{ErrInvalidParams, rule{http.StatusBadRequest, InvalidParamsCode, "invalid_params"}},
	{ErrFileTooLarge, rule{http.StatusRequestEntityTooLarge, FileTooLargeCode, "file_too_large"}},
	{ErrTooManyParts, rule{http.StatusBadRequest, TooManyPartsCode, "too_many_parts"}},
	{ErrUnsupportedMediaType, rule{http.StatusUnsupportedMediaType, UnsupportedMediaTypeCode, "unsupported_media_type"}},
	{ErrInvalidExpiry, rule{http.StatusBadRequest, InvalidExpiryCode, "invalid_expiry"}},
	{ErrInvalidUploadToken, rule{http.StatusBadRequest, InvalidUploadTokenCode, "invalid_upload_token"}},
	{ErrInvalidResetToken, rule{http.StatusBadRequest, InvalidResetTokenCode, "invalid_reset_token"}},
	{ErrCannotBanSelf, rule{http.StatusBadRequest, CannotBanSelfCode, "cannot_ban_self"}},

	{ErrUnauthorized, rule{http.StatusUnauthorized, UnauthorizedCode, "unauthorized"}},
	{ErrTokenInvalid, rule{http.StatusUnauthorized, TokenInvalidCode, "invalid_token"}},
	{ErrInvalidCredentials, rule{http.StatusUnauthorized, InvalidCredentialsCode, "invalid_credentials"}},
	{ErrInvalidRefreshToken, rule{http.StatusUnauthorized, InvalidRefreshTokenCode, "invalid_refresh_token"}},
	{ErrInvalidCurrentPassword, rule{http.StatusUnauthorized, InvalidCurrentPasswordCode, "invalid_current_password"}},
	{ErrSharePasswordIncorrect, rule{http.StatusUnauthorized, SharePasswordIncorrectCode, "invalid_password"}},
	{ErrPasswordVerificationRequired, rule{http.StatusUnauthorized, PasswordVerificationRequiredCode, "password_verification_required"}},
	{ErrInvalidVerificationToken, rule{http.StatusUnauthorized, InvalidVerificationTokenCode, "invalid_verification_token"}},

	{ErrForbidden, rule{http.StatusForbidden, ForbiddenCode, "forbidden"}},
	{ErrCSRFInvalid, rule{http.StatusForbidden, CSRFInvalidCode, "invalid_csrf_token"}},
	{ErrUserBanned, rule{http.StatusForbidden, UserBannedCode, "user_banned"}},
	{ErrFileInfected, rule{http.StatusForbidden, FileInfectedCode, "file_infected"}},
	{ErrFilePendingScan, rule{http.StatusLocked, FilePendingScanCode, "file_pending_scan"}},

	{ErrUserNotFound, rule{http.StatusNotFound, UserNotFoundCode, "user_not_found"}},
	{ErrFileNotFound, rule{http.StatusNotFound, FileNotFoundCode, "file_not_found"}},
	{ErrFolderNotFound, rule{http.StatusNotFound, FolderNotFoundCode, "folder_not_found"}},
	{ErrShareNotFound, rule{http.StatusNotFound, ShareNotFoundCode, "share_not_found"}},
	{ErrNotFound, rule{http.StatusNotFound, NotFoundCode, "not_found"}},

	{ErrEmailAlreadyExists, rule{http.StatusConflict, EmailAlreadyExistsCode, "email_exists"}},
	{ErrFolderAlreadyExists, rule{http.StatusConflict, FolderAlreadyExistsCode, "folder_exists"}},
	{ErrUploadAlreadyCompleted, rule{http.StatusConflict, UploadAlreadyCompletedCode, "upload_already_completed"}},

	{ErrShareUnavailable, rule{http.StatusGone, ShareUnavailableCode, "share_unavailable"}},
	{ErrShareLimitReached, rule{http.StatusGone, ShareLimitReachedCode, "share_limit_reached"}},
	{ErrTooManyRequests, rule{http.StatusTooManyRequests, TooManyRequestsCode, "rate_limited"}},

	{ErrUploadFinalizeFailed, rule{http.StatusBadGateway, UploadFinalizeFailedCode, "upload_finalize_failed"}},
	{ErrScanTransportFailure, rule{http.StatusBadGateway, ScanTransportFailureCode, "scan_unavailable"}},
	{ErrDatabaseError, rule{http.StatusInternalServerError, DatabaseErrorCode, "database_error"}},
	{ErrStorageError, rule{http.StatusInternalServerError, StorageErrorCode, "storage_error"}},
	{ErrMQError, rule{http.StatusInternalServerError, MQErrorCode, "mq_error"}},
	{ErrInternalServer, rule{http.StatusInternalServerError, InternalServerErrorCode, "internal_error"}},
}

// Describe 查找错误对应的定义，找不到时返回 false
// 错误链上的 ReasonError 与 CodeError 会覆盖默认的 reason 与业务码
func Describe(err error) (Definition, bool) {
	if err == nil {
		return Definition{}, false
	}
	var (
		def   Definition
		found bool
	)
	for _, e := range registry {
		if errors.Is(err, e.err) {
			def = Definition{
				HTTPStatus: e.rule.status,
				Code:       e.rule.code,
				Reason:     e.rule.reason,
				Message:    e.err.Error(),
			}
			found = true
			break
		}
	}
	if !found {
		return Definition{}, false
	}

	var reasonErr *ReasonError
	if errors.As(err, &reasonErr) && reasonErr.Reason != "" {
		def.Reason = reasonErr.Reason
	}
	var codeErr *CodeError
	if errors.As(err, &codeErr) && codeErr.Code != 0 {
		def.Code = codeErr.Code
	}
	return def, true
}

// Internal 未注册错误的兜底定义
func Internal() Definition {
	return Definition{
		HTTPStatus: http.StatusInternalServerError,
		Code:       InternalServerErrorCode,
		Reason:     "internal_error",
		Message:    ErrInternalServer.Error(),
	}
}
