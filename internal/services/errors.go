package services

import (
	"github.com/go-kratos/kratos/v2/errors"
)

// 错误 Reason 常量，作为 kratos errors 的机器可读标识。
const (
	ReasonValidationFailed   = "VALIDATION_FAILED"
	ReasonCapacityExceeded   = "CAPACITY_EXCEEDED"
	ReasonPostNotFound       = "POST_NOT_FOUND"
	ReasonPermissionDenied   = "PERMISSION_DENIED"
	ReasonUpstreamFailure    = "UPSTREAM_FAILURE"
	ReasonCompressionTimeout = "COMPRESSION_TIMEOUT"
	ReasonAlreadyInProgress  = "ALREADY_IN_PROGRESS"
	ReasonInvalidHierarchy   = "INVALID_HIERARCHY"
)

// 预定义错误值。携带输入上下文的错误用下方构造函数现场创建。
var (
	// ErrPostNotFound 表示引用的帖子或会话不存在（或已墓碑化）。
	ErrPostNotFound = errors.NotFound(ReasonPostNotFound, "post not found")
	// ErrAlreadyInProgress 表示同一 actor 已有进行中的创建请求，新请求被拒绝而非排队。
	ErrAlreadyInProgress = errors.Conflict(ReasonAlreadyInProgress, "another run is already in progress for this actor")
	// ErrInvalidHierarchy 表示会话树数据违反了"唯一根帖"不变式，属于防御性检查。
	ErrInvalidHierarchy = errors.InternalServer(ReasonInvalidHierarchy, "thread has no root post")
)

// ValidationError 构造用户可修正的字段校验错误。
func ValidationError(msg string) *errors.Error {
	return errors.BadRequest(ReasonValidationFailed, msg)
}

// CapacityError 构造层级或回复数超限错误。
func CapacityError(msg string) *errors.Error {
	return errors.Conflict(ReasonCapacityExceeded, msg)
}

// PermissionError 构造非所有者操作错误。
func PermissionError(msg string) *errors.Error {
	return errors.Forbidden(ReasonPermissionDenied, msg)
}

// UpstreamError 构造适配器层（压缩/上传/存储）失败错误，通常可重试一次。
func UpstreamError(msg string, cause error) *errors.Error {
	return errors.InternalServer(ReasonUpstreamFailure, msg).WithCause(cause)
}

// TimeoutError 构造压缩超时错误。
func TimeoutError(msg string, cause error) *errors.Error {
	return errors.GatewayTimeout(ReasonCompressionTimeout, msg).WithCause(cause)
}

// Retryable 返回错误是否允许整轮重试（上限一次）。
// 校验、容量、未找到与权限错误永不重试。
func Retryable(err error) bool {
	switch errors.Reason(err) {
	case ReasonUpstreamFailure, ReasonCompressionTimeout:
		return true
	default:
		return false
	}
}
