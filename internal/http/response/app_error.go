package response

import (
	"errors"
	"net/http"

	"github.com/musictutor-next/internal/service"
)

// AppError 接口层错误，携带 HTTP 状态与对外文案
type AppError struct {
	Status  int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

var kindStatus = map[service.Kind]int{
	service.KindValidation:    http.StatusBadRequest,
	service.KindUnauthorized:  http.StatusUnauthorized,
	service.KindNotFound:      http.StatusNotFound,
	service.KindConflict:      http.StatusConflict,
	service.KindLimitExceeded: http.StatusConflict,
	service.KindDependency:    http.StatusServiceUnavailable,
	service.KindForbidden:     http.StatusForbidden,
	service.KindInternal:      http.StatusInternalServerError,
}

// FromError 将业务错误转换为接口错误；未分类的错误统一为 500，不暴露原始信息
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	kind := service.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &AppError{
		Status:  status,
		Message: service.MessageOf(err),
		Err:     err,
	}
}
