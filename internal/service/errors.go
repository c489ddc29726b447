package service

import (
	"errors"
	"fmt"
)

// Kind 业务错误分类，决定接口层返回的 HTTP 状态
type Kind string

const (
	KindValidation    Kind = "validation"
	KindUnauthorized  Kind = "unauthorized"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindLimitExceeded Kind = "limit_exceeded"
	KindDependency    Kind = "dependency"
	KindForbidden     Kind = "forbidden"
	KindInternal      Kind = "internal"
)

// Error 带分类的业务错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 同分类同文案视为同一错误，便于 errors.Is 匹配哨兵错误
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// wrapError 在哨兵错误上附加原因
func wrapError(base *Error, cause error) error {
	return &Error{Kind: base.Kind, Message: base.Message, Err: cause}
}

// wrapf 在哨兵错误上附加格式化的说明
func wrapf(base *Error, format string, args ...interface{}) error {
	return &Error{Kind: base.Kind, Message: base.Message, Err: fmt.Errorf(format, args...)}
}

// KindOf 返回错误分类，非业务错误归为 internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf 返回面向用户的错误文案
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

var (
	ErrInvalidInput          = newError(KindValidation, "invalid input")
	ErrCouponCodeInvalid     = newError(KindValidation, "coupon code must be 6-20 uppercase letters or digits")
	ErrCouponTypeInvalid     = newError(KindValidation, "unsupported coupon type")
	ErrCouponValueInvalid    = newError(KindValidation, "coupon value is invalid")
	ErrCouponWindowInvalid   = newError(KindValidation, "coupon expiry must be after its start")
	ErrCouponCodeTaken       = newError(KindConflict, "coupon code already exists")
	ErrCouponInUse           = newError(KindConflict, "coupon has redemptions, deactivate it instead")
	ErrCouponNotFound        = newError(KindNotFound, "coupon not found")
	ErrCouponLimitExceeded   = newError(KindLimitExceeded, "coupon usage limit reached")
	ErrCartNotFound          = newError(KindNotFound, "cart not found")
	ErrCartEmpty             = newError(KindValidation, "cart is empty")
	ErrCartItemNotFound      = newError(KindNotFound, "cart item not found")
	ErrCartItemExists        = newError(KindConflict, "course already in cart")
	ErrPackageInvalid        = newError(KindValidation, "package option not available for this course")
	ErrCourseNotFound        = newError(KindNotFound, "course not found")
	ErrCourseUnavailable     = newError(KindValidation, "course is not available for purchase")
	ErrCourseForbidden       = newError(KindForbidden, "course belongs to another teacher")
	ErrOrderNotFound         = newError(KindNotFound, "order not found")
	ErrOrderCancelPaid       = newError(KindConflict, "order already paid, request a refund")
	ErrInvalidTransition     = newError(KindConflict, "order status does not allow this operation")
	ErrTransactionMismatch   = newError(KindConflict, "order already settled with a different transaction")
	ErrPaymentMethodInvalid  = newError(KindValidation, "unsupported payment method")
	ErrPaymentDeclined       = newError(KindValidation, "payment was declined")
	ErrPaymentDeferred       = newError(KindDependency, "payment gateway unavailable, verification will be retried")
	ErrPaymentAwaitingManual = newError(KindConflict, "payment awaits manual confirmation")
	ErrCallbackInvalid       = newError(KindValidation, "payment callback is invalid")
	ErrAppointmentNotFound   = newError(KindNotFound, "appointment not found")
	ErrAppointmentForbidden  = newError(KindForbidden, "appointment belongs to another user")
	ErrAppointmentTransition = newError(KindConflict, "appointment status does not allow this operation")
	ErrAppointmentDeadline   = newError(KindValidation, "cancellation deadline has passed")
	ErrAppointmentTimeSlot   = newError(KindValidation, "appointment time slot is invalid")
	ErrTeacherUnavailable    = newError(KindConflict, "teacher already has an appointment at this time")
	ErrLessonBalanceEmpty    = newError(KindConflict, "no remaining lessons on this order item")
	ErrOrderItemExpired      = newError(KindValidation, "lesson package has expired")
	ErrUserNotFound          = newError(KindNotFound, "user not found")
	ErrUserDisabled          = newError(KindForbidden, "user is disabled")
	ErrEmailExists           = newError(KindConflict, "email already registered")
	ErrInvalidEmail          = newError(KindValidation, "email is invalid")
	ErrInvalidCredentials    = newError(KindUnauthorized, "invalid email or password")
	ErrWeakPassword          = newError(KindValidation, "password is too weak")
	ErrTokenInvalid          = newError(KindUnauthorized, "token is invalid")
	ErrTokenRevoked          = newError(KindUnauthorized, "token has been revoked")

	ErrCaptchaRequired      = newError(KindValidation, "captcha is required")
	ErrCaptchaInvalid       = newError(KindValidation, "captcha is invalid")
	ErrCaptchaConfigInvalid = newError(KindValidation, "captcha is not available")

	ErrReviewNotFound      = newError(KindNotFound, "review not found")
	ErrReviewExists        = newError(KindConflict, "appointment already reviewed")
	ErrReviewForbidden     = newError(KindForbidden, "review belongs to another user")
	ErrReviewNotAllowed    = newError(KindConflict, "only completed appointments can be reviewed")
	ErrRatingInvalid       = newError(KindValidation, "ratings must be between 1 and 5")
	ErrAvailabilityInvalid = newError(KindValidation, "availability slot is invalid")
	ErrOutsideAvailability = newError(KindConflict, "time slot is outside the teacher's availability")

	ErrEmailServiceDisabled      = newError(KindDependency, "email service is disabled")
	ErrEmailServiceNotConfigured = newError(KindDependency, "email service is not configured")
	ErrEmailRecipientRejected    = newError(KindValidation, "email recipient rejected")
)
