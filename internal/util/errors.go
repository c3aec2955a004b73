package util

import "errors"

// ErrorKind 错误分类，决定对外的 HTTP 状态码
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindConflict
	KindPreconditionFailed
	KindForbidden
	KindUpstreamUnavailable
	KindUpstreamRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindPreconditionFailed:
		return "PreconditionFailed"
	case KindForbidden:
		return "Forbidden"
	case KindUpstreamUnavailable:
		return "UpstreamUnavailable"
	case KindUpstreamRejected:
		return "UpstreamRejected"
	default:
		return "Internal"
	}
}

// KindedError 带分类的业务错误，可直接与 errors.Is 比较
type KindedError struct {
	kind ErrorKind
	msg  string
}

func NewError(kind ErrorKind, msg string) *KindedError {
	return &KindedError{kind: kind, msg: msg}
}

func (e *KindedError) Error() string { return e.msg }

func (e *KindedError) Kind() ErrorKind { return e.kind }

var (
	ErrConsumerNotFound     = NewError(KindNotFound, "consumer not found")
	ErrCourseNotFound       = NewError(KindNotFound, "course not found")
	ErrNotSubscribed        = NewError(KindNotFound, "consumer is not subscribed to this course")
	ErrPurchaseNotFound     = NewError(KindNotFound, "purchase record not found")
	ErrNotificationNotFound = NewError(KindNotFound, "notification not found")

	ErrConsumerExists     = NewError(KindConflict, "consumer already exists")
	ErrAlreadyPurchased   = NewError(KindConflict, "course already purchased")
	ErrPurchaseInProgress = NewError(KindConflict, "a purchase of this course is already in progress")
	ErrAlreadySaved       = NewError(KindConflict, "course already saved")
	ErrNotSaved           = NewError(KindConflict, "course is not in the saved list")
	ErrFeedbackGiven      = NewError(KindConflict, "feedback has already been given for this course")

	ErrInsufficientCredits = NewError(KindPreconditionFailed, "insufficient credits")
	ErrCourseNotCompleted  = NewError(KindPreconditionFailed, "course is not completed yet")
	ErrCourseNotPurchased  = NewError(KindPreconditionFailed, "course has not been purchased")
	ErrInvalidRating       = NewError(KindPreconditionFailed, "rating must be between 1 and 5")
	ErrMissingBppURI       = NewError(KindPreconditionFailed, "bppUri is required for courses from an external provider")
	ErrInvalidCourse       = NewError(KindPreconditionFailed, "courseId and title are required")

	ErrNotificationNotOwned = NewError(KindForbidden, "notification belongs to another consumer")
	ErrPermissionDenied     = NewError(KindForbidden, "permission denied")
)

type kinded interface {
	Kind() ErrorKind
}

// KindOf 沿错误链查找分类，找不到时视为内部错误
func KindOf(err error) ErrorKind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// IsTransient 错误是否可以原样重试
func IsTransient(err error) bool {
	return KindOf(err) == KindUpstreamUnavailable
}
