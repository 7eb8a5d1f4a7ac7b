package service

import "errors"

// Стабильные ошибки ядра. Вызывающий слой маппит их на коды ответов
// через errors.Is, не разбирая текст.
var (
	ErrCourseNotFound    = errors.New("course not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrAccessDenied      = errors.New("access denied")
	ErrDuplicateBooking  = errors.New("booking for this course already exists")
	ErrInvalidTransition = errors.New("invalid status transition")

	// Ошибки admission-контроля, в порядке приоритета проверки
	ErrNoActiveSubscription = errors.New("teacher has no active subscription")
	ErrSubscriptionExpired  = errors.New("teacher subscription has expired")
	ErrCapacityExceeded     = errors.New("maximum number of students reached")

	// Ошибки цепочки проверок реактивации
	ErrReactivationWrongStatus      = errors.New("only cancelled bookings can be reactivated")
	ErrReactivationTeacherCancelled = errors.New("bookings cancelled by the teacher cannot be reactivated")
	ErrReactivationCourseGone       = errors.New("course is no longer available")
)
