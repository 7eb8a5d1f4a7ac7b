package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending     BookingStatus = "pending"      // Ожидает рассмотрения учителем
	BookingStatusPreApproved BookingStatus = "pre_approved" // Предварительно одобрено
	BookingStatusConfirmed   BookingStatus = "confirmed"    // Подтверждено, место занято
	BookingStatusApproved    BookingStatus = "approved"     // Окончательно одобрено после подтверждения
	BookingStatusRejected    BookingStatus = "rejected"     // Отклонено учителем (терминальный статус)
	BookingStatusCancelled   BookingStatus = "cancelled"    // Отменено (может быть реактивировано)
)

// HoldsSeat возвращает true если бронирование занимает место у учителя
func (s BookingStatus) HoldsSeat() bool {
	return s == BookingStatusConfirmed || s == BookingStatusApproved
}

type ActorRole string

const (
	ActorStudent ActorRole = "student"
	ActorTeacher ActorRole = "teacher"
	ActorSystem  ActorRole = "system"
)

type Booking struct {
	ID                 int64         `json:"id"`
	Reference          uuid.UUID     `json:"reference"` // внешний идентификатор для коллабораторов
	StudentID          int64         `json:"student_id"`
	CourseID           int64         `json:"course_id"`
	TeacherID          int64         `json:"teacher_id"`
	StudyYear          string        `json:"study_year"`
	Status             BookingStatus `json:"status"`
	BookingDate        time.Time     `json:"booking_date"`
	ApprovedAt         *time.Time    `json:"approved_at,omitempty"`
	RejectedAt         *time.Time    `json:"rejected_at,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	ReactivatedAt      *time.Time    `json:"reactivated_at,omitempty"`
	RejectionReason    string        `json:"rejection_reason,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	StudentMessage     string        `json:"student_message,omitempty"`
	TeacherResponse    string        `json:"teacher_response,omitempty"`
	CancelledBy        ActorRole     `json:"cancelled_by,omitempty"` // заполнено только при status=cancelled
	RejectedBy         ActorRole     `json:"rejected_by,omitempty"`
	IsDeleted          bool          `json:"is_deleted"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`

	// Дополнительные поля для удобства (не из БД)
	Course *Course `json:"course,omitempty"`
}
