package model

import "time"

type UsageActionType string

const (
	UsageActionApproved    UsageActionType = "approved"
	UsageActionRejected    UsageActionType = "rejected"
	UsageActionCancelled   UsageActionType = "cancelled"
	UsageActionReactivated UsageActionType = "reactivated"
)

// UsageLogEntry — неизменяемая запись аудита об изменении занятости мест.
// Пишется в той же транзакции, что и изменение ledger-а, которое документирует.
type UsageLogEntry struct {
	ID             int64           `json:"id"`
	BookingID      int64           `json:"booking_id"`
	TeacherID      int64           `json:"teacher_id"`
	StudentID      int64           `json:"student_id"`
	SubscriptionID int64           `json:"subscription_id"` // подписка, активная в момент перехода
	ActionType     UsageActionType `json:"action_type"`
	PreviousStatus BookingStatus   `json:"previous_status"`
	NewStatus      BookingStatus   `json:"new_status"`
	StudentsBefore int             `json:"students_before"`
	StudentsAfter  int             `json:"students_after"`
	Reason         string          `json:"reason,omitempty"`
	PerformedBy    ActorRole       `json:"performed_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TeacherUsageStats — агрегированная статистика по учителю плюс живой снимок вместимости
type TeacherUsageStats struct {
	TeacherID int64                   `json:"teacher_id"`
	Actions   map[UsageActionType]int `json:"actions"`
	Capacity  AdmissionCheck          `json:"capacity"`
}
