package model

import "time"

// SubscriptionPackage — тариф, определяющий вместимость подписки
type SubscriptionPackage struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	MaxStudents  int       `json:"max_students"`
	DurationDays int       `json:"duration_days"`
	CreatedAt    time.Time `json:"created_at"`
}

// Subscription — активная подписка учителя вместе с лимитом мест из тарифа.
// Выступает ledger-строкой учёта занятых мест: current_students живёт в строке
// подписки, max_students подтягивается join-ом из тарифа.
type Subscription struct {
	ID              int64      `json:"id"`
	TeacherID       int64      `json:"teacher_id"`
	PackageID       int64      `json:"package_id"`
	CurrentStudents int        `json:"current_students"`
	MaxStudents     int        `json:"max_students"` // из тарифа, не из строки подписки
	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
	IsActive        bool       `json:"is_active"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// AdmissionCheck — результат проверки возможности принять ещё одного студента
type AdmissionCheck struct {
	CanAdd          bool   `json:"can_add"`
	CurrentStudents int    `json:"current_students"`
	MaxStudents     int    `json:"max_students"`
	Message         string `json:"message,omitempty"`
}
