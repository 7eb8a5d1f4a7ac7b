package model

import "time"

// Course — read-модель курса, принадлежащая внешнему course-провайдеру.
// Ядро бронирований только читает её.
type Course struct {
	ID                int64     `json:"id"`
	TeacherID         int64     `json:"teacher_id"`
	Name              string    `json:"name"`
	StudyYear         string    `json:"study_year"`
	EndDate           time.Time `json:"end_date"`
	HasReservation    bool      `json:"has_reservation"`    // требуется ли бронь-взнос при подтверждении
	ReservationAmount int64     `json:"reservation_amount"` // сумма в минимальных единицах валюты
	IsDeleted         bool      `json:"is_deleted"`
	CreatedAt         time.Time `json:"created_at"`
}

// Ended возвращает true если курс уже закончился
func (c *Course) Ended(now time.Time) bool {
	return c.EndDate.Before(now)
}
