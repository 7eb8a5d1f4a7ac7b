package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// ReservationPayment — бронь-взнос, привязанный к первому подтверждению бронирования.
// Уникален по booking_id; оплата и отчётность живут вне этого ядра.
type ReservationPayment struct {
	ID        int64         `json:"id"`
	BookingID int64         `json:"booking_id"`
	Amount    int64         `json:"amount"` // в минимальных единицах валюты
	Status    PaymentStatus `json:"status"`
	PaidAt    *time.Time    `json:"paid_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
