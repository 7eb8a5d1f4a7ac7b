package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_market/internal/model"
	"github.com/Freeeeeet/tutor_market/internal/repository/base"
)

// PaymentRepository — sink бронь-взносов. Запись уникальна по booking_id,
// повторное подтверждение не создаёт дубликата.
type PaymentRepository struct {
	db base.Querier
}

func NewPaymentRepository(db base.Querier) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Upsert вставляет бронь-взнос для бронирования. При конфликте по booking_id
// существующая запись (включая уже оплаченную) не трогается.
func (r *PaymentRepository) Upsert(ctx context.Context, payment *model.ReservationPayment) error {
	query := `
		INSERT INTO reservation_payments (booking_id, amount, status, paid_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (booking_id) DO NOTHING
	`

	_, err := r.db.Exec(
		ctx, query,
		payment.BookingID,
		payment.Amount,
		payment.Status,
		payment.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("upsert reservation payment: %w", err)
	}

	return nil
}

// GetByBookingID получает бронь-взнос бронирования
func (r *PaymentRepository) GetByBookingID(ctx context.Context, bookingID int64) (*model.ReservationPayment, error) {
	query := `
		SELECT id, booking_id, amount, status, paid_at, created_at, updated_at
		FROM reservation_payments
		WHERE booking_id = $1
	`

	var p model.ReservationPayment
	err := r.db.QueryRow(ctx, query, bookingID).Scan(
		&p.ID,
		&p.BookingID,
		&p.Amount,
		&p.Status,
		&p.PaidAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reservation payment: %w", err)
	}

	return &p, nil
}
