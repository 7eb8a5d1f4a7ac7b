package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutor_market/internal/model"
	"github.com/Freeeeeet/tutor_market/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `
	id, reference, student_id, course_id, teacher_id, study_year, status,
	booking_date, approved_at, rejected_at, cancelled_at, reactivated_at,
	rejection_reason, cancellation_reason, student_message, teacher_response,
	cancelled_by, rejected_by, is_deleted, created_at, updated_at`

type BookingRepository struct {
	db base.Querier
}

func NewBookingRepository(db base.Querier) *BookingRepository {
	return &BookingRepository{db: db}
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.Reference,
		&b.StudentID,
		&b.CourseID,
		&b.TeacherID,
		&b.StudyYear,
		&b.Status,
		&b.BookingDate,
		&b.ApprovedAt,
		&b.RejectedAt,
		&b.CancelledAt,
		&b.ReactivatedAt,
		&b.RejectionReason,
		&b.CancellationReason,
		&b.StudentMessage,
		&b.TeacherResponse,
		&b.CancelledBy,
		&b.RejectedBy,
		&b.IsDeleted,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Insert создаёт новое бронирование
func (r *BookingRepository) Insert(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (reference, student_id, course_id, teacher_id, study_year, status, booking_date, student_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		booking.Reference,
		booking.StudentID,
		booking.CourseID,
		booking.TeacherID,
		booking.StudyYear,
		booking.Status,
		booking.BookingDate,
		booking.StudentMessage,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)

	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	return nil
}

// GetByID получает бронирование по ID (мягко удалённые не возвращает)
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 AND is_deleted = FALSE`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// GetForTeacher получает бронирование с проверкой принадлежности учителю
func (r *BookingRepository) GetForTeacher(ctx context.Context, id, teacherID int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE id = $1 AND teacher_id = $2 AND is_deleted = FALSE`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id, teacherID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking for teacher: %w", err)
	}

	return booking, nil
}

// GetForStudent получает бронирование с проверкой принадлежности студенту
func (r *BookingRepository) GetForStudent(ctx context.Context, id, studentID int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE id = $1 AND student_id = $2 AND is_deleted = FALSE`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id, studentID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking for student: %w", err)
	}

	return booking, nil
}

// GetActiveByStudentAndCourse ищет неудалённое бронирование пары (студент, курс).
// Используется для защиты от дублей внутри транзакции создания.
func (r *BookingRepository) GetActiveByStudentAndCourse(ctx context.Context, studentID, courseID int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE student_id = $1 AND course_id = $2 AND is_deleted = FALSE
		LIMIT 1`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, studentID, courseID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by student and course: %w", err)
	}

	return booking, nil
}

// Update сохраняет статус и метаданные переходов бронирования
func (r *BookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	query := `
		UPDATE bookings
		SET status = $1,
		    approved_at = $2,
		    rejected_at = $3,
		    cancelled_at = $4,
		    reactivated_at = $5,
		    rejection_reason = $6,
		    cancellation_reason = $7,
		    teacher_response = $8,
		    cancelled_by = $9,
		    rejected_by = $10,
		    updated_at = now()
		WHERE id = $11 AND is_deleted = FALSE
	`

	tag, err := r.db.Exec(
		ctx, query,
		booking.Status,
		booking.ApprovedAt,
		booking.RejectedAt,
		booking.CancelledAt,
		booking.ReactivatedAt,
		booking.RejectionReason,
		booking.CancellationReason,
		booking.TeacherResponse,
		booking.CancelledBy,
		booking.RejectedBy,
		booking.ID,
	)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("booking not found")
	}

	return nil
}

// SoftDelete помечает бронирование удалённым в рамках владения вызывающего.
// Возвращает false если ни одна строка не подошла.
func (r *BookingRepository) SoftDelete(ctx context.Context, id, userID int64, role model.ActorRole) (bool, error) {
	var ownerColumn string
	switch role {
	case model.ActorStudent:
		ownerColumn = "student_id"
	case model.ActorTeacher:
		ownerColumn = "teacher_id"
	default:
		return false, fmt.Errorf("unsupported owner role: %s", role)
	}

	query := `
		UPDATE bookings
		SET is_deleted = TRUE, updated_at = now()
		WHERE id = $1 AND ` + ownerColumn + ` = $2 AND is_deleted = FALSE
	`

	tag, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("soft delete booking: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListByStudent получает все бронирования студента (без удалённых)
func (r *BookingRepository) ListByStudent(ctx context.Context, studentID int64, limit, offset int) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE student_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	return r.list(ctx, query, studentID, limit, offset)
}

// ListByTeacher получает все бронирования учителя (без удалённых)
func (r *BookingRepository) ListByTeacher(ctx context.Context, teacherID int64, limit, offset int) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE teacher_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	return r.list(ctx, query, teacherID, limit, offset)
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

// CountSeatHolders считает подтверждённые неудалённые бронирования учителя,
// созданные внутри окна действия подписки. Путь реконсиляции, не горячий путь.
func (r *BookingRepository) CountSeatHolders(ctx context.Context, teacherID int64, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE teacher_id = $1
		  AND status IN ('confirmed', 'approved')
		  AND is_deleted = FALSE
		  AND created_at >= $2 AND created_at <= $3
	`

	var count int
	err := r.db.QueryRow(ctx, query, teacherID, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count seat holders: %w", err)
	}

	return count, nil
}
