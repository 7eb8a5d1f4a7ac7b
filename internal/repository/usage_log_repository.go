package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_market/internal/model"
	"github.com/Freeeeeet/tutor_market/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const usageLogColumns = `
	id, booking_id, teacher_id, student_id, subscription_id, action_type,
	previous_status, new_status, students_before, students_after, reason,
	performed_by, created_at`

// UsageLogRepository — append-only журнал изменений занятости мест.
// Записи никогда не обновляются и не удаляются.
type UsageLogRepository struct {
	db base.Querier
}

func NewUsageLogRepository(db base.Querier) *UsageLogRepository {
	return &UsageLogRepository{db: db}
}

func scanUsageLog(row pgx.Row) (*model.UsageLogEntry, error) {
	var e model.UsageLogEntry
	err := row.Scan(
		&e.ID,
		&e.BookingID,
		&e.TeacherID,
		&e.StudentID,
		&e.SubscriptionID,
		&e.ActionType,
		&e.PreviousStatus,
		&e.NewStatus,
		&e.StudentsBefore,
		&e.StudentsAfter,
		&e.Reason,
		&e.PerformedBy,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Insert добавляет запись в журнал
func (r *UsageLogRepository) Insert(ctx context.Context, entry *model.UsageLogEntry) error {
	query := `
		INSERT INTO usage_logs (booking_id, teacher_id, student_id, subscription_id, action_type,
		                        previous_status, new_status, students_before, students_after, reason, performed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		entry.BookingID,
		entry.TeacherID,
		entry.StudentID,
		entry.SubscriptionID,
		entry.ActionType,
		entry.PreviousStatus,
		entry.NewStatus,
		entry.StudentsBefore,
		entry.StudentsAfter,
		entry.Reason,
		entry.PerformedBy,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("insert usage log: %w", err)
	}

	return nil
}

// ListByTeacher получает записи учителя, опционально отфильтрованные по типу действия
func (r *UsageLogRepository) ListByTeacher(ctx context.Context, teacherID int64, actionType model.UsageActionType, limit, offset int) ([]*model.UsageLogEntry, error) {
	query := `SELECT ` + usageLogColumns + `
		FROM usage_logs
		WHERE teacher_id = $1 AND ($2::text = '' OR action_type = $2::text)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	return r.list(ctx, query, teacherID, string(actionType), limit, offset)
}

// ListBySubscription получает записи по подписке
func (r *UsageLogRepository) ListBySubscription(ctx context.Context, subscriptionID int64, limit, offset int) ([]*model.UsageLogEntry, error) {
	query := `SELECT ` + usageLogColumns + `
		FROM usage_logs
		WHERE subscription_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	return r.list(ctx, query, subscriptionID, limit, offset)
}

// ListByBooking получает записи по бронированию в порядке появления
func (r *UsageLogRepository) ListByBooking(ctx context.Context, bookingID int64) ([]*model.UsageLogEntry, error) {
	query := `SELECT ` + usageLogColumns + `
		FROM usage_logs
		WHERE booking_id = $1
		ORDER BY created_at ASC, id ASC`

	return r.list(ctx, query, bookingID)
}

// Recent получает глобальную ленту последних записей (диагностика)
func (r *UsageLogRepository) Recent(ctx context.Context, limit int) ([]*model.UsageLogEntry, error) {
	query := `SELECT ` + usageLogColumns + `
		FROM usage_logs
		ORDER BY created_at DESC
		LIMIT $1`

	return r.list(ctx, query, limit)
}

// CountByAction агрегирует количество записей учителя по типам действий
func (r *UsageLogRepository) CountByAction(ctx context.Context, teacherID int64) (map[model.UsageActionType]int, error) {
	query := `
		SELECT action_type, COUNT(*)
		FROM usage_logs
		WHERE teacher_id = $1
		GROUP BY action_type
	`

	rows, err := r.db.Query(ctx, query, teacherID)
	if err != nil {
		return nil, fmt.Errorf("count usage by action: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.UsageActionType]int)
	for rows.Next() {
		var action model.UsageActionType
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("scan usage count: %w", err)
		}
		counts[action] = count
	}

	return counts, rows.Err()
}

func (r *UsageLogRepository) list(ctx context.Context, query string, args ...any) ([]*model.UsageLogEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list usage logs: %w", err)
	}
	defer rows.Close()

	var entries []*model.UsageLogEntry
	for rows.Next() {
		entry, err := scanUsageLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan usage log: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
