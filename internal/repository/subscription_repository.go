package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_market/internal/model"
	"github.com/Freeeeeet/tutor_market/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

// SubscriptionRepository — ledger-строки учёта мест. Активная подписка учителя
// join-ится с тарифом ради max_students.
type SubscriptionRepository struct {
	db base.Querier
}

func NewSubscriptionRepository(db base.Querier) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const activeSubscriptionQuery = `
	SELECT s.id, s.teacher_id, s.package_id, s.current_students, p.max_students,
	       s.start_date, s.end_date, s.is_active, s.deleted_at, s.created_at
	FROM subscriptions s
	JOIN subscription_packages p ON p.id = s.package_id
	WHERE s.teacher_id = $1 AND s.is_active = TRUE AND s.deleted_at IS NULL
	ORDER BY s.end_date DESC
	LIMIT 1`

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	err := row.Scan(
		&s.ID,
		&s.TeacherID,
		&s.PackageID,
		&s.CurrentStudents,
		&s.MaxStudents,
		&s.StartDate,
		&s.EndDate,
		&s.IsActive,
		&s.DeletedAt,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ActiveForTeacher получает активную подписку учителя без блокировки.
// Только для чтения — решения о приёме на этом пути не принимаются.
func (r *SubscriptionRepository) ActiveForTeacher(ctx context.Context, teacherID int64) (*model.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRow(ctx, activeSubscriptionQuery, teacherID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active subscription: %w", err)
	}

	return sub, nil
}

// ActiveForTeacherLocked получает активную подписку с блокировкой строки.
// Вызывается только внутри транзакции: конкурирующие подтверждения
// сериализуются на этой блокировке.
func (r *SubscriptionRepository) ActiveForTeacherLocked(ctx context.Context, teacherID int64) (*model.Subscription, error) {
	query := activeSubscriptionQuery + `
	FOR UPDATE OF s`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, teacherID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active subscription for update: %w", err)
	}

	return sub, nil
}

// Increment атомарно увеличивает счётчик занятых мест. Возвращает новое значение.
func (r *SubscriptionRepository) Increment(ctx context.Context, subscriptionID int64) (int, error) {
	query := `
		UPDATE subscriptions
		SET current_students = current_students + 1, updated_at = now()
		WHERE id = $1 AND is_active = TRUE AND deleted_at IS NULL
		RETURNING current_students
	`

	var current int
	err := r.db.QueryRow(ctx, query, subscriptionID).Scan(&current)
	if err != nil {
		if base.IsNotFound(err) {
			return 0, fmt.Errorf("subscription not found or inactive")
		}
		return 0, fmt.Errorf("increment subscription usage: %w", err)
	}

	return current, nil
}

// Decrement атомарно уменьшает счётчик с полом на нуле. Возвращает новое значение.
func (r *SubscriptionRepository) Decrement(ctx context.Context, subscriptionID int64) (int, error) {
	query := `
		UPDATE subscriptions
		SET current_students = GREATEST(current_students - 1, 0), updated_at = now()
		WHERE id = $1 AND is_active = TRUE AND deleted_at IS NULL
		RETURNING current_students
	`

	var current int
	err := r.db.QueryRow(ctx, query, subscriptionID).Scan(&current)
	if err != nil {
		if base.IsNotFound(err) {
			return 0, fmt.Errorf("subscription not found or inactive")
		}
		return 0, fmt.Errorf("decrement subscription usage: %w", err)
	}

	return current, nil
}

// SetCurrent выставляет счётчик напрямую. Используется реконсиляцией.
func (r *SubscriptionRepository) SetCurrent(ctx context.Context, subscriptionID int64, current int) error {
	query := `
		UPDATE subscriptions
		SET current_students = $2, updated_at = now()
		WHERE id = $1 AND is_active = TRUE AND deleted_at IS NULL
	`

	tag, err := r.db.Exec(ctx, query, subscriptionID, current)
	if err != nil {
		return fmt.Errorf("set subscription usage: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscription not found or inactive")
	}

	return nil
}

// ActiveTeacherIDs возвращает учителей с действующими подписками
func (r *SubscriptionRepository) ActiveTeacherIDs(ctx context.Context) ([]int64, error) {
	query := `
		SELECT teacher_id
		FROM subscriptions
		WHERE is_active = TRUE AND deleted_at IS NULL AND end_date >= now()
		ORDER BY teacher_id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active teachers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan teacher id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
