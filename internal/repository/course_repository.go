package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_market/internal/model"
	"github.com/Freeeeeet/tutor_market/internal/repository/base"
)

type CourseRepository struct {
	db base.Querier
}

func NewCourseRepository(db base.Querier) *CourseRepository {
	return &CourseRepository{db: db}
}

// GetByID получает курс по ID. Мягко удалённые курсы возвращаются с
// выставленным IsDeleted — решение принимает вызывающий.
func (r *CourseRepository) GetByID(ctx context.Context, id int64) (*model.Course, error) {
	query := `
		SELECT id, teacher_id, name, study_year, end_date, has_reservation, reservation_amount, is_deleted, created_at
		FROM courses
		WHERE id = $1
	`

	var course model.Course
	err := r.db.QueryRow(ctx, query, id).Scan(
		&course.ID,
		&course.TeacherID,
		&course.Name,
		&course.StudyYear,
		&course.EndDate,
		&course.HasReservation,
		&course.ReservationAmount,
		&course.IsDeleted,
		&course.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get course by id: %w", err)
	}

	return &course, nil
}
