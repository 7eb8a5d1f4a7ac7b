package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutor_market/internal/model"
	"go.uber.org/zap"
)

// EvaluateAdmission решает, может ли учитель принять ещё одного студента.
// Причины отказа проверяются строго в порядке: нет подписки, подписка
// истекла, места закончились.
func EvaluateAdmission(sub *model.Subscription, now time.Time) model.AdmissionCheck {
	if sub == nil {
		return model.AdmissionCheck{
			CanAdd:  false,
			Message: ErrNoActiveSubscription.Error(),
		}
	}

	if sub.EndDate.Before(now) {
		return model.AdmissionCheck{
			CanAdd:          false,
			CurrentStudents: sub.CurrentStudents,
			MaxStudents:     sub.MaxStudents,
			Message:         ErrSubscriptionExpired.Error(),
		}
	}

	if sub.CurrentStudents >= sub.MaxStudents {
		return model.AdmissionCheck{
			CanAdd:          false,
			CurrentStudents: sub.CurrentStudents,
			MaxStudents:     sub.MaxStudents,
			Message:         ErrCapacityExceeded.Error(),
		}
	}

	return model.AdmissionCheck{
		CanAdd:          true,
		CurrentStudents: sub.CurrentStudents,
		MaxStudents:     sub.MaxStudents,
	}
}

// admissionError маппит отрицательный результат проверки на стабильную ошибку
func admissionError(check model.AdmissionCheck) error {
	switch check.Message {
	case ErrNoActiveSubscription.Error():
		return ErrNoActiveSubscription
	case ErrSubscriptionExpired.Error():
		return ErrSubscriptionExpired
	default:
		return fmt.Errorf("%d of %d seats taken: %w", check.CurrentStudents, check.MaxStudents, ErrCapacityExceeded)
	}
}

// CapacityService — учёт мест по активной подписке учителя.
// Горячий путь приёма живёт в BookingService, здесь — справки и реконсиляция.
type CapacityService struct {
	runner TxRunner
	stores Stores
	logger *zap.Logger
}

func NewCapacityService(runner TxRunner, stores Stores, logger *zap.Logger) *CapacityService {
	return &CapacityService{
		runner: runner,
		stores: stores,
		logger: logger,
	}
}

// CanAdmit проверяет вместимость учителя без блокировок.
// Для решений на горячем пути не используется.
func (s *CapacityService) CanAdmit(ctx context.Context, teacherID int64) (model.AdmissionCheck, error) {
	sub, err := s.stores.Ledger().ActiveForTeacher(ctx, teacherID)
	if err != nil {
		return model.AdmissionCheck{}, err
	}

	return EvaluateAdmission(sub, time.Now()), nil
}

// Recalculate пересчитывает занятые места учителя по фактическим бронированиям
// внутри окна действия подписки. Возвращает актуальный счётчик.
func (s *CapacityService) Recalculate(ctx context.Context, teacherID int64) (int, error) {
	var current int

	err := s.runner.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		sub, err := st.Ledger().ActiveForTeacherLocked(ctx, teacherID)
		if err != nil {
			return err
		}
		if sub == nil {
			return fmt.Errorf("teacher %d: %w", teacherID, ErrNoActiveSubscription)
		}

		count, err := st.Bookings().CountSeatHolders(ctx, teacherID, sub.StartDate, sub.EndDate)
		if err != nil {
			return err
		}

		if count != sub.CurrentStudents {
			s.logger.Warn("Capacity drift detected",
				zap.Int64("teacher_id", teacherID),
				zap.Int("ledger", sub.CurrentStudents),
				zap.Int("actual", count),
			)
			if err := st.Ledger().SetCurrent(ctx, sub.ID, count); err != nil {
				return err
			}
		}

		current = count
		return nil
	})
	if err != nil {
		return 0, err
	}

	return current, nil
}

// RecalculateAll прогоняет реконсиляцию по всем учителям с действующими
// подписками. Ошибка одного учителя не прерывает остальных.
func (s *CapacityService) RecalculateAll(ctx context.Context) error {
	teacherIDs, err := s.stores.Ledger().ActiveTeacherIDs(ctx)
	if err != nil {
		return fmt.Errorf("list active teachers: %w", err)
	}

	for _, teacherID := range teacherIDs {
		if _, err := s.Recalculate(ctx, teacherID); err != nil {
			s.logger.Error("Failed to recalculate teacher capacity",
				zap.Int64("teacher_id", teacherID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Capacity reconciliation finished", zap.Int("teachers", len(teacherIDs)))
	return nil
}
