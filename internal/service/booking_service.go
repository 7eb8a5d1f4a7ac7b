package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutor_market/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// allowedTransitions — таблица переходов статусов. rejected терминален,
// из cancelled выход только через Reactivate.
var allowedTransitions = map[model.BookingStatus][]model.BookingStatus{
	model.BookingStatusPending:     {model.BookingStatusPreApproved, model.BookingStatusConfirmed, model.BookingStatusRejected, model.BookingStatusCancelled},
	model.BookingStatusPreApproved: {model.BookingStatusConfirmed, model.BookingStatusRejected, model.BookingStatusCancelled},
	model.BookingStatusConfirmed:   {model.BookingStatusApproved, model.BookingStatusRejected, model.BookingStatusCancelled},
	model.BookingStatusApproved:    {model.BookingStatusRejected, model.BookingStatusCancelled},
	model.BookingStatusRejected:    {},
	model.BookingStatusCancelled:   {},
}

func canTransition(from, to model.BookingStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type CreateBookingInput struct {
	CourseID       int64
	StudentMessage string
}

type UpdateStatusInput struct {
	Status          model.BookingStatus
	Reason          string
	TeacherResponse string
}

// TransitionResult — типизированный результат перехода. Вся отправка
// уведомлений происходит у вызывающего, ядро её не касается.
type TransitionResult struct {
	Booking            *model.Booking
	PreviousStatus     model.BookingStatus
	NewStatus          model.BookingStatus
	CourseEndedWarning bool // курс уже закончился, но операция прошла
}

// BookingService — единственная точка входа для жизненного цикла бронирований.
// Каждый переход, влияющий на занятость мест, выполняется в одной транзакции:
// запись бронирования, ledger, журнал и бронь-взнос коммитятся вместе.
type BookingService struct {
	runner TxRunner
	stores Stores
	logger *zap.Logger
}

func NewBookingService(runner TxRunner, stores Stores, logger *zap.Logger) *BookingService {
	return &BookingService{
		runner: runner,
		stores: stores,
		logger: logger,
	}
}

// Create создаёт бронирование студента на курс в статусе pending.
// Курс должен существовать, дубликат пары (студент, курс) запрещён.
func (s *BookingService) Create(ctx context.Context, studentID int64, in CreateBookingInput) (*model.Booking, error) {
	var booking *model.Booking

	err := s.runner.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		course, err := st.Courses().GetByID(ctx, in.CourseID)
		if err != nil {
			return fmt.Errorf("get course: %w", err)
		}
		if course == nil || course.IsDeleted {
			return fmt.Errorf("course %d: %w", in.CourseID, ErrCourseNotFound)
		}

		existing, err := st.Bookings().GetActiveByStudentAndCourse(ctx, studentID, in.CourseID)
		if err != nil {
			return fmt.Errorf("check duplicate booking: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("student %d, course %d: %w", studentID, in.CourseID, ErrDuplicateBooking)
		}

		booking = &model.Booking{
			Reference:      uuid.New(),
			StudentID:      studentID,
			CourseID:       course.ID,
			TeacherID:      course.TeacherID,
			StudyYear:      course.StudyYear,
			Status:         model.BookingStatusPending,
			BookingDate:    time.Now(),
			StudentMessage: in.StudentMessage,
		}

		return st.Bookings().Insert(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("student_id", studentID),
		zap.Int64("course_id", in.CourseID),
		zap.Int64("teacher_id", booking.TeacherID),
	)

	return booking, nil
}

// UpdateStatus — закрытый переход статуса со стороны учителя.
// Подтверждение проходит admission-контроль до любых записей; выход из
// занимающего место статуса возвращает место в ledger. Всё в одной транзакции.
func (s *BookingService) UpdateStatus(ctx context.Context, bookingID, teacherID int64, in UpdateStatusInput) (*TransitionResult, error) {
	switch in.Status {
	case model.BookingStatusPreApproved, model.BookingStatusConfirmed, model.BookingStatusApproved,
		model.BookingStatusRejected, model.BookingStatusCancelled:
	default:
		return nil, fmt.Errorf("unsupported target status %q: %w", in.Status, ErrInvalidTransition)
	}

	var result *TransitionResult

	err := s.runner.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		booking, err := st.Bookings().GetForTeacher(ctx, bookingID, teacherID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if booking == nil {
			return fmt.Errorf("booking %d: %w", bookingID, ErrBookingNotFound)
		}

		// Повторная заявка текущего статуса — явная ошибка, а не тихий успех.
		// Это же отсекает двойной учёт при ретраях.
		if booking.Status == in.Status {
			return fmt.Errorf("booking is already %s: %w", in.Status, ErrInvalidTransition)
		}
		if !canTransition(booking.Status, in.Status) {
			return fmt.Errorf("cannot change status from %s to %s: %w", booking.Status, in.Status, ErrInvalidTransition)
		}

		previous := booking.Status
		now := time.Now()

		switch in.Status {
		case model.BookingStatusConfirmed:
			if err := s.confirm(ctx, st, booking, previous, in, now); err != nil {
				return err
			}

		case model.BookingStatusRejected:
			booking.Status = model.BookingStatusRejected
			booking.RejectedAt = &now
			booking.RejectionReason = in.Reason
			booking.RejectedBy = model.ActorTeacher
			booking.TeacherResponse = in.TeacherResponse
			if err := st.Bookings().Update(ctx, booking); err != nil {
				return err
			}
			if previous.HoldsSeat() {
				entry, err := s.releaseSeat(ctx, st, booking, previous, model.UsageActionRejected, in.Reason, model.ActorTeacher)
				if err != nil {
					return err
				}
				// Внутри UpdateStatus запись журнала обязательна: её сбой откатывает переход
				if entry != nil {
					if err := st.UsageLogs().Insert(ctx, entry); err != nil {
						return err
					}
				}
			}

		case model.BookingStatusCancelled:
			booking.Status = model.BookingStatusCancelled
			booking.CancelledAt = &now
			booking.CancellationReason = in.Reason
			booking.CancelledBy = model.ActorTeacher
			booking.TeacherResponse = in.TeacherResponse
			if err := st.Bookings().Update(ctx, booking); err != nil {
				return err
			}
			if previous.HoldsSeat() {
				entry, err := s.releaseSeat(ctx, st, booking, previous, model.UsageActionCancelled, in.Reason, model.ActorTeacher)
				if err != nil {
					return err
				}
				if entry != nil {
					if err := st.UsageLogs().Insert(ctx, entry); err != nil {
						return err
					}
				}
			}

		default: // pre_approved, approved — статусные переходы без влияния на места
			booking.Status = in.Status
			booking.TeacherResponse = in.TeacherResponse
			if err := st.Bookings().Update(ctx, booking); err != nil {
				return err
			}
		}

		result = &TransitionResult{
			Booking:        booking,
			PreviousStatus: previous,
			NewStatus:      booking.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking status updated",
		zap.Int64("booking_id", bookingID),
		zap.Int64("teacher_id", teacherID),
		zap.String("from", string(result.PreviousStatus)),
		zap.String("to", string(result.NewStatus)),
	)

	return result, nil
}

// confirm выполняет admission-контроль и занимает место.
// Блокировка строки подписки сериализует конкурирующие подтверждения.
func (s *BookingService) confirm(ctx context.Context, st Stores, booking *model.Booking, previous model.BookingStatus, in UpdateStatusInput, now time.Time) error {
	sub, err := st.Ledger().ActiveForTeacherLocked(ctx, booking.TeacherID)
	if err != nil {
		return fmt.Errorf("get subscription: %w", err)
	}

	check := EvaluateAdmission(sub, now)
	if !check.CanAdd {
		return admissionError(check)
	}

	booking.Status = model.BookingStatusConfirmed
	booking.ApprovedAt = &now
	booking.TeacherResponse = in.TeacherResponse
	if err := st.Bookings().Update(ctx, booking); err != nil {
		return err
	}

	after, err := st.Ledger().Increment(ctx, sub.ID)
	if err != nil {
		return err
	}

	entry := &model.UsageLogEntry{
		BookingID:      booking.ID,
		TeacherID:      booking.TeacherID,
		StudentID:      booking.StudentID,
		SubscriptionID: sub.ID,
		ActionType:     model.UsageActionApproved,
		PreviousStatus: previous,
		NewStatus:      model.BookingStatusConfirmed,
		StudentsBefore: check.CurrentStudents,
		StudentsAfter:  after,
		Reason:         in.Reason,
		PerformedBy:    model.ActorTeacher,
	}
	if err := st.UsageLogs().Insert(ctx, entry); err != nil {
		return err
	}

	course, err := st.Courses().GetByID(ctx, booking.CourseID)
	if err != nil {
		return fmt.Errorf("get course: %w", err)
	}
	if course != nil && course.HasReservation {
		payment := &model.ReservationPayment{
			BookingID: booking.ID,
			Amount:    course.ReservationAmount,
			Status:    model.PaymentStatusPending,
		}
		if err := st.Payments().Upsert(ctx, payment); err != nil {
			return err
		}
	}

	return nil
}

// releaseSeat возвращает место в ledger и готовит запись журнала для
// вставки вызывающим. Если активной подписки уже нет, возвращать нечего —
// место не числится, entry будет nil.
func (s *BookingService) releaseSeat(ctx context.Context, st Stores, booking *model.Booking, previous model.BookingStatus, action model.UsageActionType, reason string, by model.ActorRole) (*model.UsageLogEntry, error) {
	sub, err := st.Ledger().ActiveForTeacherLocked(ctx, booking.TeacherID)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if sub == nil {
		s.logger.Warn("No active subscription to release seat from",
			zap.Int64("booking_id", booking.ID),
			zap.Int64("teacher_id", booking.TeacherID),
		)
		return nil, nil
	}

	after, err := st.Ledger().Decrement(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	return &model.UsageLogEntry{
		BookingID:      booking.ID,
		TeacherID:      booking.TeacherID,
		StudentID:      booking.StudentID,
		SubscriptionID: sub.ID,
		ActionType:     action,
		PreviousStatus: previous,
		NewStatus:      booking.Status,
		StudentsBefore: sub.CurrentStudents,
		StudentsAfter:  after,
		Reason:         reason,
		PerformedBy:    by,
	}, nil
}

// CancelByStudent отменяет бронирование со стороны студента
func (s *BookingService) CancelByStudent(ctx context.Context, bookingID, studentID int64, reason string) (*TransitionResult, error) {
	return s.cancelAs(ctx, bookingID, studentID, model.ActorStudent, reason)
}

// CancelByTeacher отменяет бронирование со стороны учителя
func (s *BookingService) CancelByTeacher(ctx context.Context, bookingID, teacherID int64, reason string) (*TransitionResult, error) {
	return s.cancelAs(ctx, bookingID, teacherID, model.ActorTeacher, reason)
}

func (s *BookingService) cancelAs(ctx context.Context, bookingID, actorID int64, role model.ActorRole, reason string) (*TransitionResult, error) {
	var result *TransitionResult

	err := s.runner.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		var booking *model.Booking
		var err error
		if role == model.ActorStudent {
			booking, err = st.Bookings().GetForStudent(ctx, bookingID, actorID)
		} else {
			booking, err = st.Bookings().GetForTeacher(ctx, bookingID, actorID)
		}
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if booking == nil {
			return fmt.Errorf("booking %d: %w", bookingID, ErrBookingNotFound)
		}

		if booking.Status == model.BookingStatusCancelled {
			return fmt.Errorf("booking is already cancelled: %w", ErrInvalidTransition)
		}
		if booking.Status == model.BookingStatusRejected {
			return fmt.Errorf("cannot cancel a rejected booking: %w", ErrInvalidTransition)
		}

		previous := booking.Status
		now := time.Now()

		booking.Status = model.BookingStatusCancelled
		booking.CancelledAt = &now
		booking.CancellationReason = reason
		booking.CancelledBy = role
		if err := st.Bookings().Update(ctx, booking); err != nil {
			return err
		}

		if previous.HoldsSeat() {
			entry, err := s.releaseSeat(ctx, st, booking, previous, model.UsageActionCancelled, reason, role)
			if err != nil {
				return err
			}
			// Журнал здесь best-effort: его сбой не должен блокировать отмену
			if entry != nil {
				if err := st.UsageLogs().Insert(ctx, entry); err != nil {
					s.logger.Warn("Usage log write failed on cancellation",
						zap.Int64("booking_id", bookingID),
						zap.Error(err),
					)
				}
			}
		}

		result = &TransitionResult{
			Booking:        booking,
			PreviousStatus: previous,
			NewStatus:      booking.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking cancelled",
		zap.Int64("booking_id", bookingID),
		zap.Int64("actor_id", actorID),
		zap.String("cancelled_by", string(role)),
	)

	return result, nil
}

// Reactivate возвращает отменённое студентом бронирование в pending.
// Цепочка проверок строгая, каждая со своей ошибкой. Закончившийся курс
// не блокирует реактивацию, но результат несёт предупреждение.
func (s *BookingService) Reactivate(ctx context.Context, bookingID, studentID int64) (*TransitionResult, error) {
	var result *TransitionResult

	err := s.runner.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		booking, err := st.Bookings().GetByID(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if booking == nil {
			return fmt.Errorf("booking %d: %w", bookingID, ErrBookingNotFound)
		}
		if booking.StudentID != studentID {
			return fmt.Errorf("booking %d belongs to another student: %w", bookingID, ErrAccessDenied)
		}
		if booking.Status != model.BookingStatusCancelled {
			return fmt.Errorf("booking status is %s: %w", booking.Status, ErrReactivationWrongStatus)
		}
		if booking.CancelledBy == model.ActorTeacher {
			return fmt.Errorf("booking %d: %w", bookingID, ErrReactivationTeacherCancelled)
		}

		course, err := st.Courses().GetByID(ctx, booking.CourseID)
		if err != nil {
			return fmt.Errorf("get course: %w", err)
		}
		if course == nil || course.IsDeleted {
			return fmt.Errorf("course %d: %w", booking.CourseID, ErrReactivationCourseGone)
		}

		previous := booking.Status
		now := time.Now()

		booking.Status = model.BookingStatusPending
		booking.CancelledAt = nil
		booking.CancellationReason = ""
		booking.CancelledBy = ""
		booking.ReactivatedAt = &now
		if err := st.Bookings().Update(ctx, booking); err != nil {
			return err
		}

		// Реактивация не меняет занятость, но фиксируется в журнале (best-effort)
		if sub, err := st.Ledger().ActiveForTeacher(ctx, booking.TeacherID); err == nil && sub != nil {
			entry := &model.UsageLogEntry{
				BookingID:      booking.ID,
				TeacherID:      booking.TeacherID,
				StudentID:      booking.StudentID,
				SubscriptionID: sub.ID,
				ActionType:     model.UsageActionReactivated,
				PreviousStatus: previous,
				NewStatus:      booking.Status,
				StudentsBefore: sub.CurrentStudents,
				StudentsAfter:  sub.CurrentStudents,
				PerformedBy:    model.ActorStudent,
			}
			if err := st.UsageLogs().Insert(ctx, entry); err != nil {
				s.logger.Warn("Usage log write failed on reactivation",
					zap.Int64("booking_id", bookingID),
					zap.Error(err),
				)
			}
		}

		result = &TransitionResult{
			Booking:            booking,
			PreviousStatus:     previous,
			NewStatus:          booking.Status,
			CourseEndedWarning: course.Ended(now),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking reactivated",
		zap.Int64("booking_id", bookingID),
		zap.Int64("student_id", studentID),
		zap.Bool("course_ended", result.CourseEndedWarning),
	)

	return result, nil
}

// Delete мягко удаляет бронирование в рамках владения вызывающего
func (s *BookingService) Delete(ctx context.Context, bookingID, userID int64, role model.ActorRole) error {
	deleted, err := s.stores.Bookings().SoftDelete(ctx, bookingID, userID, role)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("booking %d: %w", bookingID, ErrBookingNotFound)
	}

	s.logger.Info("Booking deleted",
		zap.Int64("booking_id", bookingID),
		zap.Int64("user_id", userID),
		zap.String("role", string(role)),
	)

	return nil
}

// GetByID получает бронирование по ID
func (s *BookingService) GetByID(ctx context.Context, bookingID int64) (*model.Booking, error) {
	return s.stores.Bookings().GetByID(ctx, bookingID)
}

// FindAllByStudent получает бронирования студента. Только для чтения,
// для решений о вместимости не используется.
func (s *BookingService) FindAllByStudent(ctx context.Context, studentID int64, limit, offset int) ([]*model.Booking, error) {
	return s.stores.Bookings().ListByStudent(ctx, studentID, normalizeLimit(limit), offset)
}

// FindAllByTeacher получает бронирования учителя
func (s *BookingService) FindAllByTeacher(ctx context.Context, teacherID int64, limit, offset int) ([]*model.Booking, error) {
	return s.stores.Bookings().ListByTeacher(ctx, teacherID, normalizeLimit(limit), offset)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
