package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutor_market/internal/model"
	"github.com/Freeeeeet/tutor_market/internal/repository"
	"github.com/Freeeeeet/tutor_market/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BookingStore владеет строками бронирований
type BookingStore interface {
	Insert(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	GetForTeacher(ctx context.Context, id, teacherID int64) (*model.Booking, error)
	GetForStudent(ctx context.Context, id, studentID int64) (*model.Booking, error)
	GetActiveByStudentAndCourse(ctx context.Context, studentID, courseID int64) (*model.Booking, error)
	Update(ctx context.Context, booking *model.Booking) error
	SoftDelete(ctx context.Context, id, userID int64, role model.ActorRole) (bool, error)
	ListByStudent(ctx context.Context, studentID int64, limit, offset int) ([]*model.Booking, error)
	ListByTeacher(ctx context.Context, teacherID int64, limit, offset int) ([]*model.Booking, error)
	CountSeatHolders(ctx context.Context, teacherID int64, from, to time.Time) (int, error)
}

// CourseStore — внешний course-провайдер
type CourseStore interface {
	GetByID(ctx context.Context, id int64) (*model.Course, error)
}

// LedgerStore — учёт занятых мест по активной подписке учителя
type LedgerStore interface {
	ActiveForTeacher(ctx context.Context, teacherID int64) (*model.Subscription, error)
	ActiveForTeacherLocked(ctx context.Context, teacherID int64) (*model.Subscription, error)
	Increment(ctx context.Context, subscriptionID int64) (int, error)
	Decrement(ctx context.Context, subscriptionID int64) (int, error)
	SetCurrent(ctx context.Context, subscriptionID int64, current int) error
	ActiveTeacherIDs(ctx context.Context) ([]int64, error)
}

// UsageLogStore — append-only журнал изменений занятости
type UsageLogStore interface {
	Insert(ctx context.Context, entry *model.UsageLogEntry) error
	ListByTeacher(ctx context.Context, teacherID int64, actionType model.UsageActionType, limit, offset int) ([]*model.UsageLogEntry, error)
	ListBySubscription(ctx context.Context, subscriptionID int64, limit, offset int) ([]*model.UsageLogEntry, error)
	ListByBooking(ctx context.Context, bookingID int64) ([]*model.UsageLogEntry, error)
	Recent(ctx context.Context, limit int) ([]*model.UsageLogEntry, error)
	CountByAction(ctx context.Context, teacherID int64) (map[model.UsageActionType]int, error)
}

// PaymentStore — sink бронь-взносов
type PaymentStore interface {
	Upsert(ctx context.Context, payment *model.ReservationPayment) error
	GetByBookingID(ctx context.Context, bookingID int64) (*model.ReservationPayment, error)
}

// Stores — набор хранилищ, привязанный к одному Querier-у:
// либо к пулу (чтения), либо к транзакции (переходы).
type Stores interface {
	Bookings() BookingStore
	Courses() CourseStore
	Ledger() LedgerStore
	UsageLogs() UsageLogStore
	Payments() PaymentStore
}

// TxRunner выполняет колбэк внутри одной транзакции, выдавая ему
// транзакционный набор хранилищ. Ошибка колбэка откатывает всё.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

type sqlStores struct {
	bookings  *repository.BookingRepository
	courses   *repository.CourseRepository
	ledger    *repository.SubscriptionRepository
	usageLogs *repository.UsageLogRepository
	payments  *repository.PaymentRepository
}

func newSQLStores(db base.Querier) sqlStores {
	return sqlStores{
		bookings:  repository.NewBookingRepository(db),
		courses:   repository.NewCourseRepository(db),
		ledger:    repository.NewSubscriptionRepository(db),
		usageLogs: repository.NewUsageLogRepository(db),
		payments:  repository.NewPaymentRepository(db),
	}
}

func (s sqlStores) Bookings() BookingStore   { return s.bookings }
func (s sqlStores) Courses() CourseStore     { return s.courses }
func (s sqlStores) Ledger() LedgerStore      { return s.ledger }
func (s sqlStores) UsageLogs() UsageLogStore { return s.usageLogs }
func (s sqlStores) Payments() PaymentStore   { return s.payments }

// NewStores создаёт набор хранилищ поверх пула (для чтений вне транзакций)
func NewStores(pool *pgxpool.Pool) Stores {
	return newSQLStores(pool)
}

type txRunner struct {
	tx *base.TxManager
}

// NewTxRunner создаёт транзакционный исполнитель поверх пула
func NewTxRunner(pool *pgxpool.Pool) TxRunner {
	return &txRunner{tx: base.NewTxManager(pool)}
}

func (r *txRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	return r.tx.WithinTx(ctx, func(ctx context.Context, q base.Querier) error {
		return fn(ctx, newSQLStores(q))
	})
}
