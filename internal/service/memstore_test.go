package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/tutor_market/internal/model"
)

// memDB — in-memory замена базы для тестов сервисов. Транзакции
// сериализуются мьютексом (аналог блокировки строки подписки), откат
// восстанавливает снимок состояния.
type memDB struct {
	mu sync.Mutex

	bookings      map[int64]*model.Booking
	courses       map[int64]*model.Course
	subscriptions map[int64]*model.Subscription
	usageLogs     []*model.UsageLogEntry
	payments      map[int64]*model.ReservationPayment // ключ — booking_id

	nextBookingID int64
	nextLogID     int64

	failUsageLog bool // имитирует сбой вставки в журнал
}

func newMemDB() *memDB {
	return &memDB{
		bookings:      make(map[int64]*model.Booking),
		courses:       make(map[int64]*model.Course),
		subscriptions: make(map[int64]*model.Subscription),
		payments:      make(map[int64]*model.ReservationPayment),
	}
}

func cloneBooking(b *model.Booking) *model.Booking {
	c := *b
	return &c
}

func cloneSubscription(s *model.Subscription) *model.Subscription {
	c := *s
	return &c
}

func (db *memDB) snapshot() *memDB {
	s := newMemDB()
	for id, b := range db.bookings {
		s.bookings[id] = cloneBooking(b)
	}
	for id, c := range db.courses {
		course := *c
		s.courses[id] = &course
	}
	for id, sub := range db.subscriptions {
		s.subscriptions[id] = cloneSubscription(sub)
	}
	s.usageLogs = append([]*model.UsageLogEntry(nil), db.usageLogs...)
	for id, p := range db.payments {
		payment := *p
		s.payments[id] = &payment
	}
	s.nextBookingID = db.nextBookingID
	s.nextLogID = db.nextLogID
	s.failUsageLog = db.failUsageLog
	return s
}

func (db *memDB) restore(s *memDB) {
	db.bookings = s.bookings
	db.courses = s.courses
	db.subscriptions = s.subscriptions
	db.usageLogs = s.usageLogs
	db.payments = s.payments
	db.nextBookingID = s.nextBookingID
	db.nextLogID = s.nextLogID
}

type memRunner struct {
	db *memDB
}

func (r *memRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	snap := r.db.snapshot()
	if err := fn(ctx, memStores{db: r.db}); err != nil {
		r.db.restore(snap)
		return err
	}
	return nil
}

type memStores struct {
	db *memDB
}

func (m memStores) Bookings() BookingStore   { return &memBookingStore{db: m.db} }
func (m memStores) Courses() CourseStore     { return &memCourseStore{db: m.db} }
func (m memStores) Ledger() LedgerStore      { return &memLedgerStore{db: m.db} }
func (m memStores) UsageLogs() UsageLogStore { return &memUsageLogStore{db: m.db} }
func (m memStores) Payments() PaymentStore   { return &memPaymentStore{db: m.db} }

type memBookingStore struct {
	db *memDB
}

func (s *memBookingStore) Insert(ctx context.Context, booking *model.Booking) error {
	s.db.nextBookingID++
	booking.ID = s.db.nextBookingID
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	s.db.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (s *memBookingStore) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	b, ok := s.db.bookings[id]
	if !ok || b.IsDeleted {
		return nil, nil
	}
	return cloneBooking(b), nil
}

func (s *memBookingStore) GetForTeacher(ctx context.Context, id, teacherID int64) (*model.Booking, error) {
	b, ok := s.db.bookings[id]
	if !ok || b.IsDeleted || b.TeacherID != teacherID {
		return nil, nil
	}
	return cloneBooking(b), nil
}

func (s *memBookingStore) GetForStudent(ctx context.Context, id, studentID int64) (*model.Booking, error) {
	b, ok := s.db.bookings[id]
	if !ok || b.IsDeleted || b.StudentID != studentID {
		return nil, nil
	}
	return cloneBooking(b), nil
}

func (s *memBookingStore) GetActiveByStudentAndCourse(ctx context.Context, studentID, courseID int64) (*model.Booking, error) {
	for _, b := range s.db.bookings {
		if b.StudentID == studentID && b.CourseID == courseID && !b.IsDeleted {
			return cloneBooking(b), nil
		}
	}
	return nil, nil
}

func (s *memBookingStore) Update(ctx context.Context, booking *model.Booking) error {
	existing, ok := s.db.bookings[booking.ID]
	if !ok || existing.IsDeleted {
		return fmt.Errorf("booking not found")
	}
	updated := cloneBooking(booking)
	updated.UpdatedAt = time.Now()
	s.db.bookings[booking.ID] = updated
	return nil
}

func (s *memBookingStore) SoftDelete(ctx context.Context, id, userID int64, role model.ActorRole) (bool, error) {
	b, ok := s.db.bookings[id]
	if !ok || b.IsDeleted {
		return false, nil
	}
	switch role {
	case model.ActorStudent:
		if b.StudentID != userID {
			return false, nil
		}
	case model.ActorTeacher:
		if b.TeacherID != userID {
			return false, nil
		}
	default:
		return false, fmt.Errorf("unsupported owner role: %s", role)
	}
	b.IsDeleted = true
	return true, nil
}

func (s *memBookingStore) ListByStudent(ctx context.Context, studentID int64, limit, offset int) ([]*model.Booking, error) {
	var result []*model.Booking
	for _, b := range s.db.bookings {
		if b.StudentID == studentID && !b.IsDeleted {
			result = append(result, cloneBooking(b))
		}
	}
	return result, nil
}

func (s *memBookingStore) ListByTeacher(ctx context.Context, teacherID int64, limit, offset int) ([]*model.Booking, error) {
	var result []*model.Booking
	for _, b := range s.db.bookings {
		if b.TeacherID == teacherID && !b.IsDeleted {
			result = append(result, cloneBooking(b))
		}
	}
	return result, nil
}

func (s *memBookingStore) CountSeatHolders(ctx context.Context, teacherID int64, from, to time.Time) (int, error) {
	count := 0
	for _, b := range s.db.bookings {
		if b.TeacherID == teacherID && b.Status.HoldsSeat() && !b.IsDeleted &&
			!b.CreatedAt.Before(from) && !b.CreatedAt.After(to) {
			count++
		}
	}
	return count, nil
}

type memCourseStore struct {
	db *memDB
}

func (s *memCourseStore) GetByID(ctx context.Context, id int64) (*model.Course, error) {
	c, ok := s.db.courses[id]
	if !ok {
		return nil, nil
	}
	course := *c
	return &course, nil
}

type memLedgerStore struct {
	db *memDB
}

func (s *memLedgerStore) activeForTeacher(teacherID int64) *model.Subscription {
	for _, sub := range s.db.subscriptions {
		if sub.TeacherID == teacherID && sub.IsActive && sub.DeletedAt == nil {
			return sub
		}
	}
	return nil
}

func (s *memLedgerStore) ActiveForTeacher(ctx context.Context, teacherID int64) (*model.Subscription, error) {
	sub := s.activeForTeacher(teacherID)
	if sub == nil {
		return nil, nil
	}
	return cloneSubscription(sub), nil
}

func (s *memLedgerStore) ActiveForTeacherLocked(ctx context.Context, teacherID int64) (*model.Subscription, error) {
	return s.ActiveForTeacher(ctx, teacherID)
}

func (s *memLedgerStore) Increment(ctx context.Context, subscriptionID int64) (int, error) {
	sub, ok := s.db.subscriptions[subscriptionID]
	if !ok || !sub.IsActive || sub.DeletedAt != nil {
		return 0, fmt.Errorf("subscription not found or inactive")
	}
	sub.CurrentStudents++
	return sub.CurrentStudents, nil
}

func (s *memLedgerStore) Decrement(ctx context.Context, subscriptionID int64) (int, error) {
	sub, ok := s.db.subscriptions[subscriptionID]
	if !ok || !sub.IsActive || sub.DeletedAt != nil {
		return 0, fmt.Errorf("subscription not found or inactive")
	}
	if sub.CurrentStudents > 0 {
		sub.CurrentStudents--
	}
	return sub.CurrentStudents, nil
}

func (s *memLedgerStore) SetCurrent(ctx context.Context, subscriptionID int64, current int) error {
	sub, ok := s.db.subscriptions[subscriptionID]
	if !ok || !sub.IsActive || sub.DeletedAt != nil {
		return fmt.Errorf("subscription not found or inactive")
	}
	sub.CurrentStudents = current
	return nil
}

func (s *memLedgerStore) ActiveTeacherIDs(ctx context.Context) ([]int64, error) {
	now := time.Now()
	var ids []int64
	for _, sub := range s.db.subscriptions {
		if sub.IsActive && sub.DeletedAt == nil && !sub.EndDate.Before(now) {
			ids = append(ids, sub.TeacherID)
		}
	}
	return ids, nil
}

type memUsageLogStore struct {
	db *memDB
}

func (s *memUsageLogStore) Insert(ctx context.Context, entry *model.UsageLogEntry) error {
	if s.db.failUsageLog {
		return fmt.Errorf("insert usage log: connection reset")
	}
	s.db.nextLogID++
	entry.ID = s.db.nextLogID
	entry.CreatedAt = time.Now()
	stored := *entry
	s.db.usageLogs = append(s.db.usageLogs, &stored)
	return nil
}

func (s *memUsageLogStore) ListByTeacher(ctx context.Context, teacherID int64, actionType model.UsageActionType, limit, offset int) ([]*model.UsageLogEntry, error) {
	var result []*model.UsageLogEntry
	for _, e := range s.db.usageLogs {
		if e.TeacherID != teacherID {
			continue
		}
		if actionType != "" && e.ActionType != actionType {
			continue
		}
		entry := *e
		result = append(result, &entry)
	}
	return result, nil
}

func (s *memUsageLogStore) ListBySubscription(ctx context.Context, subscriptionID int64, limit, offset int) ([]*model.UsageLogEntry, error) {
	var result []*model.UsageLogEntry
	for _, e := range s.db.usageLogs {
		if e.SubscriptionID == subscriptionID {
			entry := *e
			result = append(result, &entry)
		}
	}
	return result, nil
}

func (s *memUsageLogStore) ListByBooking(ctx context.Context, bookingID int64) ([]*model.UsageLogEntry, error) {
	var result []*model.UsageLogEntry
	for _, e := range s.db.usageLogs {
		if e.BookingID == bookingID {
			entry := *e
			result = append(result, &entry)
		}
	}
	return result, nil
}

func (s *memUsageLogStore) Recent(ctx context.Context, limit int) ([]*model.UsageLogEntry, error) {
	var result []*model.UsageLogEntry
	for i := len(s.db.usageLogs) - 1; i >= 0 && len(result) < limit; i-- {
		entry := *s.db.usageLogs[i]
		result = append(result, &entry)
	}
	return result, nil
}

func (s *memUsageLogStore) CountByAction(ctx context.Context, teacherID int64) (map[model.UsageActionType]int, error) {
	counts := make(map[model.UsageActionType]int)
	for _, e := range s.db.usageLogs {
		if e.TeacherID == teacherID {
			counts[e.ActionType]++
		}
	}
	return counts, nil
}

type memPaymentStore struct {
	db *memDB
}

func (s *memPaymentStore) Upsert(ctx context.Context, payment *model.ReservationPayment) error {
	if _, ok := s.db.payments[payment.BookingID]; ok {
		return nil
	}
	stored := *payment
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	s.db.payments[payment.BookingID] = &stored
	return nil
}

func (s *memPaymentStore) GetByBookingID(ctx context.Context, bookingID int64) (*model.ReservationPayment, error) {
	p, ok := s.db.payments[bookingID]
	if !ok {
		return nil, nil
	}
	payment := *p
	return &payment, nil
}
