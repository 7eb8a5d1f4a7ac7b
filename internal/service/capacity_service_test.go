package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_market/internal/model"
)

func newTestCapacityService(db *memDB) *CapacityService {
	return NewCapacityService(&memRunner{db: db}, memStores{db: db}, zap.NewNop())
}

func TestEvaluateAdmission(t *testing.T) {
	now := time.Now()
	active := func(current, max int) *model.Subscription {
		return &model.Subscription{
			ID:              1,
			CurrentStudents: current,
			MaxStudents:     max,
			EndDate:         now.Add(time.Hour),
			IsActive:        true,
		}
	}

	tests := []struct {
		name        string
		sub         *model.Subscription
		wantCanAdd  bool
		wantMessage string
	}{
		{
			name:        "no subscription",
			sub:         nil,
			wantCanAdd:  false,
			wantMessage: ErrNoActiveSubscription.Error(),
		},
		{
			name: "expired",
			sub: &model.Subscription{
				CurrentStudents: 0,
				MaxStudents:     5,
				EndDate:         now.Add(-time.Minute),
			},
			wantCanAdd:  false,
			wantMessage: ErrSubscriptionExpired.Error(),
		},
		{
			name:        "full",
			sub:         active(5, 5),
			wantCanAdd:  false,
			wantMessage: ErrCapacityExceeded.Error(),
		},
		{
			name:        "over capacity after downgrade",
			sub:         active(7, 5),
			wantCanAdd:  false,
			wantMessage: ErrCapacityExceeded.Error(),
		},
		{
			name:       "one seat left",
			sub:        active(4, 5),
			wantCanAdd: true,
		},
		{
			name:       "empty",
			sub:        active(0, 1),
			wantCanAdd: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := EvaluateAdmission(tt.sub, now)
			if check.CanAdd != tt.wantCanAdd {
				t.Errorf("CanAdd = %v, want %v", check.CanAdd, tt.wantCanAdd)
			}
			if check.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", check.Message, tt.wantMessage)
			}
		})
	}
}

func TestAdmissionErrorMapping(t *testing.T) {
	now := time.Now()

	if err := admissionError(EvaluateAdmission(nil, now)); !errors.Is(err, ErrNoActiveSubscription) {
		t.Errorf("nil sub: err = %v, want ErrNoActiveSubscription", err)
	}

	expired := &model.Subscription{EndDate: now.Add(-time.Hour), MaxStudents: 5}
	if err := admissionError(EvaluateAdmission(expired, now)); !errors.Is(err, ErrSubscriptionExpired) {
		t.Errorf("expired: err = %v, want ErrSubscriptionExpired", err)
	}

	full := &model.Subscription{CurrentStudents: 3, MaxStudents: 3, EndDate: now.Add(time.Hour)}
	if err := admissionError(EvaluateAdmission(full, now)); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("full: err = %v, want ErrCapacityExceeded", err)
	}
}

func TestCanAdmit(t *testing.T) {
	db := newMemDB()
	svc := newTestCapacityService(db)
	seedSubscription(db, 1, 1, 2, 3)

	check, err := svc.CanAdmit(context.Background(), 1)
	if err != nil {
		t.Fatalf("CanAdmit: %v", err)
	}
	if !check.CanAdd {
		t.Error("CanAdd = false, want true")
	}
	if check.CurrentStudents != 2 || check.MaxStudents != 3 {
		t.Errorf("seats = %d/%d, want 2/3", check.CurrentStudents, check.MaxStudents)
	}

	// Учитель без подписки
	check, err = svc.CanAdmit(context.Background(), 2)
	if err != nil {
		t.Fatalf("CanAdmit: %v", err)
	}
	if check.CanAdd {
		t.Error("CanAdd = true for teacher without subscription")
	}
}

func TestRecalculateFixesDrift(t *testing.T) {
	db := newMemDB()
	bookings := newTestBookingService(db)
	capacity := newTestCapacityService(db)
	seedCourse(db, 10, 1)
	sub := seedSubscription(db, 1, 1, 0, 5)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		b := mustCreateBooking(t, bookings, int64(100+i), 10)
		mustConfirm(t, bookings, b.ID, 1)
	}

	// Имитация дрейфа: счётчик разошёлся с фактом
	sub.CurrentStudents = 1

	current, err := capacity.Recalculate(ctx, 1)
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if current != 3 {
		t.Errorf("recalculated = %d, want 3", current)
	}
	if sub.CurrentStudents != 3 {
		t.Errorf("ledger = %d after recalculate, want 3", sub.CurrentStudents)
	}

	// Без дрейфа счётчик не трогается
	if current, err = capacity.Recalculate(ctx, 1); err != nil || current != 3 {
		t.Errorf("Recalculate = (%d, %v), want (3, nil)", current, err)
	}
}

func TestRecalculateIgnoresNonSeatHolders(t *testing.T) {
	db := newMemDB()
	bookings := newTestBookingService(db)
	capacity := newTestCapacityService(db)
	seedCourse(db, 10, 1)
	sub := seedSubscription(db, 1, 1, 0, 5)
	ctx := context.Background()

	confirmed := mustCreateBooking(t, bookings, 100, 10)
	mustConfirm(t, bookings, confirmed.ID, 1)

	// pending, отклонённое и удалённое места не держат
	mustCreateBooking(t, bookings, 101, 10)

	rejected := mustCreateBooking(t, bookings, 102, 10)
	if _, err := bookings.UpdateStatus(ctx, rejected.ID, 1, UpdateStatusInput{Status: model.BookingStatusRejected}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	deleted := mustCreateBooking(t, bookings, 103, 10)
	mustConfirm(t, bookings, deleted.ID, 1)
	if err := bookings.Delete(ctx, deleted.ID, 103, model.ActorStudent); err != nil {
		t.Fatalf("delete: %v", err)
	}

	sub.CurrentStudents = 0

	current, err := capacity.Recalculate(ctx, 1)
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if current != 1 {
		t.Errorf("recalculated = %d, want 1 (only live confirmed)", current)
	}
}

func TestRecalculateNoSubscription(t *testing.T) {
	db := newMemDB()
	svc := newTestCapacityService(db)

	_, err := svc.Recalculate(context.Background(), 1)
	if !errors.Is(err, ErrNoActiveSubscription) {
		t.Fatalf("err = %v, want ErrNoActiveSubscription", err)
	}
}

func TestRecalculateAll(t *testing.T) {
	db := newMemDB()
	bookings := newTestBookingService(db)
	capacity := newTestCapacityService(db)
	seedCourse(db, 10, 1)
	seedCourse(db, 20, 2)
	subA := seedSubscription(db, 1, 1, 0, 5)
	subB := seedSubscription(db, 2, 2, 0, 5)

	b := mustCreateBooking(t, bookings, 100, 10)
	mustConfirm(t, bookings, b.ID, 1)

	subA.CurrentStudents = 4
	subB.CurrentStudents = 2

	if err := capacity.RecalculateAll(context.Background()); err != nil {
		t.Fatalf("RecalculateAll: %v", err)
	}
	if subA.CurrentStudents != 1 {
		t.Errorf("teacher 1 ledger = %d, want 1", subA.CurrentStudents)
	}
	if subB.CurrentStudents != 0 {
		t.Errorf("teacher 2 ledger = %d, want 0", subB.CurrentStudents)
	}
}

func TestSeatReleaseNeverGoesNegative(t *testing.T) {
	db := newMemDB()
	svc := newTestBookingService(db)
	seedCourse(db, 10, 1)
	sub := seedSubscription(db, 1, 1, 0, 5)
	ctx := context.Background()

	booking := mustCreateBooking(t, svc, 100, 10)
	mustConfirm(t, svc, booking.ID, 1)

	// Счётчик уже обнулён (например, реконсиляцией) — отмена не уводит в минус
	sub.CurrentStudents = 0

	if _, err := svc.CancelByStudent(ctx, booking.ID, 100, ""); err != nil {
		t.Fatalf("CancelByStudent: %v", err)
	}
	if sub.CurrentStudents != 0 {
		t.Errorf("ledger = %d, want 0 (floor)", sub.CurrentStudents)
	}
}
