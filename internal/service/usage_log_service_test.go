package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_market/internal/model"
)

func newTestUsageLogService(db *memDB) *UsageLogService {
	return NewUsageLogService(memStores{db: db}, zap.NewNop())
}

func TestGetTeacherUsageStatsZeroFill(t *testing.T) {
	db := newMemDB()
	svc := newTestUsageLogService(db)
	seedSubscription(db, 1, 1, 2, 5)

	stats, err := svc.GetTeacherUsageStats(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetTeacherUsageStats: %v", err)
	}

	for _, action := range []model.UsageActionType{
		model.UsageActionApproved,
		model.UsageActionRejected,
		model.UsageActionCancelled,
		model.UsageActionReactivated,
	} {
		count, ok := stats.Actions[action]
		if !ok {
			t.Errorf("action %s missing from stats", action)
		}
		if count != 0 {
			t.Errorf("action %s = %d, want 0", action, count)
		}
	}

	if !stats.Capacity.CanAdd {
		t.Error("capacity snapshot: CanAdd = false, want true")
	}
	if stats.Capacity.CurrentStudents != 2 || stats.Capacity.MaxStudents != 5 {
		t.Errorf("capacity = %d/%d, want 2/5", stats.Capacity.CurrentStudents, stats.Capacity.MaxStudents)
	}
}

func TestGetTeacherUsageStatsCounts(t *testing.T) {
	db := newMemDB()
	bookings := newTestBookingService(db)
	logs := newTestUsageLogService(db)
	seedCourse(db, 10, 1)
	seedSubscription(db, 1, 1, 0, 5)
	ctx := context.Background()

	// confirm -> cancel -> reactivate -> confirm: approved=2, cancelled=1, reactivated=1
	booking := mustCreateBooking(t, bookings, 100, 10)
	mustConfirm(t, bookings, booking.ID, 1)
	if _, err := bookings.CancelByStudent(ctx, booking.ID, 100, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := bookings.Reactivate(ctx, booking.ID, 100); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	mustConfirm(t, bookings, booking.ID, 1)

	stats, err := logs.GetTeacherUsageStats(ctx, 1)
	if err != nil {
		t.Fatalf("GetTeacherUsageStats: %v", err)
	}

	want := map[model.UsageActionType]int{
		model.UsageActionApproved:    2,
		model.UsageActionRejected:    0,
		model.UsageActionCancelled:   1,
		model.UsageActionReactivated: 1,
	}
	for action, count := range want {
		if stats.Actions[action] != count {
			t.Errorf("action %s = %d, want %d", action, stats.Actions[action], count)
		}
	}
}

func TestFindByTeacherActionFilter(t *testing.T) {
	db := newMemDB()
	bookings := newTestBookingService(db)
	logs := newTestUsageLogService(db)
	seedCourse(db, 10, 1)
	seedSubscription(db, 1, 1, 0, 5)
	ctx := context.Background()

	booking := mustCreateBooking(t, bookings, 100, 10)
	mustConfirm(t, bookings, booking.ID, 1)
	if _, err := bookings.UpdateStatus(ctx, booking.ID, 1, UpdateStatusInput{Status: model.BookingStatusRejected}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	all, err := logs.FindByTeacher(ctx, 1, "", 0, 0)
	if err != nil {
		t.Fatalf("FindByTeacher: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all entries = %d, want 2", len(all))
	}

	rejectedOnly, err := logs.FindByTeacher(ctx, 1, model.UsageActionRejected, 0, 0)
	if err != nil {
		t.Fatalf("FindByTeacher(rejected): %v", err)
	}
	if len(rejectedOnly) != 1 {
		t.Fatalf("rejected entries = %d, want 1", len(rejectedOnly))
	}
	if rejectedOnly[0].ActionType != model.UsageActionRejected {
		t.Errorf("action = %s, want rejected", rejectedOnly[0].ActionType)
	}
}

func TestFindByBookingHistory(t *testing.T) {
	db := newMemDB()
	bookings := newTestBookingService(db)
	logs := newTestUsageLogService(db)
	seedCourse(db, 10, 1)
	seedSubscription(db, 1, 1, 0, 5)
	ctx := context.Background()

	booking := mustCreateBooking(t, bookings, 100, 10)
	mustConfirm(t, bookings, booking.ID, 1)
	if _, err := bookings.CancelByTeacher(ctx, booking.ID, 1, "болезнь"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	history, err := logs.FindByBooking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("FindByBooking: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history))
	}
	if history[0].ActionType != model.UsageActionApproved || history[1].ActionType != model.UsageActionCancelled {
		t.Errorf("history = [%s, %s], want [approved, cancelled]", history[0].ActionType, history[1].ActionType)
	}
	if history[1].Reason != "болезнь" {
		t.Errorf("cancel reason = %q", history[1].Reason)
	}
	if history[1].PerformedBy != model.ActorTeacher {
		t.Errorf("performed_by = %s, want teacher", history[1].PerformedBy)
	}
}
