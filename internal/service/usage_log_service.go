package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutor_market/internal/model"
	"go.uber.org/zap"
)

// UsageLogService — read-поверхность журнала занятости.
// Записи в журнал делает только BookingService внутри своих транзакций.
type UsageLogService struct {
	stores Stores
	logger *zap.Logger
}

func NewUsageLogService(stores Stores, logger *zap.Logger) *UsageLogService {
	return &UsageLogService{
		stores: stores,
		logger: logger,
	}
}

// FindByTeacher получает записи учителя, опционально по типу действия
func (s *UsageLogService) FindByTeacher(ctx context.Context, teacherID int64, actionType model.UsageActionType, limit, offset int) ([]*model.UsageLogEntry, error) {
	return s.stores.UsageLogs().ListByTeacher(ctx, teacherID, actionType, normalizeLimit(limit), offset)
}

// FindBySubscription получает записи по подписке
func (s *UsageLogService) FindBySubscription(ctx context.Context, subscriptionID int64, limit, offset int) ([]*model.UsageLogEntry, error) {
	return s.stores.UsageLogs().ListBySubscription(ctx, subscriptionID, normalizeLimit(limit), offset)
}

// FindByBooking получает историю переходов бронирования
func (s *UsageLogService) FindByBooking(ctx context.Context, bookingID int64) ([]*model.UsageLogEntry, error) {
	return s.stores.UsageLogs().ListByBooking(ctx, bookingID)
}

// GetRecentLogs — глобальная лента последних записей, диагностика
func (s *UsageLogService) GetRecentLogs(ctx context.Context, limit int) ([]*model.UsageLogEntry, error) {
	return s.stores.UsageLogs().Recent(ctx, normalizeLimit(limit))
}

// GetTeacherUsageStats — количество действий по типам плюс живой снимок вместимости
func (s *UsageLogService) GetTeacherUsageStats(ctx context.Context, teacherID int64) (*model.TeacherUsageStats, error) {
	counts, err := s.stores.UsageLogs().CountByAction(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	// Нулевые счётчики присутствуют явно, чтобы вызывающему не гадать
	for _, action := range []model.UsageActionType{
		model.UsageActionApproved,
		model.UsageActionRejected,
		model.UsageActionCancelled,
		model.UsageActionReactivated,
	} {
		if _, ok := counts[action]; !ok {
			counts[action] = 0
		}
	}

	sub, err := s.stores.Ledger().ActiveForTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	return &model.TeacherUsageStats{
		TeacherID: teacherID,
		Actions:   counts,
		Capacity:  EvaluateAdmission(sub, time.Now()),
	}, nil
}
