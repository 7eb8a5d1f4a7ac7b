package app

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutor_market/internal/service"
	"go.uber.org/zap"
)

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	capacityService *service.CapacityService
	logger          *zap.Logger
	stopChan        chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(capacityService *service.CapacityService, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		capacityService: capacityService,
		logger:          logger,
		stopChan:        make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler")

	// Запускаем задачу реконсиляции занятых мест
	go s.runReconciliationTask(ctx)
}

// Stop останавливает фоновые задачи
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
}

// runReconciliationTask периодически сверяет ledger с фактическими бронированиями
func (s *Scheduler) runReconciliationTask(ctx context.Context) {
	// Первый запуск сразу при старте
	s.reconcile(ctx)

	// Реконсиляция — не горячий путь, раз в сутки достаточно
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reconcile(ctx)
		case <-s.stopChan:
			s.logger.Info("Reconciliation task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Reconciliation task cancelled")
			return
		}
	}
}

// reconcile пересчитывает занятость всех учителей с действующими подписками
func (s *Scheduler) reconcile(ctx context.Context) {
	s.logger.Info("Starting capacity reconciliation")

	err := s.capacityService.RecalculateAll(ctx)
	if err != nil {
		s.logger.Error("Failed to reconcile capacity", zap.Error(err))
		return
	}

	s.logger.Info("Capacity reconciliation completed successfully")
}
